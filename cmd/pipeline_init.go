package main

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/evidence-cli/internal/answer"
	"github.com/sells-group/evidence-cli/internal/config"
	"github.com/sells-group/evidence-cli/internal/cost"
	"github.com/sells-group/evidence-cli/internal/download"
	"github.com/sells-group/evidence-cli/internal/evidence"
	"github.com/sells-group/evidence-cli/internal/fetcher"
	"github.com/sells-group/evidence-cli/internal/model"
	"github.com/sells-group/evidence-cli/internal/resilience"
	"github.com/sells-group/evidence-cli/internal/search"
	"github.com/sells-group/evidence-cli/internal/store"
	anthropicpkg "github.com/sells-group/evidence-cli/pkg/anthropic"
	"github.com/sells-group/evidence-cli/pkg/jina"
)

// pipelineEnv holds the store, the aggregator and the candidate source used
// by the lookup and serve commands.
type pipelineEnv struct {
	Store      store.Store
	Aggregator *evidence.Aggregator
	Source     evidence.CandidateSource
	Costs      *cost.Calculator

	closers []io.Closer
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	for _, c := range pe.closers {
		_ = c.Close()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
	if pe.Costs != nil {
		usd, calls := pe.Costs.Total()
		zap.L().Info("answering spend",
			zap.Int("calls", calls),
			zap.Float64("estimated_cost_usd", usd),
		)
	}
}

// initPipeline sets up the store, the search provider, the answering
// service and the downloader. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	env := &pipelineEnv{Store: st, Costs: cost.NewCalculator(pricing(cfg.Pricing))}

	provider, err := initSearch(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}

	svc, closer, err := initAnswer(ctx, env.Costs)
	if err != nil {
		env.Close()
		return nil, err
	}
	if closer != nil {
		env.closers = append(env.closers, closer)
	}

	cb := resilience.NewCircuitBreaker(resilience.NewCircuitBreakerConfig(
		cfg.Answer.Provider, cfg.Answer.BreakerFailures, cfg.Answer.BreakerResetSecs,
	))
	orch := answer.NewOrchestrator(answer.WithBreaker(svc, cb))

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:   cfg.Download.UserAgent,
		Timeout:     time.Duration(cfg.Download.TimeoutSecs) * time.Second,
		RatePerHost: cfg.Download.RatePerHost,
	})
	dl := download.New(f, orch, download.Options{
		Caps: download.Caps{
			PerDocument: cfg.Download.PerDocumentBytes,
			Soft:        cfg.Download.SoftCapBytes,
			Hard:        cfg.Download.HardCapBytes,
			Penalty:     cfg.Download.PenaltyBytes,
		},
		UnknownSize: cfg.Download.UnknownSizeBytes,
		Workers:     cfg.Download.Workers,
		TempDir:     cfg.Download.TempDir,
	})

	env.Aggregator = evidence.NewAggregator(st, dl, cfg.Download.Question,
		evidence.WithComputeTimeout(time.Duration(cfg.Download.ComputeTimeoutSecs)*time.Second))
	env.Source = candidateSource(provider, cfg.Search)

	zap.L().Info("pipeline ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("search", cfg.Search.Provider),
		zap.String("answer", cfg.Answer.Provider),
		zap.Int("workers", cfg.Download.Workers),
	)
	return env, nil
}

// openStore opens and migrates the configured evidence store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case store.DriverSQLite:
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "evidence.db"
		}
		return store.NewSQLite(dsn)
	case store.DriverPostgres:
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case store.DriverMongo:
		return store.NewMongo(ctx, cfg.Store.DatabaseURL, cfg.Store.MongoDatabase)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initSearch(ctx context.Context) (search.Provider, error) {
	switch cfg.Search.Provider {
	case "google":
		return search.NewGoogle(ctx, cfg.Search.GoogleKey, cfg.Search.GoogleCX, cfg.Search.Topic)
	case "jina":
		return newJina(), nil
	case "chain":
		// Google search, then the company's own site, then Jina when keyed.
		g, err := search.NewGoogle(ctx, cfg.Search.GoogleKey, cfg.Search.GoogleCX, cfg.Search.Topic)
		if err != nil {
			return nil, err
		}
		hc := &http.Client{Timeout: time.Duration(cfg.Search.TimeoutSecs) * time.Second}
		chain := search.Chain{g, search.NewSiteHarvester(g, hc, cfg.Download.UserAgent)}
		if cfg.Search.JinaKey != "" {
			chain = append(chain, newJina())
		}
		return chain, nil
	default:
		return nil, eris.Errorf("unsupported search provider: %s", cfg.Search.Provider)
	}
}

func newJina() *search.Jina {
	var opts []jina.Option
	if cfg.Search.JinaSearchBaseURL != "" {
		opts = append(opts, jina.WithSearchBaseURL(cfg.Search.JinaSearchBaseURL))
	}
	return search.NewJina(jina.NewClient(cfg.Search.JinaKey, opts...), cfg.Search.Topic)
}

// initAnswer builds the configured answering service. The returned closer is
// nil when the service holds no resources.
func initAnswer(ctx context.Context, costs *cost.Calculator) (answer.Service, io.Closer, error) {
	switch cfg.Answer.Provider {
	case "anthropic":
		client := anthropicpkg.NewClient(cfg.Answer.AnthropicKey)
		return answer.NewClaude(client, cfg.Answer.AnthropicModel, cfg.Answer.MaxTokens, costs), nil, nil
	case "gemini":
		g, err := answer.NewGemini(ctx, cfg.Answer.GeminiKey, cfg.Answer.GeminiModel, costs)
		if err != nil {
			return nil, nil, err
		}
		return g, g, nil
	default:
		return nil, nil, eris.Errorf("unsupported answer provider: %s", cfg.Answer.Provider)
	}
}

// candidateSource binds a provider to the configured file types, result
// count and search timeout.
func candidateSource(p search.Provider, sc config.SearchConfig) evidence.CandidateSource {
	return func(ctx context.Context, company model.CompanyIdentity) ([]model.CandidateLink, error) {
		if sc.TimeoutSecs > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(sc.TimeoutSecs)*time.Second)
			defer cancel()
		}
		return p.FindCandidates(ctx, company, sc.Filetypes, sc.MaxResults)
	}
}

// pricing merges configured model prices over the built-in list.
func pricing(overrides map[string]config.ModelPricing) map[string]cost.ModelRate {
	rates := cost.DefaultRates()
	for name, p := range overrides {
		rates[name] = cost.ModelRate{Input: p.Input, Output: p.Output}
	}
	return rates
}
