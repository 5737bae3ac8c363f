// Package evidence serves evidence for a company from the cache, computing
// and persisting it on a miss.
package evidence

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/evidence-cli/internal/download"
	"github.com/sells-group/evidence-cli/internal/model"
	"github.com/sells-group/evidence-cli/internal/store"
)

// CandidateSource returns candidate document links for a company.
type CandidateSource func(ctx context.Context, company model.CompanyIdentity) ([]model.CandidateLink, error)

// Processor turns candidate links into evidence results.
type Processor interface {
	Process(ctx context.Context, urls []model.CandidateLink, question string) ([]download.Result, error)
}

// Aggregator answers evidence lookups cache-first.
type Aggregator struct {
	store    store.Store
	proc     Processor
	question string
	timeout  time.Duration

	group singleflight.Group
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithComputeTimeout bounds one shared miss computation. Zero means no
// limit.
func WithComputeTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		a.timeout = d
	}
}

// NewAggregator creates an Aggregator. An empty question uses
// download.DefaultQuestion.
func NewAggregator(st store.Store, proc Processor, question string, opts ...Option) *Aggregator {
	if question == "" {
		question = download.DefaultQuestion
	}
	a := &Aggregator{store: st, proc: proc, question: question}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GetEvidence returns the stored records for company. On a miss it asks
// source for candidates, processes them and persists every result before
// returning. Concurrent misses for the same company share one computation,
// which is detached from any single caller's cancellation and bounded by the
// compute timeout; a caller whose ctx ends stops waiting without aborting it.
// A failing source yields an empty result without error; store failures are
// returned.
func (a *Aggregator) GetEvidence(ctx context.Context, company model.CompanyIdentity, source CandidateSource) ([]model.EvidenceRecord, error) {
	log := zap.L().With(zap.String("company", company.String()))

	cached, err := a.store.ReadPartition(ctx, company)
	if err != nil {
		return nil, eris.Wrap(err, "evidence: read cache")
	}
	if len(cached) > 0 {
		log.Debug("evidence: cache hit", zap.Int("records", len(cached)))
		return cached, nil
	}

	ch := a.group.DoChan(company.String(), func() (any, error) {
		cctx := context.WithoutCancel(ctx)
		if a.timeout > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(cctx, a.timeout)
			defer cancel()
		}
		return a.compute(cctx, company, source, log)
	})

	select {
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "evidence: wait for lookup")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			log.Debug("evidence: joined in-flight computation")
		}
		return res.Val.([]model.EvidenceRecord), nil
	}
}

func (a *Aggregator) compute(ctx context.Context, company model.CompanyIdentity, source CandidateSource, log *zap.Logger) ([]model.EvidenceRecord, error) {
	// Another caller may have finished between our read and taking the flight.
	cached, err := a.store.ReadPartition(ctx, company)
	if err != nil {
		return nil, eris.Wrap(err, "evidence: read cache")
	}
	if len(cached) > 0 {
		return cached, nil
	}

	links, err := source(ctx, company)
	if err != nil {
		log.Error("evidence: candidate search failed", zap.Error(err))
		return []model.EvidenceRecord{}, nil
	}
	links = uniqueLinks(links)
	log.Info("evidence: cache miss", zap.Int("candidates", len(links)))

	results, err := a.proc.Process(ctx, links, a.question)
	if err != nil {
		return nil, eris.Wrap(err, "evidence: process candidates")
	}

	recs := make([]model.EvidenceRecord, 0, len(results))
	for _, r := range results {
		recs = append(recs, r.Record())
	}
	if err := a.store.WriteEntries(ctx, company, recs); err != nil {
		return nil, eris.Wrap(err, "evidence: write cache")
	}
	model.SortRecords(recs)

	log.Info("evidence: stored records", zap.Int("records", len(recs)))
	return recs, nil
}

func uniqueLinks(links []model.CandidateLink) []model.CandidateLink {
	seen := make(map[model.CandidateLink]bool, len(links))
	out := make([]model.CandidateLink, 0, len(links))
	for _, l := range links {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// Summaries joins the non-empty summaries of recs with a blank line.
func Summaries(recs []model.EvidenceRecord) string {
	parts := make([]string, 0, len(recs))
	for _, r := range recs {
		if r.Summary != "" {
			parts = append(parts, r.Summary)
		}
	}
	return strings.Join(parts, "\n\n")
}
