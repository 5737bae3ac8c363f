package download

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/evidence-cli/internal/fetcher"
	"github.com/sells-group/evidence-cli/internal/model"
	"github.com/sells-group/evidence-cli/internal/pdf"
)

// DefaultQuestion is the evidence question asked of every document.
const DefaultQuestion = "What are the key impacts of this company?"

// DefaultUnknownSize is assumed for documents whose size cannot be probed.
const DefaultUnknownSize int64 = 100_000_000

// Answerer runs the locate-then-summarize flow over one document.
type Answerer interface {
	Answer(ctx context.Context, question string, doc model.Document) (model.PageSet, string, error)
}

// Result is the evidence gathered from one admitted document.
type Result struct {
	Link    model.CandidateLink
	Pages   model.PageSet
	Summary string
}

// Record converts r into a storable evidence record. Missing pages become
// an empty set, matching what every store reads back.
func (r Result) Record() model.EvidenceRecord {
	pages := r.Pages
	if pages == nil {
		pages = model.PageSet{}
	}
	return model.EvidenceRecord{Link: r.Link, Pages: pages, Summary: r.Summary}
}

// Options configures a Downloader.
type Options struct {
	Caps        Caps
	UnknownSize int64
	// Workers bounds concurrent download and answering work. Admission is
	// always sequential.
	Workers int
	// TempDir is the parent of per-invocation scratch directories. Empty
	// means the OS default.
	TempDir string
}

// Downloader admits candidate links under a byte budget, downloads them and
// asks the answerer about each one.
type Downloader struct {
	fetch  fetcher.Fetcher
	answer Answerer
	opts   Options
}

// New creates a Downloader.
func New(f fetcher.Fetcher, a Answerer, opts Options) *Downloader {
	if opts.Caps == (Caps{}) {
		opts.Caps = DefaultCaps()
	}
	if opts.UnknownSize <= 0 {
		opts.UnknownSize = DefaultUnknownSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Downloader{fetch: f, answer: a, opts: opts}
}

// Process walks urls in order under a fresh budget and returns one result
// per admitted document that was downloaded and answered successfully, in
// candidate order. Per-document failures are logged and skipped. The only
// error returned is a failure to create the scratch directory.
func (d *Downloader) Process(ctx context.Context, urls []model.CandidateLink, question string) ([]Result, error) {
	if question == "" {
		question = DefaultQuestion
	}

	dir, err := os.MkdirTemp(d.opts.TempDir, "evidence-*")
	if err != nil {
		return nil, eris.Wrap(err, "download: create temp dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	log := zap.L().With(zap.String("run_id", uuid.NewString()))
	budget := NewBudget(d.opts.Caps)

	slots := make([]*Result, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)

admission:
	for i, link := range urls {
		if gctx.Err() != nil {
			break
		}
		if budget.Exhausted() {
			log.Debug("download: soft cap reached", zap.Int64("spent_bytes", budget.Spent()))
			break
		}

		size := d.probe(gctx, link, log)
		decision := budget.Offer(size)
		log.Debug("download: admission",
			zap.String("url", link.String()),
			zap.Int64("size_bytes", size),
			zap.Stringer("decision", decision),
			zap.Int64("spent_bytes", budget.Spent()),
		)

		switch decision {
		case Stop:
			break admission
		case SkipOversize, SkipHardCap:
			continue
		}

		g.Go(func() error {
			res, err := d.handle(gctx, dir, link, question)
			if err != nil {
				log.Warn("download: candidate failed",
					zap.String("url", link.String()),
					zap.Error(err),
				)
				return nil
			}
			slots[i] = res
			return nil
		})
	}
	_ = g.Wait()

	results := make([]Result, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}

	log.Info("download: processed candidates",
		zap.Int("candidates", len(urls)),
		zap.Int("results", len(results)),
		zap.Int64("spent_bytes", budget.Spent()),
	)
	return results, nil
}

func (d *Downloader) probe(ctx context.Context, link model.CandidateLink, log *zap.Logger) int64 {
	size, err := d.fetch.Probe(ctx, link.String())
	if err != nil {
		var pe *fetcher.ProbeError
		if !errors.As(err, &pe) {
			log.Warn("download: unexpected probe error", zap.String("url", link.String()), zap.Error(err))
		}
		log.Debug("download: size unknown, assuming conservative estimate",
			zap.String("url", link.String()),
			zap.Int64("size_bytes", d.opts.UnknownSize),
		)
		return d.opts.UnknownSize
	}
	return size
}

func (d *Downloader) handle(ctx context.Context, dir string, link model.CandidateLink, question string) (*Result, error) {
	file := filepath.Join(dir, uuid.NewString()+".pdf")
	if _, err := d.fetch.DownloadToFile(ctx, link.String(), file, d.opts.Caps.PerDocument); err != nil {
		return nil, err
	}

	doc, err := pdf.LoadFile(file)
	if err != nil {
		return nil, err
	}
	doc.Name = documentName(link)

	pages, summary, err := d.answer.Answer(ctx, question, *doc)
	if err != nil {
		return nil, err
	}
	return &Result{Link: link, Pages: pages, Summary: summary}, nil
}

// documentName is the last path segment of link, without query or fragment.
func documentName(link model.CandidateLink) string {
	u, err := url.Parse(link.String())
	if err != nil || u.Path == "" || u.Path == "/" {
		return link.String()
	}
	return path.Base(u.Path)
}
