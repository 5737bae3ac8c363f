package answer

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/evidence-cli/internal/model"
	"github.com/sells-group/evidence-cli/internal/pageref"
	"github.com/sells-group/evidence-cli/internal/pdf"
)

// Orchestrator runs the two-phase locate-then-summarize flow against a
// Service.
type Orchestrator struct {
	svc Service
}

// NewOrchestrator creates an Orchestrator backed by svc.
func NewOrchestrator(svc Service) *Orchestrator {
	return &Orchestrator{svc: svc}
}

// Answer finds the pages of doc relevant to question and summarizes them.
// When no page is relevant it returns an empty page set and an empty
// summary without a second service call. The returned pages are the ones
// actually sent to the summarize phase.
func (o *Orchestrator) Answer(ctx context.Context, question string, doc model.Document) (model.PageSet, string, error) {
	pages, err := o.Locate(ctx, question, doc)
	if err != nil {
		return nil, "", err
	}
	if pages.Empty() {
		zap.L().Debug("answer: no relevant pages", zap.String("document", doc.Name))
		return nil, "", nil
	}

	count := doc.Pages
	if count == 0 {
		if count, err = pdf.PageCount(doc); err != nil {
			return nil, "", err
		}
	}
	kept := pdf.Filter(pages, count)
	if kept.Empty() {
		zap.L().Debug("answer: located pages out of range",
			zap.String("document", doc.Name),
			zap.Ints("pages", pages),
			zap.Int("page_count", count),
		)
		return nil, "", nil
	}

	sub, err := pdf.Extract(doc, kept)
	if err != nil {
		return nil, "", err
	}

	summary, err := o.Summarize(ctx, question, *sub)
	if err != nil {
		return nil, "", err
	}

	zap.L().Debug("answer: summarized",
		zap.String("document", doc.Name),
		zap.Ints("pages", kept),
		zap.Int("summary_len", len(summary)),
	)
	return kept, summary, nil
}

// Locate asks which pages of doc answer question and parses the reply into
// zero-based page indices.
func (o *Orchestrator) Locate(ctx context.Context, question string, doc model.Document) (model.PageSet, error) {
	reply, err := o.svc.Ask(withPhase(ctx, PhaseLocate), doc, LocateInstruction, question, LocateFormat)
	if err != nil {
		return nil, asServiceError(PhaseLocate, err)
	}
	return pageref.Parse(reply), nil
}

// Summarize answers question from doc in a short paragraph.
func (o *Orchestrator) Summarize(ctx context.Context, question string, doc model.Document) (string, error) {
	reply, err := o.svc.Ask(withPhase(ctx, PhaseSummarize), doc, question, SummarizeLimit)
	if err != nil {
		return "", asServiceError(PhaseSummarize, err)
	}
	return reply, nil
}

func asServiceError(phase string, err error) error {
	var se *ServiceError
	if errors.As(err, &se) {
		if se.Phase == "" {
			se.Phase = phase
		}
		return err
	}
	return &ServiceError{Provider: "unknown", Phase: phase, Err: eris.Wrap(err, "ask")}
}
