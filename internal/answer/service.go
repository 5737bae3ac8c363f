// Package answer locates the pages of a PDF that address a question and
// summarizes them with a generative answering service.
package answer

import (
	"context"
	"fmt"

	"github.com/sells-group/evidence-cli/internal/model"
)

// Prompt fragments sent alongside the document.
const (
	LocateInstruction = "What pages from the pdf answers the below question?"
	LocateFormat      = "Do not use hyphens to indicate ranges. Use only commas to separate pages (i.e ', '). Again, do not use ranges to indicate pages. Write 0 if there is none."
	SummarizeLimit    = "Answer within 100 words or less."
)

// Phase names used in logs and cost attribution.
const (
	PhaseLocate    = "locate"
	PhaseSummarize = "summarize"
)

// Service answers a prompt about a PDF document. parts are sent as separate
// text segments after the document.
type Service interface {
	Ask(ctx context.Context, doc model.Document, parts ...string) (string, error)
}

// ServiceError reports a failed, empty or malformed reply from the answering
// service.
type ServiceError struct {
	Provider string
	Phase    string
	Err      error
}

func (e *ServiceError) Error() string {
	if e.Phase == "" {
		return fmt.Sprintf("answer: %s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("answer: %s %s: %v", e.Provider, e.Phase, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

type phaseKey struct{}

// withPhase tags ctx with the orchestrator phase so services can attribute
// cost and errors.
func withPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, phaseKey{}, phase)
}

// PhaseFrom returns the phase stored in ctx, or "" when none is set.
func PhaseFrom(ctx context.Context) string {
	p, _ := ctx.Value(phaseKey{}).(string)
	return p
}
