package answer

import (
	"context"
	"errors"

	"github.com/sells-group/evidence-cli/internal/model"
	"github.com/sells-group/evidence-cli/internal/resilience"
)

type breakerService struct {
	next Service
	cb   *resilience.CircuitBreaker
}

// WithBreaker guards svc with cb. While the circuit is open calls fail fast
// with a ServiceError wrapping resilience.ErrCircuitOpen.
func WithBreaker(svc Service, cb *resilience.CircuitBreaker) Service {
	return &breakerService{next: svc, cb: cb}
}

func (b *breakerService) Ask(ctx context.Context, doc model.Document, parts ...string) (string, error) {
	reply, err := resilience.ExecuteVal(ctx, b.cb, func(ctx context.Context) (string, error) {
		return b.next.Ask(ctx, doc, parts...)
	})
	if err != nil && errors.Is(err, resilience.ErrCircuitOpen) {
		return "", &ServiceError{Provider: "breaker", Err: err}
	}
	return reply, err
}
