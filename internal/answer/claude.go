package answer

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/evidence-cli/internal/cost"
	"github.com/sells-group/evidence-cli/internal/model"
	"github.com/sells-group/evidence-cli/internal/resilience"
	"github.com/sells-group/evidence-cli/pkg/anthropic"
)

// Claude answers prompts with an Anthropic model, attaching the PDF as a
// document block.
type Claude struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	costs     *cost.Calculator
}

// NewClaude creates a Claude service. costs may be nil.
func NewClaude(client anthropic.Client, modelName string, maxTokens int64, costs *cost.Calculator) *Claude {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Claude{client: client, model: modelName, maxTokens: maxTokens, costs: costs}
}

// Ask implements Service.
func (c *Claude) Ask(ctx context.Context, doc model.Document, parts ...string) (string, error) {
	if len(doc.Data) == 0 {
		return "", &ServiceError{Provider: "anthropic", Err: eris.New("document has no data")}
	}

	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.Message{{
			Role:      "user",
			Documents: []anthropic.Document{{Title: doc.Name, Data: doc.Data}},
			Parts:     parts,
		}},
	})
	if err != nil {
		if code := anthropic.StatusCode(err); code != 0 {
			err = eris.Wrap(&resilience.StatusError{Service: "anthropic", StatusCode: code}, err.Error())
		}
		return "", &ServiceError{Provider: "anthropic", Err: err}
	}

	if c.costs != nil {
		c.costs.Record(c.model, PhaseFrom(ctx), cost.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		})
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &ServiceError{Provider: "anthropic", Err: eris.New("empty reply")}
	}
	return text, nil
}
