package answer

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"

	"github.com/sells-group/evidence-cli/internal/cost"
	"github.com/sells-group/evidence-cli/internal/model"
)

// Gemini answers prompts with a Google Gemini model, sending the PDF as an
// inline blob.
type Gemini struct {
	client *genai.Client
	model  string
	costs  *cost.Calculator
}

// NewGemini creates a Gemini service authenticated with apiKey. costs may be
// nil.
func NewGemini(ctx context.Context, apiKey, modelName string, costs *cost.Calculator) (*Gemini, error) {
	if apiKey == "" {
		return nil, eris.New("answer: gemini API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, eris.Wrap(err, "answer: create gemini client")
	}
	return &Gemini{client: client, model: modelName, costs: costs}, nil
}

// Ask implements Service.
func (g *Gemini) Ask(ctx context.Context, doc model.Document, parts ...string) (string, error) {
	if len(doc.Data) == 0 {
		return "", &ServiceError{Provider: "gemini", Err: eris.New("document has no data")}
	}

	m := g.client.GenerativeModel(g.model)
	m.SetTemperature(0.1)

	prompt := make([]genai.Part, 0, len(parts)+1)
	prompt = append(prompt, genai.Blob{MIMEType: "application/pdf", Data: doc.Data})
	for _, p := range parts {
		prompt = append(prompt, genai.Text(p))
	}

	resp, err := m.GenerateContent(ctx, prompt...)
	if err != nil {
		return "", &ServiceError{Provider: "gemini", Err: eris.Wrap(err, "generate content")}
	}

	if g.costs != nil && resp.UsageMetadata != nil {
		g.costs.Record(g.model, PhaseFrom(ctx), cost.Usage{
			InputTokens:  int64(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
		})
	}

	text, err := geminiText(resp)
	if err != nil {
		return "", &ServiceError{Provider: "gemini", Err: err}
	}
	return text, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", eris.New("no candidates in response")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", eris.New("no content in response")
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", eris.New("no text parts in response")
	}
	return out, nil
}
