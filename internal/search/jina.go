package search

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/evidence-cli/internal/model"
	"github.com/sells-group/evidence-cli/pkg/jina"
)

// Jina searches with the Jina AI search API. Only results whose path ends
// in a wanted file type are kept.
type Jina struct {
	client jina.Client
	topic  string
}

// NewJina creates a Jina provider.
func NewJina(client jina.Client, topic string) *Jina {
	return &Jina{client: client, topic: topic}
}

// FindCandidates implements Provider.
func (j *Jina) FindCandidates(ctx context.Context, company model.CompanyIdentity, filetypes []string, maxResults int) ([]model.CandidateLink, error) {
	resp, err := j.client.Search(ctx, BuildQuery(j.topic, company, filetypes), jina.WithoutContent())
	if err != nil {
		return nil, eris.Wrap(err, "search: jina")
	}

	var urls []string
	for _, u := range resp.URLs() {
		if len(filetypes) > 0 && !hasFiletype(u, filetypes) {
			continue
		}
		urls = append(urls, u)
	}
	return truncate(model.LinksFromStrings(urls), maxResults), nil
}
