package search

import (
	"context"

	"github.com/rotisserie/eris"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"github.com/sells-group/evidence-cli/internal/model"
)

// Google searches with the Custom Search JSON API.
type Google struct {
	svc   *customsearch.Service
	cx    string
	topic string
}

// NewGoogle creates a Google provider for search engine cx. Extra client
// options are passed to the API client.
func NewGoogle(ctx context.Context, apiKey, cx, topic string, opts ...option.ClientOption) (*Google, error) {
	if apiKey == "" || cx == "" {
		return nil, eris.New("search: google API key and engine id are required")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "search: create customsearch service")
	}
	return &Google{svc: svc, cx: cx, topic: topic}, nil
}

// FindCandidates implements Provider.
func (g *Google) FindCandidates(ctx context.Context, company model.CompanyIdentity, filetypes []string, maxResults int) ([]model.CandidateLink, error) {
	links, err := g.list(ctx, BuildQuery(g.topic, company, filetypes), maxResults)
	if err != nil {
		return nil, err
	}
	return model.LinksFromStrings(links), nil
}

// Homepage returns the top result for the bare company name.
func (g *Google) Homepage(ctx context.Context, company model.CompanyIdentity) (string, error) {
	links, err := g.list(ctx, company.String(), 1)
	if err != nil {
		return "", err
	}
	if len(links) == 0 {
		return "", eris.Errorf("search: no homepage found for %q", company)
	}
	return links[0], nil
}

func (g *Google) list(ctx context.Context, query string, num int) ([]string, error) {
	call := g.svc.Cse.List().Cx(g.cx).Q(query).Context(ctx)
	if num > 0 {
		// The API caps num at 10.
		call = call.Num(int64(min(num, 10)))
	}
	resp, err := call.Do()
	if err != nil {
		return nil, eris.Wrapf(err, "search: google query %q", query)
	}
	links := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		links = append(links, item.Link)
	}
	return links, nil
}
