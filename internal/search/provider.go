// Package search finds candidate document links for a company.
package search

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/evidence-cli/internal/model"
)

// DefaultTopic prefixes every document query.
const DefaultTopic = "Environmental Report"

// Provider returns candidate document links for a company. Results are
// ordered by relevance as judged by the provider.
type Provider interface {
	FindCandidates(ctx context.Context, company model.CompanyIdentity, filetypes []string, maxResults int) ([]model.CandidateLink, error)
}

// HomepageFinder resolves the primary web site of a company.
type HomepageFinder interface {
	Homepage(ctx context.Context, company model.CompanyIdentity) (string, error)
}

// BuildQuery composes a document query of the form
// "<topic> <company> (filetype:pdf OR filetype:csv)".
func BuildQuery(topic string, company model.CompanyIdentity, filetypes []string) string {
	var sb strings.Builder
	if topic != "" {
		sb.WriteString(topic)
		sb.WriteByte(' ')
	}
	sb.WriteString(company.String())
	if len(filetypes) > 0 {
		ops := make([]string, len(filetypes))
		for i, ft := range filetypes {
			ops[i] = "filetype:" + strings.TrimPrefix(strings.ToLower(ft), ".")
		}
		sb.WriteString(" (")
		sb.WriteString(strings.Join(ops, " OR "))
		sb.WriteByte(')')
	}
	return sb.String()
}

// Domain reduces an absolute URL to the last two labels of its host, e.g.
// "https://www.levistrauss.com/" becomes "levistrauss.com".
func Domain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", eris.Errorf("search: invalid URL %q", rawURL)
	}
	labels := strings.Split(u.Hostname(), ".")
	if len(labels) > 2 {
		labels = labels[len(labels)-2:]
	}
	return strings.Join(labels, "."), nil
}

// Chain tries each provider in turn and returns the first non-empty result.
// A failing provider is logged and skipped.
type Chain []Provider

// FindCandidates implements Provider.
func (c Chain) FindCandidates(ctx context.Context, company model.CompanyIdentity, filetypes []string, maxResults int) ([]model.CandidateLink, error) {
	var lastErr error
	for _, p := range c {
		links, err := p.FindCandidates(ctx, company, filetypes, maxResults)
		if err != nil {
			zap.L().Warn("search: provider failed",
				zap.String("company", company.String()),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		if len(links) > 0 {
			return truncate(dedupe(links), maxResults), nil
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "search: all providers failed or returned nothing")
	}
	return nil, nil
}

func dedupe(links []model.CandidateLink) []model.CandidateLink {
	raw := make([]string, len(links))
	for i, l := range links {
		raw[i] = l.String()
	}
	return model.LinksFromStrings(raw)
}

func truncate(links []model.CandidateLink, n int) []model.CandidateLink {
	if n > 0 && len(links) > n {
		return links[:n]
	}
	return links
}

// hasFiletype reports whether the path of rawURL ends in one of filetypes.
func hasFiletype(rawURL string, filetypes []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	for _, ft := range filetypes {
		if strings.HasSuffix(p, "."+strings.TrimPrefix(strings.ToLower(ft), ".")) {
			return true
		}
	}
	return false
}
