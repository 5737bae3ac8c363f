package search

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/evidence-cli/internal/model"
)

// SiteHarvester collects document links published on a company's own web
// site. It resolves the site with a HomepageFinder, fetches the page and
// keeps anchors that point at a wanted file type on the same domain.
type SiteHarvester struct {
	finder    HomepageFinder
	http      *http.Client
	userAgent string
}

// NewSiteHarvester creates a SiteHarvester. A nil client gets a 15 second
// timeout.
func NewSiteHarvester(finder HomepageFinder, client *http.Client, userAgent string) *SiteHarvester {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &SiteHarvester{finder: finder, http: client, userAgent: userAgent}
}

// FindCandidates implements Provider.
func (s *SiteHarvester) FindCandidates(ctx context.Context, company model.CompanyIdentity, filetypes []string, maxResults int) ([]model.CandidateLink, error) {
	home, err := s.finder.Homepage(ctx, company)
	if err != nil {
		return nil, err
	}
	links, err := s.Harvest(ctx, home, filetypes)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("search: harvested site",
		zap.String("company", company.String()),
		zap.String("homepage", home),
		zap.Int("links", len(links)),
	)
	return truncate(links, maxResults), nil
}

// Harvest fetches pageURL and returns the document links it references on
// the same domain, in page order.
func (s *SiteHarvester) Harvest(ctx context.Context, pageURL string, filetypes []string) ([]model.CandidateLink, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "search: parse %s", pageURL)
	}
	domain, err := Domain(pageURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "search: create request")
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "search: fetch %s", pageURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("search: fetch %s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "search: parse html %s", pageURL)
	}

	var found []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""
		if d, err := Domain(abs.String()); err != nil || d != domain {
			return
		}
		if len(filetypes) > 0 && !hasFiletype(abs.String(), filetypes) {
			return
		}
		found = append(found, abs.String())
	})

	return model.LinksFromStrings(found), nil
}
