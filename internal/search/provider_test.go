package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/evidence-cli/internal/model"
)

func TestBuildQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		topic     string
		company   model.CompanyIdentity
		filetypes []string
		want      string
	}{
		{"single filetype", DefaultTopic, "Levi Strauss and Co.", []string{"pdf"}, "Environmental Report Levi Strauss and Co. (filetype:pdf)"},
		{"several filetypes", DefaultTopic, "Acme", []string{"pdf", ".CSV", "txt"}, "Environmental Report Acme (filetype:pdf OR filetype:csv OR filetype:txt)"},
		{"no topic", "", "Acme", []string{"pdf"}, "Acme (filetype:pdf)"},
		{"no filetypes", DefaultTopic, "Acme", nil, "Environmental Report Acme"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildQuery(tt.topic, tt.company, tt.filetypes))
		})
	}
}

func TestDomain(t *testing.T) {
	t.Parallel()

	got, err := Domain("https://www.levistrauss.com/")
	require.NoError(t, err)
	assert.Equal(t, "levistrauss.com", got)

	got, err = Domain("https://www.apple.com/")
	require.NoError(t, err)
	assert.Equal(t, "apple.com", got)

	got, err = Domain("http://localhost:8080/x")
	require.NoError(t, err)
	assert.Equal(t, "localhost", got)

	_, err = Domain("not a url")
	assert.Error(t, err)
}

func TestHasFiletype(t *testing.T) {
	t.Parallel()

	assert.True(t, hasFiletype("https://a.com/report.PDF", []string{"pdf"}))
	assert.True(t, hasFiletype("https://a.com/r.pdf?download=1", []string{"pdf"}))
	assert.False(t, hasFiletype("https://a.com/pdf", []string{"pdf"}))
	assert.False(t, hasFiletype("https://a.com/r.csv", []string{"pdf"}))
}

type staticProvider struct {
	links []model.CandidateLink
	err   error
	calls int
}

func (s *staticProvider) FindCandidates(context.Context, model.CompanyIdentity, []string, int) ([]model.CandidateLink, error) {
	s.calls++
	return s.links, s.err
}

func TestChain_FirstNonEmptyWins(t *testing.T) {
	t.Parallel()

	failing := &staticProvider{err: errors.New("quota")}
	empty := &staticProvider{}
	good := &staticProvider{links: []model.CandidateLink{"https://a.com/1.pdf", "https://a.com/1.pdf", "https://a.com/2.pdf", "https://a.com/3.pdf"}}
	unused := &staticProvider{links: []model.CandidateLink{"https://b.com/x.pdf"}}

	links, err := Chain{failing, empty, good, unused}.FindCandidates(context.Background(), "Acme", []string{"pdf"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []model.CandidateLink{"https://a.com/1.pdf", "https://a.com/2.pdf"}, links)
	assert.Equal(t, 0, unused.calls)
}

func TestChain_AllFail(t *testing.T) {
	t.Parallel()

	_, err := Chain{&staticProvider{err: errors.New("quota")}}.FindCandidates(context.Background(), "Acme", nil, 3)
	assert.Error(t, err)
}

func TestChain_AllEmpty(t *testing.T) {
	t.Parallel()

	links, err := Chain{&staticProvider{}, &staticProvider{}}.FindCandidates(context.Background(), "Acme", nil, 3)
	require.NoError(t, err)
	assert.Empty(t, links)
}
