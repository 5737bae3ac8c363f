package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/evidence-cli/internal/fetcher"
	"github.com/sells-group/evidence-cli/internal/model"
	"github.com/sells-group/evidence-cli/internal/pdf/pdftest"
)

// fakeFetcher serves fixed sizes and bodies and remembers what it was asked.
type fakeFetcher struct {
	mu         sync.Mutex
	sizes      map[string]int64
	bodies     map[string][]byte
	downloaded []string
	dirs       []string
}

func (f *fakeFetcher) Probe(_ context.Context, url string) (int64, error) {
	size, ok := f.sizes[url]
	if !ok {
		return 0, &fetcher.ProbeError{URL: url, Err: fetcher.ErrUnknownSize}
	}
	return size, nil
}

func (f *fakeFetcher) DownloadToFile(_ context.Context, url, path string, _ int64) (int64, error) {
	f.mu.Lock()
	f.downloaded = append(f.downloaded, url)
	f.dirs = append(f.dirs, filepath.Dir(path))
	f.mu.Unlock()

	body, ok := f.bodies[url]
	if !ok {
		return 0, &fetcher.DownloadError{URL: url, Err: errors.New("404")}
	}
	if err := os.WriteFile(path, body, 0o600); err != nil {
		return 0, err
	}
	return int64(len(body)), nil
}

type fakeAnswerer struct {
	mu        sync.Mutex
	questions []string
	fail      map[string]bool
}

func (a *fakeAnswerer) Answer(_ context.Context, question string, doc model.Document) (model.PageSet, string, error) {
	a.mu.Lock()
	a.questions = append(a.questions, question)
	a.mu.Unlock()
	if a.fail[doc.Name] {
		return nil, "", errors.New("service unavailable")
	}
	return model.PageSet{0}, "summary of " + doc.Name, nil
}

func TestProcess_Scenario(t *testing.T) {
	body := pdftest.Build(1)
	f := &fakeFetcher{
		sizes: map[string]int64{
			"https://a.com/one.pdf":   2 * mb,
			"https://a.com/two.pdf":   8 * mb,
			"https://a.com/three.pdf": 1 * mb,
		},
		bodies: map[string][]byte{
			"https://a.com/one.pdf":   body,
			"https://a.com/two.pdf":   body,
			"https://a.com/three.pdf": body,
		},
	}
	a := &fakeAnswerer{}
	d := New(f, a, Options{
		Caps:    Caps{PerDocument: 7 * mb, Soft: 10 * mb, Hard: 20 * mb, Penalty: 100_000},
		TempDir: t.TempDir(),
	})

	results, err := d.Process(context.Background(), []model.CandidateLink{
		"https://a.com/one.pdf", "https://a.com/two.pdf", "https://a.com/three.pdf",
	}, "")
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, model.CandidateLink("https://a.com/one.pdf"), results[0].Link)
	assert.Equal(t, "summary of one.pdf", results[0].Summary)
	assert.Equal(t, model.CandidateLink("https://a.com/three.pdf"), results[1].Link)
	assert.Equal(t, []string{"https://a.com/one.pdf", "https://a.com/three.pdf"}, f.downloaded)
	assert.Equal(t, []string{DefaultQuestion, DefaultQuestion}, a.questions)
}

func TestProcess_UnknownSizeSkipped(t *testing.T) {
	f := &fakeFetcher{
		sizes:  map[string]int64{},
		bodies: map[string][]byte{"https://a.com/x.pdf": pdftest.Build(1)},
	}
	d := New(f, &fakeAnswerer{}, Options{TempDir: t.TempDir()})

	results, err := d.Process(context.Background(), []model.CandidateLink{"https://a.com/x.pdf"}, "q")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, f.downloaded)
}

func TestProcess_StopsAtSoftCap(t *testing.T) {
	body := pdftest.Build(1)
	f := &fakeFetcher{
		sizes: map[string]int64{
			"https://a.com/1.pdf": 2 * mb,
			"https://a.com/2.pdf": 2 * mb,
			"https://a.com/3.pdf": 1,
		},
		bodies: map[string][]byte{
			"https://a.com/1.pdf": body,
			"https://a.com/2.pdf": body,
			"https://a.com/3.pdf": body,
		},
	}
	d := New(f, &fakeAnswerer{}, Options{TempDir: t.TempDir()})

	results, err := d.Process(context.Background(), []model.CandidateLink{
		"https://a.com/1.pdf", "https://a.com/2.pdf", "https://a.com/3.pdf",
	}, "q")
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.NotContains(t, f.downloaded, "https://a.com/3.pdf")
}

func TestProcess_FailuresAreSkipped(t *testing.T) {
	f := &fakeFetcher{
		sizes: map[string]int64{
			"https://a.com/missing.pdf": 10,
			"https://a.com/broken.pdf":  10,
			"https://a.com/refused.pdf": 10,
			"https://a.com/good.pdf":    10,
		},
		bodies: map[string][]byte{
			"https://a.com/broken.pdf":  []byte("not a pdf"),
			"https://a.com/refused.pdf": pdftest.Build(1),
			"https://a.com/good.pdf":    pdftest.Build(2),
		},
	}
	a := &fakeAnswerer{fail: map[string]bool{"refused.pdf": true}}
	d := New(f, a, Options{TempDir: t.TempDir()})

	results, err := d.Process(context.Background(), []model.CandidateLink{
		"https://a.com/missing.pdf",
		"https://a.com/broken.pdf",
		"https://a.com/refused.pdf",
		"https://a.com/good.pdf",
	}, "q")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.CandidateLink("https://a.com/good.pdf"), results[0].Link)
}

func TestProcess_TempDirRemoved(t *testing.T) {
	parent := t.TempDir()
	f := &fakeFetcher{
		sizes:  map[string]int64{"https://a.com/x.pdf": 10},
		bodies: map[string][]byte{"https://a.com/x.pdf": pdftest.Build(1)},
	}
	d := New(f, &fakeAnswerer{}, Options{TempDir: parent})

	_, err := d.Process(context.Background(), []model.CandidateLink{"https://a.com/x.pdf"}, "q")
	require.NoError(t, err)

	require.Len(t, f.dirs, 1)
	_, statErr := os.Stat(f.dirs[0])
	assert.True(t, os.IsNotExist(statErr))

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcess_TempDirFailure(t *testing.T) {
	d := New(&fakeFetcher{}, &fakeAnswerer{}, Options{
		TempDir: filepath.Join(t.TempDir(), "does", "not", "exist"),
	})
	_, err := d.Process(context.Background(), []model.CandidateLink{"https://a.com/x.pdf"}, "q")
	assert.Error(t, err)
}

func TestProcess_ConcurrentWorkersKeepOrder(t *testing.T) {
	links := make([]model.CandidateLink, 0, 8)
	f := &fakeFetcher{sizes: map[string]int64{}, bodies: map[string][]byte{}}
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		u := "https://a.com/" + name + ".pdf"
		links = append(links, model.CandidateLink(u))
		f.sizes[u] = 10
		f.bodies[u] = pdftest.Build(1)
	}
	d := New(f, &fakeAnswerer{}, Options{Workers: 4, TempDir: t.TempDir()})

	results, err := d.Process(context.Background(), links, "q")
	require.NoError(t, err)
	require.Len(t, results, len(links))
	for i, r := range results {
		assert.Equal(t, links[i], r.Link)
	}
}

func TestProcess_CancelledContext(t *testing.T) {
	f := &fakeFetcher{
		sizes:  map[string]int64{"https://a.com/x.pdf": 10},
		bodies: map[string][]byte{"https://a.com/x.pdf": pdftest.Build(1)},
	}
	d := New(f, &fakeAnswerer{}, Options{TempDir: t.TempDir()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := d.Process(ctx, []model.CandidateLink{"https://a.com/x.pdf"}, "q")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, f.downloaded)
}

func TestResult_Record(t *testing.T) {
	r := Result{Link: "https://a.com/x.pdf", Pages: model.PageSet{1, 2}, Summary: "s"}
	rec := r.Record()
	assert.Equal(t, model.CandidateLink("https://a.com/x.pdf"), rec.Link)
	assert.Equal(t, model.PageSet{1, 2}, rec.Pages)
	assert.Equal(t, "s", rec.Summary)
}

func TestResult_Record_NilPages(t *testing.T) {
	rec := Result{Link: "https://a.com/x.pdf"}.Record()
	assert.NotNil(t, rec.Pages)
	assert.Equal(t, model.PageSet{}, rec.Pages)
}

func TestDocumentName(t *testing.T) {
	tests := []struct {
		link model.CandidateLink
		want string
	}{
		{"https://a.com/files/report.pdf", "report.pdf"},
		{"https://a.com/files/report.pdf?x=1&y=2", "report.pdf"},
		{"https://a.com/files/report.pdf#page=3", "report.pdf"},
		{"https://a.com/dl/", "dl"},
		{"https://a.com", "https://a.com"},
	}
	for _, tt := range tests {
		t.Run(string(tt.link), func(t *testing.T) {
			assert.Equal(t, tt.want, documentName(tt.link))
		})
	}
}

func TestProcess_NameDropsQuery(t *testing.T) {
	link := "https://a.com/impact.pdf?download=1"
	f := &fakeFetcher{
		sizes:  map[string]int64{link: 1 * mb},
		bodies: map[string][]byte{link: pdftest.Build(1)},
	}
	d := New(f, &fakeAnswerer{}, Options{Caps: DefaultCaps(), TempDir: t.TempDir()})

	results, err := d.Process(context.Background(), []model.CandidateLink{model.CandidateLink(link)}, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "summary of impact.pdf", results[0].Summary)
}
