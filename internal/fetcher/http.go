package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/evidence-cli/internal/resilience"
)

// ErrUnknownSize is returned by Probe when the server does not report a
// content length.
var ErrUnknownSize = eris.New("content length not reported")

// ErrTooLarge is returned when a body exceeds the download limit.
var ErrTooLarge = eris.New("body exceeds download limit")

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	// RatePerHost caps requests per second to any single host. Zero means 5.
	RatePerHost float64
}

// HTTPFetcher implements Fetcher using net/http with per-host rate limiting.
// Failed requests are not retried.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "evidence-cli/1.0"
	}
	if opts.RatePerHost <= 0 {
		opts.RatePerHost = 5
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		burst := int(f.opts.RatePerHost)
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(f.opts.RatePerHost), burst)
		f.limiters[host] = lim
	}
	return lim
}

func (f *HTTPFetcher) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	if err := f.limiterFor(rawURL).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "%s request", method)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, &resilience.StatusError{Service: "fetcher", StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// Probe issues a HEAD request and returns the reported Content-Length.
func (f *HTTPFetcher) Probe(ctx context.Context, rawURL string) (int64, error) {
	resp, err := f.do(ctx, http.MethodHead, rawURL)
	if err != nil {
		return 0, &ProbeError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	header := resp.Header.Get("Content-Length")
	if header == "" {
		return 0, &ProbeError{URL: rawURL, Err: ErrUnknownSize}
	}
	n, err := strconv.ParseInt(header, 10, 64)
	if err != nil || n < 0 {
		return 0, &ProbeError{URL: rawURL, Err: eris.Errorf("bad content length %q", header)}
	}
	return n, nil
}

// DownloadToFile fetches rawURL and writes the body to path. When limit is
// positive and the body is longer, the partial file is removed and
// ErrTooLarge is reported.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string, limit int64) (int64, error) {
	resp, err := f.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return 0, &DownloadError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	file, err := os.Create(path)
	if err != nil {
		return 0, &DownloadError{URL: rawURL, Err: eris.Wrap(err, "create file")}
	}

	var body io.Reader = resp.Body
	if limit > 0 {
		body = io.LimitReader(resp.Body, limit+1)
	}

	n, copyErr := io.Copy(file, body)
	closeErr := file.Close()
	switch {
	case copyErr != nil:
		err = eris.Wrap(copyErr, "write file")
	case closeErr != nil:
		err = eris.Wrap(closeErr, "close file")
	case limit > 0 && n > limit:
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		return n, &DownloadError{URL: rawURL, Err: err}
	}

	zap.L().Debug("fetcher: downloaded",
		zap.String("url", rawURL),
		zap.Int64("bytes", n),
	)
	return n, nil
}
