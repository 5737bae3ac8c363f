// Package fetcher probes and downloads candidate documents over HTTP.
package fetcher

import (
	"context"
	"fmt"
)

// Fetcher defines the remote operations the downloader needs.
type Fetcher interface {
	// Probe returns the remote size of url from a lightweight metadata
	// request. Failures are reported as *ProbeError.
	Probe(ctx context.Context, url string) (int64, error)

	// DownloadToFile fetches url into path, reading at most limit bytes
	// (no limit when limit <= 0). Failures are reported as *DownloadError.
	DownloadToFile(ctx context.Context, url string, path string, limit int64) (int64, error)
}

// ProbeError reports a failed size probe. It is never fatal: callers fall
// back to a conservative size estimate.
type ProbeError struct {
	URL string
	Err error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("fetcher: probe %s: %v", e.URL, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// DownloadError reports a network or storage failure fetching a candidate.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("fetcher: download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
