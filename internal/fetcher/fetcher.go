package fetcher

import (
	"context"
	"io"
	"net/http"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Get issues a GET request and returns the response. Non-200 responses are
	// returned as errors. The caller closes the body.
	Get(ctx context.Context, url string) (*http.Response, error)

	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}
