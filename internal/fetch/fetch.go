// Package fetch downloads remote files into temporary files.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/mahirjain10/go-assets/internal/observability"
)

var (
	ErrClient = errors.New("failed to download file")
	ErrServer = errors.New("unexpected error during file download")
)

// ClientError reports a non-2xx response. It is not worth retrying.
type ClientError struct {
	URL        string
	StatusCode int
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("%s: %s returned %d %s", ErrClient, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *ClientError) Unwrap() error {
	return ErrClient
}

// ServerError reports a transport or local I/O failure. It may succeed on a
// later attempt.
type ServerError struct {
	URL string
	Err error
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrServer, e.URL, e.Err)
}

func (e *ServerError) Unwrap() []error {
	return []error{ErrServer, e.Err}
}

// IsTransient reports whether err may go away on retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrServer)
}

type Fetcher struct {
	client  *http.Client
	tempDir string
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewFetcher returns a Fetcher writing into tempDir ("" means os.TempDir()).
// A nil client is replaced by one with the given timeout; redirects follow
// the net/http default policy.
func NewFetcher(client *http.Client, timeout time.Duration, tempDir string, logger zerolog.Logger, metrics *observability.Metrics) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{client: client, tempDir: tempDir, logger: logger, metrics: metrics}
}

// Download fetches url and returns the path of a temporary file holding the
// body. Removing that file is the caller's job.
func (f *Fetcher) Download(ctx context.Context, url string) (string, error) {
	path, err := f.download(ctx, url)
	switch {
	case err == nil:
		f.metrics.RecordDownload("success")
		f.logger.Debug().Str("url", url).Str("path", path).Msg("download success")
	case errors.Is(err, ErrClient):
		f.metrics.RecordDownload("client_error")
	default:
		f.metrics.RecordDownload("server_error")
	}
	return path, err
}

func (f *Fetcher) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &ServerError{URL: url, Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", &ServerError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", &ClientError{URL: url, StatusCode: resp.StatusCode}
	}

	out, err := os.CreateTemp(f.tempDir, "fetch-*")
	if err != nil {
		return "", &ServerError{URL: url, Err: fmt.Errorf("failed to create file: %w", err)}
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", &ServerError{URL: url, Err: fmt.Errorf("failed to write data: %w", err)}
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", &ServerError{URL: url, Err: fmt.Errorf("failed to close file: %w", err)}
	}
	return out.Name(), nil
}
