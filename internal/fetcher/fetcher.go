// Package fetcher retrieves resume artifacts over http, https, ftp and
// file URLs and reads and writes the CSV, XLSX and ZIP files the pipeline
// exchanges.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-cli/internal/model"
)

// Fetcher retrieves one artifact by URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Downloader streams the body behind a URL.
type Downloader interface {
	Download(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Options configures an ArtifactFetcher.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	RatePerSec float64
	// MaxBytes caps the size of one artifact; zero means 32 MiB.
	MaxBytes int64
}

const defaultMaxBytes = 32 << 20

// ArtifactFetcher dispatches on URL scheme. Bare paths are read from disk.
type ArtifactFetcher struct {
	http     Downloader
	ftp      Downloader
	maxBytes int64
}

// New creates an ArtifactFetcher with HTTP and FTP backends.
func New(opts Options) *ArtifactFetcher {
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &ArtifactFetcher{
		http: NewHTTPFetcher(HTTPOptions{
			UserAgent:  opts.UserAgent,
			Timeout:    opts.Timeout,
			MaxRetries: opts.MaxRetries,
			RatePerSec: opts.RatePerSec,
		}),
		ftp:      NewFTPFetcher(FTPOptions{Timeout: opts.Timeout}),
		maxBytes: maxBytes,
	}
}

// Fetch returns the artifact bytes. Every failure wraps model.ErrFetch.
func (a *ArtifactFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, eris.Wrap(model.ErrFetch, "fetcher: empty url")
	}

	rc, err := a.open(ctx, rawURL)
	if err != nil {
		return nil, eris.Wrapf(model.ErrFetch, "fetcher: %s: %v", rawURL, err)
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(rc, a.maxBytes+1))
	if err != nil {
		return nil, eris.Wrapf(model.ErrFetch, "fetcher: read %s: %v", rawURL, err)
	}
	if int64(len(data)) > a.maxBytes {
		return nil, eris.Wrapf(model.ErrFetch, "fetcher: %s exceeds %d bytes", rawURL, a.maxBytes)
	}
	if len(data) == 0 {
		return nil, eris.Wrapf(model.ErrFetch, "fetcher: %s is empty", rawURL)
	}

	zap.L().Debug("fetcher: fetched artifact", zap.String("url", rawURL), zap.Int("bytes", len(data)))
	return data, nil
}

func (a *ArtifactFetcher) open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "parse url")
	}
	switch u.Scheme {
	case "http", "https":
		return a.http.Download(ctx, rawURL)
	case "ftp":
		return a.ftp.Download(ctx, rawURL)
	case "file":
		return os.Open(u.Path)
	case "":
		return os.Open(rawURL)
	default:
		return nil, eris.Errorf("unsupported scheme %q", u.Scheme)
	}
}
