package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/candidate-cli/internal/model"
)

func newArtifactFetcher(maxBytes int64) *ArtifactFetcher {
	return New(Options{Timeout: 2 * time.Second, MaxRetries: 1, RatePerSec: 1000, MaxBytes: maxBytes})
}

func TestArtifactFetcher_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF resume")) //nolint:errcheck
	}))
	defer srv.Close()

	data, err := newArtifactFetcher(0).Fetch(context.Background(), srv.URL+"/cv.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF resume", string(data))
}

func TestArtifactFetcher_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cv.pdf")
	require.NoError(t, os.WriteFile(path, []byte("local"), 0o644))

	f := newArtifactFetcher(0)
	data, err := f.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "local", string(data))

	data, err = f.Fetch(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, "local", string(data))
}

func TestArtifactFetcher_Failures(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer empty.Close()
	big := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 64)) //nolint:errcheck
	}))
	defer big.Close()
	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()

	f := newArtifactFetcher(16)
	for name, url := range map[string]string{
		"blank":        "  ",
		"empty body":   empty.URL,
		"too large":    big.URL,
		"not found":    missing.URL,
		"scheme":       "gopher://example.com/cv",
		"no such file": filepath.Join(t.TempDir(), "missing.pdf"),
	} {
		_, err := f.Fetch(context.Background(), url)
		assert.ErrorIs(t, err, model.ErrFetch, name)
	}
}

func TestArtifactFetcher_FTP(t *testing.T) {
	srv := newMiniFTPServer(t, map[string]string{"/cv/7.pdf": "ftp resume"})
	defer srv.close()

	data, err := newArtifactFetcher(0).Fetch(context.Background(), "ftp://"+srv.addr()+"/cv/7.pdf")
	require.NoError(t, err)
	assert.Equal(t, "ftp resume", string(data))
}
