package fetcher

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/rotisserie/eris"
)

// ArchiveWriter builds an in-memory ZIP. Entry names are unique: a name
// already used is prefixed with the entry's key.
type ArchiveWriter struct {
	buf   bytes.Buffer
	zw    *zip.Writer
	names map[string]bool
	count int
}

// NewArchiveWriter creates an empty archive.
func NewArchiveWriter() *ArchiveWriter {
	a := &ArchiveWriter{names: make(map[string]bool)}
	a.zw = zip.NewWriter(&a.buf)
	return a
}

// EntryName derives an archive name from a source URL: the last path
// element, or key when the URL has none.
func EntryName(key, rawURL string) string {
	p := rawURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	if base == "." || base == "/" || base == "" || strings.HasSuffix(p, "/") {
		return key
	}
	return base
}

// Add writes one entry and returns the name used.
func (a *ArchiveWriter) Add(key, name string, data []byte) (string, error) {
	base := name
	if a.names[name] {
		name = key + "_" + base
	}
	for n := 2; a.names[name]; n++ {
		name = fmt.Sprintf("%s_%d_%s", key, n, base)
	}
	w, err := a.zw.Create(name)
	if err != nil {
		return "", eris.Wrapf(err, "zip: create entry %q", name)
	}
	if _, err := w.Write(data); err != nil {
		return "", eris.Wrapf(err, "zip: write entry %q", name)
	}
	a.names[name] = true
	a.count++
	return name, nil
}

// Len returns the number of entries written.
func (a *ArchiveWriter) Len() int {
	return a.count
}

// Bytes finalizes the archive and returns it.
func (a *ArchiveWriter) Bytes() ([]byte, error) {
	if err := a.zw.Close(); err != nil {
		return nil, eris.Wrap(err, "zip: close archive")
	}
	return a.buf.Bytes(), nil
}
