// Package pdfcache keeps downloaded judgment PDFs in a local directory keyed by
// incident number. A file present under its final name is treated as complete;
// downloads land in a temporary file and are renamed into place only after
// they finish, so an interrupted run never leaves a truncated entry behind.
package pdfcache

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/scourt-cli/internal/fetcher"
	"github.com/sells-group/scourt-cli/internal/model"
)

const (
	chunkSize = 32 * 1024
	ext       = ".pdf"
)

// Options configures a Cache.
type Options struct {
	// Validate checks a freshly downloaded file before it is moved into place.
	// Nil skips validation.
	Validate func(path string) error
	// Revalidate also runs Validate on existing entries; invalid ones are
	// deleted and downloaded again.
	Revalidate bool
	// Progress reports download progress. Nil disables reporting.
	Progress ProgressFunc
}

// Cache maps incident numbers to PDF files under a directory.
type Cache struct {
	dir     string
	fetcher fetcher.Fetcher
	opts    Options
}

// New creates a Cache rooted at dir.
func New(dir string, f fetcher.Fetcher, opts Options) *Cache {
	if opts.Progress == nil {
		opts.Progress = NoProgress
	}
	return &Cache{dir: dir, fetcher: f, opts: opts}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Ensure creates the cache directory if it does not exist.
func (c *Cache) Ensure() error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return model.FilesystemError("create cache dir", eris.Wrapf(err, "pdfcache: mkdir %s", c.dir))
	}
	return nil
}

// Path returns where the PDF for an incident number is stored.
func (c *Cache) Path(incident string) string {
	return filepath.Join(c.dir, SafeName(incident)+ext)
}

// Has reports whether a file exists for the incident.
func (c *Cache) Has(incident string) bool {
	info, err := os.Stat(c.Path(incident))
	return err == nil && !info.IsDir()
}

// Acquire makes sure the PDF for incident is present locally, downloading it
// from pdfURL only when no file exists yet.
func (c *Cache) Acquire(ctx context.Context, pdfURL, incident string) (model.CacheStatus, error) {
	if SafeName(incident) == "" {
		return "", model.FilesystemError("acquire", eris.Errorf("pdfcache: empty incident number for %s", pdfURL))
	}
	path := c.Path(incident)
	log := zap.L().With(zap.String("incident", incident), zap.String("path", path))

	if c.Has(incident) {
		if !c.opts.Revalidate || c.opts.Validate == nil {
			log.Info("File for incident already exists, skipping download.")
			return model.CacheStatusCached, nil
		}
		verr := c.opts.Validate(path)
		if verr == nil {
			log.Info("File for incident already exists, skipping download.")
			return model.CacheStatusCached, nil
		}
		log.Warn("cached PDF failed validation, downloading again", zap.Error(verr))
		if err := os.Remove(path); err != nil {
			return "", model.FilesystemError("remove invalid cache entry", eris.Wrap(err, "pdfcache: remove"))
		}
	}

	n, err := c.download(ctx, pdfURL, incident, path)
	if err != nil {
		return "", err
	}

	log.Info("PDF downloaded", zap.String("url", pdfURL), zap.Int64("bytes", n))
	return model.CacheStatusDownloaded, nil
}

func (c *Cache) download(ctx context.Context, pdfURL, incident, path string) (int64, error) {
	resp, err := c.fetcher.Get(ctx, pdfURL)
	if err != nil {
		return 0, model.FetchError("download pdf", eris.Wrapf(err, "pdfcache: get %s", pdfURL))
	}
	defer resp.Body.Close() //nolint:errcheck

	// A missing or negative Content-Length means the total is unknown.
	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	if err := c.Ensure(); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(c.dir, filepath.Base(path)+".*.part")
	if err != nil {
		return 0, model.FilesystemError("create temp file", eris.Wrap(err, "pdfcache: create temp"))
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	bar := c.opts.Progress("Downloading incident "+incident, total)
	n, err := copyChunks(ctx, io.MultiWriter(tmp, bar), resp.Body)
	_ = bar.Finish()
	if err != nil {
		return n, model.FetchError("download pdf", eris.Wrapf(err, "pdfcache: stream %s", pdfURL))
	}
	if total > 0 && n != total {
		return n, model.FetchError("download pdf", eris.Errorf("pdfcache: truncated body from %s: got %d of %d bytes", pdfURL, n, total))
	}

	if err := tmp.Close(); err != nil {
		return n, model.FilesystemError("close temp file", eris.Wrap(err, "pdfcache: close temp"))
	}

	if c.opts.Validate != nil {
		if err := c.opts.Validate(tmpPath); err != nil {
			return n, model.ExtractionError("validate pdf", eris.Wrapf(err, "pdfcache: %s is not a valid PDF", pdfURL))
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return n, model.FilesystemError("commit cache entry", eris.Wrap(err, "pdfcache: rename"))
	}
	committed = true
	return n, nil
}

// copyChunks streams src to dst in fixed-size chunks, checking ctx between reads.
func copyChunks(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, chunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// Entry describes one cached PDF.
type Entry struct {
	Incident string
	Path     string
	Size     int64
	ModTime  time.Time
}

// List returns the cached PDFs sorted by incident number. Temporary files
// from interrupted downloads are skipped.
func (c *Cache) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, model.FilesystemError("list cache", eris.Wrapf(err, "pdfcache: read %s", c.dir))
	}

	var entries []Entry
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Incident: strings.TrimSuffix(name, ext),
			Path:     filepath.Join(c.dir, name),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Incident < entries[j].Incident })
	return entries, nil
}

// SafeName turns an incident number into a file name stem. Characters that
// are not allowed in file names on common platforms become "_".
func SafeName(incident string) string {
	incident = strings.TrimSpace(incident)
	return strings.Map(func(r rune) rune {
		switch {
		case r < 0x20:
			return '_'
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		}
		return r
	}, incident)
}
