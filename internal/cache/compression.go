package cache

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/juju/errors"
	"github.com/klauspost/compress/gzip"
)

const (
	compressedDir  = "faces-compressed"
	compressedFile = "content.gz"
)

// Compressor keeps gzip copies of static resources below a temp directory so
// they can be served without compressing on every request.
type Compressor struct {
	root     string
	patterns []glob.Glob
	logger   *slog.Logger
}

// NewCompressor returns a compressor rooted at tempDir/faces-compressed.
// Content types are matched against the glob patterns in types, e.g.
// "text/*". When tempDir is not a usable directory compression is disabled.
func NewCompressor(tempDir string, types []string, logger *slog.Logger) *Compressor {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Compressor{logger: logger}
	for _, t := range types {
		g, err := glob.Compile(strings.ToLower(t), '/')
		if err != nil {
			logger.Warn("ignoring invalid compressable content type", "pattern", t, "error", err)
			continue
		}
		c.patterns = append(c.patterns, g)
	}

	if tempDir == "" {
		logger.Debug("no temp directory configured, compression unavailable")
		return c
	}
	if fi, err := os.Stat(tempDir); err != nil || !fi.IsDir() {
		logger.Debug("temp directory is missing or not a directory, compression unavailable",
			"temp_dir", tempDir,
		)
		return c
	}
	c.root = filepath.Join(tempDir, compressedDir)
	return c
}

func (c *Compressor) Enabled() bool { return c != nil && c.root != "" }

// ShouldCompress reports whether resources of contentType are compressible.
func (c *Compressor) ShouldCompress(contentType string) bool {
	if c == nil || contentType == "" {
		return false
	}
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	for _, p := range c.patterns {
		if p.Match(mediaType) {
			return true
		}
	}
	return false
}

// Dir creates the directory that holds the compressed copy of resourcePath.
func (c *Compressor) Dir(resourcePath string) (string, error) {
	if !c.Enabled() {
		return "", errors.NotSupportedf("compression")
	}
	dir := filepath.Join(c.root, filepath.FromSlash(strings.TrimPrefix(resourcePath, "/")))
	if !strings.HasPrefix(dir, c.root) {
		return "", errors.NotValidf("compressed path for %q", resourcePath)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Annotatef(err, "creating compression directory %s", dir)
	}
	return dir, nil
}

// Ensure writes the gzip copy into dir unless one at least as new as modTime
// already exists.
func (c *Compressor) Ensure(dir string, modTime time.Time, open func() (io.ReadCloser, error)) error {
	target := filepath.Join(dir, compressedFile)
	if fi, err := os.Stat(target); err == nil && !fi.ModTime().Before(modTime) {
		return nil
	}

	src, err := open()
	if err != nil {
		return errors.Trace(err)
	}
	if src == nil {
		return errors.NotFoundf("source for %s", dir)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dir, compressedFile+".*")
	if err != nil {
		return errors.Trace(err)
	}
	defer os.Remove(tmp.Name())

	if err := CompressData(tmp, src); err != nil {
		tmp.Close()
		return errors.Annotatef(err, "compressing into %s", dir)
	}
	if err := tmp.Close(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(os.Rename(tmp.Name(), target))
}

// Open returns the gzip copy stored in dir.
func (c *Compressor) Open(dir string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(dir, compressedFile))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return f, nil
}

// CompressData gzips src into dst.
func CompressData(dst io.Writer, src io.Reader) error {
	gzipWriter, err := gzip.NewWriterLevel(dst, gzip.BestCompression)
	if err != nil {
		return err
	}
	if _, err := io.Copy(gzipWriter, src); err != nil {
		gzipWriter.Close()
		return err
	}
	return gzipWriter.Close()
}
