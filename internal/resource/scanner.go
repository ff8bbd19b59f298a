package resource

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/juju/errors"
	"golang.org/x/sync/errgroup"
)

const (
	webInfLib       = "/WEB-INF/lib"
	resourcesMarker = "META-INF/resources/"
	scanConcurrency = 4
)

// ZipScanner answers whether a library directory exists below
// META-INF/resources in any archive under /WEB-INF/lib. The archives are read
// once, when the scanner is built.
type ZipScanner struct {
	dirs map[string]struct{}
}

// NewZipScanner reads the central directory of every .jar below libDir.
// Archives that cannot be read are logged and skipped.
func NewZipScanner(ctx context.Context, source Source, libDir string, logger *slog.Logger) (*ZipScanner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	children, err := source.List(ctx, libDir)
	if err != nil {
		return nil, errors.Annotatef(err, "listing %s", libDir)
	}

	var jars []string
	for _, c := range children {
		if strings.HasSuffix(strings.ToLower(c), ".jar") {
			jars = append(jars, c)
		}
	}

	found := make([][]string, len(jars))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	for i, jar := range jars {
		g.Go(func() error {
			dirs, err := scanArchive(gctx, source, jar)
			if err != nil {
				logger.Warn("skipping unreadable archive", "archive", jar, "error", err)
				return nil
			}
			found[i] = dirs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Trace(err)
	}

	s := &ZipScanner{dirs: make(map[string]struct{})}
	for _, dirs := range found {
		for _, d := range dirs {
			s.dirs[d] = struct{}{}
		}
	}
	logger.Debug("scanned archives for resource libraries",
		"archives", len(jars),
		"directories", len(s.dirs),
	)
	return s, nil
}

// scanArchive returns the directories below META-INF/resources, relative to
// it. Archives do not always carry explicit directory entries, so the parents
// of every file are recorded too.
func scanArchive(ctx context.Context, source Source, jar string) ([]string, error) {
	zr, closeArchive, err := openArchive(ctx, source, jar)
	if err != nil {
		return nil, err
	}
	defer closeArchive()

	var dirs []string
	for _, f := range zr.File {
		rest, ok := strings.CutPrefix(f.Name, resourcesMarker)
		if !ok || rest == "" {
			continue
		}
		if strings.HasSuffix(rest, "/") {
			dirs = append(dirs, strings.TrimSuffix(rest, "/"))
			continue
		}
		for dir := path.Dir(rest); dir != "."; dir = path.Dir(dir) {
			dirs = append(dirs, dir)
		}
	}
	return dirs, nil
}

// openArchive reads the archive in place when the source offers random
// access and buffers it in memory otherwise.
func openArchive(ctx context.Context, source Source, jar string) (*zip.Reader, func(), error) {
	if ras, ok := source.(ReaderAtSource); ok {
		ra, size, err := ras.OpenReaderAt(ctx, jar)
		switch {
		case err == nil:
			zr, err := zip.NewReader(ra, size)
			if err != nil {
				ra.Close()
				return nil, nil, errors.Annotatef(err, "opening %s", jar)
			}
			return zr, func() { ra.Close() }, nil
		case !errors.Is(err, errors.NotSupported):
			return nil, nil, errors.Trace(err)
		}
	}

	rc, err := source.Open(ctx, jar)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, nil, errors.Annotatef(err, "reading %s", jar)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, errors.Annotatef(err, "opening %s", jar)
	}
	return zr, func() {}, nil
}

// LibraryExists reports whether [localePrefix/]libraryName was seen.
func (s *ZipScanner) LibraryExists(libraryName, localePrefix string) bool {
	if s == nil {
		return false
	}
	key := libraryName
	if localePrefix != "" {
		key = localePrefix + "/" + libraryName
	}
	_, ok := s.dirs[key]
	return ok
}
