package resource

import (
	"context"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/juju/errors"
)

// Source gives access to the webapp root. Paths are slash separated and
// absolute, e.g. "/resources/mylib".
type Source interface {
	// Exists reports whether p names a file or a directory.
	Exists(ctx context.Context, p string) (bool, error)
	// List returns the direct children of directory p as absolute paths.
	// Directories carry a trailing slash. A missing path or a plain file
	// yields nil.
	List(ctx context.Context, p string) ([]string, error)
	// Open returns the content of file p. Missing files produce an error
	// matching fs.ErrNotExist.
	Open(ctx context.Context, p string) (io.ReadCloser, error)
	Stat(ctx context.Context, p string) (FileStat, error)
	URL(p string) (*url.URL, error)
}

// ReadAtCloser is a file opened for random access.
type ReadAtCloser interface {
	io.ReaderAt
	io.Closer
}

// ReaderAtSource is implemented by sources that can open a file for random
// access. Archives are read through it without buffering them whole.
type ReaderAtSource interface {
	OpenReaderAt(ctx context.Context, p string) (ReadAtCloser, int64, error)
}

// FileStat is the metadata needed to answer conditional requests. A Size of
// -1 means unknown.
type FileStat struct {
	ModTime time.Time
	Size    int64
}

// FSSource is a Source backed by an fs.FS, usually a directory on disk.
type FSSource struct {
	fsys fs.FS
	root string
}

func NewFSSource(fsys fs.FS, root string) *FSSource {
	return &FSSource{fsys: fsys, root: root}
}

// DirSource serves the webapp root from a local directory.
func DirSource(dir string) (*FSSource, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Annotatef(err, "resolving webapp directory %s", dir)
	}
	return &FSSource{fsys: os.DirFS(abs), root: abs}, nil
}

// Root returns the local directory backing the source, if any.
func (s *FSSource) Root() string { return s.root }

func fsName(p string) string {
	p = path.Clean("/" + p)
	if p == "/" {
		return "."
	}
	return p[1:]
}

func (s *FSSource) Exists(_ context.Context, p string) (bool, error) {
	name := fsName(p)
	if !fs.ValidPath(name) {
		return false, errors.NotValidf("webapp path %q", p)
	}
	_, err := fs.Stat(s.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.Annotatef(err, "checking %s", p)
	}
	return true, nil
}

func (s *FSSource) List(_ context.Context, p string) ([]string, error) {
	name := fsName(p)
	fi, err := fs.Stat(s.fsys, name)
	if err != nil || !fi.IsDir() {
		return nil, nil
	}
	entries, err := fs.ReadDir(s.fsys, name)
	if err != nil {
		return nil, errors.Annotatef(err, "listing %s", p)
	}

	prefix := "/"
	if name != "." {
		prefix = "/" + name + "/"
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		child := prefix + e.Name()
		if e.IsDir() {
			child += "/"
		}
		paths = append(paths, child)
	}
	return paths, nil
}

func (s *FSSource) Open(_ context.Context, p string) (io.ReadCloser, error) {
	name := fsName(p)
	fi, err := fs.Stat(s.fsys, name)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	return s.fsys.Open(name)
}

// OpenReaderAt opens file p for random access. Both os.DirFS and fstest
// files support it; other file systems report NotSupported.
func (s *FSSource) OpenReaderAt(_ context.Context, p string) (ReadAtCloser, int64, error) {
	f, err := s.fsys.Open(fsName(p))
	if err != nil {
		return nil, 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, errors.Annotatef(err, "stat %s", p)
	}
	if fi.IsDir() {
		f.Close()
		return nil, 0, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	ra, ok := f.(ReadAtCloser)
	if !ok {
		f.Close()
		return nil, 0, errors.NotSupportedf("random access to %s", p)
	}
	return ra, fi.Size(), nil
}

func (s *FSSource) Stat(_ context.Context, p string) (FileStat, error) {
	fi, err := fs.Stat(s.fsys, fsName(p))
	if err != nil {
		return FileStat{Size: -1}, err
	}
	return FileStat{ModTime: fi.ModTime(), Size: fi.Size()}, nil
}

func (s *FSSource) URL(p string) (*url.URL, error) {
	name := fsName(p)
	if s.root == "" {
		return &url.URL{Scheme: "webapp", Path: "/" + name}, nil
	}
	return &url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(s.root, filepath.FromSlash(name)))}, nil
}
