package resource

import (
	"archive/zip"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
)

// ClasspathEntry is one root on the classpath: a directory or an archive.
type ClasspathEntry struct {
	Name string
	FS   fs.FS

	archive bool
	closer  io.Closer
}

// DirEntry returns a classpath entry rooted at a local directory.
func DirEntry(dir string) ClasspathEntry {
	return ClasspathEntry{Name: dir, FS: os.DirFS(dir)}
}

// ArchiveEntry returns a classpath entry backed by an already opened archive.
func ArchiveEntry(name string, r *zip.Reader) ClasspathEntry {
	return ClasspathEntry{Name: name, FS: r, archive: true}
}

// Classpath is an ordered list of roots searched front to back. The first entry
// holding a path wins.
type Classpath struct {
	entries []ClasspathEntry
}

func NewClasspath(entries ...ClasspathEntry) *Classpath {
	return &Classpath{entries: entries}
}

// OpenClasspath opens every path as a directory entry, or as an archive when
// it ends in .jar or .zip.
func OpenClasspath(paths []string) (*Classpath, error) {
	cp := &Classpath{}
	for _, p := range paths {
		ext := strings.ToLower(filepath.Ext(p))
		if ext != ".jar" && ext != ".zip" {
			cp.entries = append(cp.entries, DirEntry(p))
			continue
		}
		rc, err := zip.OpenReader(p)
		if err != nil {
			cp.Close()
			return nil, errors.Annotatef(err, "opening classpath archive %s", p)
		}
		cp.entries = append(cp.entries, ClasspathEntry{
			Name:    p,
			FS:      &rc.Reader,
			archive: true,
			closer:  rc,
		})
	}
	return cp, nil
}

func classpathName(p string) (string, bool) {
	name := strings.Trim(p, "/")
	if name == "" {
		name = "."
	}
	return name, fs.ValidPath(name)
}

// Find returns the first entry holding p, either a file or a directory.
func (c *Classpath) Find(p string) (ClasspathEntry, fs.FileInfo, bool) {
	if c == nil {
		return ClasspathEntry{}, nil, false
	}
	name, ok := classpathName(p)
	if !ok {
		return ClasspathEntry{}, nil, false
	}
	for _, e := range c.entries {
		if fi, err := fs.Stat(e.FS, name); err == nil {
			return e, fi, true
		}
	}
	return ClasspathEntry{}, nil, false
}

// FindAll returns every entry holding p, in classpath order.
func (c *Classpath) FindAll(p string) []ClasspathEntry {
	if c == nil {
		return nil
	}
	name, ok := classpathName(p)
	if !ok {
		return nil
	}
	var found []ClasspathEntry
	for _, e := range c.entries {
		if _, err := fs.Stat(e.FS, name); err == nil {
			found = append(found, e)
		}
	}
	return found
}

// Open opens file p from the first entry holding it.
func (c *Classpath) Open(p string) (fs.File, error) {
	e, fi, ok := c.Find(p)
	if !ok || fi.IsDir() {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	name, _ := classpathName(p)
	return e.FS.Open(name)
}

// URL locates p inside entry e, using the jar: form for archives.
func (e ClasspathEntry) URL(p string) *url.URL {
	name, _ := classpathName(p)
	abs, err := filepath.Abs(e.Name)
	if err != nil {
		abs = e.Name
	}
	abs = filepath.ToSlash(abs)
	if e.archive {
		return &url.URL{Scheme: "jar", Opaque: "file:" + abs + "!/" + name}
	}
	return &url.URL{Scheme: "file", Path: abs + "/" + name}
}

func (c *Classpath) Close() error {
	if c == nil {
		return nil
	}
	var firstErr error
	for _, e := range c.entries {
		if e.closer == nil {
			continue
		}
		if err := e.closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
