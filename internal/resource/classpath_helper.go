package resource

import (
	"context"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/juju/errors"
)

const (
	classpathResourcesDir = "META-INF/resources"
	classpathContractsDir = "META-INF/contracts"
	classpathFlowsDir     = "META-INF/flows"
)

// ClasspathHelper resolves resources packaged below META-INF/resources of the
// classpath directories and archives. Classpath content is treated as fixed
// for the life of the process.
type ClasspathHelper struct {
	baseHelper
	classpath *Classpath
	// webapp holds /WEB-INF/lib, the archives scanned for missing libraries.
	webapp                  Source
	missingLibraryDetection bool

	scanMu  sync.Mutex
	scanner *ZipScanner
}

func NewClasspathHelper(cp *Classpath, webapp Source, missingLibraryDetection bool, opts HelperOptions) *ClasspathHelper {
	return &ClasspathHelper{
		baseHelper:              newBaseHelper(opts, ClasspathKind),
		classpath:               cp,
		webapp:                  webapp,
		missingLibraryDetection: missingLibraryDetection,
	}
}

func (h *ClasspathHelper) Kind() HelperKind          { return ClasspathKind }
func (h *ClasspathHelper) BaseResourcePath() string  { return classpathResourcesDir }
func (h *ClasspathHelper) BaseContractsPath() string { return classpathContractsDir }
func (h *ClasspathHelper) Classpath() *Classpath     { return h.classpath }

// FindLibrary returns the library when its directory exists on the
// classpath. Classpath libraries are never versioned.
func (h *ClasspathHelper) FindLibrary(_ context.Context, _ *RequestState, name, localePrefix, contract string) (*LibraryInfo, error) {
	if _, _, ok := h.classpath.Find(joinPath(basePath(h, contract), localePrefix, name)); !ok {
		return nil, nil
	}
	return NewLibraryInfo(name, nil, localePrefix, contract, h), nil
}

// FindLibraryWithZipScan is FindLibrary with a fallback to the archives in
// /WEB-INF/lib. The archives are only consulted when missing library
// detection is on or forceScan is set; otherwise the library is assumed to
// exist.
func (h *ClasspathHelper) FindLibraryWithZipScan(ctx context.Context, state *RequestState, name, localePrefix, contract string, forceScan bool) (*LibraryInfo, error) {
	lib, err := h.FindLibrary(ctx, state, name, localePrefix, contract)
	if err != nil || lib != nil {
		return lib, err
	}
	if localePrefix != "" && name == FacesScriptLibrary {
		return nil, nil
	}
	if h.missingLibraryDetection || forceScan {
		scanner, err := h.zipScanner(ctx)
		if err != nil {
			return nil, err
		}
		if !scanner.LibraryExists(name, localePrefix) {
			return nil, nil
		}
	}
	return NewLibraryInfo(name, nil, localePrefix, contract, h), nil
}

// zipScanner builds the scanner on first use. Only a successful build is
// kept, so a failed scan is retried by the next caller. The build is detached
// from the caller's cancellation since its result is shared by later requests.
func (h *ClasspathHelper) zipScanner(ctx context.Context) (*ZipScanner, error) {
	h.scanMu.Lock()
	defer h.scanMu.Unlock()
	if h.scanner != nil {
		return h.scanner, nil
	}
	if h.webapp == nil {
		h.scanner = &ZipScanner{}
		return h.scanner, nil
	}
	scanner, err := NewZipScanner(context.WithoutCancel(ctx), h.webapp, webInfLib, h.logger)
	if err != nil {
		return nil, err
	}
	h.scanner = scanner
	return scanner, nil
}

func (h *ClasspathHelper) FindResource(ctx context.Context, state *RequestState, lib *LibraryInfo, name, localePrefix string, compressable bool) (*ResourceInfo, error) {
	name = trimLeadingSlash(name)

	contract, p := h.findPathConsideringContracts(state, lib, name, localePrefix)
	if p == "" {
		if lib != nil {
			p = lib.PathFor(localePrefix) + "/" + name
		} else {
			p = joinPath(classpathResourcesDir, localePrefix, name)
		}
		if _, _, ok := h.classpath.Find(p); !ok {
			if localePrefix == "" {
				return nil, nil
			}
			if lib != nil {
				lib = lib.WithoutLocale()
				p = lib.Path() + "/" + name
			} else {
				p = classpathResourcesDir + "/" + name
			}
			if _, _, ok := h.classpath.Find(p); !ok {
				return nil, nil
			}
			localePrefix = ""
		}
	}

	info := h.newResource(lib, contract, name, nil, localePrefix, h, compressable)
	info.fromClasspath = true
	return h.handleCompression(ctx, h, info, func() (io.ReadCloser, error) {
		return h.openPath(info.path)
	}), nil
}

func (h *ClasspathHelper) findPathConsideringContracts(state *RequestState, lib *LibraryInfo, name, localePrefix string) (string, string) {
	for _, contract := range contractCandidates(state, lib) {
		var p string
		if lib != nil {
			p = lib.PathFor(localePrefix) + "/" + name
		} else {
			p = joinPath(classpathContractsDir+"/"+contract, localePrefix, name)
		}
		if _, _, ok := h.classpath.Find(p); ok {
			return contract, p
		}
	}
	return "", ""
}

func (h *ClasspathHelper) openPath(p string) (io.ReadCloser, error) {
	f, err := h.classpath.Open(p)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (h *ClasspathHelper) Open(_ context.Context, state *RequestState, info *ResourceInfo) (io.ReadCloser, string, error) {
	return h.open(state, info, func() (io.ReadCloser, error) {
		return h.openPath(info.path)
	})
}

func (h *ClasspathHelper) URL(_ context.Context, info *ResourceInfo) (*url.URL, error) {
	e, _, ok := h.classpath.Find(info.path)
	if !ok {
		return nil, errors.NotFoundf("classpath resource %s", info.path)
	}
	return e.URL(info.path), nil
}

func (h *ClasspathHelper) Stat(_ context.Context, info *ResourceInfo) FileStat {
	_, fi, ok := h.classpath.Find(info.path)
	if !ok {
		return FileStat{Size: -1}
	}
	return FileStat{ModTime: fi.ModTime(), Size: fi.Size()}
}

func (h *ClasspathHelper) LastModified(ctx context.Context, info *ResourceInfo) time.Time {
	return h.Stat(ctx, info).ModTime
}
