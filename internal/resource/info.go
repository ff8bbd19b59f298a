package resource

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	FacesScriptLibrary      = "jakarta.faces"
	FacesScriptResource     = "faces.js"
	facesUncompressedScript = "faces-uncompressed.js"

	// viewLibraryKey keeps view documents apart from plain resources of the
	// same name in the descriptor cache.
	viewLibraryKey = "\x00view"
)

// RequestState carries the per-request inputs resolution depends on.
type RequestState struct {
	// LocalePrefix selects localized variants. Empty means unlocalized.
	LocalePrefix string
	// Contracts lists the resource library contracts active for the view.
	Contracts []string
	// HasView reports whether a view is being rendered. Without one the
	// contract comes from the "con" request parameter.
	HasView     bool
	Params      url.Values
	AcceptsGzip bool
}

func (s *RequestState) localePrefix() string {
	if s == nil || NameContainsForbiddenSequence(s.LocalePrefix) {
		return ""
	}
	return s.LocalePrefix
}

// ActiveContracts returns the contracts in effect for the request.
func (s *RequestState) ActiveContracts() []string {
	if s == nil {
		return nil
	}
	if s.HasView {
		return s.Contracts
	}
	if con := s.Params.Get("con"); con != "" && !NameContainsForbiddenSequence(con) {
		return []string{con}
	}
	return nil
}

func (s *RequestState) acceptsGzip() bool { return s != nil && s.AcceptsGzip }

// LibraryInfo describes a resolved resource library.
type LibraryInfo struct {
	name         string
	version      *VersionInfo
	localePrefix string
	contract     string
	helper       Helper
	path         string
}

func NewLibraryInfo(name string, version *VersionInfo, localePrefix, contract string, helper Helper) *LibraryInfo {
	l := &LibraryInfo{
		name:         name,
		version:      version,
		localePrefix: localePrefix,
		contract:     contract,
		helper:       helper,
	}
	l.path = l.PathFor(localePrefix)
	return l
}

func (l *LibraryInfo) Name() string          { return l.name }
func (l *LibraryInfo) Version() *VersionInfo { return l.version }
func (l *LibraryInfo) LocalePrefix() string  { return l.localePrefix }
func (l *LibraryInfo) Contract() string      { return l.contract }
func (l *LibraryInfo) Helper() Helper        { return l.helper }

// Path is {base}[/locale]/{name}[/{version}], where base is the contract
// directory when the library belongs to a contract.
func (l *LibraryInfo) Path() string { return l.path }

// PathFor composes the library path with a different locale prefix.
func (l *LibraryInfo) PathFor(localePrefix string) string {
	var b strings.Builder
	b.WriteString(basePath(l.helper, l.contract))
	if localePrefix != "" {
		b.WriteByte('/')
		b.WriteString(localePrefix)
	}
	b.WriteByte('/')
	b.WriteString(l.name)
	if l.version != nil {
		b.WriteByte('/')
		b.WriteString(l.version.Version)
	}
	return b.String()
}

// WithoutLocale returns a copy of the library with the locale prefix removed.
func (l *LibraryInfo) WithoutLocale() *LibraryInfo {
	return NewLibraryInfo(l.name, l.version, "", l.contract, l.helper)
}

func (l *LibraryInfo) String() string {
	return fmt.Sprintf("LibraryInfo{name=%q, version=%v, locale=%q, contract=%q, path=%q}",
		l.name, l.version, l.localePrefix, l.contract, l.path)
}

func basePath(h Helper, contract string) string {
	if contract == "" {
		return h.BaseResourcePath()
	}
	return h.BaseContractsPath() + "/" + contract
}

// ResourceInfo describes one resolved resource. It is immutable once a helper
// returns it, apart from the lazily computed modification time.
type ResourceInfo struct {
	name         string
	version      *VersionInfo
	library      *LibraryInfo
	localePrefix string
	contract     string
	helper       Helper
	path         string

	compressible   bool
	supportsEL     bool
	compressedPath string
	devStage       bool
	cacheTimestamp bool

	view          bool
	fromClasspath bool
	doNotCache    bool

	lastModifiedOnce sync.Once
	lastModified     time.Time
}

type resourceSpec struct {
	library        *LibraryInfo
	contract       string
	name           string
	version        *VersionInfo
	localePrefix   string
	helper         Helper
	compressible   bool
	supportsEL     bool
	devStage       bool
	cacheTimestamp bool
}

func newResourceInfo(s resourceSpec) *ResourceInfo {
	helper := s.helper
	locale := s.localePrefix
	if s.library != nil {
		helper = s.library.helper
		locale = s.library.localePrefix
	}
	if helper == nil {
		panic("resource: ResourceInfo needs a library or a helper")
	}
	r := &ResourceInfo{
		name:           s.name,
		version:        s.version,
		library:        s.library,
		localePrefix:   locale,
		contract:       s.contract,
		helper:         helper,
		compressible:   s.compressible,
		supportsEL:     s.supportsEL,
		devStage:       s.devStage,
		cacheTimestamp: s.cacheTimestamp && !s.devStage,
	}
	r.path = r.composePath()
	return r
}

func (r *ResourceInfo) composePath() string {
	var b strings.Builder
	switch {
	case r.library != nil:
		b.WriteString(r.library.path)
	case r.contract != "":
		b.WriteString(r.helper.BaseContractsPath())
		b.WriteByte('/')
		b.WriteString(r.contract)
	default:
		b.WriteString(r.helper.BaseResourcePath())
	}
	if r.library == nil && r.localePrefix != "" {
		b.WriteByte('/')
		b.WriteString(r.localePrefix)
	}
	b.WriteByte('/')
	if r.devStage && r.LibraryName() == FacesScriptLibrary && r.name == FacesScriptResource {
		b.WriteString(facesUncompressedScript)
	} else {
		b.WriteString(r.name)
	}
	if r.version != nil {
		b.WriteByte('/')
		b.WriteString(r.version.String())
	}
	return b.String()
}

func (r *ResourceInfo) Name() string           { return r.name }
func (r *ResourceInfo) Version() *VersionInfo  { return r.version }
func (r *ResourceInfo) Library() *LibraryInfo  { return r.library }
func (r *ResourceInfo) LocalePrefix() string   { return r.localePrefix }
func (r *ResourceInfo) Contract() string       { return r.contract }
func (r *ResourceInfo) Helper() Helper         { return r.helper }
func (r *ResourceInfo) Path() string           { return r.path }
func (r *ResourceInfo) Compressible() bool     { return r.compressible }
func (r *ResourceInfo) SupportsEL() bool       { return r.supportsEL }
func (r *ResourceInfo) CompressedPath() string { return r.compressedPath }
func (r *ResourceInfo) IsView() bool           { return r.view }
func (r *ResourceInfo) DoNotCache() bool       { return r.doNotCache }

func (r *ResourceInfo) LibraryName() string {
	if r.library == nil {
		return ""
	}
	return r.library.name
}

// LastModified returns the modification time of the resource, or the zero
// time when unknown. With timestamp caching on, the lookup runs at most once
// for the lifetime of this descriptor.
func (r *ResourceInfo) LastModified(ctx context.Context) time.Time {
	if !r.cacheTimestamp {
		return r.helper.Stat(ctx, r).ModTime
	}
	r.lastModifiedOnce.Do(func() {
		r.lastModified = r.helper.Stat(context.WithoutCancel(ctx), r).ModTime
	})
	return r.lastModified
}

// WithoutLocale returns a copy of the descriptor with the locale prefix
// stripped from it and from its library.
func (r *ResourceInfo) WithoutLocale() *ResourceInfo {
	lib := r.library
	if lib != nil {
		lib = lib.WithoutLocale()
	}
	c := newResourceInfo(resourceSpec{
		library:        lib,
		contract:       r.contract,
		name:           r.name,
		version:        r.version,
		helper:         r.helper,
		compressible:   r.compressible,
		supportsEL:     r.supportsEL,
		devStage:       r.devStage,
		cacheTimestamp: r.cacheTimestamp,
	})
	c.view = r.view
	c.fromClasspath = r.fromClasspath
	c.doNotCache = r.doNotCache
	if r.view {
		c.path = r.path
	}
	return c
}

// CacheKey implements cache.Entry.
func (r *ResourceInfo) CacheKey() (string, string, string) {
	if r.view {
		return r.name, viewLibraryKey, r.localePrefix
	}
	return r.name, r.LibraryName(), r.localePrefix
}

// Immutable implements cache.Entry. Classpath content is fixed for the life
// of the process.
func (r *ResourceInfo) Immutable() bool {
	return r.fromClasspath || r.helper.Kind() == ClasspathKind
}

func (r *ResourceInfo) String() string {
	version, libVersion, contract, locale := "NONE", "NONE", "NONE", "NONE"
	if r.version != nil {
		version = r.version.String()
	}
	if r.library != nil && r.library.version != nil {
		libVersion = r.library.version.String()
	}
	if r.contract != "" {
		contract = r.contract
	}
	if r.localePrefix != "" {
		locale = r.localePrefix
	}
	return fmt.Sprintf("ResourceInfo{name=%q, version=%q, library=%q, contract=%q, libraryVersion=%q, locale=%q, path=%q, compressible=%t, compressedPath=%q}",
		r.name, version, r.LibraryName(), contract, libVersion, locale, r.path, r.compressible, r.compressedPath)
}
