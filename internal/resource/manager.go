package resource

import (
	"context"
	"log/slog"
	"strings"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/muandane/special-stack/reslib/internal/cache"
	"github.com/muandane/special-stack/reslib/internal/config"
)

// Manager resolves resources across the webapp, classpath and view helpers
// and caches the descriptors it finds.
type Manager struct {
	webapp     *WebappHelper
	classpath  *ClasspathHelper
	facelet    *FaceletHelper
	cache      *cache.ResourceCache[*ResourceInfo]
	compressor *cache.Compressor
	mimeTypes  map[string]string
	logger     *slog.Logger
}

// NewManager builds the helpers from cfg. source is the webapp root and cp
// the classpath; either may be empty. The descriptor cache is disabled in the
// Development stage.
func NewManager(cfg *config.Config, source Source, cp *Classpath, clk clock.Clock, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cp == nil {
		cp = NewClasspath()
	}

	checkPeriod := cfg.CheckPeriod
	if cfg.IsDevelopment() {
		checkPeriod = cache.Disabled
	}

	var documentSuffix string
	if len(cfg.FaceletsSuffixes) > 0 {
		documentSuffix = cfg.FaceletsSuffixes[0]
	}
	compressor := cache.NewCompressor(cfg.TempDir, cfg.CompressableTypes, logger)
	opts := HelperOptions{
		DevStage:       cfg.IsDevelopment(),
		CacheTimestamp: cfg.CacheTimestamp,
		DocumentSuffix: documentSuffix,
		ELMimeTypes:    cfg.ELMimeTypes,
		MimeTypes:      cfg.MimeTypes,
		Compressor:     compressor,
		Logger:         logger,
	}

	webapp := NewWebappHelper(source, cfg.ResourcesDir, cfg.ContractsDir, opts)
	return &Manager{
		webapp:     webapp,
		classpath:  NewClasspathHelper(cp, source, cfg.MissingLibraryDetection, opts),
		facelet:    NewFaceletHelper(webapp, cp, cfg.FaceletsSuffixes, opts),
		cache:      cache.New[*ResourceInfo](checkPeriod, clk),
		compressor: compressor,
		mimeTypes:  cfg.MimeTypes,
		logger:     logger,
	}
}

func (m *Manager) Cache() *cache.ResourceCache[*ResourceInfo] { return m.cache }

// FindResource resolves name, optionally inside libraryName, for the request
// described by state. contentType may be empty, in which case it is derived
// from the name. A nil descriptor with a nil error means not found.
func (m *Manager) FindResource(ctx context.Context, state *RequestState, libraryName, name, contentType string) (*ResourceInfo, error) {
	return m.find(ctx, state, libraryName, name, contentType, false)
}

// FindViewResource resolves a view document through the view helper.
func (m *Manager) FindViewResource(ctx context.Context, state *RequestState, name string) (*ResourceInfo, error) {
	return m.find(ctx, state, "", name, "", true)
}

// FindResourceByID resolves an id of the form [library/]name. The library is
// the segment directly before the last slash.
func (m *Manager) FindResourceByID(ctx context.Context, state *RequestState, id string) (*ResourceInfo, error) {
	libraryName, name := ParseResourceID(id)
	if name == "" {
		return nil, nil
	}
	return m.FindResource(ctx, state, libraryName, name, "")
}

// ParseResourceID splits a resource id into library and name.
func ParseResourceID(id string) (libraryName, name string) {
	last := strings.LastIndexByte(id, '/')
	if last < 0 {
		return "", id
	}
	name = id[last+1:]
	head := id[:last]
	if prev := strings.LastIndexByte(head, '/'); prev >= 0 {
		head = head[prev+1:]
	}
	return head, name
}

func (m *Manager) find(ctx context.Context, state *RequestState, libraryName, name, contentType string, view bool) (*ResourceInfo, error) {
	localePrefix := state.localePrefix()
	contracts := state.ActiveContracts()

	cacheLibrary := libraryName
	if view {
		cacheLibrary = viewLibraryKey
	}
	if info, ok := m.cache.Get(name, cacheLibrary, localePrefix, contracts); ok {
		return info, nil
	}

	info, err := m.lookup(ctx, state, libraryName, name, contentType, localePrefix, contracts, view)
	if err != nil || info == nil {
		return nil, err
	}
	if info.doNotCache {
		return info, nil
	}
	return m.cache.Add(info, contracts), nil
}

func (m *Manager) lookup(ctx context.Context, state *RequestState, libraryName, name, contentType, localePrefix string, contracts []string, view bool) (*ResourceInfo, error) {
	if NameContainsForbiddenSequence(libraryName) {
		return nil, nil
	}
	var lib *LibraryInfo
	if libraryName != "" {
		var err error
		lib, err = m.findLibraryWithFallbacks(ctx, state, libraryName, localePrefix, contracts, false)
		if err != nil || lib == nil {
			return nil, err
		}
	}

	rel := trimLeadingSlash(name)
	if NameContainsForbiddenSequence(rel) || (!view && strings.HasPrefix(rel, "WEB-INF")) {
		return nil, nil
	}

	if contentType == "" {
		contentType = m.ContentType(name)
	}
	compressable := m.IsCompressable(contentType)

	info, err := m.findInHelpers(ctx, state, lib, name, localePrefix, compressable, view)
	if err != nil || info != nil || localePrefix == "" {
		return info, err
	}
	if lib != nil {
		lib = lib.WithoutLocale()
	}
	return m.findInHelpers(ctx, state, lib, name, "", compressable, view)
}

func (m *Manager) findInHelpers(ctx context.Context, state *RequestState, lib *LibraryInfo, name, localePrefix string, compressable, view bool) (*ResourceInfo, error) {
	if lib != nil {
		return lib.helper.FindResource(ctx, state, lib, name, localePrefix, compressable)
	}
	if view {
		return m.facelet.FindResource(ctx, state, nil, name, localePrefix, compressable)
	}
	info, err := m.webapp.FindResource(ctx, state, nil, name, localePrefix, compressable)
	if err != nil || info != nil {
		return info, err
	}
	return m.classpath.FindResource(ctx, state, nil, name, localePrefix, compressable)
}

// findLibraryWithFallbacks tries the library with and without the locale,
// then falls back to the archive scan, again with and without the locale.
func (m *Manager) findLibraryWithFallbacks(ctx context.Context, state *RequestState, name, localePrefix string, contracts []string, forceScan bool) (*LibraryInfo, error) {
	lib, err := m.FindLibrary(ctx, state, name, localePrefix, contracts)
	if err != nil || lib != nil {
		return lib, err
	}
	if localePrefix != "" {
		if lib, err = m.FindLibrary(ctx, state, name, "", contracts); err != nil || lib != nil {
			return lib, err
		}
	}
	if lib, err = m.findLibraryWithZipScan(ctx, state, name, localePrefix, contracts, forceScan); err != nil || lib != nil {
		return lib, err
	}
	if localePrefix != "" {
		return m.findLibraryWithZipScan(ctx, state, name, "", contracts, forceScan)
	}
	return nil, nil
}

// FindLibrary looks for the library in each contract, webapp before
// classpath, then outside any contract. The view helper is only asked when no
// contract is active.
func (m *Manager) FindLibrary(ctx context.Context, state *RequestState, name, localePrefix string, contracts []string) (*LibraryInfo, error) {
	for _, contract := range contracts {
		lib, err := m.webapp.FindLibrary(ctx, state, name, localePrefix, contract)
		if err != nil || lib != nil {
			return lib, err
		}
		if lib, err = m.classpath.FindLibrary(ctx, state, name, localePrefix, contract); err != nil || lib != nil {
			return lib, err
		}
	}

	lib, err := m.webapp.FindLibrary(ctx, state, name, localePrefix, "")
	if err != nil || lib != nil {
		return lib, err
	}
	if lib, err = m.classpath.FindLibrary(ctx, state, name, localePrefix, ""); err != nil || lib != nil {
		return lib, err
	}
	if len(contracts) == 0 {
		return m.facelet.FindLibrary(ctx, state, name, localePrefix, "")
	}
	return nil, nil
}

func (m *Manager) findLibraryWithZipScan(ctx context.Context, state *RequestState, name, localePrefix string, contracts []string, forceScan bool) (*LibraryInfo, error) {
	for _, contract := range contracts {
		lib, err := m.classpath.FindLibraryWithZipScan(ctx, state, name, localePrefix, contract, forceScan)
		if err != nil || lib != nil {
			return lib, err
		}
	}
	return m.classpath.FindLibraryWithZipScan(ctx, state, name, localePrefix, "", forceScan)
}

// LibraryExists reports whether libraryName can be found anywhere, scanning
// the archives in /WEB-INF/lib if needed.
func (m *Manager) LibraryExists(ctx context.Context, state *RequestState, libraryName string) (bool, error) {
	if libraryName == "" || NameContainsForbiddenSequence(libraryName) {
		return false, nil
	}
	lib, err := m.findLibraryWithFallbacks(ctx, state, libraryName, state.localePrefix(), state.ActiveContracts(), true)
	if err != nil {
		return false, errors.Trace(err)
	}
	return lib != nil, nil
}

// ViewResources lists the view documents below root.
func (m *Manager) ViewResources(ctx context.Context, root string, maxDepth int, topLevelOnly bool) ([]string, error) {
	return m.facelet.ViewResources(ctx, root, maxDepth, topLevelOnly)
}

// IsCompressable reports whether resources of contentType get a gzip copy.
func (m *Manager) IsCompressable(contentType string) bool {
	return m.compressor.ShouldCompress(contentType)
}

// ContentType derives the media type of a resource from its name.
func (m *Manager) ContentType(name string) string {
	return ContentType(name, m.mimeTypes)
}
