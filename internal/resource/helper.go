package resource

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/muandane/special-stack/reslib/internal/cache"
)

// HelperKind identifies one of the resource roots.
type HelperKind int

const (
	WebappKind HelperKind = iota
	ClasspathKind
	FaceletKind
)

func (k HelperKind) String() string {
	switch k {
	case WebappKind:
		return "webapp"
	case ClasspathKind:
		return "classpath"
	case FaceletKind:
		return "facelet"
	}
	return "unknown"
}

// Helper locates libraries and resources below one root. The set of
// implementations is closed: WebappHelper, ClasspathHelper and FaceletHelper.
//
// Not found is reported as a nil descriptor and a nil error. Errors are kept
// for malformed paths and failing storage.
type Helper interface {
	Kind() HelperKind
	BaseResourcePath() string
	BaseContractsPath() string

	FindLibrary(ctx context.Context, state *RequestState, name, localePrefix, contract string) (*LibraryInfo, error)
	FindResource(ctx context.Context, state *RequestState, lib *LibraryInfo, name, localePrefix string, compressable bool) (*ResourceInfo, error)

	// Open returns the resource content and its content encoding, "gzip"
	// when a pre-compressed copy is served and "" otherwise.
	Open(ctx context.Context, state *RequestState, info *ResourceInfo) (io.ReadCloser, string, error)
	URL(ctx context.Context, info *ResourceInfo) (*url.URL, error)
	Stat(ctx context.Context, info *ResourceInfo) FileStat
	LastModified(ctx context.Context, info *ResourceInfo) time.Time

	sealed()
}

// HelperOptions carries the configuration shared by all helpers.
type HelperOptions struct {
	DevStage       bool
	CacheTimestamp bool
	// DocumentSuffix marks view documents, which never count as library
	// versions.
	DocumentSuffix string
	ELMimeTypes    []string
	MimeTypes      map[string]string
	Compressor     *cache.Compressor
	Logger         *slog.Logger
}

type baseHelper struct {
	opts   HelperOptions
	logger *slog.Logger
}

func newBaseHelper(opts HelperOptions, kind HelperKind) baseHelper {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return baseHelper{opts: opts, logger: logger.With("helper", kind.String())}
}

func (baseHelper) sealed() {}

// supportsEL reports whether the content type of name is one whose content
// may carry expressions. Such resources are never pre-compressed.
func (b *baseHelper) supportsEL(name string) bool {
	ct := mediaType(ContentType(name, b.opts.MimeTypes))
	if ct == "" {
		return false
	}
	for _, t := range b.opts.ELMimeTypes {
		if mediaType(t) == ct {
			return true
		}
	}
	return false
}

func (b *baseHelper) newResource(lib *LibraryInfo, contract, name string, version *VersionInfo, localePrefix string, h Helper, compressable bool) *ResourceInfo {
	return newResourceInfo(resourceSpec{
		library:        lib,
		contract:       contract,
		name:           name,
		version:        version,
		localePrefix:   localePrefix,
		helper:         h,
		compressible:   compressable,
		supportsEL:     b.supportsEL(name),
		devStage:       b.opts.DevStage,
		cacheTimestamp: b.opts.CacheTimestamp,
	})
}

// handleCompression stores a gzip copy of info next to the temp directory.
// When that is not possible the descriptor is marked not compressible.
func (b *baseHelper) handleCompression(ctx context.Context, h Helper, info *ResourceInfo, open func() (io.ReadCloser, error)) *ResourceInfo {
	if !info.compressible || info.supportsEL {
		return info
	}
	if !b.opts.Compressor.Enabled() {
		info.compressible = false
		return info
	}

	dir, err := b.opts.Compressor.Dir(info.path)
	if err == nil {
		err = b.opts.Compressor.Ensure(dir, h.Stat(ctx, info).ModTime, open)
	}
	if err != nil {
		b.logger.Warn("unable to create compressed copy, serving uncompressed",
			"path", info.path,
			"error", err,
		)
		info.compressible = false
		return info
	}
	info.compressedPath = dir
	return info
}

// open serves the pre-compressed copy when the client accepts it, and the
// plain content otherwise.
func (b *baseHelper) open(state *RequestState, info *ResourceInfo, plain func() (io.ReadCloser, error)) (io.ReadCloser, string, error) {
	if info.compressible && info.compressedPath != "" && state.acceptsGzip() {
		rc, err := b.opts.Compressor.Open(info.compressedPath)
		if err == nil {
			return rc, "gzip", nil
		}
		b.logger.Debug("compressed copy unavailable, falling back to plain content",
			"path", info.path,
			"error", err,
		)
	}
	rc, err := plain()
	if err != nil {
		return nil, "", err
	}
	return rc, "", nil
}

// contractCandidates lists the contracts to try before the plain base path.
func contractCandidates(state *RequestState, lib *LibraryInfo) []string {
	if lib != nil {
		if lib.contract == "" {
			return nil
		}
		return []string{lib.contract}
	}
	return state.ActiveContracts()
}
