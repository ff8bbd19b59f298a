package resource

import (
	"context"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/juju/errors"
)

// WebappHelper resolves resources below the webapp root, by default
// /resources and /contracts.
type WebappHelper struct {
	baseHelper
	source       Source
	resourcesDir string
	contractsDir string
}

func NewWebappHelper(source Source, resourcesDir, contractsDir string, opts HelperOptions) *WebappHelper {
	return &WebappHelper{
		baseHelper:   newBaseHelper(opts, WebappKind),
		source:       source,
		resourcesDir: "/" + strings.Trim(resourcesDir, "/"),
		contractsDir: "/" + strings.Trim(contractsDir, "/"),
	}
}

func (h *WebappHelper) Kind() HelperKind          { return WebappKind }
func (h *WebappHelper) BaseResourcePath() string  { return h.resourcesDir }
func (h *WebappHelper) BaseContractsPath() string { return h.contractsDir }
func (h *WebappHelper) Source() Source            { return h.source }

// FindLibrary returns the library when its directory exists and is not
// empty. The highest version directory, if any, is selected.
func (h *WebappHelper) FindLibrary(ctx context.Context, _ *RequestState, name, localePrefix, contract string) (*LibraryInfo, error) {
	p := joinPath(basePath(h, contract), localePrefix, name)
	children, err := h.source.List(ctx, p)
	if err != nil {
		return nil, errors.Annotatef(err, "finding library %q", name)
	}
	if len(children) == 0 {
		return nil, nil
	}
	version := SelectVersion(children, "", false, h.opts.DocumentSuffix, h.logger)
	return NewLibraryInfo(name, version, localePrefix, contract, h), nil
}

func (h *WebappHelper) FindResource(ctx context.Context, state *RequestState, lib *LibraryInfo, name, localePrefix string, compressable bool) (*ResourceInfo, error) {
	name = trimLeadingSlash(name)

	contract, p, err := h.findPathConsideringContracts(ctx, state, lib, name, localePrefix)
	if err != nil {
		return nil, err
	}
	if p == "" {
		if lib != nil {
			p = lib.PathFor(localePrefix) + "/" + name
		} else {
			p = joinPath(h.resourcesDir, localePrefix, name)
		}
		ok, err := h.source.Exists(ctx, p)
		if err != nil {
			return nil, errors.Annotatef(err, "finding resource %q", name)
		}
		if !ok {
			return nil, nil
		}
	}

	// A resource that lists children is a directory of versions.
	children, err := h.source.List(ctx, p)
	if err != nil {
		return nil, errors.Annotatef(err, "finding resource %q", name)
	}
	var version *VersionInfo
	if len(children) > 0 {
		version = SelectVersion(children, extension(name), true, "", h.logger)
		if version == nil {
			h.logger.Warn("unable to determine resource version", "resource", name, "path", p)
		}
	}

	info := h.newResource(lib, contract, name, version, localePrefix, h, compressable)
	return h.handleCompression(ctx, h, info, func() (io.ReadCloser, error) {
		return h.source.Open(ctx, info.path)
	}), nil
}

func (h *WebappHelper) findPathConsideringContracts(ctx context.Context, state *RequestState, lib *LibraryInfo, name, localePrefix string) (string, string, error) {
	for _, contract := range contractCandidates(state, lib) {
		var p string
		if lib != nil {
			p = lib.PathFor(localePrefix) + "/" + name
		} else {
			p = joinPath(h.contractsDir+"/"+contract, localePrefix, name)
		}
		ok, err := h.source.Exists(ctx, p)
		if err != nil {
			return "", "", errors.Annotatef(err, "checking contract %q", contract)
		}
		if ok {
			return contract, p, nil
		}
	}
	return "", "", nil
}

func (h *WebappHelper) Open(ctx context.Context, state *RequestState, info *ResourceInfo) (io.ReadCloser, string, error) {
	return h.open(state, info, func() (io.ReadCloser, error) {
		return h.source.Open(ctx, info.path)
	})
}

func (h *WebappHelper) URL(_ context.Context, info *ResourceInfo) (*url.URL, error) {
	u, err := h.source.URL(info.path)
	if err != nil {
		return nil, errors.Annotatef(err, "building URL for %s", info.path)
	}
	return u, nil
}

func (h *WebappHelper) Stat(ctx context.Context, info *ResourceInfo) FileStat {
	st, err := h.source.Stat(ctx, info.path)
	if err != nil {
		h.logger.Debug("unable to stat resource", "path", info.path, "error", err)
		return FileStat{Size: -1}
	}
	return st
}

func (h *WebappHelper) LastModified(ctx context.Context, info *ResourceInfo) time.Time {
	return h.Stat(ctx, info).ModTime
}

// joinPath builds base[/locale]/name.
func joinPath(base, localePrefix, name string) string {
	if localePrefix == "" {
		return base + "/" + name
	}
	return base + "/" + localePrefix + "/" + name
}

func extension(name string) string {
	return strings.TrimPrefix(path.Ext(name), ".")
}
