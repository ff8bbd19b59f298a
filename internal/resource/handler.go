package resource

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/muandane/special-stack/reslib/internal/config"
)

const (
	ScriptRendererType     = "jakarta.faces.resource.Script"
	StylesheetRendererType = "jakarta.faces.resource.Stylesheet"
)

// Handler creates resources and recognizes resource requests.
type Handler struct {
	manager      *Manager
	stage        config.ProjectStage
	prefix       string
	suffix       string
	maxAge       time.Duration
	excludes     []glob.Glob
	creationTime time.Time
	logger       *slog.Logger
}

func NewHandler(cfg *config.Config, manager *Manager, clk clock.Clock, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.WallClock
	}
	h := &Handler{
		manager:      manager,
		stage:        cfg.Stage,
		prefix:       "/" + strings.Trim(cfg.ResourcePrefix, "/"),
		suffix:       cfg.MappingSuffix,
		maxAge:       cfg.MaxAge,
		creationTime: clk.Now(),
		logger:       logger,
	}
	for _, ext := range cfg.ResourceExcludes {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		g, err := glob.Compile("*" + ext)
		if err != nil {
			logger.Warn("ignoring invalid resource exclude", "pattern", ext, "error", err)
			continue
		}
		h.excludes = append(h.excludes, g)
	}
	return h
}

func (h *Handler) Manager() *Manager          { return h.manager }
func (h *Handler) CreationTime() time.Time    { return h.creationTime }
func (h *Handler) Stage() config.ProjectStage { return h.stage }

// CreateResource resolves name, optionally inside libraryName. An empty
// contentType is derived from the name. A nil resource with a nil error means
// not found.
func (h *Handler) CreateResource(ctx context.Context, state *RequestState, name, libraryName, contentType string) (*Resource, error) {
	if name == "" {
		return nil, errors.NotValidf("empty resource name")
	}
	if contentType == "" {
		contentType = h.manager.ContentType(name)
	}
	info, err := h.manager.FindResource(ctx, state, libraryName, name, contentType)
	if err != nil || info == nil {
		return nil, err
	}
	return h.newResource(info, name, libraryName, contentType), nil
}

// CreateViewResource resolves a view document.
func (h *Handler) CreateViewResource(ctx context.Context, state *RequestState, name string) (*Resource, error) {
	if name == "" {
		return nil, errors.NotValidf("empty view name")
	}
	info, err := h.manager.FindViewResource(ctx, state, name)
	if err != nil || info == nil {
		return nil, err
	}
	return h.newResource(info, name, "", h.manager.ContentType(name)), nil
}

// CreateResourceFromID resolves an id of the form [library/]name.
func (h *Handler) CreateResourceFromID(ctx context.Context, state *RequestState, id string) (*Resource, error) {
	libraryName, name := ParseResourceID(id)
	if name == "" {
		return nil, nil
	}
	return h.CreateResource(ctx, state, name, libraryName, "")
}

func (h *Handler) newResource(info *ResourceInfo, name, libraryName, contentType string) *Resource {
	return &Resource{
		info:        info,
		name:        name,
		libraryName: libraryName,
		contentType: contentType,
		handler:     h,
	}
}

func (h *Handler) ViewResources(ctx context.Context, root string, maxDepth int, topLevelOnly bool) ([]string, error) {
	return h.manager.ViewResources(ctx, root, maxDepth, topLevelOnly)
}

func (h *Handler) LibraryExists(ctx context.Context, state *RequestState, libraryName string) (bool, error) {
	return h.manager.LibraryExists(ctx, state, libraryName)
}

// NormalizeResourceRequest strips the extension mapping from a request path.
func (h *Handler) NormalizeResourceRequest(requestPath string) string {
	if h.suffix != "" {
		return strings.TrimSuffix(requestPath, h.suffix)
	}
	return requestPath
}

// IsResourceRequest reports whether requestPath addresses a resource.
func (h *Handler) IsResourceRequest(requestPath string) bool {
	_, ok := h.ResourceName(requestPath)
	return ok
}

// ResourceName extracts the resource name from a request path.
func (h *Handler) ResourceName(requestPath string) (string, bool) {
	p := h.NormalizeResourceRequest(requestPath)
	name, ok := strings.CutPrefix(p, h.prefix+"/")
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// IsExcluded reports whether the resource name matches one of the
// configured exclude patterns.
func (h *Handler) IsExcluded(name string) bool {
	for _, g := range h.excludes {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// RendererTypeForResourceName names the renderer used for scripts and
// stylesheets. Other resources have none.
func (h *Handler) RendererTypeForResourceName(name string) string {
	switch mediaType(h.manager.ContentType(name)) {
	case "text/javascript", "application/javascript":
		return ScriptRendererType
	case "text/css":
		return StylesheetRendererType
	}
	return ""
}

// LogMissingResource reports a resource that could not be served. Outside
// Production every miss is a warning; in Production only misses caused by an
// error are.
func (h *Handler) LogMissingResource(ctx context.Context, name, libraryName string, cause error) {
	level := slog.LevelWarn
	if h.stage == config.Production && cause == nil {
		level = slog.LevelDebug
	}
	attrs := []any{"resource", name}
	if libraryName != "" {
		attrs = append(attrs, "library", libraryName)
	}
	if cause != nil {
		attrs = append(attrs, "error", cause)
	}
	h.logger.Log(ctx, level, "unable to find or serve resource", attrs...)
}
