package resource

import (
	"context"
	"io"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/juju/errors"
)

var restrictedViewDirs = []string{"/WEB-INF/", "/META-INF/"}

// FaceletHelper resolves view documents. It has no libraries of its own and
// does not support localized views.
type FaceletHelper struct {
	baseHelper
	webapp    *WebappHelper
	classpath *Classpath
	suffixes  []string
}

func NewFaceletHelper(webapp *WebappHelper, cp *Classpath, suffixes []string, opts HelperOptions) *FaceletHelper {
	return &FaceletHelper{
		baseHelper: newBaseHelper(opts, FaceletKind),
		webapp:     webapp,
		classpath:  cp,
		suffixes:   suffixes,
	}
}

func (h *FaceletHelper) Kind() HelperKind          { return FaceletKind }
func (h *FaceletHelper) BaseResourcePath() string  { return "" }
func (h *FaceletHelper) BaseContractsPath() string { return h.webapp.BaseContractsPath() }

func (h *FaceletHelper) FindLibrary(context.Context, *RequestState, string, string, string) (*LibraryInfo, error) {
	return nil, nil
}

// FindResource looks for a view in the active contracts, then in the webapp
// root, then below META-INF/flows on the classpath. Contracts are skipped when
// a library is given.
func (h *FaceletHelper) FindResource(ctx context.Context, state *RequestState, lib *LibraryInfo, name, localePrefix string, _ bool) (*ResourceInfo, error) {
	if localePrefix != "" {
		return nil, nil
	}
	rel := trimLeadingSlash(name)

	var (
		contract      string
		p             string
		fromClasspath bool
		doNotCache    bool
	)
	if lib == nil {
		for _, c := range state.ActiveContracts() {
			candidate := h.BaseContractsPath() + "/" + c + "/" + rel
			ok, err := h.webapp.source.Exists(ctx, candidate)
			if err != nil {
				return nil, errors.Annotatef(err, "checking contract %q", c)
			}
			if ok {
				contract, p = c, candidate
				break
			}
			candidate = classpathContractsDir + "/" + c + "/" + rel
			if _, _, ok := h.classpath.Find(candidate); ok {
				contract, p, fromClasspath = c, candidate, true
				break
			}
		}
	}

	if p == "" {
		candidate := "/" + rel
		if lib != nil {
			candidate = lib.Path() + "/" + rel
		}
		ok, err := h.webapp.source.Exists(ctx, candidate)
		if err != nil {
			return nil, errors.Annotatef(err, "finding view %q", name)
		}
		if ok {
			p = candidate
		}
	}

	if p == "" {
		candidate := classpathFlowsDir + "/" + rel
		if matches := h.classpath.FindAll(candidate); len(matches) > 0 {
			p, fromClasspath = candidate, true
			// Several archives define the flow. Which one applies depends
			// on the current flow, so the result is not shared.
			doNotCache = len(matches) > 1
		}
	}

	if p == "" {
		return nil, nil
	}

	info := newResourceInfo(resourceSpec{
		contract:       contract,
		name:           name,
		helper:         h,
		devStage:       h.opts.DevStage,
		cacheTimestamp: h.opts.CacheTimestamp,
	})
	info.path = p
	info.view = true
	info.fromClasspath = fromClasspath
	info.doNotCache = doNotCache
	return info, nil
}

func (h *FaceletHelper) Open(ctx context.Context, _ *RequestState, info *ResourceInfo) (io.ReadCloser, string, error) {
	if info.fromClasspath {
		f, err := h.classpath.Open(info.path)
		if err != nil {
			return nil, "", err
		}
		return f, "", nil
	}
	rc, err := h.webapp.source.Open(ctx, info.path)
	if err != nil {
		return nil, "", err
	}
	return rc, "", nil
}

func (h *FaceletHelper) URL(_ context.Context, info *ResourceInfo) (*url.URL, error) {
	if info.fromClasspath {
		e, _, ok := h.classpath.Find(info.path)
		if !ok {
			return nil, errors.NotFoundf("view %s", info.path)
		}
		return e.URL(info.path), nil
	}
	u, err := h.webapp.source.URL(info.path)
	if err != nil {
		return nil, errors.Annotatef(err, "building URL for %s", info.path)
	}
	return u, nil
}

func (h *FaceletHelper) Stat(ctx context.Context, info *ResourceInfo) FileStat {
	if info.fromClasspath {
		_, fi, ok := h.classpath.Find(info.path)
		if !ok {
			return FileStat{Size: -1}
		}
		return FileStat{ModTime: fi.ModTime(), Size: fi.Size()}
	}
	st, err := h.webapp.source.Stat(ctx, info.path)
	if err != nil {
		return FileStat{Size: -1}
	}
	return st
}

func (h *FaceletHelper) LastModified(ctx context.Context, info *ResourceInfo) time.Time {
	return h.Stat(ctx, info).ModTime
}

// ViewResources walks the webapp root from root and returns the view
// documents found, sorted. maxDepth bounds the number of directory levels
// below root; zero or less means unbounded. With topLevelOnly, /WEB-INF/ and
// /META-INF/ are skipped.
func (h *FaceletHelper) ViewResources(ctx context.Context, root string, maxDepth int, topLevelOnly bool) ([]string, error) {
	if root == "" {
		root = "/"
	}
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}

	var views []string
	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		children, err := h.webapp.source.List(ctx, dir)
		if err != nil {
			return errors.Annotatef(err, "listing %s", dir)
		}
		for _, c := range children {
			if strings.HasSuffix(c, "/") {
				if topLevelOnly && slices.Contains(restrictedViewDirs, c) {
					continue
				}
				if maxDepth <= 0 || depth < maxDepth {
					if err := walk(c, depth+1); err != nil {
						return err
					}
				}
				continue
			}
			if h.isView(c) {
				views = append(views, c)
			}
		}
		return nil
	}
	if err := walk(root, 1); err != nil {
		return nil, err
	}
	slices.Sort(views)
	return slices.Compact(views), nil
}

func (h *FaceletHelper) isView(p string) bool {
	for _, s := range h.suffixes {
		if s != "" && strings.HasSuffix(p, s) {
			return true
		}
	}
	return false
}
