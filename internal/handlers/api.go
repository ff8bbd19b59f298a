package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/muandane/special-stack/reslib/internal/resource"
)

// ResourceDescription is the diagnostic view of a resolved resource.
type ResourceDescription struct {
	Name           string    `json:"name"`
	Library        string    `json:"library,omitempty"`
	Version        string    `json:"version,omitempty"`
	LibraryVersion string    `json:"library_version,omitempty"`
	LocalePrefix   string    `json:"locale_prefix,omitempty"`
	Contract       string    `json:"contract,omitempty"`
	Helper         string    `json:"helper"`
	Path           string    `json:"path"`
	RequestPath    string    `json:"request_path"`
	ContentType    string    `json:"content_type"`
	RendererType   string    `json:"renderer_type,omitempty"`
	Compressible   bool      `json:"compressible"`
	SupportsEL     bool      `json:"supports_el"`
	LastModified   time.Time `json:"last_modified,omitempty"`
}

type LibraryStatus struct {
	Library string `json:"library"`
	Exists  bool   `json:"exists"`
}

type ViewList struct {
	Root  string   `json:"root"`
	Views []string `json:"views"`
}

// API exposes resolution diagnostics as JSON.
type API struct {
	resources *resource.Handler
}

func NewAPI(resources *resource.Handler) *API {
	return &API{resources: resources}
}

func stateFor(req *Request) *resource.RequestState {
	state := &resource.RequestState{LocalePrefix: req.QueryParams["loc"]}
	if con := req.QueryParams["con"]; con != "" {
		state.Params = map[string][]string{"con": {con}}
	}
	return state
}

// DescribeResource resolves ?name=&ln= and reports the descriptor.
func (a *API) DescribeResource(ctx context.Context, req *Request, _ struct{}) (*ResourceDescription, error) {
	name := req.QueryParams["name"]
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "is required"}
	}
	library := req.QueryParams["ln"]
	if library != "" && !resource.LibraryNameIsSafe(library) {
		return nil, &NotFoundError{Resource: "library", ID: library}
	}

	res, err := a.resources.CreateResource(ctx, stateFor(req), name, library, "")
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, &NotFoundError{Resource: "resource", ID: resourceID(library, name)}
	}

	info := res.Info()
	desc := &ResourceDescription{
		Name:         res.Name(),
		Library:      res.LibraryName(),
		LocalePrefix: info.LocalePrefix(),
		Contract:     info.Contract(),
		Helper:       info.Helper().Kind().String(),
		Path:         info.Path(),
		RequestPath:  res.RequestPath(),
		ContentType:  res.ContentType(),
		RendererType: a.resources.RendererTypeForResourceName(name),
		Compressible: info.Compressible(),
		SupportsEL:   info.SupportsEL(),
		LastModified: info.LastModified(ctx),
	}
	if v := info.Version(); v != nil {
		desc.Version = v.String()
	}
	if lib := info.Library(); lib != nil && lib.Version() != nil {
		desc.LibraryVersion = lib.Version().String()
	}
	return desc, nil
}

// LibraryExists reports whether the {library} path parameter names a library
// in any root, scanning WEB-INF/lib archives if needed.
func (a *API) LibraryExists(ctx context.Context, req *Request, _ struct{}) (*LibraryStatus, error) {
	library := req.PathParams["library"]
	if library == "" {
		return nil, &ValidationError{Field: "library", Message: "is required"}
	}
	if !resource.LibraryNameIsSafe(library) {
		return &LibraryStatus{Library: library}, nil
	}
	exists, err := a.resources.LibraryExists(ctx, stateFor(req), library)
	if err != nil {
		return nil, err
	}
	return &LibraryStatus{Library: library, Exists: exists}, nil
}

// ViewResources lists view documents below ?path= (default "/"), limited to
// ?depth= levels. ?top=true skips WEB-INF and META-INF.
func (a *API) ViewResources(ctx context.Context, req *Request, _ struct{}) (*ViewList, error) {
	root := req.QueryParams["path"]
	if root == "" {
		root = "/"
	}
	if resource.NameContainsForbiddenSequence(strings.Trim(root, "/")) {
		return nil, &ValidationError{Field: "path", Message: "contains a forbidden sequence"}
	}
	depth := 0
	if raw := req.QueryParams["depth"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, &ValidationError{Field: "depth", Message: "must be a non-negative integer"}
		}
		depth = n
	}
	top := false
	if raw := req.QueryParams["top"]; raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, &ValidationError{Field: "top", Message: "must be a boolean"}
		}
		top = b
	}

	views, err := a.resources.ViewResources(ctx, root, depth, top)
	if err != nil {
		return nil, err
	}
	if views == nil {
		views = []string{}
	}
	return &ViewList{Root: root, Views: views}, nil
}

func resourceID(library, name string) string {
	if library == "" {
		return name
	}
	return library + "/" + name
}
