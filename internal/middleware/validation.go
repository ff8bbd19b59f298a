package middleware

import (
	"net/http"
	"strings"

	"github.com/muandane/special-stack/reslib/internal/resource"
)

type ValidationConfig struct {
	ExcludedPaths  []string
	ResourcePrefix string
}

// WithValidation screens resource requests before they reach the resolver.
// Only GET and HEAD are served, and an unsafe ln, or a con or loc carrying a
// traversal sequence, answers 404 so guessing clients learn nothing.
func WithValidation(config ValidationConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.ExcludedPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			if !isUnder(r.URL.Path, config.ResourcePrefix) {
				next.ServeHTTP(w, r)
				return
			}

			switch r.Method {
			case http.MethodGet, http.MethodHead:
			default:
				w.Header().Set("Allow", "GET, HEAD")
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}

			q := r.URL.Query()
			if ln := q.Get("ln"); ln != "" && !resource.LibraryNameIsSafe(ln) {
				http.NotFound(w, r)
				return
			}
			for _, param := range []string{"con", "loc"} {
				if resource.NameContainsForbiddenSequence(q.Get(param)) {
					http.NotFound(w, r)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isUnder(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	prefix = "/" + strings.Trim(prefix, "/")
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
