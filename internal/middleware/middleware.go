package middleware

import "net/http"

// Chain wraps h so that the first middleware listed runs innermost.
func Chain(h http.Handler, middleware ...func(http.Handler) http.Handler) http.Handler {
	for _, m := range middleware {
		h = m(h)
	}
	return h
}
