package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/juju/errors"
)

// Request represents the base request structure
type Request struct {
	Method      string
	PathParams  map[string]string
	QueryParams map[string]string
	Headers     http.Header
}

// HandlerFunc is the generic handler function type
type HandlerFunc[T any, R any] func(context.Context, *Request, T) (R, error)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// HandlerOptions contains configuration for the handler
type HandlerOptions struct {
	Logger *slog.Logger
	// PathParams names the route parameters copied into Request.PathParams.
	PathParams []string
}

// Handle creates a JSON handler for read-only diagnostics. Inputs come from
// the path and query; the request body is never read, so handlerFunc always
// receives the zero T.
func Handle[T any, R any](handlerFunc HandlerFunc[T, R], opts HandlerOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := opts.Logger
		if logger == nil {
			logger = slog.Default()
		}

		var input T
		result, err := handlerFunc(r.Context(), parseRequest(r, opts.PathParams), input)
		if err != nil {
			handleError(w, logger, err)
			return
		}

		sendResponse(w, logger, result)
	}
}

func parseRequest(r *http.Request, pathParams []string) *Request {
	req := &Request{
		Method:      r.Method,
		PathParams:  make(map[string]string),
		QueryParams: make(map[string]string),
		Headers:     r.Header,
	}

	for _, param := range pathParams {
		if val := r.PathValue(param); val != "" {
			req.PathParams[param] = val
		}
	}

	query := r.URL.Query()
	for key := range query {
		req.QueryParams[key] = query.Get(key)
	}
	return req
}

func sendError(w http.ResponseWriter, logger *slog.Logger, code int, message string, err error) {
	level := slog.LevelDebug
	if code >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(context.Background(), level, message,
		"error", err,
		"code", code,
	)

	errResp := ErrorResponse{
		Error:   err.Error(),
		Code:    code,
		Message: message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errResp)
}

func handleError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var code int
	var message string

	var notFound *NotFoundError
	var invalid *ValidationError
	switch {
	case errors.As(err, &notFound), errors.Is(err, errors.NotFound):
		code = http.StatusNotFound
		message = "resource not found"
	case errors.As(err, &invalid), errors.Is(err, errors.NotValid):
		code = http.StatusBadRequest
		message = "validation error"
	default:
		code = http.StatusInternalServerError
		message = "internal server error"
	}

	sendError(w, logger, code, message, err)
}

// sendResponse encodes before writing the status line, so an encoding
// failure can still answer 500.
func sendResponse(w http.ResponseWriter, logger *slog.Logger, response any) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(response); err != nil {
		sendError(w, logger, http.StatusInternalServerError, "failed to encode response", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())

	logger.Debug("response sent",
		"status_code", http.StatusOK,
		"body_size", buf.Len(),
	)
}

// Custom error types
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}
