package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/km-arc/go-container/framework/http/validation"
)

// Response wraps http.ResponseWriter with JSON helpers.
type Response struct {
	w      http.ResponseWriter
	logger *zap.Logger
}

// NewResponse wraps a ResponseWriter. Write failures go to logger, which
// may be nil.
func NewResponse(w http.ResponseWriter, logger *zap.Logger) *Response {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Response{w: w, logger: logger}
}

// ── JSON responses ────────────────────────────────────────────────────────────

// JSON sends a JSON response.
//
//	res.JSON(http.StatusOK, map[string]any{"message": "ok"})
func (res *Response) JSON(status int, data any) {
	res.w.Header().Set("Content-Type", "application/json")
	res.w.WriteHeader(status)
	if err := json.NewEncoder(res.w).Encode(data); err != nil {
		res.logger.Warn("writing response", zap.Int("status", status), zap.Error(err))
	}
}

// Success sends 200 JSON: {"data": v}
func (res *Response) Success(v any) {
	res.JSON(http.StatusOK, Envelope{"data": v})
}

// Error sends a JSON error response: {"message": message}
func (res *Response) Error(status int, message string) {
	res.JSON(status, Envelope{"message": message})
}

// NotFound sends 404.
func (res *Response) NotFound(message ...string) {
	res.Error(http.StatusNotFound, first(message, "Not found."))
}

// Unauthorized sends 401.
func (res *Response) Unauthorized(message ...string) {
	res.Error(http.StatusUnauthorized, first(message, "Unauthenticated."))
}

// ServerError sends 500.
func (res *Response) ServerError(message ...string) {
	res.Error(http.StatusInternalServerError, first(message, "Server Error."))
}

// ValidationError sends 422 with the error bag when err holds a
// *validation.Errors, and 500 otherwise.
//
//	if err := rules.Check(req.Queries()); err != nil {
//	    res.ValidationError(err)
//	}
func (res *Response) ValidationError(err error) {
	var bag *validation.Errors
	if errors.As(err, &bag) {
		res.JSON(http.StatusUnprocessableEntity, bag)
		return
	}
	res.ServerError(err.Error())
}

// ── Helpers ──────────────────────────────────────────────────────────────────

// Envelope is the generic JSON object the helpers write.
type Envelope map[string]any

func first(ss []string, fallback string) string {
	if len(ss) > 0 && ss[0] != "" {
		return ss[0]
	}
	return fallback
}
