// Package httputil holds the JSON response and request helpers shared by
// HTTP handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "passage/pkg/domain-errors"
	"passage/pkg/platform/sentinel"
)

// MaxBodyBytes caps decoded request bodies.
const MaxBodyBytes = 1 << 20

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	// marker documents must reach clients in wire form
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// WriteError translates err into a status and a coded body. Descriptions of
// internal errors are never rendered.
func WriteError(w http.ResponseWriter, err error) {
	code := codeOf(err)
	WriteJSON(w, StatusFor(code), ErrorResponse{
		Error:            string(code),
		ErrorDescription: dErrors.ClientMessage(err),
	})
}

func codeOf(err error) dErrors.Code {
	if code := dErrors.GetCode(err); code != "" {
		return code
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.CodeNotFound
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.CodeConflict
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.CodeTimeout
	}
	return dErrors.CodeInternal
}

// StatusFor maps a domain code to an HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeInvalidRequest,
		dErrors.CodeParseFailure, dErrors.CodeUnknownPolicy:
		return http.StatusBadRequest
	case dErrors.CodeValidation, dErrors.CodeInvalidExitMarker, dErrors.CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound, dErrors.CodeUnknownTool:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Preparable is implemented by request DTOs.
type Preparable interface {
	Normalize()
	Validate() error
}

// DecodeAndPrepare decodes the request body into T, normalizes and validates
// it. On failure it writes the error response and returns false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Preparable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	req := PT(new(T))
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(req); err != nil {
		logger.WarnContext(ctx, "invalid request body",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		logger.WarnContext(ctx, "request validation failed",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	return (*T)(req), true
}
