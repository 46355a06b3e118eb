package httputil

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "passage/pkg/domain-errors"
	"passage/pkg/platform/sentinel"
)

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "internal_error", body["error"])
		_, ok := body["error_description"]
		assert.False(t, ok, "expected error_description to be omitted for internal errors")
	})

	t.Run("bad request includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid input"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "bad_request", body["error"])
		assert.Equal(t, "invalid input", body["error_description"])
	})

	t.Run("uncoded error is internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, fmt.Errorf("boom"))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("sentinel not found maps to 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, fmt.Errorf("lookup: %w", sentinel.ErrNotFound))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_found", decodeBody(t, w)["error"])
	})
}

func TestStatusFor(t *testing.T) {
	cases := map[dErrors.Code]int{
		dErrors.CodeValidation:        http.StatusUnprocessableEntity,
		dErrors.CodeInvalidExitMarker: http.StatusUnprocessableEntity,
		dErrors.CodeUnknownPolicy:     http.StatusBadRequest,
		dErrors.CodeUnknownTool:       http.StatusNotFound,
		dErrors.CodeUnauthorized:      http.StatusUnauthorized,
		dErrors.Code("mystery"):       http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, StatusFor(code), string(code))
	}
}

type greetRequest struct {
	Name string `json:"name"`
}

func (r *greetRequest) Normalize() { r.Name = strings.TrimSpace(r.Name) }

func (r *greetRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	t.Run("normalizes and validates", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"  ada "}`))
		w := httptest.NewRecorder()
		req, ok := DecodeAndPrepare[greetRequest](w, r, logger, r.Context(), "req-1")
		require.True(t, ok)
		assert.Equal(t, "ada", req.Name)
	})

	t.Run("malformed body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		w := httptest.NewRecorder()
		_, ok := DecodeAndPrepare[greetRequest](w, r, logger, r.Context(), "req-2")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("validation failure", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"  "}`))
		w := httptest.NewRecorder()
		_, ok := DecodeAndPrepare[greetRequest](w, r, logger, r.Context(), "req-3")
		assert.False(t, ok)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "validation_error", decodeBody(t, w)["error"])
	})
}

func TestWriteJSON_KeepsDocumentsVerbatim(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, map[string]any{
		"origin": "a<b & c>d",
		"marker": json.RawMessage(`{"reason":"x>y"}`),
	})

	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"a<b & c>d"`)
	assert.Contains(t, w.Body.String(), `{"reason":"x>y"}`)
}
