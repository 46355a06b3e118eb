// Package testutil holds request builders and assertions shared by the
// handler, router and flow tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewJSONRequest marshals body (when non-nil) as the request payload.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	if body == nil {
		return jsonRequest(method, path, nil)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// embedded marker documents keep their wire form
	enc.SetEscapeHTML(false)
	require.NoError(t, enc.Encode(body), "marshal request body")
	return jsonRequest(method, path, bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}))
}

// NewRequestWithBody sends body verbatim, e.g. a marker document.
func NewRequestWithBody(t *testing.T, method, path string, body string) *http.Request {
	t.Helper()
	return jsonRequest(method, path, []byte(body))
}

func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

func jsonRequest(method, path string, body []byte) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// ReadBody returns the recorded body without draining it, so several
// assertions can inspect the same response.
func ReadBody(t *testing.T, rr *httptest.ResponseRecorder) []byte {
	t.Helper()
	return rr.Body.Bytes()
}

// UnmarshalResponse decodes the recorded body into T.
func UnmarshalResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) *T {
	t.Helper()
	var out T
	require.NoErrorf(t, json.Unmarshal(ReadBody(t, rr), &out), "decode response: %s", rr.Body.String())
	return &out
}

func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equalf(t, expected, rr.Code, "unexpected status, body: %s", strings.TrimSpace(rr.Body.String()))
}

func AssertStatusOK(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	AssertStatus(t, rr, http.StatusOK)
}

// AssertJSONContains checks a top-level field of a JSON object response.
func AssertJSONContains(t *testing.T, rr *httptest.ResponseRecorder, key string, expected any) {
	t.Helper()
	fields := *UnmarshalResponse[map[string]any](t, rr)
	assert.Equalf(t, expected, fields[key], "field %q", key)
}
