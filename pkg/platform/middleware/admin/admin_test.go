package admin

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireAdminToken(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	logger := slog.New(slog.DiscardHandler)

	tests := []struct {
		name     string
		expected string
		sent     string
		status   int
	}{
		{"matching token", "s3cret", "s3cret", http.StatusOK},
		{"wrong token", "s3cret", "guess", http.StatusUnauthorized},
		{"missing token", "s3cret", "", http.StatusUnauthorized},
		{"disabled", "", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/markers/exit", nil)
			if tt.sent != "" {
				r.Header.Set(HeaderToken, tt.sent)
			}
			w := httptest.NewRecorder()
			RequireAdminToken(tt.expected, logger)(ok).ServeHTTP(w, r)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
