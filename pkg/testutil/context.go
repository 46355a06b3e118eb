package testutil

import (
	"net/http"

	"passage/internal/platform/middleware"
	"passage/pkg/platform/middleware/admin"
)

// WithAdminToken sets the header the admin middleware checks on signing
// routes.
func WithAdminToken(req *http.Request, token string) *http.Request {
	req.Header.Set(admin.HeaderToken, token)
	return req
}

// WithRequestID sets the correlation header the RequestID middleware
// propagates instead of minting a new id.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	req.Header.Set(middleware.HeaderRequestID, requestID)
	return req
}
