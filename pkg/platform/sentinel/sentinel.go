package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Archive stores, marker logs and
// event sinks return these (optionally wrapped) so the marker service can
// translate them into coded domain errors.
//
//   - ErrNotFound: no archived marker with the requested id
//   - ErrConflict: a different document is already archived under the id
//   - ErrUnavailable: backing service (Redis, Postgres, broker) unreachable
//   - ErrClosed: publisher or log used after Close
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
	ErrClosed      = errors.New("closed")
)
