// Package httptransport assembles the public HTTP surface.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"passage/pkg/platform/httputil"
)

// Registrar mounts a group of routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthFunc reports whether a dependency is usable.
type HealthFunc func(r *http.Request) error

// NewRouter wires the operational endpoints and every registrar. Any failing
// check makes /healthz report 503.
func NewRouter(gatherer prometheus.Gatherer, checks map[string]HealthFunc, registrars ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", health(checks))
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	for _, reg := range registrars {
		reg.Register(r)
	}
	return r
}

func health(checks map[string]HealthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{}
		healthy := true
		for name, check := range checks {
			if err := check(r); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, code, map[string]any{"healthy": healthy, "checks": status})
	}
}
