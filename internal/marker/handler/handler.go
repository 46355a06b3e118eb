package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"passage/internal/envelope"
	"passage/internal/marker/models"
	"passage/internal/marker/service"
	"passage/internal/marker/store"
	"passage/internal/platform/metrics"
	"passage/internal/platform/middleware"
	"passage/internal/ratelimit"
	"passage/internal/tools"
	"passage/pkg/admission"
	dErrors "passage/pkg/domain-errors"
	"passage/pkg/entry"
	"passage/pkg/marker"
	"passage/pkg/platform/httputil"
	"passage/pkg/platform/middleware/admin"
	"passage/pkg/platform/middleware/metadata"
	"passage/pkg/platform/middleware/requesttime"
	"passage/pkg/requestcontext"
	"passage/pkg/transfer"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 1000
	requestTimeout     = 30 * time.Second
)

// Service defines the marker operations the handler exposes.
type Service interface {
	CreateExit(ctx context.Context, req service.ExitRequest) (*marker.ExitMarker, error)
	CreateArrival(ctx context.Context, req service.ArrivalRequest) (*entry.Result, error)
	Verify(ctx context.Context, data []byte) service.Verification
	EvaluateAdmission(ctx context.Context, exitJSON []byte, policy string) (admission.Decision, error)
	VerifyTransfers(ctx context.Context, docs []service.TransferDocuments) ([]transfer.Record, error)
	Get(ctx context.Context, id string) (*store.Record, error)
	History(ctx context.Context, subject string) ([]store.Record, error)
	Recent(ctx context.Context, limit int) ([]store.Record, error)
	Seal(ctx context.Context, document []byte) (string, error)
	Open(ctx context.Context, token string) (*envelope.Envelope, error)
}

// Toolset runs named tools.
type Toolset interface {
	List() []tools.Tool
	Invoke(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error)
}

// InvalidMarkerResponse is written when a departure fails verification so
// callers see every failure code.
type InvalidMarkerResponse struct {
	httputil.ErrorResponse
	Errors []marker.Code `json:"errors"`
}

// Handler serves the marker API.
type Handler struct {
	logger     *slog.Logger
	markers    Service
	tools      Toolset
	metrics    *metrics.Metrics
	adminToken string
	limiter    *ratelimit.Middleware
}

type Option func(*Handler)

// WithRateLimiter throttles routes per client IP. Without it every route is
// unlimited.
func WithRateLimiter(l *ratelimit.Middleware) Option {
	return func(h *Handler) {
		h.limiter = l
	}
}

// New creates a marker Handler. Operations that sign with the service
// identity require adminToken when it is set.
func New(
	markers Service,
	toolset Toolset,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	adminToken string,
	opts ...Option,
) *Handler {
	h := &Handler{
		logger:     logger,
		markers:    markers,
		tools:      toolset,
		metrics:    metrics,
		adminToken: adminToken,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the marker routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	markerRouter := chi.NewRouter()
	markerRouter.Use(middleware.Recovery(h.logger))
	markerRouter.Use(middleware.RequestID)
	markerRouter.Use(metadata.ClientMetadata)
	markerRouter.Use(requesttime.Middleware)
	markerRouter.Use(middleware.Logger(h.logger))
	markerRouter.Use(middleware.Timeout(requestTimeout))
	markerRouter.Use(middleware.ContentTypeJSON)
	markerRouter.Use(middleware.Latency(h.metrics))

	markerRouter.Group(func(read chi.Router) {
		read.Use(h.limiter.RateLimit(ratelimit.ClassRead))
		read.Get("/markers", h.handleHistory)
		read.Get("/markers/recent", h.handleRecent)
		read.Get("/markers/{id}", h.handleGetMarker)
		read.Get("/tools", h.handleListTools)
	})

	markerRouter.Group(func(verify chi.Router) {
		verify.Use(h.limiter.RateLimit(ratelimit.ClassVerify))
		verify.Post("/markers/verify", h.handleVerify)
		verify.Post("/admission/evaluate", h.handleEvaluateAdmission)
		verify.Post("/transfers/verify", h.handleVerifyTransfers)
		verify.Post("/envelopes/open", h.handleOpenEnvelope)
	})

	markerRouter.Group(func(signing chi.Router) {
		signing.Use(h.limiter.RateLimit(ratelimit.ClassSigning))
		signing.Use(admin.RequireAdminToken(h.adminToken, h.logger))
		signing.Post("/markers/exit", h.handleCreateExit)
		signing.Post("/markers/arrival", h.handleCreateArrival)
		signing.Post("/tools/{name}", h.handleInvokeTool)
		signing.Post("/envelopes/seal", h.handleSealEnvelope)
	})

	r.Mount("/", markerRouter)
}

func (h *Handler) handleCreateExit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreateExitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	m, err := h.markers.CreateExit(ctx, req.ToService())
	if err != nil {
		h.writeError(ctx, w, err, "failed to create exit marker")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) handleCreateArrival(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreateArrivalRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.markers.CreateArrival(ctx, req.ToService())
	if err != nil {
		h.writeError(ctx, w, err, "failed to create arrival marker")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

// handleVerify takes the marker document itself as the body.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, httputil.MaxBodyBytes))
	if err != nil || len(strings.TrimSpace(string(body))) == 0 {
		h.logger.WarnContext(ctx, "invalid verify request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body must be a marker document"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.markers.Verify(ctx, body))
}

// handleSealEnvelope takes the marker document itself as the body.
func (h *Handler) handleSealEnvelope(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, httputil.MaxBodyBytes))
	if err != nil || len(strings.TrimSpace(string(body))) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body must be a marker document"))
		return
	}
	token, err := h.markers.Seal(ctx, body)
	if err != nil {
		h.writeError(ctx, w, err, "failed to seal envelope")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.SealEnvelopeResponse{Token: token})
}

func (h *Handler) handleOpenEnvelope(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.OpenEnvelopeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	env, err := h.markers.Open(ctx, req.Token)
	if err != nil {
		h.writeError(ctx, w, err, "failed to open envelope")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewEnvelopeResponse(env))
}

func (h *Handler) handleEvaluateAdmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.EvaluateAdmissionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	decision, err := h.markers.EvaluateAdmission(ctx, req.ExitMarker, req.Policy)
	if err != nil {
		h.writeError(ctx, w, err, "failed to evaluate admission")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, decision)
}

func (h *Handler) handleVerifyTransfers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.VerifyTransfersRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	records, err := h.markers.VerifyTransfers(ctx, req.Transfers)
	if err != nil {
		h.writeError(ctx, w, err, "failed to verify transfers")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewVerifyTransfersResponse(records))
}

func (h *Handler) handleGetMarker(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, err := h.markers.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err, "failed to load marker")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewMarkerResponse(rec))
}

// handleHistory lists every archived marker about ?subject=, oldest first.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := strings.TrimSpace(r.URL.Query().Get("subject"))
	if subject == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "subject query parameter is required"))
		return
	}
	records, err := h.markers.History(ctx, subject)
	if err != nil {
		h.writeError(ctx, w, err, "failed to list markers")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewMarkerListResponse(records))
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRecentLimit {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be between 1 and 1000"))
			return
		}
		limit = n
	}
	records, err := h.markers.Recent(ctx, limit)
	if err != nil {
		h.writeError(ctx, w, err, "failed to list recent markers")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewMarkerListResponse(records))
}

func (h *Handler) handleListTools(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"tools": h.tools.List()})
}

func (h *Handler) handleInvokeTool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, httputil.MaxBodyBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	out, err := h.tools.Invoke(ctx, name, body)
	if err != nil {
		h.writeError(ctx, w, err, "tool invocation failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// writeError logs server faults and renders err. Departures that fail
// verification carry their failure codes.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	var invalid *entry.InvalidExitMarkerError
	if errors.As(err, &invalid) {
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, InvalidMarkerResponse{
			ErrorResponse: httputil.ErrorResponse{
				Error:            string(dErrors.CodeInvalidExitMarker),
				ErrorDescription: "exit marker failed verification",
			},
			Errors: invalid.Codes,
		})
		return
	}
	if code := dErrors.GetCode(err); code == "" || code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
