package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"linkage/internal/contact/models"
	"linkage/internal/platform/metrics"
	"linkage/internal/platform/middleware"
	dErrors "linkage/pkg/domain-errors"
	"linkage/pkg/platform/httputil"
)

const maxBodyBytes = 1 << 20

// Service defines the interface for contact reconciliation operations.
type Service interface {
	Identify(ctx context.Context, ids models.Identifiers) (*models.Chain, error)
	Lookup(ctx context.Context, contactID int64) (*models.Chain, error)
}

// Handler serves the identity reconciliation endpoints.
type Handler struct {
	logger         *slog.Logger
	contacts       Service
	metrics        *metrics.Metrics
	requestTimeout time.Duration
}

// Option configures a Handler.
type Option func(*Handler)

// WithRequestTimeout bounds each request's context.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(h *Handler) {
		h.requestTimeout = timeout
	}
}

// New creates a new contact Handler.
func New(contacts Service, logger *slog.Logger, metrics *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		logger:         logger,
		contacts:       contacts,
		metrics:        metrics,
		requestTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the contact routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.RequestTime)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(h.requestTimeout))
		r.Use(middleware.LatencyMiddleware(h.metrics))
		r.With(middleware.ContentTypeJSON).Post("/identify", h.handleIdentify)
		r.Get("/contacts/{id}", h.handleGetContact)
	})
}

// handleIdentify reconciles the supplied email and/or phone number and returns
// the consolidated contact.
func (h *Handler) handleIdentify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req IdentifyRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid identify request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, decodeError(err))
		return
	}

	ids, err := req.Identifiers()
	if err != nil {
		h.logger.WarnContext(ctx, "invalid identify request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	chain, err := h.contacts.Identify(ctx, ids)
	if err != nil {
		h.writeServiceError(ctx, w, err, "identify failed")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, NewContactResponse(chain))
}

// handleGetContact returns the consolidated contact that contains the given id.
func (h *Handler) handleGetContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	contactID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || contactID <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "contact id must be a positive integer"))
		return
	}

	chain, err := h.contacts.Lookup(ctx, contactID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "lookup failed")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, NewContactResponse(chain))
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	code := dErrors.CodeOf(err)
	if dErrors.ToHTTPStatus(code) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg,
			"request_id", middleware.GetRequestID(ctx),
			"code", code,
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}

func decodeError(err error) error {
	var maxErr *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &maxErr):
		return dErrors.New(dErrors.CodeBadRequest, "request body too large")
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return dErrors.New(dErrors.CodeValidation, typeErr.Field+" must be a string")
	default:
		return dErrors.New(dErrors.CodeBadRequest, "invalid JSON body")
	}
}
