// Package http contains the HTTP handlers exposing license state to the
// rest of the platform.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	apperrors "formlens/internal/errors"
	"formlens/internal/license"
)

const tracerName = "license-handler"

// LicenseResolver is the license service surface the handler depends on.
type LicenseResolver interface {
	Resolve(ctx context.Context) license.LicenseResult
	Features(ctx context.Context) *license.FeatureSet
	InvalidateCache()
}

// LicenseHandler exposes license status over HTTP.
type LicenseHandler struct {
	service LicenseResolver
	logger  *slog.Logger
}

// NewLicenseHandler creates a new license handler.
func NewLicenseHandler(service LicenseResolver, logger *slog.Logger) *LicenseHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LicenseHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "license")),
	}
}

// Routes returns the chi router for license endpoints.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/status", h.Status)
	r.Get("/features", h.Features)
	r.Post("/invalidate", h.Invalidate)
	return r
}

// LicenseStatusResponse is the wire form of a license resolution.
type LicenseStatusResponse struct {
	license.LicenseResult
	TraceID   string    `json:"trace_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Status handles GET /api/license/status.
func (h *LicenseHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "license.status")
	defer span.End()

	result := h.service.Resolve(ctx)
	span.SetAttributes(
		attribute.String("license.fallback_level", string(result.FallbackLevel)),
		attribute.String("license.status", string(result.Status)),
		attribute.Bool("license.active", result.Active),
	)

	h.logger.InfoContext(ctx, "license status requested",
		slog.String("fallback_level", string(result.FallbackLevel)),
		slog.String("status", string(result.Status)),
		slog.Bool("active", result.Active),
	)

	render.JSON(w, r, LicenseStatusResponse{
		LicenseResult: result,
		TraceID:       middleware.GetReqID(ctx),
		Timestamp:     time.Now().UTC(),
	})
}

// Features handles GET /api/license/features. Callers that only need
// entitlements use this instead of the full status payload.
func (h *LicenseHandler) Features(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "license.features")
	defer span.End()

	features := h.service.Features(ctx)
	if features == nil {
		render.Render(w, r, apperrors.MapLicenseError(apperrors.ErrNoLicense, middleware.GetReqID(ctx)))
		return
	}

	render.JSON(w, r, features)
}

// Invalidate handles POST /api/license/invalidate, forcing the next
// resolution to re-contact the authority. Operator-facing escape hatch
// after a plan change.
func (h *LicenseHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "license.invalidate")
	defer span.End()

	h.service.InvalidateCache()
	h.logger.InfoContext(ctx, "license cache invalidated")

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{
		"message":  "license cache invalidated",
		"trace_id": middleware.GetReqID(ctx),
	})
}
