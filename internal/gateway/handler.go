// Package gateway decides the access outcome for protected-resource
// requests: challenge, redirect, or upstream-failure page.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"coursegate/internal/platform/metrics"
	"coursegate/internal/token"
)

// Resolver is the slice of the authority client the gateway needs.
type Resolver interface {
	GetLocation(ctx context.Context, resourceID int64) (string, error)
}

// Handler serves GET /protected/{resourceID}.
type Handler struct {
	resolver Resolver
	secret   string
	contact  string
	logger   *slog.Logger
	metrics  *metrics.Metrics

	now func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithMetrics records token acceptance metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithClock overrides the time source. Test use only.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// New builds the gateway handler. contact is surfaced on the failure page
// so stuck users have a human fallback.
func New(resolver Resolver, secret, contact string, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		resolver: resolver,
		secret:   secret,
		contact:  contact,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the protected-resource route.
func (h *Handler) Register(r chi.Router) {
	r.Get("/protected/{resourceID}", h.HandleProtected)
}

// HandleProtected walks the access state machine for one request:
// unparseable id -> 404 before any cookie work; no token or invalid token
// or a token minted for a different resource -> challenge page; authority
// resolution failure -> 503 page; otherwise a one-time redirect to the
// resolved location with caching disabled.
func (h *Handler) HandleProtected(w http.ResponseWriter, r *http.Request) {
	resourceID, err := strconv.ParseInt(chi.URLParam(r, "resourceID"), 10, 64)
	if err != nil || resourceID < 1 {
		http.NotFound(w, r)
		return
	}

	cookie, err := r.Cookie(token.CookieName(resourceID))
	if err != nil {
		writeChallengePage(w, resourceID)
		return
	}

	claim, ok := token.Parse(cookie.Value, h.secret, h.now())
	if !ok || claim.ResourceID != resourceID {
		// A claim minted for another resource never authorizes this one,
		// however valid its signature is.
		if h.metrics != nil {
			h.metrics.TokensRejected.Inc()
		}
		writeChallengePage(w, resourceID)
		return
	}

	location, err := h.resolver.GetLocation(r.Context(), resourceID)
	if err != nil {
		h.logger.Warn("failed to resolve protected resource", "resource_id", resourceID, "error", err)
		writeUnavailablePage(w, h.contact)
		return
	}

	// The resolved location is never cached and only ever leaves as this
	// one redirect.
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.Redirect(w, r, location, http.StatusFound)
}
