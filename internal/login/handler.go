// Package login issues session tokens. Credentials are validated locally
// for shape only; the remote authority is the sole judge of whether they
// grant access to a resource.
package login

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"coursegate/internal/platform/metrics"
	"coursegate/internal/ratelimit"
	"coursegate/internal/token"
	dErrors "coursegate/pkg/domain-errors"
	"coursegate/pkg/platform/httputil"
	"coursegate/pkg/platform/middleware/metadata"
)

// maxBodyBytes caps the login request body.
const maxBodyBytes = 8 << 10

const (
	minSecretLen = 4
	maxSecretLen = 128
)

// Verifier is the slice of the authority client login needs.
type Verifier interface {
	VerifyAccess(ctx context.Context, resourceID int64, email, password string) (bool, error)
}

// RateLimiter matches ratelimit.Limiter.
type RateLimiter interface {
	Check(ctx context.Context, clientID string, action ratelimit.Action) (*ratelimit.Result, error)
}

// Handler serves POST /auth/login.
type Handler struct {
	verifier      Verifier
	limiter       RateLimiter
	secret        string
	allowedOrigin string
	logger        *slog.Logger
	metrics       *metrics.Metrics

	now func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithMetrics records minted-token counts.
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

// New builds the login handler.
func New(verifier Verifier, limiter RateLimiter, secret, allowedOrigin string, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		verifier:      verifier,
		limiter:       limiter,
		secret:        secret,
		allowedOrigin: allowedOrigin,
		logger:        logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the login route.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
}

type loginRequest struct {
	Identity   string `json:"identity"`
	Secret     string `json:"secret"`
	ResourceID int64  `json:"resourceId"`
}

type loginResponse struct {
	Status   string `json:"status"`
	Redirect string `json:"redirect"`
}

// HandleLogin runs the local validation chain, then asks the authority to
// verify the credentials for the specific resource, and on success mints
// the resource-scoped session cookie. Every local rejection happens before
// any remote call; authority rejections stay deliberately generic so the
// response never reveals which field was wrong.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.originAllowed(r) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "origin not allowed"))
		return
	}

	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "expected application/json"))
		return
	}

	res, err := h.limiter.Check(r.Context(), metadata.GetClientIP(r.Context()), ratelimit.ActionLogin)
	if err != nil {
		// The limiter is best-effort: a broken cache must not take the
		// login path down with it.
		h.logger.Error("rate limit check failed", "error", err)
	} else if !res.Allowed {
		httputil.WriteRateLimited(w, res.RetryAfter)
		return
	}

	var req loginRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	identity := strings.ToLower(strings.TrimSpace(req.Identity))
	if !govalidator.IsEmail(identity) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "a valid email address is required"))
		return
	}
	if len(req.Secret) < minSecretLen || len(req.Secret) > maxSecretLen {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid credentials format"))
		return
	}
	if req.ResourceID < 1 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid course id"))
		return
	}

	valid, err := h.verifier.VerifyAccess(r.Context(), req.ResourceID, identity, req.Secret)
	if err != nil {
		// Unreachable authority is not the same thing as a rejection.
		httputil.WriteError(w, err)
		return
	}
	if !valid {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials or not enrolled"))
		return
	}

	claim := token.NewClaim(req.ResourceID, identity, h.now())
	tok, err := token.Mint(claim, h.secret)
	if err != nil {
		h.logger.Error("failed to mint session token", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to establish session"))
		return
	}

	if h.metrics != nil {
		h.metrics.TokensMinted.Inc()
	}
	h.logger.Info("session established", "resource_id", req.ResourceID)

	http.SetCookie(w, token.NewCookie(req.ResourceID, tok))
	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		Status:   "success",
		Redirect: token.CookiePath(req.ResourceID),
	})
}

// originAllowed enforces the configured allow-list. Requests without an
// Origin header (same-site navigations, curl) pass; a mismatched Origin is
// always rejected. An empty allow-list disables the check.
func (h *Handler) originAllowed(r *http.Request) bool {
	if h.allowedOrigin == "" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || origin == h.allowedOrigin
}
