// Package ratings serves the aggregate course ratings read and write paths.
// Reads are accelerated by the shared cache; a successful write invalidates
// the cached entry so a re-read within one round trip sees fresh data.
package ratings

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"coursegate/internal/cache"
	"coursegate/internal/platform/config"
	"coursegate/internal/platform/metrics"
	"coursegate/internal/ratelimit"
	dErrors "coursegate/pkg/domain-errors"
	"coursegate/pkg/platform/httputil"
	"coursegate/pkg/platform/middleware/metadata"
)

const maxBodyBytes = 8 << 10

// cacheNamespace labels ratings entries in cache metrics.
const cacheNamespace = "ratings"

// sideEffectTimeout bounds the detached cache population/invalidation
// tasks that run after the response is sent.
const sideEffectTimeout = 5 * time.Second

// Authority is the slice of the authority client the ratings paths need.
type Authority interface {
	GetRatings(ctx context.Context, resourceID int64) (json.RawMessage, error)
	AddRating(ctx context.Context, resourceID int64, rating int, identity string) (json.RawMessage, error)
}

// RateLimiter matches ratelimit.Limiter.
type RateLimiter interface {
	Check(ctx context.Context, clientID string, action ratelimit.Action) (*ratelimit.Result, error)
}

// Handler serves GET and POST /ratings.
type Handler struct {
	authority Authority
	store     cache.Store
	limiter   RateLimiter
	logger    *slog.Logger
	metrics   *metrics.Metrics

	// group collapses concurrent authority fetches for the same resource
	// on a cache miss.
	group singleflight.Group
}

// Option configures a Handler.
type Option func(*Handler)

// WithMetrics records cache hit/miss counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// New builds the ratings handler.
func New(authority Authority, store cache.Store, limiter RateLimiter, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		authority: authority,
		store:     store,
		limiter:   limiter,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the ratings routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/ratings", h.HandleGet)
	r.Post("/ratings", h.HandlePost)
}

func cacheKey(resourceID int64) string {
	return "ratings:" + strconv.FormatInt(resourceID, 10)
}

// HandleGet returns the aggregate ratings for one resource: rate limit,
// validate, cache lookup, and only on a miss one (collapsed) authority
// fetch whose result is cached off the response path.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, ratelimit.ActionRatingsRead) {
		return
	}

	resourceID, err := resourceIDFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	key := cacheKey(resourceID)
	if cached, ok, err := h.store.Get(r.Context(), key); err != nil {
		h.logger.Warn("ratings cache read failed", "error", err)
	} else if ok {
		if h.metrics != nil {
			h.metrics.CacheHits.WithLabelValues(cacheNamespace).Inc()
		}
		writeRawJSON(w, json.RawMessage(cached))
		return
	}
	if h.metrics != nil {
		h.metrics.CacheMisses.WithLabelValues(cacheNamespace).Inc()
	}

	// The winning request's fetch is shared by every collapsed waiter, so it
	// must not die with that one client's connection. The authority client
	// applies its own deadline.
	fetchCtx := context.WithoutCancel(r.Context())
	payload, err, _ := h.group.Do(key, func() (any, error) {
		return h.authority.GetRatings(fetchCtx, resourceID)
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	raw := payload.(json.RawMessage)

	// Populate the cache off the response path; a cache-write failure must
	// never fail the read.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := h.store.Put(ctx, key, string(raw), config.RatingsCacheTTL); err != nil {
			h.logger.Warn("ratings cache populate failed", "key", key, "error", err)
		}
	}()

	writeRawJSON(w, raw)
}

type addRatingRequest struct {
	ResourceID int64    `json:"resourceId"`
	Rating     *float64 `json:"rating"`
}

// HandlePost submits a rating. The client's identity for abuse dedup is
// attached server-side from the connection, never taken from the body. On
// authority-reported success the cached read entry is invalidated
// best-effort so the next read is fresh.
func (h *Handler) HandlePost(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, ratelimit.ActionRatingsWrite) {
		return
	}

	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "expected application/json"))
		return
	}

	var req addRatingRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	if req.Rating == nil || *req.Rating != math.Trunc(*req.Rating) || *req.Rating < 1 || *req.Rating > 5 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "Rating must be 1-5"))
		return
	}
	if req.ResourceID < 1 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid course id"))
		return
	}

	identity := metadata.GetClientIP(r.Context())
	payload, err := h.authority.AddRating(r.Context(), req.ResourceID, int(*req.Rating), identity)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// Read-after-write freshness: drop the cached aggregate now that the
	// authority accepted the new rating.
	key := cacheKey(req.ResourceID)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := h.store.Invalidate(ctx, key); err != nil {
			h.logger.Warn("ratings cache invalidate failed", "key", key, "error", err)
		}
	}()

	writeRawJSON(w, payload)
}

// allow applies the fixed-window limit for action; it writes the 429 itself
// and reports whether the request may proceed. Limiter failures fail open.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, action ratelimit.Action) bool {
	res, err := h.limiter.Check(r.Context(), metadata.GetClientIP(r.Context()), action)
	if err != nil {
		h.logger.Error("rate limit check failed", "action", action, "error", err)
		return true
	}
	if !res.Allowed {
		httputil.WriteRateLimited(w, res.RetryAfter)
		return false
	}
	return true
}

// resourceIDFromQuery accepts ?resourceId=N, with ?courseId=N kept as a
// legacy alias for older embeds.
func resourceIDFromQuery(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("resourceId")
	if raw == "" {
		raw = r.URL.Query().Get("courseId")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid course id")
	}
	return id, nil
}

func writeRawJSON(w http.ResponseWriter, payload json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}
