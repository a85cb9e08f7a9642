package ratelimit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"coursegate/internal/cache"
	"coursegate/internal/platform/metrics"
	dErrors "coursegate/pkg/domain-errors"
)

// Limiter checks fixed-window limits against the shared cache.
type Limiter struct {
	store    cache.Store
	rules    map[Action]Rule
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool

	now func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithRules replaces the static limit table.
func WithRules(rules map[Action]Rule) Option {
	return func(l *Limiter) {
		l.rules = rules
	}
}

// WithMetrics records denied checks per action.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// WithDisabled turns the limiter into a no-op (demo/tests).
func WithDisabled(disabled bool) Option {
	return func(l *Limiter) {
		l.disabled = disabled
	}
}

// WithClock overrides the time source. Test use only.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New builds a Limiter over the given store.
func New(store cache.Store, logger *slog.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		rules:  DefaultRules(),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.disabled {
		logger.Info("rate limiting disabled")
	}
	return l
}

// Check records one request for (clientID, action) and reports whether it
// is within the window's budget. The read-increment-write sequence is not
// atomic across instances; last write wins on the counter.
func (l *Limiter) Check(ctx context.Context, clientID string, action Action) (*Result, error) {
	rule, configured := l.rules[action]
	if l.disabled || !configured {
		return &Result{Allowed: true, Limit: rule.Max, Remaining: rule.Max}, nil
	}

	now := l.now()
	key := "rl:" + string(action) + ":" + clientID

	w := window{WindowStart: now.Unix()}
	raw, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read rate limit window")
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &w); err != nil {
			// Corrupt window state: start a fresh window rather than
			// locking the client out.
			l.logger.Warn("resetting corrupt rate limit window", "key", key, "error", err)
			w = window{WindowStart: now.Unix()}
		}
		if now.Unix()-w.WindowStart >= int64(rule.Window/time.Second) {
			w = window{WindowStart: now.Unix()}
		}
	}

	w.Count++

	resetAt := time.Unix(w.WindowStart, 0).Add(rule.Window)
	remainingTTL := resetAt.Sub(now)

	buf, err := json.Marshal(w)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode rate limit window")
	}
	if err := l.store.Put(ctx, key, string(buf), remainingTTL); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist rate limit window")
	}

	res := &Result{
		Allowed: w.Count <= rule.Max,
		Limit:   rule.Max,
		ResetAt: resetAt,
	}
	if remaining := rule.Max - w.Count; remaining > 0 {
		res.Remaining = remaining
	}
	if !res.Allowed {
		res.RetryAfter = int(remainingTTL / time.Second)
		if res.RetryAfter < 1 {
			res.RetryAfter = 1
		}
		if l.metrics != nil {
			l.metrics.RateLimitExceeded.WithLabelValues(string(action)).Inc()
		}
		l.logger.Info("rate limit exceeded",
			"action", action,
			"client", clientID,
			"limit", rule.Max,
			"window_seconds", int(rule.Window.Seconds()),
		)
	}
	return res, nil
}
