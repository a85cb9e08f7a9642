// Package ratelimit implements the fixed-window, best-effort limiter for
// abuse-prone actions. Counters live in the shared cache so all gateway
// instances see roughly the same window; because the store is only
// eventually consistent and read-then-write is not atomic, concurrent
// bursts may occasionally over-admit. That is an accepted tradeoff, not a
// bug to fix with distributed locks.
package ratelimit

import "time"

// Action classifies an endpoint for limiting purposes.
type Action string

const (
	ActionLogin        Action = "login"
	ActionRatingsRead  Action = "ratings_read"
	ActionRatingsWrite Action = "ratings_write"
)

// Rule is one row of the static limit table.
type Rule struct {
	Window time.Duration
	Max    int
}

// DefaultRules is the static per-action limit table. Actions missing from
// the table are unconditionally allowed.
func DefaultRules() map[Action]Rule {
	return map[Action]Rule{
		ActionLogin:        {Window: 5 * time.Minute, Max: 5},
		ActionRatingsRead:  {Window: time.Minute, Max: 60},
		ActionRatingsWrite: {Window: time.Minute, Max: 3},
	}
}

// Result is the outcome of one limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds, only set when not allowed
}

// window is the persisted per-key counter state. Count only increments
// inside [WindowStart, WindowStart+Window); a stale read resets it.
type window struct {
	Count       int   `json:"count"`
	WindowStart int64 `json:"windowStart"`
}
