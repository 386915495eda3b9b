// Package ratelimit implements a sliding-window rate limiter keyed by opaque
// strings. The clock and the backing store are injected so the limiter can run
// against process memory on a single instance or against Redis when several
// instances must share one window.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var errMissingStore = errors.New("ratelimit: store is required")

// Store enforces the sliding window for a single key.
type Store interface {
	// Take prunes entries older than the window, then records the current
	// attempt and returns true when the key was still under the limit.
	// A denied take leaves the recorded window untouched.
	Take(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (bool, error)
}

// Config describes the dependencies of a Limiter.
type Config struct {
	Store Store
	Clock func() time.Time
}

// Limiter answers whether a keyed action may proceed right now.
type Limiter struct {
	store Store
	clock func() time.Time
}

// NewLimiter constructs a Limiter over the provided store.
func NewLimiter(cfg Config) (*Limiter, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Limiter{store: cfg.Store, clock: clock}, nil
}

// Allow reports whether the action identified by key may proceed, recording
// the attempt when it does.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return l.store.Take(ctx, key, limit, window, l.clock())
}

// Scope selects how a policy derives its key from the request.
type Scope int

const (
	// ScopePerIP keys the window on the caller's address alone.
	ScopePerIP Scope = iota
	// ScopePerIPResource keys the window on the caller's address and the
	// targeted resource, so one caller gets a separate budget per item.
	ScopePerIPResource
)

// Policy binds one rate-limited action to its limit, window and key scope.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
	Scope  Scope
}

// Key derives the store key for a caller and, when scoped, a resource id.
func (p Policy) Key(ip, resource string) string {
	if p.Scope == ScopePerIPResource {
		return fmt.Sprintf("%s:%s:%s", p.Name, ip, resource)
	}
	return fmt.Sprintf("%s:%s", p.Name, ip)
}

// Write-path policies. Story and comment creation are bounded per caller
// address; upvotes are bounded per caller address and voted item, so voting on
// one story does not consume the budget for another.
var (
	StoryCreatePolicy   = Policy{Name: "story", Limit: 5, Window: time.Hour, Scope: ScopePerIP}
	CommentCreatePolicy = Policy{Name: "comment", Limit: 20, Window: time.Hour, Scope: ScopePerIP}
	UpvotePolicy        = Policy{Name: "upvote", Limit: 5, Window: 24 * time.Hour, Scope: ScopePerIPResource}
)
