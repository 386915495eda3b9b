package ratelimit

import (
	"context"
	"testing"
	"time"
)

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time {
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestLimiter(t *testing.T) (*Limiter, *manualClock) {
	t.Helper()
	clock := &manualClock{now: time.Unix(1700000000, 0).UTC()}
	limiter, err := NewLimiter(Config{Store: NewMemoryStore(), Clock: clock.Now})
	if err != nil {
		t.Fatalf("unexpected limiter error: %v", err)
	}
	return limiter, clock
}

func TestLimiterAllowsExactlyLimitWithinWindow(t *testing.T) {
	limiter, clock := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(ctx, "story:10.0.0.1", 5, time.Hour)
		if err != nil {
			t.Fatalf("unexpected error on attempt %d: %v", i+1, err)
		}
		if !allowed {
			t.Fatalf("attempt %d within the limit must be allowed", i+1)
		}
		clock.Advance(time.Minute)
	}

	allowed, err := limiter.Allow(ctx, "story:10.0.0.1", 5, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Fatalf("attempt beyond the limit must be denied")
	}
}

func TestLimiterDenialHasNoSideEffect(t *testing.T) {
	limiter, clock := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if allowed, _ := limiter.Allow(ctx, "k", 3, time.Hour); !allowed {
			t.Fatalf("seed attempt %d must be allowed", i+1)
		}
	}
	for i := 0; i < 10; i++ {
		if allowed, _ := limiter.Allow(ctx, "k", 3, time.Hour); allowed {
			t.Fatalf("denied attempt %d must not be admitted", i+1)
		}
	}

	// Denied attempts must not have extended the window: once the three
	// recorded timestamps age out, the key admits again.
	clock.Advance(time.Hour + time.Second)
	if allowed, _ := limiter.Allow(ctx, "k", 3, time.Hour); !allowed {
		t.Fatalf("expired window must admit a new attempt")
	}
}

func TestLimiterWindowSlides(t *testing.T) {
	limiter, clock := newTestLimiter(t)
	ctx := context.Background()

	if allowed, _ := limiter.Allow(ctx, "k", 2, time.Hour); !allowed {
		t.Fatalf("first attempt must be allowed")
	}
	clock.Advance(40 * time.Minute)
	if allowed, _ := limiter.Allow(ctx, "k", 2, time.Hour); !allowed {
		t.Fatalf("second attempt must be allowed")
	}
	clock.Advance(25 * time.Minute)
	// The first attempt is now 65 minutes old and out of the window,
	// the second is 25 minutes old and still counts.
	if allowed, _ := limiter.Allow(ctx, "k", 2, time.Hour); !allowed {
		t.Fatalf("attempt after oldest entry expired must be allowed")
	}
	if allowed, _ := limiter.Allow(ctx, "k", 2, time.Hour); allowed {
		t.Fatalf("two live entries must deny a third attempt")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	if allowed, _ := limiter.Allow(ctx, "upvote:1.2.3.4:story-a", 1, time.Hour); !allowed {
		t.Fatalf("first key must be allowed")
	}
	if allowed, _ := limiter.Allow(ctx, "upvote:1.2.3.4:story-a", 1, time.Hour); allowed {
		t.Fatalf("first key must be exhausted")
	}
	if allowed, _ := limiter.Allow(ctx, "upvote:1.2.3.4:story-b", 1, time.Hour); !allowed {
		t.Fatalf("distinct resource key must carry its own budget")
	}
}

func TestMemoryStoreSweepDropsStaleKeys(t *testing.T) {
	store := NewMemoryStore()
	base := time.Unix(1700000000, 0).UTC()

	if _, err := store.Take(context.Background(), "old", 5, time.Hour, base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Take(context.Background(), "fresh", 5, time.Hour, base.Add(2*time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.Sweep(time.Hour, base.Add(2*time.Hour))

	if _, ok := store.attempts["old"]; ok {
		t.Fatalf("stale key must be evicted")
	}
	if _, ok := store.attempts["fresh"]; !ok {
		t.Fatalf("live key must survive the sweep")
	}
}

func TestPolicyKeyScopes(t *testing.T) {
	if got := StoryCreatePolicy.Key("1.2.3.4", "ignored"); got != "story:1.2.3.4" {
		t.Fatalf("unexpected per-ip key: %s", got)
	}
	if got := UpvotePolicy.Key("1.2.3.4", "story-7"); got != "upvote:1.2.3.4:story-7" {
		t.Fatalf("unexpected per-ip-resource key: %s", got)
	}
}

func TestNewLimiterRequiresStore(t *testing.T) {
	if _, err := NewLimiter(Config{}); err == nil {
		t.Fatalf("expected error for missing store")
	}
}
