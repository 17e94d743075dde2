package app

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func newTestLimiter(maxEntries int) (*MemoryRateLimiter, *time.Time) {
	limiter := NewMemoryRateLimiter(maxEntries)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return clock }
	return limiter, &clock
}

func TestMemoryRateLimiter_DeniesAboveLimitWithinWindow(t *testing.T) {
	limiter, _ := newTestLimiter(100)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, err := limiter.Admit(ctx, "project_create", "10.0.0.1", 3, time.Minute)
		if err != nil {
			t.Fatalf("Admit returned error: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, retryAfter, err := limiter.Admit(ctx, "project_create", "10.0.0.1", 3, time.Minute)
	if err != nil {
		t.Fatalf("Admit returned error: %v", err)
	}
	if allowed {
		t.Fatal("fourth request in the window should be denied")
	}
	if retryAfter < 1 {
		t.Fatalf("denial must carry a positive retry hint, got %d", retryAfter)
	}
}

func TestMemoryRateLimiter_WindowResetsAfterExpiry(t *testing.T) {
	limiter, clock := newTestLimiter(100)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if allowed, _, _ := limiter.Admit(ctx, "apply", "10.0.0.1", 2, time.Minute); !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if allowed, _, _ := limiter.Admit(ctx, "apply", "10.0.0.1", 2, time.Minute); allowed {
		t.Fatal("third request should be denied before the window elapses")
	}

	*clock = clock.Add(61 * time.Second)

	if allowed, _, _ := limiter.Admit(ctx, "apply", "10.0.0.1", 2, time.Minute); !allowed {
		t.Fatal("first request of the new window should be allowed")
	}
}

func TestMemoryRateLimiter_ScopesAndClientsAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(100)
	ctx := context.Background()

	if allowed, _, _ := limiter.Admit(ctx, "apply", "10.0.0.1", 1, time.Minute); !allowed {
		t.Fatal("first request should be allowed")
	}
	if allowed, _, _ := limiter.Admit(ctx, "apply", "10.0.0.1", 1, time.Minute); allowed {
		t.Fatal("same scope and client should be denied")
	}
	if allowed, _, _ := limiter.Admit(ctx, "apply", "10.0.0.2", 1, time.Minute); !allowed {
		t.Fatal("a different client must not share the bucket")
	}
	if allowed, _, _ := limiter.Admit(ctx, "project_create", "10.0.0.1", 1, time.Minute); !allowed {
		t.Fatal("a different scope must not share the bucket")
	}
}

func TestMemoryRateLimiter_ZeroLimitDisablesGuard(t *testing.T) {
	limiter, _ := newTestLimiter(100)
	for i := 0; i < 50; i++ {
		allowed, _, err := limiter.Admit(context.Background(), "apply", "10.0.0.1", 0, time.Minute)
		if err != nil || !allowed {
			t.Fatalf("disabled limiter must always admit, got allowed=%v err=%v", allowed, err)
		}
	}
}

func TestMemoryRateLimiter_OverflowSharesOneBucketAtCapacity(t *testing.T) {
	limiter, _ := newTestLimiter(2)
	ctx := context.Background()

	limiter.Admit(ctx, "apply", "10.0.0.1", 5, time.Minute)
	limiter.Admit(ctx, "apply", "10.0.0.2", 5, time.Minute)

	// The map is full and nothing is expired; new clients land in the shared
	// overflow bucket and exhaust it together.
	for i := 0; i < 5; i++ {
		client := fmt.Sprintf("10.0.1.%d", i)
		if allowed, _, _ := limiter.Admit(ctx, "apply", client, 5, time.Minute); !allowed {
			t.Fatalf("overflow request %d should still be within the shared limit", i+1)
		}
	}
	if allowed, _, _ := limiter.Admit(ctx, "apply", "10.0.2.1", 5, time.Minute); allowed {
		t.Fatal("shared overflow bucket should be exhausted")
	}

	if len(limiter.buckets) > 3 {
		t.Fatalf("bucket map must stay bounded, got %d entries", len(limiter.buckets))
	}
}

func TestMemoryRateLimiter_SweepReclaimsExpiredBuckets(t *testing.T) {
	limiter, clock := newTestLimiter(100)
	ctx := context.Background()

	limiter.Admit(ctx, "apply", "10.0.0.1", 5, time.Minute)
	limiter.Admit(ctx, "apply", "10.0.0.2", 5, time.Minute)

	*clock = clock.Add(2 * time.Minute)

	limiter.mu.Lock()
	limiter.sweepLocked(limiter.now())
	remaining := len(limiter.buckets)
	limiter.mu.Unlock()

	if remaining != 0 {
		t.Fatalf("expected all expired buckets reclaimed, %d left", remaining)
	}
}
