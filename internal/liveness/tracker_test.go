package liveness

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func TestMemoryTracker_TouchAndLastSeen(t *testing.T) {
	tr := NewMemoryTracker()
	ctx := context.Background()

	if _, ok, _ := tr.LastSeen(ctx, "a1"); ok {
		t.Fatal("expected unknown agent to be absent")
	}

	if err := tr.Touch(ctx, "a1", time.Minute); err != nil {
		t.Fatalf("touch failed: %v", err)
	}

	seen, ok, err := tr.LastSeen(ctx, "a1")
	if err != nil || !ok {
		t.Fatalf("expected agent present, ok=%v err=%v", ok, err)
	}
	if time.Since(seen) > time.Second {
		t.Fatalf("last seen too old: %v", seen)
	}
}

func TestMemoryTracker_Expiry(t *testing.T) {
	tr := NewMemoryTracker()
	ctx := context.Background()

	if err := tr.Touch(ctx, "a1", 10*time.Millisecond); err != nil {
		t.Fatalf("touch failed: %v", err)
	}
	time.Sleep(25 * time.Millisecond)

	if _, ok, _ := tr.LastSeen(ctx, "a1"); ok {
		t.Fatal("expected entry to expire after retention")
	}
}

func TestMemoryTracker_Forget(t *testing.T) {
	tr := NewMemoryTracker()
	ctx := context.Background()

	_ = tr.Touch(ctx, "a1", time.Minute)
	if err := tr.Forget(ctx, "a1"); err != nil {
		t.Fatalf("forget failed: %v", err)
	}
	if _, ok, _ := tr.LastSeen(ctx, "a1"); ok {
		t.Fatal("expected forgotten agent to be absent")
	}
}

func newRedisTracker(t *testing.T) (*RedisTracker, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisTracker(client), srv
}

func TestRedisTracker_TouchAndLastSeen(t *testing.T) {
	tr, _ := newRedisTracker(t)
	ctx := context.Background()

	if err := tr.Touch(ctx, "a1", time.Minute); err != nil {
		t.Fatalf("touch failed: %v", err)
	}

	seen, ok, err := tr.LastSeen(ctx, "a1")
	if err != nil || !ok {
		t.Fatalf("expected agent present, ok=%v err=%v", ok, err)
	}
	if time.Since(seen) > time.Second {
		t.Fatalf("last seen too old: %v", seen)
	}
}

func TestRedisTracker_TTLExpiry(t *testing.T) {
	tr, srv := newRedisTracker(t)
	ctx := context.Background()

	if err := tr.Touch(ctx, "a1", 5*time.Second); err != nil {
		t.Fatalf("touch failed: %v", err)
	}

	// miniredis expires keys on FastForward rather than wall-clock time.
	srv.FastForward(6 * time.Second)

	if _, ok, _ := tr.LastSeen(ctx, "a1"); ok {
		t.Fatal("expected entry to expire via redis TTL")
	}
}

func TestRedisTracker_Forget(t *testing.T) {
	tr, _ := newRedisTracker(t)
	ctx := context.Background()

	_ = tr.Touch(ctx, "a1", time.Minute)
	if err := tr.Forget(ctx, "a1"); err != nil {
		t.Fatalf("forget failed: %v", err)
	}
	if _, ok, _ := tr.LastSeen(ctx, "a1"); ok {
		t.Fatal("expected forgotten agent to be absent")
	}
}
