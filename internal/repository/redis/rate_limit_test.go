package redis

import (
	"context"
	"testing"
	"time"
)

func TestRateLimitRepository_SlidingWindow(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{KeyPrefix: "rl", TTL: time.Minute})
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 3; i++ {
		if err := repo.RecordAttempt(ctx, "login:203.0.113.1", base); err != nil {
			t.Fatalf("RecordAttempt returned error: %v", err)
		}
	}
	if ttl := server.TTL("rl:login:203.0.113.1"); ttl != time.Minute {
		t.Fatalf("expected key ttl of one minute, got %v", ttl)
	}

	count, err := repo.CountAttempts(ctx, "login:203.0.113.1", time.Minute, base)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected simultaneous attempts to count separately, got %d", count)
	}

	oldest, ok, err := repo.OldestAttempt(ctx, "login:203.0.113.1", time.Minute, base)
	if err != nil || !ok {
		t.Fatalf("OldestAttempt returned ok=%v err=%v", ok, err)
	}
	if !oldest.Equal(base) {
		t.Fatalf("expected oldest %v, got %v", base, oldest)
	}

	later := base.Add(2 * time.Minute)
	if err := repo.TrimWindow(ctx, "login:203.0.113.1", time.Minute, later); err != nil {
		t.Fatalf("TrimWindow returned error: %v", err)
	}
	count, err = repo.CountAttempts(ctx, "login:203.0.113.1", time.Minute, later)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected trimmed window to be empty, got %d", count)
	}
	if server.Exists("rl:login:203.0.113.1") {
		t.Fatal("expected emptied window key to be removed")
	}
}

func TestRateLimitRepository_RejectsNonPositiveWindow(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, SlidingWindowConfig{})

	if _, err := repo.CountAttempts(context.Background(), "id", 0, time.Now()); err == nil {
		t.Fatalf("expected error for zero window")
	}
	if err := repo.TrimWindow(context.Background(), "id", -time.Second, time.Now()); err == nil {
		t.Fatalf("expected error for negative window")
	}
	if _, _, err := repo.OldestAttempt(context.Background(), "id", 0, time.Now()); err == nil {
		t.Fatalf("expected error for zero window")
	}
}
