package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Minute)
	s.now = func() time.Time { return now }

	job := &Job{ID: "j1", Headers: []string{"url"}, Rows: [][]string{{"https://a"}}}
	if err := s.Put(ctx, job); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "j1")
	if err != nil || got != job {
		t.Fatalf("Get() = %v, %v", got, err)
	}
	if got, _ := s.Get(ctx, "missing"); got != nil {
		t.Error("expected nil for unknown id")
	}

	if err := s.Delete(ctx, "j1"); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Get(ctx, "j1"); got != nil {
		t.Error("job still present after Delete")
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Minute)
	s.now = func() time.Time { return now }

	s.Put(ctx, &Job{ID: "old"})
	now = now.Add(30 * time.Second)
	s.Put(ctx, &Job{ID: "new"})

	now = now.Add(45 * time.Second)
	if got, _ := s.Get(ctx, "old"); got != nil {
		t.Error("expired job returned")
	}
	if got, _ := s.Get(ctx, "new"); got == nil {
		t.Error("live job missing")
	}

	now = now.Add(time.Minute)
	if n := s.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d after sweep", s.Len())
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	s := NewRedisStore(client, time.Minute)
	ctx := context.Background()

	if err := s.Put(ctx, &Job{ID: "x"}); err == nil {
		t.Error("expected error from unreachable redis")
	}
	if _, err := s.Get(ctx, "x"); err == nil {
		t.Error("expected error from unreachable redis")
	}
	if err := s.Ping(ctx); err == nil {
		t.Error("expected ping error")
	}
}

func TestRedisStoreClose(t *testing.T) {
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), time.Minute)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Ping(context.Background()); !errors.Is(err, redis.ErrClosed) {
		t.Errorf("Ping() after Close = %v, want redis.ErrClosed", err)
	}
}

func TestRedisKey(t *testing.T) {
	if got := redisKey("abc"); got != "wishlister:import:abc" {
		t.Errorf("redisKey() = %q", got)
	}
}
