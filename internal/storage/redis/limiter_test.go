package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

func getRedisClient(t *testing.T) *goredis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLimiter_FixedWindow(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), "rate_limit:"+key) })

	lim := NewLimiter(client, 2, time.Minute)

	for i := 0; i < 2; i++ {
		d, err := lim.Allow(ctx, key)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should pass", i+1)
		}
		if d.Remaining != 1-i {
			t.Fatalf("expected %d remaining, got %d", 1-i, d.Remaining)
		}
	}

	d, err := lim.Allow(ctx, key)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if d.Allowed || d.Remaining != 0 {
		t.Fatalf("third request should be throttled, got %+v", d)
	}
	if d.ResetIn <= 0 || d.ResetIn > time.Minute {
		t.Fatalf("unexpected reset %s", d.ResetIn)
	}
}

func TestLimiter_WindowExpires(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	lim := NewLimiter(client, 1, 100*time.Millisecond)
	if d, err := lim.Allow(ctx, key); err != nil || !d.Allowed {
		t.Fatalf("first request: %+v, %v", d, err)
	}
	if d, _ := lim.Allow(ctx, key); d.Allowed {
		t.Fatalf("second request should be throttled")
	}

	time.Sleep(150 * time.Millisecond)
	if d, err := lim.Allow(ctx, key); err != nil || !d.Allowed {
		t.Fatalf("new window should allow: %+v, %v", d, err)
	}
}
