package redis

import (
	"context"
	"testing"
	"time"

	"avaneesh/nut-go/pkg/cache"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()

	// Skip test if Redis is not available
	client := redis.NewClient(&redis.Options{
		Addr: "127.0.0.1:6379",
		DB:   3, // Use separate DB for cache tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { client.FlushDB(context.Background()) })

	s, err := New(Config{Client: client, TTL: ttl})
	if err != nil {
		t.Fatalf("Failed to create Redis store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_RequiresClient(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() without client should fail")
	}
}

func TestBuildKey(t *testing.T) {
	s, err := New(Config{Client: redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	got := s.buildKey(cache.Key{Server: "host:3493", UPS: "ups1", Kind: cache.KindRW})
	if got != "nut:cache:host:3493/ups1/RW/" {
		t.Errorf("buildKey() = %q", got)
	}
}

func TestRedisStore(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()
	key := cache.Key{Server: "localhost:3493", UPS: "ups1", Kind: cache.KindRange, Param: "input.transfer.low"}

	t.Run("GetNonExistent", func(t *testing.T) {
		_, ok, err := s.Get(ctx, key)
		if err != nil || ok {
			t.Fatalf("Get() = ok %v, err %v", ok, err)
		}
	})

	t.Run("SetAndGet", func(t *testing.T) {
		rows := cache.Rows{{"RANGE", "ups1", "input.transfer.low", "90", "100"}}
		if err := s.Set(ctx, key, rows); err != nil {
			t.Fatalf("Set() failed: %v", err)
		}
		got, ok, err := s.Get(ctx, key)
		if err != nil || !ok {
			t.Fatalf("Get() = ok %v, err %v", ok, err)
		}
		if len(got) != 1 || got[0][4] != "100" {
			t.Errorf("Get() = %v", got)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := s.Delete(ctx, key); err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
		if _, ok, _ := s.Get(ctx, key); ok {
			t.Error("entry still present after Delete()")
		}
	})
}

func TestRedisStore_TTL(t *testing.T) {
	s := newTestStore(t, 100*time.Millisecond)
	ctx := context.Background()
	key := cache.Key{Server: "s", UPS: "ups1", Kind: cache.KindCmd}

	if err := s.Set(ctx, key, cache.Rows{{"CMD", "ups1", "beeper.off"}}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	time.Sleep(250 * time.Millisecond)
	if _, ok, _ := s.Get(ctx, key); ok {
		t.Error("entry still present after TTL")
	}
}
