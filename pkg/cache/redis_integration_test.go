//go:build integration

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestRedisStore_Integration_SetAndGet(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	store, err := NewRedisStore(client, DefaultConfig())
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	ctx := context.Background()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	if _, err := store.Get(ctx, 42); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get() on empty store error = %v, want ErrCacheMiss", err)
	}

	if err := store.Set(ctx, 42, sampleListings()); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := store.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != 2 || got[1].SellerID != "beta" || got[1].Price.String() != "12.5" {
		t.Errorf("Get() = %+v", got)
	}

	ttl, err := client.TTL(ctx, "wantlist:listings:usd:42").Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > DefaultConfig().TTL {
		t.Errorf("key TTL = %s, want within (0, %s]", ttl, DefaultConfig().TTL)
	}
}

func TestRedisStore_Integration_Expiry(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	cfg := DefaultConfig()
	cfg.TTL = time.Second
	store, err := NewRedisStore(client, cfg)
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	ctx := context.Background()

	if err := store.Set(ctx, 9, sampleListings()); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(1500 * time.Millisecond)

	if _, err := store.Get(ctx, 9); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() after TTL error = %v, want ErrCacheMiss", err)
	}
}

func TestRedisStore_Integration_CorruptEntry(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	store, err := NewRedisStore(client, DefaultConfig())
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	ctx := context.Background()

	if err := client.Set(ctx, "wantlist:listings:usd:5", "not json", time.Minute).Err(); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	if _, err := store.Get(ctx, 5); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Get() error = %v, want ErrInvalidEntry", err)
	}
}
