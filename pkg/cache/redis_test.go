package cache

import (
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestNewRedisStore_Validation(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	if _, err := NewRedisStore(nil, DefaultConfig()); err == nil {
		t.Error("NewRedisStore(nil) should fail")
	}

	cfg := DefaultConfig()
	cfg.TTL = 0
	if _, err := NewRedisStore(client, cfg); err == nil {
		t.Error("NewRedisStore with zero TTL should fail")
	}

	store, err := NewRedisStore(client, DefaultConfig())
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	if got := store.key(249504); got != "wantlist:listings:usd:249504" {
		t.Errorf("key() = %q", got)
	}
}
