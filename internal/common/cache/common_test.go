package cache

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestCache(t *testing.T) (Cache, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client, err := NewRedisCacheWithConfig(&RedisConfig{Addr: server.Addr()})
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, server
}

func intCacheArgs() (func(int) bool, func(int) string, func(string) (int, error)) {
	isEmpty := func(v int) bool { return v == 0 }
	marshal := func(v int) string { return strconv.Itoa(v) }
	unmarshal := func(s string) (int, error) { return strconv.Atoi(s) }
	return isEmpty, marshal, unmarshal
}

func TestGetWithCachedAside(t *testing.T) {
	client, _ := newTestCache(t)
	ctx := context.Background()
	isEmpty, marshal, unmarshal := intCacheArgs()

	loads := 0
	loader := func(ctx context.Context) (int, error) {
		loads++
		return 7, nil
	}

	got, err := GetWithCached(ctx, client, "answer", time.Minute, time.Second, isEmpty, marshal, unmarshal, loader)
	if err != nil || got != 7 {
		t.Fatalf("first read: got %d, %v", got, err)
	}

	// The second read must come from the cache.
	got, err = GetWithCached(ctx, client, "answer", time.Minute, time.Second, isEmpty, marshal, unmarshal, loader)
	if err != nil || got != 7 {
		t.Fatalf("second read: got %d, %v", got, err)
	}
	if loads != 1 {
		t.Fatalf("expected one backing load, got %d", loads)
	}
}

func TestGetWithCachedCachesAbsence(t *testing.T) {
	client, server := newTestCache(t)
	ctx := context.Background()
	isEmpty, marshal, unmarshal := intCacheArgs()

	loads := 0
	loader := func(ctx context.Context) (int, error) {
		loads++
		return 0, nil
	}

	for i := 0; i < 3; i++ {
		got, err := GetWithCached(ctx, client, "missing", time.Minute, time.Minute, isEmpty, marshal, unmarshal, loader)
		if err != nil || got != 0 {
			t.Fatalf("read %d: got %d, %v", i, got, err)
		}
	}
	if loads != 1 {
		t.Fatalf("absence should be cached after one load, got %d loads", loads)
	}
	if value, _ := server.Get("missing"); value != NullCacheValue {
		t.Fatalf("expected null sentinel in cache, got %q", value)
	}
}

func TestGetWithCachedPropagatesLoaderError(t *testing.T) {
	client, _ := newTestCache(t)
	isEmpty, marshal, unmarshal := intCacheArgs()

	boom := errors.New("backing store down")
	_, err := GetWithCached(context.Background(), client, "k", time.Minute, time.Second, isEmpty, marshal, unmarshal,
		func(ctx context.Context) (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
}

func TestUpdateCachedInvalidates(t *testing.T) {
	client, server := newTestCache(t)
	ctx := context.Background()
	if err := client.Set(ctx, "k", "stale", time.Minute); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := UpdateCached(ctx, client, "k", func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if server.Exists("k") {
		t.Fatal("key should be invalidated after update")
	}

	// A failed update leaves the cache alone.
	_ = client.Set(ctx, "k", "stale", time.Minute)
	err = UpdateCached(ctx, client, "k", func(ctx context.Context) error { return errors.New("no") })
	if err == nil {
		t.Fatal("expected update error")
	}
	if !server.Exists("k") {
		t.Fatal("failed update must not invalidate the cache")
	}
}

func TestTryLock(t *testing.T) {
	client, _ := newTestCache(t)
	ctx := context.Background()

	acquired, err := client.TryLock(ctx, "lock:1", time.Minute)
	if err != nil || !acquired {
		t.Fatalf("first acquire: %v %v", acquired, err)
	}
	acquired, err = client.TryLock(ctx, "lock:1", time.Minute)
	if err != nil || acquired {
		t.Fatalf("second acquire should fail: %v %v", acquired, err)
	}

	if err := client.Unlock(ctx, "lock:1"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	acquired, err = client.TryLock(ctx, "lock:1", time.Minute)
	if err != nil || !acquired {
		t.Fatalf("reacquire after unlock: %v %v", acquired, err)
	}
}

func TestJitterTTL(t *testing.T) {
	ttl := time.Minute
	for i := 0; i < 50; i++ {
		jittered := JitterTTL(ttl)
		if jittered > ttl || jittered < ttl-ttl/10 {
			t.Fatalf("jittered TTL %v out of range", jittered)
		}
	}
	if JitterTTL(0) != 0 {
		t.Fatal("zero TTL passes through")
	}
}
