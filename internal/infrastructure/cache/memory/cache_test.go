package memory

import (
	"context"
	"testing"
	"time"
)

func TestCacheExpiresEntries(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := New()
	c.now = func() time.Time { return now }

	if err := c.Set(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, _ := c.Get(context.Background(), "k")
	if !ok || string(got) != "v" {
		t.Fatalf("expected hit, got %q ok=%v", got, ok)
	}

	now = now.Add(time.Minute)
	if _, ok, _ := c.Get(context.Background(), "k"); ok {
		t.Fatalf("expected entry to expire")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry to be evicted")
	}
}

func TestCacheReturnsCopies(t *testing.T) {
	c := New()
	value := []byte("abc")
	_ = c.Set(context.Background(), "k", value, 0)
	value[0] = 'x'

	got, _, _ := c.Get(context.Background(), "k")
	got[1] = 'y'
	again, _, _ := c.Get(context.Background(), "k")
	if string(again) != "abc" {
		t.Fatalf("cache shares memory with callers: %q", again)
	}
}
