package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/wagner/internal/providers"
	"golang.org/x/time/rate"
)

type countingProvider struct {
	calls int
	out   string
	err   error
}

func (c *countingProvider) ExtractText(ctx context.Context, config providers.Config) (string, error) {
	c.calls++
	return c.out, c.err
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "cache", "responses.db"))
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreGetPut(t *testing.T) {
	store := openTestStore(t)

	if _, ok, err := store.Get("missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := store.Put("k", "v"); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	v, ok, err := store.Get("k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("expected hit v, got %q ok=%v err=%v", v, ok, err)
	}
}

func TestProviderMemoizes(t *testing.T) {
	store := openTestStore(t)
	next := &countingProvider{out: "Erste Seite"}
	p := Wrap(next, store)

	cfg := providers.Config{Model: "gpt-4o", Prompt: "ocr", Images: []providers.Image{{MIMEType: "image/png", Data: []byte{1, 2, 3}}}}
	for i := 0; i < 3; i++ {
		out, err := p.ExtractText(context.Background(), cfg)
		if err != nil || out != "Erste Seite" {
			t.Fatalf("unexpected result %q, %v", out, err)
		}
	}
	if next.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", next.calls)
	}

	cfg.Images[0].Data = []byte{9}
	if _, err := p.ExtractText(context.Background(), cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.calls != 2 {
		t.Errorf("different image should miss the cache, calls=%d", next.calls)
	}
}

func TestCacheHitsSkipThrottle(t *testing.T) {
	store := openTestStore(t)
	next := &countingProvider{out: "Seite"}
	// one token, then nothing for an hour
	p := Wrap(providers.Throttle(next, rate.NewLimiter(rate.Every(time.Hour), 1)), store)

	cfg := providers.Config{Prompt: "ocr", Images: []providers.Image{{MIMEType: "image/png", Data: []byte{4, 2}}}}
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		out, err := p.ExtractText(ctx, cfg)
		cancel()
		if err != nil || out != "Seite" {
			t.Fatalf("call %d: unexpected result %q, %v", i, out, err)
		}
	}
	if next.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", next.calls)
	}
}

func TestProviderDoesNotCacheErrors(t *testing.T) {
	store := openTestStore(t)
	next := &countingProvider{err: errors.New("upstream down")}
	p := Wrap(next, store)

	cfg := providers.Config{Prompt: "p"}
	for i := 0; i < 2; i++ {
		if _, err := p.ExtractText(context.Background(), cfg); err == nil {
			t.Fatal("expected error")
		}
	}
	if next.calls != 2 {
		t.Errorf("errors must not be cached, calls=%d", next.calls)
	}
}

func TestWrapNilStore(t *testing.T) {
	next := &countingProvider{}
	if got := Wrap(next, nil); got != providers.Provider(next) {
		t.Errorf("expected unwrapped provider when store is nil")
	}
}

func TestKeyDependsOnOptions(t *testing.T) {
	a := Key(providers.Config{Prompt: "p", JSON: true})
	b := Key(providers.Config{Prompt: "p", JSON: false})
	if a == b {
		t.Errorf("JSON flag should change the key")
	}
}
