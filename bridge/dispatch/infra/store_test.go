package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"http-bridge/bridge/dispatch/domain"
)

func TestStore_GetSameKeyReturnsSameLimiter(t *testing.T) {
	s := NewStore(10, 1)

	l1 := s.Get(domain.Key("k"))
	l2 := s.Get(domain.Key("k"))
	if l1 != l2 {
		t.Fatalf("expected same limiter pointer for same key")
	}
}

func TestStore_LowBurstRejectsSecondImmediateAllow(t *testing.T) {
	s := NewStore(0.02, 1)

	lim := s.GetString("k")
	if !lim.Allow() {
		t.Fatalf("expected first Allow to be true")
	}
	if lim.Allow() {
		t.Fatalf("expected second immediate Allow to be false (burst=1)")
	}
}

func TestStore_CleanupRemovesIdleEntries(t *testing.T) {
	s := NewStore(10, 1, WithIdleTTL(2*time.Millisecond), WithCleanupEvery(0))

	before := s.Get(domain.Key("k"))
	time.Sleep(4 * time.Millisecond)

	s.Cleanup()

	after := s.Get(domain.Key("k"))
	if before == after {
		t.Fatalf("expected limiter to be recreated after cleanup")
	}
}

func TestHostKey(t *testing.T) {
	cases := map[string]domain.Key{
		"http://Example.COM:8080/x": "example.com",
		"https://api.test/":         "api.test",
		"not a url":                 "invalid",
		"":                          "invalid",
	}
	for in, want := range cases {
		if got := HostKey(in); got != want {
			t.Fatalf("HostKey(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestRateLimitedTransport_WaitRespectsContext(t *testing.T) {
	s := NewStore(0.01, 1)
	calls := 0
	tr := RateLimitedTransport{
		Next: domain.TransportFunc(func(context.Context, *domain.Request) (*domain.Response, error) {
			calls++
			return &domain.Response{StatusCode: 200}, nil
		}),
		Store: s,
	}
	req := &domain.Request{URL: "http://host.test/a", Method: domain.MethodGet}

	if _, err := tr.Do(context.Background(), req); err != nil {
		t.Fatalf("expected first request to pass, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.Do(ctx, req)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected next transport to be called once, got %d", calls)
	}
}
