package infra

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"http-bridge/bridge/dispatch/domain"

	"golang.org/x/time/rate"
)

// Store é um cache de token-buckets (x/time/rate) por host de destino,
// com limpeza periódica dos hosts inativos.
type Store struct {
	mu           sync.Mutex
	entries      map[string]*storeEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type storeEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type StoreOption func(*Store)

func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.cleanupEvery = d }
}

func NewStore(rps float64, burst int, opts ...StoreOption) *Store {
	s := &Store{
		entries:      make(map[string]*storeEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) RPS() float64 { return float64(s.rps) }
func (s *Store) Burst() int   { return s.burst }

// Get implementa domain.LimiterStore.
func (s *Store) Get(key domain.Key) domain.Limiter {
	return s.GetString(string(key))
}

func (s *Store) GetString(key string) *rate.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &storeEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// RunJanitor limpa hosts inativos periodicamente até ctx encerrar.
func (s *Store) RunJanitor(ctx context.Context) error {
	if s.cleanupEvery <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	t := time.NewTicker(s.cleanupEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.Cleanup()
		}
	}
}

// RateLimitedTransport segura cada requisição no limiter do host antes de repassar.
// A espera respeita ctx: cancelar o slot também interrompe a espera.
type RateLimitedTransport struct {
	Next  domain.Transport
	Store domain.LimiterStore
}

func (t RateLimitedTransport) Do(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	if t.Store != nil {
		if lim := t.Store.Get(HostKey(req.URL)); lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return nil, err
			}
		}
	}
	return t.Next.Do(ctx, req)
}

// HostKey extrai o host (sem porta, minúsculo) da URL; URLs inválidas caem em "invalid".
func HostKey(raw string) domain.Key {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "invalid"
	}
	return domain.Key(strings.ToLower(u.Hostname()))
}
