package infra

import (
	"context"
	"errors"
	"sync"

	"http-bridge/bridge/dispatch/domain"
)

type Counters struct {
	Success   int64
	Failure   int64
	Cancelled int64
	Rejected  int64
}

func (c *Counters) add(o domain.Outcome) {
	switch o {
	case domain.OutcomeSuccess:
		c.Success++
	case domain.OutcomeFailure:
		c.Failure++
	case domain.OutcomeCancelled:
		c.Cancelled++
	case domain.OutcomeRejected:
		c.Rejected++
	}
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[string]Counters
	byHost  map[string]Counters

	trackHosts bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackHosts(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackHosts = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute: make(map[string]Counters),
		byHost:  make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := ev.Method + " " + ev.Host

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Outcome)
	c := s.byRoute[route]
	c.add(ev.Outcome)
	s.byRoute[route] = c
	if s.trackHosts && ev.Host != "" {
		h := s.byHost[ev.Host]
		h.add(ev.Outcome)
		s.byHost[ev.Host] = h
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byRoute))
	for k, v := range s.byRoute {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByHost() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byHost))
	for k, v := range s.byHost {
		out[k] = v
	}
	return out
}

// MultiStats repassa o evento para vários stores; erros são agregados.
type MultiStats []domain.StatsStore

func (m MultiStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
