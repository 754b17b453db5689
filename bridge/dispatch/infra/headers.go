package infra

import (
	"sync"

	"http-bridge/bridge/dispatch/domain"
)

type headerTable struct {
	mu      sync.Mutex
	pending map[string]string
}

// NewHeaderTable cria a tabela de headers pendentes (consumida e limpa a cada Send).
func NewHeaderTable() domain.HeaderTable {
	return &headerTable{pending: make(map[string]string)}
}

func (h *headerTable) Add(key, value string) {
	h.mu.Lock()
	h.pending[key] = value
	h.mu.Unlock()
}

func (h *headerTable) AddPairs(kv []string) error {
	if len(kv)%2 != 0 {
		return domain.ErrOddHeaderPairs
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := 0; i < len(kv); i += 2 {
		h.pending[kv[i]] = kv[i+1]
	}
	return nil
}

func (h *headerTable) Take() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.pending
	h.pending = make(map[string]string, len(out))
	return out
}

func (h *headerTable) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}
