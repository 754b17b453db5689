package infra

import (
	"context"
	"sync"
	"time"

	"http-bridge/bridge/dispatch/domain"
)

type slotEntry struct {
	state     domain.SlotState
	cancelReq bool
	gen       uint64
	requestID string
	claimedAt time.Time
	req       domain.Request
	cancel    context.CancelFunc
}

type slotTable struct {
	mu       sync.Mutex
	slots    []slotEntry
	inFlight int
}

// NewSlotTable cria uma tabela fixa com capacidade `max`.
// A alocação é first-fit a partir do índice 0: slots baixos são reaproveitados primeiro.
func NewSlotTable(max int) domain.SlotTable {
	if max <= 0 {
		max = domain.DefaultCapacity
	}
	return &slotTable{slots: make([]slotEntry, max)}
}

func (t *slotTable) Claim(req domain.Request, requestID string) (int, uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.slots {
		s := &t.slots[i]
		if s.state != domain.SlotIdle {
			continue
		}
		s.gen++
		s.state = domain.SlotBusy
		s.cancelReq = false
		s.requestID = requestID
		s.claimedAt = time.Now()
		s.req = req
		s.cancel = nil
		t.inFlight++
		return i, s.gen, true
	}
	return domain.NoSlot, 0, false
}

func (t *slotTable) entry(index int, gen uint64) *slotEntry {
	if index < 0 || index >= len(t.slots) {
		return nil
	}
	s := &t.slots[index]
	if s.state == domain.SlotIdle || s.gen != gen {
		return nil
	}
	return s
}

func (t *slotTable) Start(index int, gen uint64, cancel context.CancelFunc) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.entry(index, gen)
	if s == nil || s.cancelReq || s.state != domain.SlotBusy {
		return false
	}
	s.state = domain.SlotRunning
	s.cancel = cancel
	return true
}

func (t *slotTable) RequestCancel(index int) (uint64, context.CancelFunc, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= len(t.slots) {
		return 0, nil, false
	}
	s := &t.slots[index]
	if s.state == domain.SlotIdle {
		return 0, nil, false
	}
	s.cancelReq = true
	return s.gen, s.cancel, true
}

func (t *slotTable) Resolve(index int, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.entry(index, gen)
	if s == nil || s.cancelReq || s.state == domain.SlotResolved {
		return false
	}
	s.state = domain.SlotResolved
	return true
}

func (t *slotTable) Release(index int, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.entry(index, gen)
	if s == nil {
		return false
	}
	t.reset(s)
	return true
}

func (t *slotTable) Reset(index int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= len(t.slots) {
		return false
	}
	s := &t.slots[index]
	if s.state == domain.SlotIdle {
		return false
	}
	t.reset(s)
	return true
}

// reset exige t.mu.
func (t *slotTable) reset(s *slotEntry) {
	if s.cancel != nil {
		s.cancel()
	}
	s.state = domain.SlotIdle
	s.cancelReq = false
	s.requestID = ""
	s.req = domain.Request{}
	s.cancel = nil
	t.inFlight--
}

func (t *slotTable) Snapshot(index int) (domain.Slot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= len(t.slots) {
		return domain.Slot{}, false
	}
	s := t.slots[index]
	return domain.Slot{
		Index:           index,
		State:           s.state,
		CancelRequested: s.cancelReq,
		Generation:      s.gen,
		RequestID:       s.requestID,
		ClaimedAt:       s.claimedAt,
		Request:         s.req,
	}, true
}

func (t *slotTable) Cap() int { return len(t.slots) }

func (t *slotTable) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inFlight
}
