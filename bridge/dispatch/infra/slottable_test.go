package infra

import (
	"testing"

	"http-bridge/bridge/dispatch/domain"
)

func TestSlotTable_ClaimIsFirstFit(t *testing.T) {
	tbl := NewSlotTable(4)

	for want := 0; want < 4; want++ {
		got, _, ok := tbl.Claim(domain.Request{URL: "http://x/"}, "id")
		if !ok || got != want {
			t.Fatalf("expected slot %d, got %d (ok=%v)", want, got, ok)
		}
	}
	if _, _, ok := tbl.Claim(domain.Request{}, "id"); ok {
		t.Fatalf("expected claim on full table to fail")
	}

	gen, _, _ := tbl.RequestCancel(1)
	if !tbl.Release(1, gen) {
		t.Fatalf("expected release of slot 1")
	}
	got, _, ok := tbl.Claim(domain.Request{}, "id")
	if !ok || got != 1 {
		t.Fatalf("expected lowest free slot 1 to be reused, got %d", got)
	}
}

func TestSlotTable_DefaultCapacity(t *testing.T) {
	tbl := NewSlotTable(0)
	if tbl.Cap() != domain.DefaultCapacity {
		t.Fatalf("expected capacity %d, got %d", domain.DefaultCapacity, tbl.Cap())
	}

	for i := 0; i < domain.DefaultCapacity; i++ {
		if _, _, ok := tbl.Claim(domain.Request{}, ""); !ok {
			t.Fatalf("expected claim %d to succeed", i)
		}
	}
	if idx, _, ok := tbl.Claim(domain.Request{}, ""); ok || idx != domain.NoSlot {
		t.Fatalf("expected 129th claim to return NoSlot, got %d", idx)
	}
	if tbl.InFlight() != domain.DefaultCapacity {
		t.Fatalf("expected in-flight %d, got %d", domain.DefaultCapacity, tbl.InFlight())
	}
}

func TestSlotTable_StaleGenerationCannotRelease(t *testing.T) {
	tbl := NewSlotTable(1)

	idx, oldGen, _ := tbl.Claim(domain.Request{}, "a")
	if !tbl.Reset(idx) {
		t.Fatalf("expected reset of busy slot")
	}
	_, newGen, ok := tbl.Claim(domain.Request{}, "b")
	if !ok || newGen == oldGen {
		t.Fatalf("expected a new generation after reclaim")
	}

	if tbl.Release(idx, oldGen) {
		t.Fatalf("expected stale release to be ignored")
	}
	if tbl.Resolve(idx, oldGen) {
		t.Fatalf("expected stale resolve to be ignored")
	}
	snap, _ := tbl.Snapshot(idx)
	if snap.State != domain.SlotBusy || snap.RequestID != "b" {
		t.Fatalf("expected slot to stay busy with request b, got %s/%q", snap.State, snap.RequestID)
	}
}

func TestSlotTable_CancelBlocksStartAndResolve(t *testing.T) {
	tbl := NewSlotTable(2)

	idx, gen, _ := tbl.Claim(domain.Request{}, "")
	if _, _, ok := tbl.RequestCancel(idx); !ok {
		t.Fatalf("expected cancel of busy slot to succeed")
	}
	if tbl.Start(idx, gen, func() {}) {
		t.Fatalf("expected start to refuse a cancelled slot")
	}
	if tbl.Resolve(idx, gen) {
		t.Fatalf("expected resolve to refuse a cancelled slot")
	}

	if _, _, ok := tbl.RequestCancel(1); ok {
		t.Fatalf("expected cancel of idle slot to fail")
	}
	if _, _, ok := tbl.RequestCancel(-1); ok {
		t.Fatalf("expected cancel of -1 to fail")
	}
	if _, _, ok := tbl.RequestCancel(99); ok {
		t.Fatalf("expected cancel out of range to fail")
	}
}

func TestSlotTable_ResolveOnce(t *testing.T) {
	tbl := NewSlotTable(1)

	idx, gen, _ := tbl.Claim(domain.Request{}, "")
	if !tbl.Start(idx, gen, func() {}) {
		t.Fatalf("expected start")
	}
	if !tbl.Resolve(idx, gen) {
		t.Fatalf("expected first resolve")
	}
	if tbl.Resolve(idx, gen) {
		t.Fatalf("expected second resolve to fail")
	}
	// cancel after resolve still succeeds but does not undo the resolution
	if _, _, ok := tbl.RequestCancel(idx); !ok {
		t.Fatalf("expected cancel of resolved slot to return true")
	}
	snap, _ := tbl.Snapshot(idx)
	if snap.State != domain.SlotResolved {
		t.Fatalf("expected resolved state, got %s", snap.State)
	}
}

func TestSlotTable_ReleaseInvokesCancel(t *testing.T) {
	tbl := NewSlotTable(1)

	idx, gen, _ := tbl.Claim(domain.Request{}, "")
	called := false
	tbl.Start(idx, gen, func() { called = true })
	tbl.Release(idx, gen)
	if !called {
		t.Fatalf("expected release to invoke the stored cancel func")
	}
	if tbl.InFlight() != 0 {
		t.Fatalf("expected 0 in flight, got %d", tbl.InFlight())
	}
}
