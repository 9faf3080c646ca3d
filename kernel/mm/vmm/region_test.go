package vmm

import (
	"testing"

	"github.com/LimitlessOS-official/Limitless-sub011/kernel"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/mm"
)

func TestAllocFreeRegionRoundtrip(t *testing.T) {
	arena, teardown := setupTestEnv(t)
	defer teardown()

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	liveBeforeAlloc := arena.live()

	virtAddr := uintptr(0x50000000)
	startPage, err := AllocRegion(KernelSpace(), virtAddr, 4*mm.PageSize, FlagRW)
	if err != nil {
		t.Fatal(err)
	}
	if startPage != mm.PageFromAddress(virtAddr) {
		t.Fatalf("expected the region to start at the page containing 0x%x; got page %d", virtAddr, startPage)
	}

	// Each page must be backed by its own frame.
	seenFrames := make(map[uintptr]bool)
	for pageIndex := uintptr(0); pageIndex < 4; pageIndex++ {
		pageAddr := virtAddr + pageIndex*mm.PageSize
		physAddr, err := Translate(KernelSpace(), pageAddr)
		if err != nil {
			t.Fatalf("page %d: %v", pageIndex, err)
		}
		if seenFrames[physAddr] {
			t.Fatalf("page %d: frame at 0x%x backs more than one page", pageIndex, physAddr)
		}
		seenFrames[physAddr] = true
	}

	if err = FreeRegion(KernelSpace(), virtAddr, 4*mm.PageSize); err != nil {
		t.Fatal(err)
	}

	for pageIndex := uintptr(0); pageIndex < 4; pageIndex++ {
		if IsMapped(KernelSpace(), virtAddr+pageIndex*mm.PageSize) {
			t.Fatalf("expected page %d to be unmapped after FreeRegion", pageIndex)
		}
	}

	// The data frames return to the allocator; the intermediate tables
	// created for the range are kept for reuse.
	if got := arena.live(); got != liveBeforeAlloc+3 {
		t.Fatalf("expected only the 3 intermediate tables to remain; live frames %d -> %d", liveBeforeAlloc, got)
	}
}

func TestAllocRegionAlignsRequest(t *testing.T) {
	_, teardown := setupTestEnv(t)
	defer teardown()

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	// A request that is neither page-aligned nor a page-size multiple is
	// widened to cover every page it touches.
	virtAddr := uintptr(0x50000800)
	if _, err := AllocRegion(KernelSpace(), virtAddr, mm.PageSize, FlagRW); err != nil {
		t.Fatal(err)
	}

	if !IsMapped(KernelSpace(), 0x50000000) || !IsMapped(KernelSpace(), 0x50001000) {
		t.Fatal("expected both pages touched by the request to be mapped")
	}
	if IsMapped(KernelSpace(), 0x50002000) {
		t.Fatal("expected pages past the widened range to stay unmapped")
	}
}

func TestAllocRegionRollbackOnAllocFailure(t *testing.T) {
	arena, teardown := setupTestEnv(t)
	defer teardown()

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	liveBeforeAlloc := arena.live()

	// The first page costs 1 data frame plus 3 intermediate tables; the
	// subsequent pages cost 1 data frame each. Failing the 6th allocation
	// aborts the region on its 3rd page.
	arena.failAt = arena.allocs + 6
	if _, err := AllocRegion(KernelSpace(), 0x50000000, 4*mm.PageSize, FlagRW); err != errArenaExhausted {
		t.Fatalf("expected the frame allocation failure to propagate; got %v", err)
	}

	for pageIndex := uintptr(0); pageIndex < 4; pageIndex++ {
		if IsMapped(KernelSpace(), 0x50000000+pageIndex*mm.PageSize) {
			t.Fatalf("expected page %d to be rolled back", pageIndex)
		}
	}

	// Only the intermediate tables survive the rollback.
	if got := arena.live(); got != liveBeforeAlloc+3 {
		t.Fatalf("expected the data frames to be released by the rollback; live frames %d -> %d", liveBeforeAlloc, got)
	}
}

func TestAllocRegionRollbackOnMapFailure(t *testing.T) {
	arena, teardown := setupTestEnv(t)
	defer teardown()

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	errInjected := &kernel.Error{Module: "vmm_test", Message: "injected mapping failure"}

	mapCalls := 0
	mapFn = func(s *AddressSpace, page mm.Page, frame mm.Frame, flags PageTableEntryFlag) *kernel.Error {
		if mapCalls++; mapCalls == 3 {
			return errInjected
		}
		return Map(s, page, frame, flags)
	}
	defer func() { mapFn = Map }()

	liveBeforeAlloc := arena.live()
	if _, err := AllocRegion(KernelSpace(), 0x50000000, 4*mm.PageSize, FlagRW); err != errInjected {
		t.Fatalf("expected the injected mapping failure to propagate; got %v", err)
	}

	for pageIndex := uintptr(0); pageIndex < 4; pageIndex++ {
		if IsMapped(KernelSpace(), 0x50000000+pageIndex*mm.PageSize) {
			t.Fatalf("expected page %d to be rolled back", pageIndex)
		}
	}
	if got := arena.live(); got != liveBeforeAlloc+3 {
		t.Fatalf("expected the data frames to be released by the rollback; live frames %d -> %d", liveBeforeAlloc, got)
	}
}

func TestRegionErrors(t *testing.T) {
	_, teardown := setupTestEnv(t)
	defer teardown()

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	if _, err := AllocRegion(nil, 0x50000000, mm.PageSize, FlagRW); err != ErrNilAddressSpace {
		t.Fatalf("expected ErrNilAddressSpace; got %v", err)
	}
	if err := FreeRegion(nil, 0x50000000, mm.PageSize); err != ErrNilAddressSpace {
		t.Fatalf("expected ErrNilAddressSpace; got %v", err)
	}

	// Freeing a range that was never allocated is a benign no-op.
	if err := FreeRegion(KernelSpace(), 0x50000000, 4*mm.PageSize); err != nil {
		t.Fatalf("expected freeing an unmapped region to be a no-op; got %v", err)
	}
}
