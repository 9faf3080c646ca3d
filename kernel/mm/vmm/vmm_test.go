package vmm

import (
	"testing"
	"unsafe"

	"github.com/LimitlessOS-official/Limitless-sub011/kernel"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/irq"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/mm"
)

var errArenaExhausted = &kernel.Error{Module: "vmm_test", Message: "arena exhausted"}

// testArena hands out page-aligned host memory as physical frames and
// registers an identity physical mapping so the page-table walker can edit
// the tables as ordinary memory.
type testArena struct {
	t      *testing.T
	bufs   [][]byte
	refs   map[mm.Frame]int
	allocs int

	// failAt makes the n-th allocation (1-based) fail; 0 disables.
	failAt int
}

func (a *testArena) allocFrame() (mm.Frame, *kernel.Error) {
	a.allocs++
	if a.failAt != 0 && a.allocs == a.failAt {
		return mm.InvalidFrame, errArenaExhausted
	}

	buf := make([]byte, 2*mm.PageSize)
	a.bufs = append(a.bufs, buf)

	alignedAddr := (uintptr(unsafe.Pointer(&buf[0])) + mm.PageSize - 1) &^ (mm.PageSize - 1)
	frame := mm.FrameFromAddress(alignedAddr)
	a.refs[frame] = 1
	return frame, nil
}

func (a *testArena) releaseFrame(frame mm.Frame) *kernel.Error {
	if a.refs[frame] == 0 {
		a.t.Errorf("releaseFrame: frame %d is not allocated", frame)
		return errArenaExhausted
	}

	a.refs[frame]--
	if a.refs[frame] == 0 {
		delete(a.refs, frame)
	}
	return nil
}

// live returns the number of frames currently held by the arena's users.
func (a *testArena) live() int {
	return len(a.refs)
}

// setupTestEnv wires a fresh arena into the mm hooks, stubs out the
// hardware seams and resets the manager state. The returned teardown
// function must be deferred by the caller.
func setupTestEnv(t *testing.T) (*testArena, func()) {
	arena := &testArena{t: t, refs: make(map[mm.Frame]int)}

	mm.SetFrameAllocator(arena.allocFrame)
	mm.SetFrameReleaser(arena.releaseFrame)
	origToVirt, origToPhys := mm.SetPhysMapping(
		func(physAddr uintptr) unsafe.Pointer { return unsafe.Pointer(physAddr) },
		func(p unsafe.Pointer) uintptr { return uintptr(p) },
	)

	origSwitchPDT, origFlushTLBEntry := switchPDTFn, flushTLBEntryFn
	switchPDTFn = func(uintptr) {}
	flushTLBEntryFn = func(uintptr) {}

	kernelSpace, activeSpace, spaceList = nil, nil, nil

	return arena, func() {
		switchPDTFn, flushTLBEntryFn = origSwitchPDT, origFlushTLBEntry
		mm.SetFrameAllocator(nil)
		mm.SetFrameReleaser(nil)
		mm.SetPhysMapping(origToVirt, origToPhys)
		kernelSpace, activeSpace, spaceList = nil, nil, nil
	}
}

func TestInitIsIdempotent(t *testing.T) {
	arena, teardown := setupTestEnv(t)
	defer teardown()

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	if got := KernelSpace(); got == nil || got != Current() {
		t.Fatal("expected the kernel space to be created and active after Init")
	}

	liveAfterInit := arena.live()
	if err := Init(); err != nil {
		t.Fatal(err)
	}

	if got := arena.live(); got != liveAfterInit {
		t.Fatalf("expected a second Init call to allocate nothing; live frames %d -> %d", liveAfterInit, got)
	}
}

func TestPageFaultHandlerPanics(t *testing.T) {
	_, teardown := setupTestEnv(t)
	defer teardown()

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	var panicked *kernel.Error
	origPanic, origReadCR2 := panicFn, readCR2Fn
	panicFn = func(e interface{}) { panicked, _ = e.(*kernel.Error) }
	readCR2Fn = func() uint64 { return 0xdeadc0de }
	defer func() {
		panicFn, readCR2Fn = origPanic, origReadCR2
	}()

	var (
		frame irq.Frame
		regs  irq.Regs
	)

	for _, errorCode := range []uint64{0, 1, 2, 3} {
		panicked = nil
		pageFaultHandler(errorCode, &frame, &regs)
		if panicked != ErrUnrecoverableFault {
			t.Errorf("error code %d: expected the page fault handler to panic with ErrUnrecoverableFault", errorCode)
		}
	}

	panicked = nil
	generalProtectionFaultHandler(0, &frame, &regs)
	if panicked != ErrUnrecoverableFault {
		t.Error("expected the GPF handler to panic with ErrUnrecoverableFault")
	}
}
