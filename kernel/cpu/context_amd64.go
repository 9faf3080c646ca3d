package cpu

import (
	"unsafe"

	"github.com/LimitlessOS-official/Limitless-sub011/kernel"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/mm"
)

// Context captures the processor state of a kernel thread at the point it
// yielded: the full general-purpose register file, the instruction and
// stack pointers, the flags register and the page-table root that was
// active when the state was saved. Context records live in physical frames
// reached through the direct map so they stay valid across address space
// switches.
type Context struct {
	RAX, RBX, RCX, RDX uint64
	RSI, RDI, RBP      uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64
	RIP, RSP           uint64
	RFlags             uint64
	CR3                uint64
}

const (
	// rflagsKernelThread is the initial flags state for a kernel thread:
	// the always-one reserved bit plus the interrupt enable flag.
	rflagsKernelThread = 0x202
)

var (
	// ErrNilContext is returned by context operations that require a
	// non-nil context argument.
	ErrNilContext = &kernel.Error{Module: "cpu", Message: "context must not be nil"}

	activePDTFn      = ActivePDT
	allocContextFn   = allocContext
	switchContextFn  = switchContext
	restoreContextFn = restoreContext

	// switchScratch is a spill slot used by the context switch assembly
	// to save RAX before it is clobbered. Single-CPU only.
	switchScratch uint64
)

// allocContext reserves a physical frame for a context record and returns a
// zeroed direct-map pointer to it.
func allocContext() (*Context, *kernel.Error) {
	frame, err := mm.AllocFrame()
	if err != nil {
		return nil, err
	}

	ctx := (*Context)(mm.PhysToVirt(frame.Address()))
	*ctx = Context{}
	return ctx, nil
}

// FreeContext releases the physical frame backing a context record obtained
// from PrepareKernelThread or filled in lazily by SwitchContext.
func FreeContext(ctx *Context) *kernel.Error {
	if ctx == nil {
		return ErrNilContext
	}

	return mm.FreeFrame(mm.FrameFromAddress(mm.VirtToPhys(unsafe.Pointer(ctx))))
}

// PrepareKernelThread constructs a resumable context for a kernel thread
// that starts executing entry with arg as its argument on the given stack.
// stackTop is the address one past the highest usable stack byte; a zero
// sentinel return address is planted at the top so an accidental return
// from the entry point faults instead of running off into random memory.
func PrepareKernelThread(entry, arg, stackTop uintptr) (*Context, *kernel.Error) {
	ctx, err := allocContextFn()
	if err != nil {
		return nil, err
	}

	stackPtr := stackTop - uintptr(1<<mm.PointerShift)
	*(*uint64)(unsafe.Pointer(stackPtr)) = 0

	// The SysV ABI passes the first integer argument in RDI.
	ctx.RDI = uint64(arg)
	ctx.RIP = uint64(entry)
	ctx.RSP = uint64(stackPtr)
	ctx.RBP = 0
	ctx.RFlags = rflagsKernelThread
	ctx.CR3 = uint64(activePDTFn())

	return ctx, nil
}

// SwitchContext suspends the calling thread into *oldSlot and resumes the
// thread described by next. If *oldSlot is nil a fresh context record is
// allocated for it first; an allocation failure aborts the switch before
// any state is clobbered so the caller keeps running. Passing a nil oldSlot
// discards the current thread and never returns. Calling with both
// arguments nil is a no-op.
func SwitchContext(oldSlot **Context, next *Context) *kernel.Error {
	if next == nil {
		if oldSlot == nil {
			return nil
		}
		return ErrNilContext
	}

	if oldSlot == nil {
		restoreContextFn(next)
		return nil
	}

	if *oldSlot == nil {
		ctx, err := allocContextFn()
		if err != nil {
			return err
		}
		*oldSlot = ctx
	}

	switchContextFn(*oldSlot, next)
	return nil
}

// switchContext saves the caller's register state into old and restores
// next, resuming it at its saved instruction pointer. The call returns on
// old's stack when a future switch schedules old back in.
func switchContext(old, next *Context)

// restoreContext loads the register state from ctx and jumps to its saved
// instruction pointer. It never returns.
func restoreContext(ctx *Context)
