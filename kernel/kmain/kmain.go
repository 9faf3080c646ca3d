// Package kmain contains the kernel's Go entrypoint. The assembly boot
// glue jumps here after setting up a minimal environment: 64-bit long mode
// with the bootloader's identity mapping still active, a valid stack and
// the IDT vectors funneled into the irq dispatchers.
package kmain

import (
	"unsafe"

	"github.com/LimitlessOS-official/Limitless-sub011/kernel/cpu"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/irq"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/kfmt"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/mm"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/mm/pmm"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/mm/vmm"
)

const (
	// idleStackSize is the stack reserved for the idle thread.
	idleStackSize = 4 * mm.PageSize

	// idleStackBase is the kernel virtual address of the idle thread
	// stack region.
	idleStackBase = uintptr(0xffffc00000000000)

	// timerFrequency is the tick rate programmed into the PIT.
	timerFrequency = 100
)

// timerTicks counts timer interrupts since boot.
var timerTicks uint64

// Kmain is the kernel entrypoint. It receives the boundaries of the
// physical memory region that the bootloader reports as usable RAM,
// brings up the memory managers and the interrupt sub-system and then
// hands the CPU over to the idle thread. Kmain never returns.
func Kmain(memStart, memSize uintptr) {
	cpu.Init()

	info, _ := cpu.InfoFor(cpu.CurrentID())
	kfmt.Printf("booting on %s (family %x model %x, %d MHz)\n",
		info.Brand, info.Family, info.Model, info.FrequencyMHz)

	if err := pmm.Init(memStart, memSize); err != nil {
		kfmt.Panic(err)
	}

	if err := vmm.Init(); err != nil {
		kfmt.Panic(err)
	}

	// Build the kernel's direct map of the managed physical region. The
	// page-table edits themselves go through mm.PhysToVirt which still
	// resolves to the bootloader's identity mapping at this point; the
	// identity mapping stays usable until the switch below.
	kernelSpace := vmm.KernelSpace()
	for physAddr := memStart; physAddr < memStart+memSize; physAddr += mm.PageSize {
		page := mm.PageFromAddress(mm.DirectMapOffset + physAddr)
		if err := vmm.Map(kernelSpace, page, mm.FrameFromAddress(physAddr), vmm.FlagRW|vmm.FlagGlobal|vmm.FlagNoExecute); err != nil {
			kfmt.Panic(err)
		}
	}

	if err := vmm.SwitchTo(kernelSpace); err != nil {
		kfmt.Panic(err)
	}

	// The switch above discarded the bootloader tables together with the
	// identity mapping; from here on physical memory is reached through
	// the direct map built above.
	mm.SetPhysMapping(
		func(physAddr uintptr) unsafe.Pointer { return unsafe.Pointer(physAddr + mm.DirectMapOffset) },
		func(p unsafe.Pointer) uintptr { return uintptr(p) - mm.DirectMapOffset },
	)

	irq.Init()
	irq.HandleIRQ(irq.TimerIRQLine, timerIRQHandler)
	if err := irq.SetPeriodicTimer(timerFrequency); err != nil {
		kfmt.Panic(err)
	}
	irq.UnmaskIRQ(irq.TimerIRQLine)

	totalPages, freePages := pmm.Stats()
	kfmt.Printf("physical memory: %d/%d pages free\n", freePages, totalPages)

	startIdleThread()
}

func timerIRQHandler(_ *irq.Frame, _ *irq.Regs) {
	timerTicks++
}

// startIdleThread carves out a stack for the idle thread and switches to
// it, discarding the boot stack. It never returns.
func startIdleThread() {
	if _, err := vmm.AllocRegion(vmm.KernelSpace(), idleStackBase, idleStackSize, vmm.FlagRW|vmm.FlagNoExecute); err != nil {
		kfmt.Panic(err)
	}

	ctx, err := cpu.PrepareKernelThread(funcPC(idleThread), 0, idleStackBase+idleStackSize)
	if err != nil {
		kfmt.Panic(err)
	}

	cpu.SwitchContext(nil, ctx)
}

func idleThread(_ uintptr) {
	for {
		cpu.WaitForInterrupt()
	}
}

// funcPC returns the entry address of a Go function value.
func funcPC(fn func(uintptr)) uintptr {
	return **(**uintptr)(unsafe.Pointer(&fn))
}
