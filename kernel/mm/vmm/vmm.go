package vmm

import (
	"github.com/LimitlessOS-official/Limitless-sub011/kernel"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/cpu"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/irq"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/kfmt"
)

var (
	// ErrUnrecoverableFault is reported when a memory access fault cannot
	// be resolved by the virtual memory manager.
	ErrUnrecoverableFault = &kernel.Error{Module: "vmm", Message: "unrecoverable fault while accessing memory address"}

	readCR2Fn = cpu.ReadCR2
	panicFn   = kfmt.Panic
)

// Init sets up the virtual memory manager. It creates the kernel address
// space, marks it active and installs the memory-related fault handlers.
// The MMU keeps using the boot page tables until the caller switches to the
// kernel space via SwitchTo.
func Init() *kernel.Error {
	if kernelSpace != nil {
		return nil
	}

	root, err := allocTable()
	if err != nil {
		return err
	}

	kernelSpace = &AddressSpace{root: root}
	spaceList = kernelSpace
	activeSpace = kernelSpace

	irq.HandleExceptionWithCode(irq.PageFaultException, pageFaultHandler)
	irq.HandleExceptionWithCode(irq.GPFException, generalProtectionFaultHandler)
	return nil
}

func pageFaultHandler(errorCode uint64, frame *irq.Frame, regs *irq.Regs) {
	faultAddress := uintptr(readCR2Fn())

	kfmt.Printf("\nPage fault while accessing address: 0x%16x\nReason: ", faultAddress)
	switch {
	case errorCode == 0:
		kfmt.Printf("read from non-present page")
	case errorCode&1 == 0 && errorCode&2 == 2:
		kfmt.Printf("write to non-present page")
	case errorCode&1 == 1 && errorCode&2 == 0:
		kfmt.Printf("read protection error")
	case errorCode&1 == 1 && errorCode&2 == 2:
		kfmt.Printf("write protection error")
	}

	kfmt.Printf("\n\nRegisters:\n")
	regs.Print()
	frame.Print()

	panicFn(ErrUnrecoverableFault)
}

func generalProtectionFaultHandler(_ uint64, frame *irq.Frame, regs *irq.Regs) {
	kfmt.Printf("\nGeneral protection fault while accessing address: 0x%x\n", uintptr(readCR2Fn()))
	kfmt.Printf("Registers:\n")
	regs.Print()
	frame.Print()

	panicFn(ErrUnrecoverableFault)
}
