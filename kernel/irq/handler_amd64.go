package irq

import (
	"github.com/LimitlessOS-official/Limitless-sub011/kernel"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/kfmt"
)

// ExceptionNum identifies one of the CPU exception vectors.
type ExceptionNum uint8

const (
	// DivideByZero occurs when dividing any number by 0 using the DIV or
	// IDIV instruction.
	DivideByZero = ExceptionNum(0)

	// NMI occurs for non-maskable hardware interrupts such as RAM errors.
	NMI = ExceptionNum(2)

	// Breakpoint occurs when the CPU executes the INT3 instruction.
	Breakpoint = ExceptionNum(3)

	// InvalidOpcode occurs when the CPU attempts to execute an
	// instruction it does not recognize.
	InvalidOpcode = ExceptionNum(6)

	// DoubleFault occurs when an exception is raised while an earlier
	// exception was still being delivered.
	DoubleFault = ExceptionNum(8)

	// GPFException occurs when a general protection violation is
	// detected, for example a write to a read-only segment.
	GPFException = ExceptionNum(13)

	// PageFaultException occurs when a virtual memory access cannot be
	// satisfied by the active page tables.
	PageFaultException = ExceptionNum(14)

	// MachineCheck occurs when the CPU detects an internal hardware
	// error.
	MachineCheck = ExceptionNum(18)

	// exceptionCount is the number of exception vectors reserved by the
	// CPU at the bottom of the IDT.
	exceptionCount = 32

	// numIRQLines is the number of hardware interrupt lines provided by
	// the two cascaded legacy PICs.
	numIRQLines = 16

	// irqBaseVector is the IDT vector that IRQ line 0 is remapped to.
	// Lines must not overlap the exception vectors.
	irqBaseVector = 32
)

// ExceptionHandler is a function that handles an exception that does not
// push an error code.
type ExceptionHandler func(frame *Frame, regs *Regs)

// ExceptionHandlerWithCode is a function that handles an exception for
// which the CPU pushes an extra error code.
type ExceptionHandlerWithCode func(errorCode uint64, frame *Frame, regs *Regs)

// IRQHandler is a function that services a hardware interrupt line.
type IRQHandler func(frame *Frame, regs *Regs)

// SyscallHandler receives the register state of a system call; by
// convention the call number is in RAX and the arguments in the remaining
// registers. The returned value is placed into RAX before returning to the
// caller.
type SyscallHandler func(regs *Regs) uint64

var (
	// ErrUnhandledException is used to panic when an exception occurs for
	// which no handler is registered.
	ErrUnhandledException = &kernel.Error{Module: "irq", Message: "unhandled exception"}

	exceptionHandlers     [exceptionCount]ExceptionHandler
	exceptionCodeHandlers [exceptionCount]ExceptionHandlerWithCode
	irqHandlers           [numIRQLines]IRQHandler
	syscallHandler        SyscallHandler

	panicFn = kfmt.Panic
)

// unknownSyscallRet is returned in RAX for system call numbers that no
// handler claimed.
const unknownSyscallRet = ^uint64(0)

// Init prepares the interrupt sub-system for use. The legacy PICs are
// remapped clear of the exception vectors with every line masked; lines are
// unmasked individually as their drivers register handlers.
func Init() {
	picInit()
}

// HandleException registers a handler for an exception that does not push
// an error code, replacing any previous handler for the same vector.
func HandleException(num ExceptionNum, handler ExceptionHandler) {
	if num >= exceptionCount {
		return
	}
	exceptionHandlers[num] = handler
}

// HandleExceptionWithCode registers a handler for an exception that pushes
// an error code, replacing any previous handler for the same vector.
func HandleExceptionWithCode(num ExceptionNum, handler ExceptionHandlerWithCode) {
	if num >= exceptionCount {
		return
	}
	exceptionCodeHandlers[num] = handler
}

// HandleIRQ registers a handler for a hardware interrupt line, replacing
// any previous handler for the same line.
func HandleIRQ(line uint8, handler IRQHandler) {
	if line >= numIRQLines {
		return
	}
	irqHandlers[line] = handler
}

// HandleSyscall registers the system call handler.
func HandleSyscall(handler SyscallHandler) {
	syscallHandler = handler
}

// DispatchException routes an exception without an error code to its
// registered handler. Exceptions with no handler are fatal.
func DispatchException(num ExceptionNum, frame *Frame, regs *Regs) {
	if num < exceptionCount {
		if handler := exceptionHandlers[num]; handler != nil {
			handler(frame, regs)
			return
		}
	}

	unhandledException(num, 0, frame, regs)
}

// DispatchExceptionWithCode routes an exception that pushed an error code
// to its registered handler. Exceptions with no handler are fatal.
func DispatchExceptionWithCode(num ExceptionNum, errorCode uint64, frame *Frame, regs *Regs) {
	if num < exceptionCount {
		if handler := exceptionCodeHandlers[num]; handler != nil {
			handler(errorCode, frame, regs)
			return
		}
	}

	unhandledException(num, errorCode, frame, regs)
}

// DispatchIRQ routes a hardware interrupt to the handler registered for its
// line. Interrupts on lines with no handler are dropped. In both cases the
// PICs receive an end-of-interrupt so the line can fire again.
func DispatchIRQ(line uint8, frame *Frame, regs *Regs) {
	if line < numIRQLines {
		if handler := irqHandlers[line]; handler != nil {
			handler(frame, regs)
		}
	}

	ackIRQFn(line)
}

// DispatchSyscall routes a system call to the registered handler and places
// its return value in RAX. Unknown calls report unknownSyscallRet instead
// of faulting so user code can probe for optional calls.
func DispatchSyscall(regs *Regs) {
	if syscallHandler == nil {
		regs.RAX = unknownSyscallRet
		return
	}

	regs.RAX = syscallHandler(regs)
}

func unhandledException(num ExceptionNum, errorCode uint64, frame *Frame, regs *Regs) {
	kfmt.Printf("\nUnhandled exception %d (error code %d)\n\nRegisters:\n", uint8(num), errorCode)
	regs.Print()
	frame.Print()

	panicFn(ErrUnhandledException)
}
