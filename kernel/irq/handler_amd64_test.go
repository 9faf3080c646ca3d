package irq

import (
	"testing"

	"github.com/LimitlessOS-official/Limitless-sub011/kernel"
)

func TestDispatchException(t *testing.T) {
	var (
		gotFrame *Frame
		gotRegs  *Regs
	)
	HandleException(DivideByZero, func(frame *Frame, regs *Regs) {
		gotFrame, gotRegs = frame, regs
	})
	defer HandleException(DivideByZero, nil)

	var (
		frame Frame
		regs  Regs
	)
	DispatchException(DivideByZero, &frame, &regs)

	if gotFrame != &frame || gotRegs != &regs {
		t.Fatal("expected the registered handler to receive the frame and register state")
	}
}

func TestDispatchExceptionWithCode(t *testing.T) {
	var gotCode uint64
	HandleExceptionWithCode(PageFaultException, func(errorCode uint64, frame *Frame, regs *Regs) {
		gotCode = errorCode
	})
	defer HandleExceptionWithCode(PageFaultException, nil)

	var (
		frame Frame
		regs  Regs
	)
	DispatchExceptionWithCode(PageFaultException, 0xbadc0de, &frame, &regs)

	if gotCode != 0xbadc0de {
		t.Fatalf("expected the handler to receive error code 0xbadc0de; got 0x%x", gotCode)
	}
}

func TestUnhandledExceptionPanics(t *testing.T) {
	var panicked *kernel.Error
	origPanic := panicFn
	panicFn = func(e interface{}) { panicked, _ = e.(*kernel.Error) }
	defer func() { panicFn = origPanic }()

	var (
		frame Frame
		regs  Regs
	)

	DispatchException(InvalidOpcode, &frame, &regs)
	if panicked != ErrUnhandledException {
		t.Fatal("expected an exception without a handler to panic")
	}

	panicked = nil
	DispatchExceptionWithCode(DoubleFault, 0, &frame, &regs)
	if panicked != ErrUnhandledException {
		t.Fatal("expected an exception without a handler to panic")
	}
}

func TestHandlerRegistrationGuards(t *testing.T) {
	// Out-of-range vectors and lines must be ignored instead of
	// corrupting the dispatch tables.
	HandleException(ExceptionNum(exceptionCount), func(*Frame, *Regs) {})
	HandleExceptionWithCode(ExceptionNum(exceptionCount), func(uint64, *Frame, *Regs) {})
	HandleIRQ(numIRQLines, func(*Frame, *Regs) {})
}

func TestDispatchIRQ(t *testing.T) {
	var ackedLines []uint8
	origAck := ackIRQFn
	ackIRQFn = func(line uint8) { ackedLines = append(ackedLines, line) }
	defer func() { ackIRQFn = origAck }()

	handled := 0
	HandleIRQ(3, func(frame *Frame, regs *Regs) { handled++ })
	defer HandleIRQ(3, nil)

	var (
		frame Frame
		regs  Regs
	)

	DispatchIRQ(3, &frame, &regs)
	if handled != 1 {
		t.Fatal("expected the line handler to run")
	}

	// Interrupts on lines without a handler are dropped but still acked
	// so the line is not wedged.
	DispatchIRQ(5, &frame, &regs)

	if len(ackedLines) != 2 || ackedLines[0] != 3 || ackedLines[1] != 5 {
		t.Fatalf("expected every dispatched IRQ to be acked; got %v", ackedLines)
	}
}

func TestDispatchSyscall(t *testing.T) {
	regs := Regs{RAX: 42, RDI: 7}

	// With no handler registered the call reports unknownSyscallRet.
	DispatchSyscall(&regs)
	if regs.RAX != unknownSyscallRet {
		t.Fatalf("expected RAX to hold the unknown-syscall value; got 0x%x", regs.RAX)
	}

	var gotNum uint64
	HandleSyscall(func(regs *Regs) uint64 {
		gotNum = regs.RAX
		return regs.RDI * 2
	})
	defer HandleSyscall(nil)

	regs.RAX = 42
	DispatchSyscall(&regs)

	if gotNum != 42 {
		t.Fatalf("expected the handler to see the call number in RAX; got %d", gotNum)
	}
	if regs.RAX != 14 {
		t.Fatalf("expected the handler return value in RAX; got %d", regs.RAX)
	}
}
