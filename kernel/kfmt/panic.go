package kfmt

import (
	"github.com/LimitlessOS-official/Limitless-sub011/kernel"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/cpu"
)

var (
	// cpuHaltFn is mocked by tests and is automatically inlined by the compiler.
	cpuHaltFn = cpu.Halt

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

// Panic outputs the supplied error to the console and halts the CPU. Calls
// to Panic never return.
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		panicString(t)
		return
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	if err != nil {
		Printf("\n-----------------------------------\n")
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
		Printf("*** kernel panic: system halted ***\n")
		Printf("-----------------------------------\n")
	}

	cpuHaltFn()
}

func panicString(msg string) {
	Printf("\n-----------------------------------\n")
	Printf("kernel panic: %s\n", msg)
	Printf("*** kernel panic: system halted ***\n")
	Printf("-----------------------------------\n")
	cpuHaltFn()
}
