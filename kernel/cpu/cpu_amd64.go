// Package cpu provides access to the processor: feature probing via CPUID,
// interrupt masking, control register and timestamp access, port I/O and
// the execution context records used for switching between kernel threads.
package cpu

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// Halt disables interrupt handling and halts the processor. It never
// returns.
func Halt()

// WaitForInterrupt enables interrupts and puts the processor to sleep until
// the next interrupt arrives.
func WaitForInterrupt()

// FlushTLBEntry flushes the TLB entry for the page that contains virtAddr.
func FlushTLBEntry(virtAddr uintptr)

// SwitchPDT loads CR3 with the physical address of a top-level page table,
// activating the address space it describes and flushing all non-global TLB
// entries.
func SwitchPDT(pdtPhysAddr uintptr)

// ActivePDT returns the physical address of the currently active top-level
// page table.
func ActivePDT() uintptr

// ReadCR2 returns the value stored in CR2, which the CPU sets to the
// faulting address when a page fault occurs.
func ReadCR2() uint64

// ReadTimestamp returns the value of the processor's monotonic timestamp
// counter.
func ReadTimestamp() uint64

// ID executes the CPUID instruction for the given leaf and sub-leaf and
// returns the raw register contents.
func ID(leaf, subleaf uint32) (eax, ebx, ecx, edx uint32)

// PortWriteByte writes a byte to the given I/O port.
func PortWriteByte(port uint16, val uint8)

// PortReadByte reads a byte from the given I/O port.
func PortReadByte(port uint16) uint8
