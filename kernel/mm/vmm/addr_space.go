package vmm

import (
	"unsafe"

	"github.com/LimitlessOS-official/Limitless-sub011/kernel"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/cpu"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/mm"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/sync"
)

var (
	// ErrNilAddressSpace is returned by operations that receive a nil
	// address space argument.
	ErrNilAddressSpace = &kernel.Error{Module: "vmm", Message: "address space must not be nil"}

	// ErrDestroyKernelSpace is returned when trying to destroy the kernel
	// address space.
	ErrDestroyKernelSpace = &kernel.Error{Module: "vmm", Message: "the kernel address space cannot be destroyed"}

	// ErrDestroyActiveSpace is returned when trying to destroy the
	// currently active address space.
	ErrDestroyActiveSpace = &kernel.Error{Module: "vmm", Message: "the active address space cannot be destroyed"}

	errNotInitialized = &kernel.Error{Module: "vmm", Message: "the virtual memory manager has not been initialized"}

	// spaceListLock guards the linked list of live address spaces.
	spaceListLock sync.Spinlock

	spaceList   *AddressSpace
	kernelSpace *AddressSpace
	activeSpace *AddressSpace

	switchPDTFn     = cpu.SwitchPDT
	flushTLBEntryFn = cpu.FlushTLBEntry
)

// AddressSpace describes one virtual memory context, either the kernel's or
// a process's, embodied by a four-level page-table tree. The zero value is
// not usable; address spaces are created via Init and CreateAddressSpace.
type AddressSpace struct {
	// root is the frame holding the top-level page table of this space.
	root mm.Frame

	// next links this space into the global address space list.
	next *AddressSpace
}

// RootAddress returns the physical address of the top-level page table of
// this address space. This is the value loaded into CR3 when the space
// becomes active.
func (s *AddressSpace) RootAddress() uintptr {
	return s.root.Address()
}

// allocTable reserves a physical frame for a page-table page and zeroes it
// through the direct map.
func allocTable() (mm.Frame, *kernel.Error) {
	frame, err := mm.AllocFrame()
	if err != nil {
		return mm.InvalidFrame, err
	}

	kernel.Memset(uintptr(mm.PhysToVirt(frame.Address())), 0, mm.PageSize)
	return frame, nil
}

// CreateAddressSpace sets up a new address space whose user half is empty
// and whose kernel half aliases the kernel mappings. The returned space is
// fully formed but not active; callers switch to it via SwitchTo.
func CreateAddressSpace() (*AddressSpace, *kernel.Error) {
	if kernelSpace == nil {
		return nil, errNotInitialized
	}

	root, err := allocTable()
	if err != nil {
		return nil, err
	}

	// Mirror the kernel half of the top-level table. The lower-level
	// kernel tables are shared between all spaces so a kernel mapping
	// added after this point is still visible here.
	var (
		src    = uintptr(unsafe.Pointer(tableForFrameFn(kernelSpace.root)))
		dst    = uintptr(unsafe.Pointer(tableForFrameFn(root)))
		offset = uintptr(kernelHalfStart) << mm.PointerShift
	)
	kernel.Memcopy(src+offset, dst+offset, uintptr(entriesPerTable-kernelHalfStart)<<mm.PointerShift)

	s := &AddressSpace{root: root}

	spaceListLock.Acquire()
	s.next = spaceList
	spaceList = s
	spaceListLock.Release()

	return s, nil
}

// DestroyAddressSpace tears down an inactive, non-kernel address space. All
// frames mapped into its user half are released via the frame reference
// counts together with the page-table pages themselves. The shared kernel
// half tables are left untouched.
func DestroyAddressSpace(s *AddressSpace) *kernel.Error {
	switch {
	case s == nil:
		return ErrNilAddressSpace
	case s == kernelSpace:
		return ErrDestroyKernelSpace
	case s == activeSpace:
		return ErrDestroyActiveSpace
	}

	topTable := tableForFrameFn(s.root)
	for topIndex := 0; topIndex < kernelHalfStart; topIndex++ {
		if !topTable[topIndex].HasFlags(FlagPresent) {
			continue
		}

		releaseTable(topTable[topIndex].Frame(), 1)
		mm.FreeFrame(topTable[topIndex].Frame())
	}
	mm.FreeFrame(s.root)

	spaceListLock.Acquire()
	for prev := &spaceList; *prev != nil; prev = &(*prev).next {
		if *prev == s {
			*prev = s.next
			break
		}
	}
	spaceListLock.Release()

	return nil
}

// releaseTable recursively releases the frames referenced by a page table at
// the given level and any tables below it.
func releaseTable(frame mm.Frame, level uint8) {
	table := tableForFrameFn(frame)
	for index := 0; index < entriesPerTable; index++ {
		if !table[index].HasFlags(FlagPresent) {
			continue
		}

		if level < pageLevels-1 {
			releaseTable(table[index].Frame(), level+1)
		}
		mm.FreeFrame(table[index].Frame())
	}
}

// SwitchTo activates an address space by loading its top-level table into
// the MMU. The previously active space stays intact and can be switched
// back to later.
func SwitchTo(s *AddressSpace) *kernel.Error {
	if s == nil {
		return ErrNilAddressSpace
	}

	activeSpace = s
	switchPDTFn(s.root.Address())
	return nil
}

// Current returns the currently active address space.
func Current() *AddressSpace {
	return activeSpace
}

// KernelSpace returns the kernel address space created by Init.
func KernelSpace() *AddressSpace {
	return kernelSpace
}

// VisitAddressSpaces invokes visitFn for each live address space, starting
// with the most recently created one. The visit stops early if visitFn
// returns false. The address space list is locked for the duration of the
// visit; visitFn must not create or destroy spaces.
func VisitAddressSpaces(visitFn func(*AddressSpace) bool) {
	spaceListLock.Acquire()
	for s := spaceList; s != nil; s = s.next {
		if !visitFn(s) {
			break
		}
	}
	spaceListLock.Release()
}
