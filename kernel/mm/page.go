// Package mm defines the memory primitives (physical frames, virtual pages)
// shared by the physical and virtual memory managers, together with the
// indirection points through which the rest of the kernel reaches the
// currently registered frame allocator and the physical direct map.
package mm

import (
	"math"
	"unsafe"

	"github.com/LimitlessOS-official/Limitless-sub011/kernel"
)

// Frame describes a physical memory page index.
type Frame uintptr

const (
	// InvalidFrame is returned by page allocators when
	// they fail to reserve the requested frame.
	InvalidFrame = Frame(math.MaxUint64)
)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical memory address pointed to by this Frame.
func (f Frame) Address() uintptr {
	return uintptr(f << PageShift)
}

// FrameFromAddress returns a Frame that corresponds to the given physical
// address. This function can handle both page-aligned and not aligned
// addresses; in the latter case, the input address will be rounded down to
// the frame that contains it.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame((physAddr & ^(PageSize - 1)) >> PageShift)
}

// Page describes a virtual memory page index.
type Page uintptr

// Address returns the virtual memory address pointed to by this Page.
func (p Page) Address() uintptr {
	return uintptr(p << PageShift)
}

// PageFromAddress returns a Page that corresponds to the given virtual
// address. This function can handle both page-aligned and not aligned virtual
// addresses; in the latter case, the input address will be rounded down to
// the page that contains it.
func PageFromAddress(virtAddr uintptr) Page {
	return Page((virtAddr & ^(PageSize - 1)) >> PageShift)
}

// FrameAllocatorFn is a function that can allocate a single physical frame.
type FrameAllocatorFn func() (Frame, *kernel.Error)

// FrameReleaserFn is a function that releases one reference to a physical
// frame, returning it to the free pool when the last reference is dropped.
type FrameReleaserFn func(Frame) *kernel.Error

var (
	// frameAllocator points to a frame allocator function registered
	// using SetFrameAllocator.
	frameAllocator FrameAllocatorFn

	// frameReleaser points to a frame release function registered using
	// SetFrameReleaser.
	frameReleaser FrameReleaserFn
)

// SetFrameAllocator registers a frame allocator function that will be used
// by kernel code when new physical frames need to be allocated.
func SetFrameAllocator(allocFn FrameAllocatorFn) { frameAllocator = allocFn }

// SetFrameReleaser registers a frame release function that will be used by
// kernel code when physical frames are returned.
func SetFrameReleaser(releaseFn FrameReleaserFn) { frameReleaser = releaseFn }

// AllocFrame reserves a new physical frame using the currently registered
// frame allocator.
func AllocFrame() (Frame, *kernel.Error) { return frameAllocator() }

// FreeFrame drops one reference to the given frame using the currently
// registered frame releaser. The frame returns to the free pool once its
// reference count reaches zero.
func FreeFrame(f Frame) *kernel.Error { return frameReleaser(f) }

// PhysToVirtFn translates a physical address into a kernel-accessible
// pointer.
type PhysToVirtFn func(uintptr) unsafe.Pointer

// VirtToPhysFn translates a pointer previously obtained via PhysToVirt back
// into the physical address backing it.
type VirtToPhysFn func(unsafe.Pointer) uintptr

var (
	// physToVirtFn and virtToPhysFn convert between physical addresses
	// and kernel-accessible pointers. The boot defaults describe the
	// bootloader's identity mapping, the only mapping that exists before
	// the vmm comes up; once kmain builds the kernel's direct map it
	// installs the DirectMapOffset translation through SetPhysMapping.
	// Tests register host-memory identity mappings the same way.
	physToVirtFn = PhysToVirtFn(func(physAddr uintptr) unsafe.Pointer {
		return unsafe.Pointer(physAddr)
	})
	virtToPhysFn = VirtToPhysFn(func(p unsafe.Pointer) uintptr {
		return uintptr(p)
	})
)

// SetPhysMapping overrides the physical-to-virtual translation pair used by
// PhysToVirt and VirtToPhys. The pair that was previously registered is
// returned so callers can restore it.
func SetPhysMapping(toVirt PhysToVirtFn, toPhys VirtToPhysFn) (PhysToVirtFn, VirtToPhysFn) {
	origToVirt, origToPhys := physToVirtFn, virtToPhysFn
	physToVirtFn = toVirt
	virtToPhysFn = toPhys
	return origToVirt, origToPhys
}

// PhysToVirt returns a kernel-accessible pointer to the memory backing the
// supplied physical address.
func PhysToVirt(physAddr uintptr) unsafe.Pointer { return physToVirtFn(physAddr) }

// VirtToPhys returns the physical address backing a pointer previously
// obtained via PhysToVirt.
func VirtToPhys(p unsafe.Pointer) uintptr { return virtToPhysFn(p) }
