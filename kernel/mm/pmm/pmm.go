package pmm

import (
	"github.com/LimitlessOS-official/Limitless-sub011/kernel"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/mm"
)

// kernelAllocator is the buddy allocator instance that manages the
// machine's physical memory while the kernel runs.
var kernelAllocator BuddyAllocator

// Init sets up the kernel physical memory allocation sub-system using the
// boot memory description (a single contiguous region) and registers the
// allocator behind the kernel-wide mm hooks.
func Init(memStart, memSize uintptr) *kernel.Error {
	kernelAllocator.Init(memStart, memSize)

	mm.SetFrameAllocator(allocFrame)
	mm.SetFrameReleaser(releaseFrame)
	return nil
}

func allocFrame() (mm.Frame, *kernel.Error) {
	return kernelAllocator.AllocFrame()
}

func releaseFrame(frame mm.Frame) *kernel.Error {
	return kernelAllocator.FreeFrame(frame)
}

// AllocFrames reserves a run of 2^order contiguous frames from the kernel
// allocator.
func AllocFrames(order int) (mm.Frame, *kernel.Error) {
	return kernelAllocator.AllocFrames(order)
}

// FreeFrames returns a run of 2^order contiguous frames to the kernel
// allocator.
func FreeFrames(frame mm.Frame, order int) {
	kernelAllocator.FreeFrames(frame, order)
}

// RefFrame increments the reference count of a frame owned by the kernel
// allocator.
func RefFrame(frame mm.Frame) *kernel.Error {
	return kernelAllocator.RefFrame(frame)
}

// FrameRefCount returns the reference count of a frame owned by the kernel
// allocator.
func FrameRefCount(frame mm.Frame) (int, *kernel.Error) {
	return kernelAllocator.FrameRefCount(frame)
}

// Stats reports the total and free page counts of the kernel allocator.
func Stats() (totalPages, freePages uint64) {
	return kernelAllocator.Stats()
}
