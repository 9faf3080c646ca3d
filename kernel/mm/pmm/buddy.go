// Package pmm implements the kernel's physical frame allocator. Frames are
// managed with a buddy scheme: free blocks of 2^order pages live on
// per-order free lists and are split on allocation and coalesced with their
// buddy on free.
package pmm

import (
	"unsafe"

	"github.com/LimitlessOS-official/Limitless-sub011/kernel"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/mm"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/sync"
)

const (
	// MaxPageOrder defines the number of buddy orders managed by the
	// allocator. Blocks span 2^order pages for orders 0 to MaxPageOrder-1
	// so the largest serviceable block is 2^10 pages (4Mb).
	MaxPageOrder = 11

	// nilIndex terminates the per-order free lists.
	nilIndex = int32(-1)
)

type frameFlag uint8

const (
	// frameFree marks the head frame of a block that sits on a free list.
	frameFree frameFlag = 1 << iota

	// frameReserved marks frames that back the allocator metadata; they
	// never enter the free lists.
	frameReserved

	frameLocked
	frameDirty
	frameAccessed
)

// frameDesc is the per-frame metadata record. Its size feeds into the
// calculation of the reserved metadata region at the low end of the managed
// pool so it must stay compact; the current layout packs into 8 bytes.
type frameDesc struct {
	// next links the head frames of free blocks of the same order.
	next int32

	// order is the free-list order for free head frames and the
	// allocation order for allocated head frames; -1 otherwise.
	order int8

	flags    frameFlag
	refCount uint16
}

var (
	// ErrOutOfMemory is returned when no free block can satisfy an
	// allocation request.
	ErrOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of physical memory"}

	// ErrOrderOutOfRange is returned when the requested order exceeds
	// MaxPageOrder-1.
	ErrOrderOutOfRange = &kernel.Error{Module: "pmm", Message: "allocation order out of range"}

	// ErrFrameNotManaged is returned when the supplied frame lies outside
	// the managed physical region.
	ErrFrameNotManaged = &kernel.Error{Module: "pmm", Message: "frame is not managed by this allocator"}

	// ErrFrameNotAllocated is returned when a refcount operation targets
	// a frame that is not currently allocated.
	ErrFrameNotAllocated = &kernel.Error{Module: "pmm", Message: "frame is not allocated"}
)

// BuddyAllocator tracks the state of a contiguous pool of physical page
// frames. The zero value is ready for a call to Init.
type BuddyAllocator struct {
	lock sync.Spinlock

	// base is the first frame of the managed pool. Buddy arithmetic is
	// performed on pool-relative frame indices so base only needs page
	// alignment, not max-order alignment.
	base mm.Frame

	frames    []frameDesc
	freeLists [MaxPageOrder]int32

	totalPages uint64
	freePages  uint64

	initialized bool
}

// Init hands the physical region [memStart, memStart+memSize) to the
// allocator. The start address is aligned up to the next page boundary and
// the size rounded down to whole pages. Frames that would back the per-frame
// metadata array at the low end of the region are marked reserved; the
// remaining frames are seeded at order 0 and then coalesced once so the free
// lists reach their canonical form. Init has at-most-once semantics; any
// call after the first is silently ignored.
func (a *BuddyAllocator) Init(memStart, memSize uintptr) {
	a.lock.Acquire()
	defer a.lock.Release()

	if a.initialized {
		return
	}

	alignedStart := (memStart + mm.PageSize - 1) &^ (mm.PageSize - 1)
	if alignedStart-memStart >= memSize {
		return
	}
	memSize -= alignedStart - memStart

	pageCount := memSize >> mm.PageShift
	if pageCount == 0 {
		return
	}

	a.base = mm.FrameFromAddress(alignedStart)
	a.frames = make([]frameDesc, pageCount)
	for i := range a.frames {
		a.frames[i] = frameDesc{next: nilIndex, order: -1}
	}
	for i := range a.freeLists {
		a.freeLists[i] = nilIndex
	}

	metaBytes := pageCount * unsafe.Sizeof(frameDesc{})
	reserved := (metaBytes + mm.PageSize - 1) >> mm.PageShift
	if reserved > pageCount {
		reserved = pageCount
	}
	for i := uintptr(0); i < reserved; i++ {
		a.frames[i].flags = frameReserved
	}

	for i := int32(pageCount) - 1; i >= int32(reserved); i-- {
		a.pushFree(i, 0)
	}

	// Single bottom-up pass that merges adjacent free buddies so that no
	// two buddies of the same order remain free.
	for order := int8(0); order < MaxPageOrder-1; order++ {
		step := int32(1) << uint(order+1)
		half := step >> 1
		for idx := int32(0); idx+step <= int32(pageCount); idx += step {
			if a.isFreeHead(idx, order) && a.isFreeHead(idx+half, order) {
				a.removeFree(idx, order)
				a.removeFree(idx+half, order)
				a.pushFree(idx, order+1)
			}
		}
	}

	a.totalPages = uint64(pageCount)
	a.freePages = uint64(pageCount - reserved)
	a.initialized = true
}

// AllocFrames reserves a contiguous, naturally aligned run of 2^order frames
// and returns the first frame of the run. The block is carved out of the
// smallest free block that can contain it, re-inserting the upper half of
// each split at the next lower order. The head frame starts out with a
// reference count of 1.
func (a *BuddyAllocator) AllocFrames(order int) (mm.Frame, *kernel.Error) {
	if order < 0 || order >= MaxPageOrder {
		return mm.InvalidFrame, ErrOrderOutOfRange
	}

	a.lock.Acquire()
	defer a.lock.Release()

	haveOrder := int8(order)
	for ; haveOrder < MaxPageOrder && a.freeLists[haveOrder] == nilIndex; haveOrder++ {
	}
	if haveOrder == MaxPageOrder {
		return mm.InvalidFrame, ErrOutOfMemory
	}

	idx := a.freeLists[haveOrder]
	a.removeFree(idx, haveOrder)

	for haveOrder > int8(order) {
		haveOrder--
		a.pushFree(idx+int32(1)<<uint(haveOrder), haveOrder)
	}

	desc := &a.frames[idx]
	desc.order = int8(order)
	desc.refCount = 1

	a.freePages -= uint64(1) << uint(order)
	return a.base + mm.Frame(idx), nil
}

// FreeFrames releases a block previously obtained through AllocFrames with
// the exact same order. The reference count of the head frame is cleared
// unconditionally and the block is merged with its buddy for as long as the
// buddy is a free block of matching order. Double frees, order mismatches
// and frames outside the pool are silently ignored; the free lists are never
// corrupted by a bad call.
func (a *BuddyAllocator) FreeFrames(frame mm.Frame, order int) {
	if order < 0 || order >= MaxPageOrder {
		return
	}

	a.lock.Acquire()
	defer a.lock.Release()

	idx, ok := a.frameIndex(frame)
	if !ok {
		return
	}

	desc := &a.frames[idx]
	if desc.flags&(frameReserved|frameFree) != 0 || desc.refCount == 0 || desc.order != int8(order) {
		return
	}

	desc.refCount = 0
	a.coalesce(idx, int8(order))
	a.freePages += uint64(1) << uint(order)
}

// AllocFrame reserves a single frame.
func (a *BuddyAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	return a.AllocFrames(0)
}

// FreeFrame drops one reference to the supplied frame. The frame only
// returns to the free pool when the count reaches zero, which is what makes
// shared mappings and copy-on-write bookkeeping possible for the layers
// above. Dropping a reference on a frame that is already free is a no-op.
func (a *BuddyAllocator) FreeFrame(frame mm.Frame) *kernel.Error {
	a.lock.Acquire()
	defer a.lock.Release()

	idx, ok := a.frameIndex(frame)
	if !ok {
		return ErrFrameNotManaged
	}

	desc := &a.frames[idx]
	if desc.flags&(frameReserved|frameFree) != 0 || desc.refCount == 0 {
		return nil
	}

	desc.refCount--
	if desc.refCount > 0 {
		return nil
	}

	order := desc.order
	a.coalesce(idx, order)
	a.freePages += uint64(1) << uint(order)
	return nil
}

// RefFrame increments the reference count of an allocated frame.
func (a *BuddyAllocator) RefFrame(frame mm.Frame) *kernel.Error {
	a.lock.Acquire()
	defer a.lock.Release()

	idx, ok := a.frameIndex(frame)
	if !ok {
		return ErrFrameNotManaged
	}

	desc := &a.frames[idx]
	if desc.flags&(frameReserved|frameFree) != 0 || desc.refCount == 0 {
		return ErrFrameNotAllocated
	}

	desc.refCount++
	return nil
}

// FrameRefCount returns the current reference count of a frame.
func (a *BuddyAllocator) FrameRefCount(frame mm.Frame) (int, *kernel.Error) {
	a.lock.Acquire()
	defer a.lock.Release()

	idx, ok := a.frameIndex(frame)
	if !ok {
		return 0, ErrFrameNotManaged
	}

	return int(a.frames[idx].refCount), nil
}

// Stats returns the total number of managed pages (reserved metadata pages
// included) and the number of pages currently free.
func (a *BuddyAllocator) Stats() (totalPages, freePages uint64) {
	a.lock.Acquire()
	defer a.lock.Release()

	return a.totalPages, a.freePages
}

// frameIndex converts a frame to its pool-relative index.
func (a *BuddyAllocator) frameIndex(frame mm.Frame) (int32, bool) {
	idx := int64(frame) - int64(a.base)
	if idx < 0 || idx >= int64(len(a.frames)) {
		return 0, false
	}
	return int32(idx), true
}

// isFreeHead returns true when idx heads a free block of the given order.
func (a *BuddyAllocator) isFreeHead(idx int32, order int8) bool {
	desc := &a.frames[idx]
	return desc.flags&frameFree != 0 && desc.order == order
}

// pushFree inserts idx at the head of the free list for order.
func (a *BuddyAllocator) pushFree(idx int32, order int8) {
	desc := &a.frames[idx]
	desc.order = order
	desc.flags |= frameFree
	desc.next = a.freeLists[order]
	a.freeLists[order] = idx
}

// removeFree unlinks idx from the free list for order. The lists are singly
// linked so unlinking a non-head block walks the chain.
func (a *BuddyAllocator) removeFree(idx int32, order int8) {
	if a.freeLists[order] == idx {
		a.freeLists[order] = a.frames[idx].next
	} else {
		prev := a.freeLists[order]
		for a.frames[prev].next != idx {
			prev = a.frames[prev].next
		}
		a.frames[prev].next = a.frames[idx].next
	}

	desc := &a.frames[idx]
	desc.next = nilIndex
	desc.flags &^= frameFree
}

// coalesce merges the block headed by idx with its buddy while the buddy is
// a free block of matching order, then re-inserts the merged block. The
// buddy of a block is located by flipping the order bit of the pool-relative
// index; the lower of the two indices heads the merged block.
func (a *BuddyAllocator) coalesce(idx int32, order int8) {
	for order < MaxPageOrder-1 {
		buddy := idx ^ (int32(1) << uint(order))
		if buddy >= int32(len(a.frames)) || !a.isFreeHead(buddy, order) {
			break
		}

		a.removeFree(buddy, order)
		if buddy < idx {
			idx = buddy
		}
		order++
	}

	a.pushFree(idx, order)
}
