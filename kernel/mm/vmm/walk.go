package vmm

import (
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/mm"
)

// pageTable overlays a page-table page that is reached through the direct
// map of physical memory.
type pageTable [entriesPerTable]pageTableEntry

var (
	// tableForFrameFn converts a page-table frame into a usable pointer.
	// It routes through the direct map so that the tables of inactive
	// address spaces can be edited as plain memory.
	tableForFrameFn = func(frame mm.Frame) *pageTable {
		return (*pageTable)(mm.PhysToVirt(frame.Address()))
	}
)

// tableIndex extracts the page-table index for the given level from a
// virtual address.
func tableIndex(level uint8, virtAddr uintptr) uintptr {
	return (virtAddr >> pageLevelShifts[level]) & ((1 << pageLevelBits[level]) - 1)
}

// pageTableWalker is a function that can be passed to the walk method. The
// function receives the current page level and page table entry as its
// arguments. If the function returns false, then the page walk is aborted.
type pageTableWalker func(pteLevel uint8, pte *pageTableEntry) bool

// walk performs a page table walk for virtAddr in the tree rooted at root.
// It calls the supplied walkFn with the page table entry that corresponds to
// each page table level. Before descending, the entry visited at the
// previous level must point to a valid table; walkers either verify the
// present bit or install a fresh table before returning true.
func walk(root mm.Frame, virtAddr uintptr, walkFn pageTableWalker) {
	table := tableForFrameFn(root)
	for level := uint8(0); level < pageLevels; level++ {
		pte := &table[tableIndex(level, virtAddr)]
		if !walkFn(level, pte) {
			return
		}

		if level < pageLevels-1 {
			table = tableForFrameFn(pte.Frame())
		}
	}
}
