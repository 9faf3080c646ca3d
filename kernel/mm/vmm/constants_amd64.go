package vmm

const (
	// pageLevels indicates the number of page-table levels supported by
	// the amd64 architecture.
	pageLevels = 4

	// entriesPerTable is the number of entries in a page-table page at
	// every level of the tree.
	entriesPerTable = 512

	// ptePhysPageMask is a mask that allows us to extract the physical
	// memory address pointed to by a page table entry. For this
	// particular architecture, bits 12-51 contain the physical memory
	// address.
	ptePhysPageMask = uintptr(0x000ffffffffff000)

	// pteLowFlagsMask selects the low 12 entry bits that the page-flag
	// editing operations are allowed to touch.
	pteLowFlagsMask = PageTableEntryFlag(0xfff)

	// kernelHalfStart is the first top-level table index belonging to the
	// kernel half of the address space. Entries from this index onwards
	// are copied into every new address space and never edited per-space.
	kernelHalfStart = entriesPerTable / 2
)

var (
	// pageLevelBits defines the number of virtual address bits that
	// correspond to each page level. Each level uses 9 bits which
	// amounts to 512 entries per page table.
	pageLevelBits = [pageLevels]uint8{9, 9, 9, 9}

	// pageLevelShifts defines the shift required to extract the table
	// index for each page level from a virtual address.
	pageLevelShifts = [pageLevels]uint8{39, 30, 21, 12}
)

const (
	// FlagPresent is set when the page is available in memory and not
	// swapped out.
	FlagPresent PageTableEntryFlag = 1 << iota

	// FlagRW is set if the page can be written to.
	FlagRW

	// FlagUserAccessible is set if user-mode processes can access this
	// page. If not set only kernel code can access this page.
	FlagUserAccessible

	// FlagWriteThroughCaching implies write-through caching when set and
	// write-back caching if cleared.
	FlagWriteThroughCaching

	// FlagDoNotCache prevents this page from being cached if set.
	FlagDoNotCache

	// FlagAccessed is set by the CPU when this page is accessed.
	FlagAccessed

	// FlagDirty is set by the CPU when this page is modified.
	FlagDirty

	// FlagHugePage is set when an entry maps a 2Mb page instead of
	// pointing to the next table level. Huge pages are not supported by
	// this manager.
	FlagHugePage

	// FlagGlobal prevents the TLB from flushing the cached translation
	// for this page when the page tables are swapped via CR3.
	FlagGlobal

	// FlagCopyOnWrite is reserved for implementing copy-on-write
	// semantics together with the frame reference counts. This flag and
	// FlagRW are mutually exclusive.
	FlagCopyOnWrite = PageTableEntryFlag(1 << 9)

	// FlagNoExecute marks a page as containing non-executable data.
	FlagNoExecute = PageTableEntryFlag(1 << 63)
)
