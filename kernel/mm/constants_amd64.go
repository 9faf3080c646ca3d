package mm

const (
	// PointerShift is equal to log2(unsafe.Sizeof(uintptr)). The pointer
	// size for this architecture is defined as (1 << PointerShift).
	PointerShift = uintptr(3)

	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a page number (shift right by PageShift)
	// and vice-versa.
	PageShift = uintptr(12)

	// PageSize defines the system's page size in bytes.
	PageSize = uintptr(1 << PageShift)

	// DirectMapOffset is the virtual base of the kernel's linear mapping
	// of all physical memory. Adding it to a physical address yields a
	// kernel-accessible pointer to that memory; page-table pages and
	// context records are reached this way.
	DirectMapOffset = uintptr(0xffff880000000000)
)
