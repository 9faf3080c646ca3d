package vmm

import (
	"github.com/LimitlessOS-official/Limitless-sub011/kernel"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/mm"
)

// AllocRegion backs the virtual address range [virtAddr, virtAddr+size)
// with freshly allocated physical frames in the given address space. The
// range is widened to page granularity and the page containing virtAddr is
// returned. If a frame allocation or a mapping fails partway through, every
// page established so far is unmapped and its frame released before the
// error is reported, leaving the address space as it was found.
func AllocRegion(s *AddressSpace, virtAddr, size uintptr, flags PageTableEntryFlag) (mm.Page, *kernel.Error) {
	if s == nil {
		return 0, ErrNilAddressSpace
	}

	startPage, pageCount := regionExtent(virtAddr, size)
	for pageIndex := uintptr(0); pageIndex < pageCount; pageIndex++ {
		page := startPage + mm.Page(pageIndex)

		frame, err := mm.AllocFrame()
		if err != nil {
			releaseRegion(s, startPage, pageIndex)
			return 0, err
		}

		if err = mapFn(s, page, frame, flags); err != nil {
			mm.FreeFrame(frame)
			releaseRegion(s, startPage, pageIndex)
			return 0, err
		}
	}

	return startPage, nil
}

// FreeRegion unmaps the virtual address range [virtAddr, virtAddr+size)
// from the given address space and releases the backing frames through the
// frame reference counts. Pages in the range that are not mapped are
// skipped.
func FreeRegion(s *AddressSpace, virtAddr, size uintptr) *kernel.Error {
	if s == nil {
		return ErrNilAddressSpace
	}

	startPage, pageCount := regionExtent(virtAddr, size)
	releaseRegion(s, startPage, pageCount)
	return nil
}

// regionExtent widens [virtAddr, virtAddr+size) to page granularity and
// returns the first page together with the number of pages covered.
func regionExtent(virtAddr, size uintptr) (mm.Page, uintptr) {
	startPage := mm.PageFromAddress(virtAddr)
	size += virtAddr - startPage.Address()
	return startPage, (size + mm.PageSize - 1) >> mm.PageShift
}

// releaseRegion unmaps pageCount pages starting at startPage and releases
// the frames that backed them.
func releaseRegion(s *AddressSpace, startPage mm.Page, pageCount uintptr) {
	for pageIndex := uintptr(0); pageIndex < pageCount; pageIndex++ {
		page := startPage + mm.Page(pageIndex)

		if physAddr, err := translateFn(s, page.Address()); err == nil {
			mm.FreeFrame(mm.FrameFromAddress(physAddr))
		}
		unmapFn(s, page)
	}
}
