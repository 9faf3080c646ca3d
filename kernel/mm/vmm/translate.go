package vmm

import (
	"github.com/LimitlessOS-official/Limitless-sub011/kernel"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/mm"
)

// PageOffset returns the offset of virtAddr within its page.
func PageOffset(virtAddr uintptr) uintptr {
	return virtAddr & (mm.PageSize - 1)
}

// Translate resolves a virtual address in the given address space into the
// physical address it maps to, preserving the offset within the page. It
// returns ErrInvalidMapping if the address is not mapped and
// ErrHugePageNotSupported if the walk runs into a huge-page entry.
func Translate(s *AddressSpace, virtAddr uintptr) (uintptr, *kernel.Error) {
	if s == nil {
		return 0, ErrNilAddressSpace
	}

	pte, err := leafEntry(s, virtAddr)
	if err != nil {
		return 0, err
	}

	return pte.Frame().Address() + PageOffset(virtAddr), nil
}

// IsMapped returns true if virtAddr resolves to a present mapping in the
// given address space.
func IsMapped(s *AddressSpace, virtAddr uintptr) bool {
	_, err := translateFn(s, virtAddr)
	return err == nil
}
