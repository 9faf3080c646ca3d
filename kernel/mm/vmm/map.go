package vmm

import (
	"github.com/LimitlessOS-official/Limitless-sub011/kernel"
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/mm"
)

var (
	// ErrHugePageNotSupported is returned when a page walk runs into an
	// entry that maps a huge page.
	ErrHugePageNotSupported = &kernel.Error{Module: "vmm", Message: "huge page mappings are not supported"}

	// The map/unmap implementations are accessed via function pointers so
	// that the region allocator can inject failures in tests.
	mapFn       = Map
	unmapFn     = Unmap
	translateFn = Translate
)

// Map establishes a mapping between page and frame in the given address
// space, allocating any missing intermediate page tables on the way down.
// FlagPresent is applied automatically so callers only supply the semantic
// flags for the mapping. If the address space is the active one, the stale
// TLB entry for the page is invalidated.
func Map(s *AddressSpace, page mm.Page, frame mm.Frame, flags PageTableEntryFlag) *kernel.Error {
	if s == nil {
		return ErrNilAddressSpace
	}

	var err *kernel.Error
	walk(s.root, page.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		if pteLevel == pageLevels-1 {
			*pte = 0
			pte.SetFrame(frame)
			pte.SetFlags(flags | FlagPresent)
			return true
		}

		if pte.HasFlags(FlagHugePage) {
			err = ErrHugePageNotSupported
			return false
		}

		if !pte.HasFlags(FlagPresent) {
			var tableFrame mm.Frame
			if tableFrame, err = allocTable(); err != nil {
				return false
			}

			// Intermediate levels stay permissive. Access control
			// for a mapping is enforced by its leaf entry alone.
			*pte = 0
			pte.SetFrame(tableFrame)
			pte.SetFlags(FlagPresent | FlagRW | FlagUserAccessible)
		}

		return true
	})

	if err == nil && s == activeSpace {
		flushTLBEntryFn(page.Address())
	}

	return err
}

// Unmap removes the mapping for page from the given address space. Unmapping
// a page that was never mapped is a benign no-op. The physical frame that
// backed the mapping is not released; that is the caller's decision. Any
// intermediate tables that become empty are intentionally kept so they can
// be reused by future mappings in the same range.
func Unmap(s *AddressSpace, page mm.Page) *kernel.Error {
	if s == nil {
		return ErrNilAddressSpace
	}

	var (
		err     *kernel.Error
		cleared bool
	)
	walk(s.root, page.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		if pteLevel == pageLevels-1 {
			if pte.HasFlags(FlagPresent) {
				*pte = 0
				cleared = true
			}
			return true
		}

		if pte.HasFlags(FlagHugePage) {
			err = ErrHugePageNotSupported
			return false
		}

		return pte.HasFlags(FlagPresent)
	})

	if cleared && s == activeSpace {
		flushTLBEntryFn(page.Address())
	}

	return err
}

// leafEntry locates the leaf page-table entry for virtAddr, returning
// ErrInvalidMapping if any level on the way down is not present and
// ErrHugePageNotSupported if an intermediate entry maps a huge page, the
// same way Map and Unmap refuse to descend through one.
func leafEntry(s *AddressSpace, virtAddr uintptr) (*pageTableEntry, *kernel.Error) {
	var (
		entry *pageTableEntry
		err   = ErrInvalidMapping
	)

	walk(s.root, virtAddr, func(pteLevel uint8, pte *pageTableEntry) bool {
		if !pte.HasFlags(FlagPresent) {
			return false
		}

		if pteLevel == pageLevels-1 {
			entry = pte
			err = nil
			return true
		}

		if pte.HasFlags(FlagHugePage) {
			err = ErrHugePageNotSupported
			return false
		}

		return true
	})

	return entry, err
}

// SetPageFlags ORs flags into the leaf entry for page. Only the low 12 bits
// of the entry can be edited this way; the frame address and the
// no-execute bit are left untouched.
func SetPageFlags(s *AddressSpace, page mm.Page, flags PageTableEntryFlag) *kernel.Error {
	if s == nil {
		return ErrNilAddressSpace
	}

	pte, err := leafEntry(s, page.Address())
	if err != nil {
		return err
	}

	pte.SetFlags(flags & pteLowFlagsMask)
	if s == activeSpace {
		flushTLBEntryFn(page.Address())
	}
	return nil
}

// ClearPageFlags removes flags from the leaf entry for page. As with
// SetPageFlags only the low 12 entry bits can be edited.
func ClearPageFlags(s *AddressSpace, page mm.Page, flags PageTableEntryFlag) *kernel.Error {
	if s == nil {
		return ErrNilAddressSpace
	}

	pte, err := leafEntry(s, page.Address())
	if err != nil {
		return err
	}

	pte.ClearFlags(flags & pteLowFlagsMask)
	if s == activeSpace {
		flushTLBEntryFn(page.Address())
	}
	return nil
}

// PageFlags returns the low flag bits of the leaf entry for page.
func PageFlags(s *AddressSpace, page mm.Page) (PageTableEntryFlag, *kernel.Error) {
	if s == nil {
		return 0, ErrNilAddressSpace
	}

	pte, err := leafEntry(s, page.Address())
	if err != nil {
		return 0, err
	}

	return pte.Flags(), nil
}
