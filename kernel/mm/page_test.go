package mm

import (
	"testing"
	"unsafe"

	"github.com/LimitlessOS-official/Limitless-sub011/kernel"
)

func TestFrameMethods(t *testing.T) {
	for frameIndex := uint64(0); frameIndex < 128; frameIndex++ {
		frame := Frame(frameIndex)

		if !frame.Valid() {
			t.Errorf("expected frame %d to be valid", frameIndex)
		}

		if exp, got := uintptr(frameIndex<<PageShift), frame.Address(); got != exp {
			t.Errorf("expected frame (%d, index: %d) call to Address() to return %x; got %x", frame, frameIndex, exp, got)
		}
	}

	invalidFrame := InvalidFrame
	if invalidFrame.Valid() {
		t.Error("expected InvalidFrame.Valid() to return false")
	}
}

func TestFrameFromAddress(t *testing.T) {
	specs := []struct {
		input uintptr
		exp   Frame
	}{
		{0, Frame(0)},
		{4095, Frame(0)},
		{4096, Frame(1)},
		{4123, Frame(1)},
	}

	for specIndex, spec := range specs {
		if got := FrameFromAddress(spec.input); got != spec.exp {
			t.Errorf("[spec %d] expected returned frame to be %v; got %v", specIndex, spec.exp, got)
		}
	}
}

func TestPageMethods(t *testing.T) {
	for pageIndex := uint64(0); pageIndex < 128; pageIndex++ {
		page := Page(pageIndex)

		if exp, got := uintptr(pageIndex<<PageShift), page.Address(); got != exp {
			t.Errorf("expected page (%d, index: %d) call to Address() to return %x; got %x", page, pageIndex, exp, got)
		}
	}
}

func TestPageFromAddress(t *testing.T) {
	specs := []struct {
		input uintptr
		exp   Page
	}{
		{0, Page(0)},
		{4095, Page(0)},
		{4096, Page(1)},
		{4123, Page(1)},
	}

	for specIndex, spec := range specs {
		if got := PageFromAddress(spec.input); got != spec.exp {
			t.Errorf("[spec %d] expected returned page to be %v; got %v", specIndex, spec.exp, got)
		}
	}
}

func TestAllocatorIndirection(t *testing.T) {
	defer func() {
		SetFrameAllocator(nil)
		SetFrameReleaser(nil)
	}()

	allocCalls, freeCalls := 0, 0
	SetFrameAllocator(func() (Frame, *kernel.Error) {
		allocCalls++
		return Frame(42), nil
	})
	SetFrameReleaser(func(f Frame) *kernel.Error {
		freeCalls++
		if f != Frame(42) {
			t.Errorf("expected releaser to receive frame 42; got %d", f)
		}
		return nil
	})

	frame, err := AllocFrame()
	if err != nil || frame != Frame(42) {
		t.Fatalf("expected AllocFrame to return (42, nil); got (%v, %v)", frame, err)
	}
	if err = FreeFrame(frame); err != nil {
		t.Fatalf("expected FreeFrame to return nil; got %v", err)
	}

	if allocCalls != 1 || freeCalls != 1 {
		t.Fatalf("expected 1 alloc and 1 free call; got %d and %d", allocCalls, freeCalls)
	}
}

func TestPhysMappingOverride(t *testing.T) {
	var backing [8]byte
	base := uintptr(unsafe.Pointer(&backing[0]))

	// The boot translation pair must be the bootloader's identity mapping
	// as it is the only mapping alive before the direct map gets built.
	if got := PhysToVirt(base); uintptr(got) != base {
		t.Fatalf("expected the boot PhysToVirt to be an identity translation; %x -> %x", base, uintptr(got))
	}
	if got := VirtToPhys(unsafe.Pointer(&backing[0])); got != base {
		t.Fatalf("expected the boot VirtToPhys to be an identity translation; %x -> %x", base, got)
	}

	origToVirt, origToPhys := SetPhysMapping(
		func(physAddr uintptr) unsafe.Pointer { return unsafe.Pointer(physAddr + DirectMapOffset) },
		func(p unsafe.Pointer) uintptr { return uintptr(p) - DirectMapOffset },
	)
	defer SetPhysMapping(origToVirt, origToPhys)

	if got := PhysToVirt(base); uintptr(got) != base+DirectMapOffset {
		t.Fatalf("expected the direct-map PhysToVirt to return %x; got %x", base+DirectMapOffset, uintptr(got))
	}
	if got := VirtToPhys(unsafe.Pointer(base + DirectMapOffset)); got != base {
		t.Fatalf("expected the direct-map VirtToPhys to return %x; got %x", base, got)
	}
}
