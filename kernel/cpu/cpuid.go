package cpu

import (
	"github.com/LimitlessOS-official/Limitless-sub011/kernel"
)

// Feature is a bitmask of SIMD capabilities reported by the processor.
type Feature uint32

const (
	// FeatureSSE indicates support for the SSE instruction set.
	FeatureSSE Feature = 1 << iota

	// FeatureSSE2 indicates support for the SSE2 instruction set.
	FeatureSSE2

	// FeatureSSE3 indicates support for the SSE3 instruction set.
	FeatureSSE3

	// FeatureAVX indicates support for the AVX instruction set.
	FeatureAVX

	// FeatureAVX2 indicates support for the AVX2 instruction set.
	FeatureAVX2

	// FeatureAVX512F indicates support for the AVX-512 foundation
	// instruction set.
	FeatureAVX512F
)

// Info describes a logical processor as probed via the CPUID instruction.
type Info struct {
	Vendor   string
	Brand    string
	Family   uint32
	Model    uint32
	Stepping uint32
	Features Feature

	// FrequencyMHz is the processor's nominal frequency. It is read from
	// CPUID leaf 0x16 when available and recovered from the brand string
	// otherwise; zero means the frequency could not be determined.
	FrequencyMHz uint32
}

// Supports returns true if the processor advertises all the given features.
func (info *Info) Supports(features Feature) bool {
	return info.Features&features == features
}

var (
	// ErrInvalidCPU is returned when requesting information for a CPU
	// index that is not present.
	ErrInvalidCPU = &kernel.Error{Module: "cpu", Message: "cpu index out of range"}

	// cpuidFn is the CPUID access seam; tests install an emulated
	// processor here.
	cpuidFn = ID

	// bootCPU caches the description of the boot processor. It is
	// populated by Init and treated as immutable afterwards.
	bootCPU Info
)

const (
	leafBasic    = 0x0
	leafFeatures = 0x1
	leafExtended = 0x7
	leafFreq     = 0x16
	leafExtMax   = 0x80000000
	leafBrand0   = 0x80000002
)

// Init probes the boot processor and caches the resulting description.
// Exactly one CPU is reported until the kernel learns to start the
// application processors.
func Init() {
	bootCPU = Info{}
	maxLeaf, vendorB, vendorC, vendorD := cpuidFn(leafBasic, 0)

	var vendor [12]byte
	packLE(vendor[0:4], vendorB)
	packLE(vendor[4:8], vendorD)
	packLE(vendor[8:12], vendorC)
	bootCPU.Vendor = string(vendor[:])

	if maxLeaf >= leafFeatures {
		sigEAX, _, featECX, featEDX := cpuidFn(leafFeatures, 0)

		bootCPU.Stepping = sigEAX & 0xf
		bootCPU.Model = (sigEAX >> 4) & 0xf
		bootCPU.Family = (sigEAX >> 8) & 0xf

		// Family 6 and 15 encode extra signature bits in the extended
		// family/model fields.
		if bootCPU.Family == 0xf {
			bootCPU.Family += (sigEAX >> 20) & 0xff
		}
		if bootCPU.Family == 0x6 || bootCPU.Family >= 0xf {
			bootCPU.Model |= ((sigEAX >> 16) & 0xf) << 4
		}

		if featEDX&(1<<25) != 0 {
			bootCPU.Features |= FeatureSSE
		}
		if featEDX&(1<<26) != 0 {
			bootCPU.Features |= FeatureSSE2
		}
		if featECX&(1<<0) != 0 {
			bootCPU.Features |= FeatureSSE3
		}
		if featECX&(1<<28) != 0 {
			bootCPU.Features |= FeatureAVX
		}
	}

	if maxLeaf >= leafExtended {
		_, extEBX, _, _ := cpuidFn(leafExtended, 0)
		if extEBX&(1<<5) != 0 {
			bootCPU.Features |= FeatureAVX2
		}
		if extEBX&(1<<16) != 0 {
			bootCPU.Features |= FeatureAVX512F
		}
	}

	bootCPU.Brand = readBrand()

	if maxLeaf >= leafFreq {
		baseMHz, _, _, _ := cpuidFn(leafFreq, 0)
		bootCPU.FrequencyMHz = baseMHz & 0xffff
	}
	if bootCPU.FrequencyMHz == 0 {
		bootCPU.FrequencyMHz = parseBrandFrequency(bootCPU.Brand)
	}
}

// readBrand assembles the processor brand string from the extended CPUID
// leaves, returning an empty string if the processor predates them.
func readBrand() string {
	maxExtLeaf, _, _, _ := cpuidFn(leafExtMax, 0)
	if maxExtLeaf < leafBrand0+2 {
		return ""
	}

	var brand [48]byte
	for block := uint32(0); block < 3; block++ {
		eax, ebx, ecx, edx := cpuidFn(leafBrand0+block, 0)
		base := block * 16
		packLE(brand[base:base+4], eax)
		packLE(brand[base+4:base+8], ebx)
		packLE(brand[base+8:base+12], ecx)
		packLE(brand[base+12:base+16], edx)
	}

	// Brands are NUL-padded and often lead with spaces.
	start, end := 0, len(brand)
	for end > start && (brand[end-1] == 0 || brand[end-1] == ' ') {
		end--
	}
	for start < end && brand[start] == ' ' {
		start++
	}
	return string(brand[start:end])
}

func packLE(dst []byte, val uint32) {
	dst[0] = byte(val)
	dst[1] = byte(val >> 8)
	dst[2] = byte(val >> 16)
	dst[3] = byte(val >> 24)
}

// parseBrandFrequency extracts the nominal frequency advertised at the tail
// of a brand string (e.g. "... CPU @ 3.50GHz") and returns it in MHz.
func parseBrandFrequency(brand string) uint32 {
	// Locate the "Hz" suffix and its scale prefix.
	end := -1
	for i := len(brand) - 2; i > 0; i-- {
		if brand[i] == 'H' && brand[i+1] == 'z' {
			end = i
			break
		}
	}
	if end <= 0 {
		return 0
	}

	var scaleMHz uint64
	switch brand[end-1] {
	case 'M':
		scaleMHz = 1
	case 'G':
		scaleMHz = 1000
	case 'T':
		scaleMHz = 1000000
	default:
		return 0
	}

	// Scan the decimal number that precedes the scale character.
	start := end - 1
	for start > 0 && (isDigit(brand[start-1]) || brand[start-1] == '.') {
		start--
	}
	if start == end-1 {
		return 0
	}

	var whole, frac, fracScale uint64
	fracScale = 1
	seenPoint := false
	for i := start; i < end-1; i++ {
		if brand[i] == '.' {
			if seenPoint {
				return 0
			}
			seenPoint = true
			continue
		}

		digit := uint64(brand[i] - '0')
		if seenPoint {
			frac = frac*10 + digit
			fracScale *= 10
		} else {
			whole = whole*10 + digit
		}
	}

	return uint32(whole*scaleMHz + frac*scaleMHz/fracScale)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// IsIntel returns true if the processor was made by Intel.
func IsIntel() bool {
	return bootCPU.Vendor == "GenuineIntel"
}

// Count returns the number of usable logical processors.
func Count() int {
	return 1
}

// CurrentID returns the index of the processor executing the caller.
func CurrentID() int {
	return 0
}

// InfoFor returns the cached description of the CPU with the given index.
func InfoFor(index int) (Info, *kernel.Error) {
	if index < 0 || index >= Count() {
		return Info{}, ErrInvalidCPU
	}
	return bootCPU, nil
}

// TimerTicks returns a monotonically increasing tick count suitable for
// coarse interval measurements.
func TimerTicks() uint64 {
	return ReadTimestamp()
}
