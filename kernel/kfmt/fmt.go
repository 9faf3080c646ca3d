// Package kfmt provides a minimal, allocation-free Printf implementation
// that can be used by kernel code at any point during the boot sequence,
// including the window where the Go allocator is not yet operational.
package kfmt

import (
	"io"
	"unsafe"
)

// numBufSize is large enough for a 64-bit value formatted in base 8 plus a
// sign character.
const numBufSize = 24

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	// numBuf holds digits while a number is formatted. Kernel code is
	// single-threaded while kfmt is in use so a package-level scratch
	// buffer is safe and avoids an allocation per verb.
	numBuf [numBufSize]byte

	// oneByte is a shared single-byte buffer for emitting characters
	// without allocating.
	oneByte = []byte{0}

	// earlyBuffer captures Printf output generated before an output sink
	// is registered.
	earlyBuffer ringBuffer

	// outputSink is the io.Writer that receives Printf output. While nil,
	// output accumulates in earlyBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the target for Printf output to w and drains any data
// accumulated in the early boot buffer into it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyBuffer)
	}
}

// Printf formats its arguments and writes them to the registered output
// sink, or to the early boot ring buffer if no sink has been registered yet.
//
// The following subset of formatting verbs is supported:
//
//	%s  string or []byte, left-padded with spaces
//	%d  base 10 integer, left-padded with spaces
//	%x  base 16 integer, left-padded with zeroes
//	%o  base 8 integer, left-padded with zeroes
//	%t  "true" or "false"
//	%c  a single byte
//
// An optional decimal width may precede the verb (e.g. %16x). All built-in
// integer types are accepted. Pointer formatting is intentionally absent;
// it would drag in reflect and with it runtime allocations.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves like Printf but writes the formatted output to w.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		argIndex int
		i        int
		fmtLen   = len(format)
	)

	for i < fmtLen {
		ch := format[i]
		if ch != '%' {
			emitByte(w, ch)
			i++
			continue
		}

		// Parse the optional width between '%' and the verb.
		i++
		width := 0
		for ; i < fmtLen && format[i] >= '0' && format[i] <= '9'; i++ {
			width = width*10 + int(format[i]-'0')
		}

		if i == fmtLen {
			emitBytes(w, errNoVerb)
			break
		}

		verb := format[i]
		i++

		if verb == '%' {
			emitByte(w, '%')
			continue
		}

		if verb != 'd' && verb != 'x' && verb != 'o' && verb != 's' && verb != 't' && verb != 'c' {
			emitBytes(w, errNoVerb)
			continue
		}

		if argIndex >= len(args) {
			emitBytes(w, errMissingArg)
			continue
		}
		arg := args[argIndex]
		argIndex++

		switch verb {
		case 'd':
			emitInt(w, arg, 10, width)
		case 'x':
			emitInt(w, arg, 16, width)
		case 'o':
			emitInt(w, arg, 8, width)
		case 's':
			emitString(w, arg, width)
		case 't':
			emitBool(w, arg)
		case 'c':
			emitChar(w, arg)
		}
	}

	for ; argIndex < len(args); argIndex++ {
		emitBytes(w, errExtraArg)
	}
}

func emitBool(w io.Writer, v interface{}) {
	bv, isBool := v.(bool)
	switch {
	case !isBool:
		emitBytes(w, errWrongArgType)
	case bv:
		emitBytes(w, trueValue)
	default:
		emitBytes(w, falseValue)
	}
}

func emitChar(w io.Writer, v interface{}) {
	switch cv := v.(type) {
	case byte:
		emitByte(w, cv)
	case rune:
		emitByte(w, byte(cv))
	default:
		emitBytes(w, errWrongArgType)
	}
}

func emitString(w io.Writer, v interface{}, width int) {
	switch sv := v.(type) {
	case string:
		for pad := width - len(sv); pad > 0; pad-- {
			emitByte(w, ' ')
		}
		// Emitting byte-by-byte avoids the allocation that a string to
		// []byte conversion would trigger.
		for i := 0; i < len(sv); i++ {
			emitByte(w, sv[i])
		}
	case []byte:
		for pad := width - len(sv); pad > 0; pad-- {
			emitByte(w, ' ')
		}
		emitBytes(w, sv)
	default:
		emitBytes(w, errWrongArgType)
	}
}

// emitInt formats v in the requested base. Base 10 output is padded with
// spaces, base 8 and 16 output with zeroes.
func emitInt(w io.Writer, v interface{}, base, width int) {
	var (
		uval     uint64
		negative bool
	)

	switch iv := v.(type) {
	case uint8:
		uval = uint64(iv)
	case uint16:
		uval = uint64(iv)
	case uint32:
		uval = uint64(iv)
	case uint64:
		uval = iv
	case uint:
		uval = uint64(iv)
	case uintptr:
		uval = uint64(iv)
	case int8:
		negative = iv < 0
		uval = abs64(int64(iv))
	case int16:
		negative = iv < 0
		uval = abs64(int64(iv))
	case int32:
		negative = iv < 0
		uval = abs64(int64(iv))
	case int64:
		negative = iv < 0
		uval = abs64(iv)
	case int:
		negative = iv < 0
		uval = abs64(int64(iv))
	default:
		emitBytes(w, errWrongArgType)
		return
	}

	padCh := byte('0')
	if base == 10 {
		padCh = ' '
	}

	if width > numBufSize {
		width = numBufSize
	}

	// Render digits least-significant first into numBuf.
	digits := 0
	for {
		rem := uval % uint64(base)
		if rem < 10 {
			numBuf[digits] = '0' + byte(rem)
		} else {
			numBuf[digits] = 'a' + byte(rem-10)
		}
		digits++
		uval /= uint64(base)
		if uval == 0 {
			break
		}
	}

	switch {
	case negative && padCh == '0':
		// the sign precedes zero padding
		for digits < width-1 {
			numBuf[digits] = padCh
			digits++
		}
		if digits < numBufSize {
			numBuf[digits] = '-'
			digits++
		}
	case negative:
		// the sign sits right before the first digit, inside the
		// space padding
		if digits < numBufSize {
			numBuf[digits] = '-'
			digits++
		}
		for digits < width {
			numBuf[digits] = padCh
			digits++
		}
	default:
		for digits < width {
			numBuf[digits] = padCh
			digits++
		}
	}

	for i := digits - 1; i >= 0; i-- {
		emitByte(w, numBuf[i])
	}
}

func abs64(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}

func emitByte(w io.Writer, b byte) {
	oneByte[0] = b
	emitBytes(w, oneByte)
}

// emitBytes is a write proxy that uses the runtime noescape hack to hide p
// from escape analysis. Without it the compiler cannot prove that p does not
// escape through the unknown io.Writer and every Printf call would allocate.
func emitBytes(w io.Writer, p []byte) {
	sinkWrite(w, noEscape(unsafe.Pointer(&p)))
}

func sinkWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
		return
	}
	earlyBuffer.Write(p)
}

// noEscape hides a pointer from escape analysis. This function is copied over
// from runtime/stubs.go
//
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
