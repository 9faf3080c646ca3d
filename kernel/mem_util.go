package kernel

import (
	"reflect"
	"unsafe"
)

// byteSlice overlays a byte slice on top of an arbitrary memory region so
// raw kernel memory can be manipulated with the builtin copy.
func byteSlice(addr, size uintptr) []byte {
	return *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Data: addr,
		Len:  int(size),
		Cap:  int(size),
	}))
}

// Memset fills size bytes starting at addr with value. The filled prefix is
// doubled on every iteration so the region completes in log2(size) copy
// calls instead of a byte loop.
func Memset(addr uintptr, value byte, size uintptr) {
	if size == 0 {
		return
	}

	target := byteSlice(addr, size)
	target[0] = value
	for index := uintptr(1); index < size; index *= 2 {
		copy(target[index:], target[:index])
	}
}

// Memcopy copies size bytes from src to dst. The two regions must not
// overlap.
func Memcopy(src, dst uintptr, size uintptr) {
	if size == 0 {
		return
	}

	copy(byteSlice(dst, size), byteSlice(src, size))
}
