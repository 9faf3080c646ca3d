package kfmt

// ringBufferSize defines the size of the buffer that captures early Printf
// output. It defaults to enough space for the contents of a standard 80x25
// text-mode console. The size must be a power of 2.
const ringBufferSize = 2048

// ringBuffer is a fixed-size byte ring used to buffer Printf output emitted
// before the console subsystem registers an output sink. When the buffer
// fills up, the oldest data is overwritten.
type ringBuffer struct {
	buffer         [ringBufferSize]byte
	rIndex, wIndex int
}

// Write writes len(p) bytes from p to the ring buffer. It never fails.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.buffer[rb.wIndex] = b
		rb.wIndex = (rb.wIndex + 1) & (ringBufferSize - 1)
		if rb.rIndex == rb.wIndex {
			rb.rIndex = (rb.rIndex + 1) & (ringBufferSize - 1)
		}
	}

	return len(p), nil
}

// Read reads up to len(p) bytes into p, returning the number of bytes read.
// A read past the buffered data returns n == 0 with a nil error.
func (rb *ringBuffer) Read(p []byte) (n int, err error) {
	switch {
	case rb.rIndex < rb.wIndex:
		n = rb.wIndex - rb.rIndex
		if pLen := len(p); pLen < n {
			n = pLen
		}
		copy(p, rb.buffer[rb.rIndex:rb.rIndex+n])
		rb.rIndex += n
	case rb.rIndex > rb.wIndex:
		// the buffered data wraps around; serve the tail segment first
		// and let the caller issue a followup read for the rest
		n = ringBufferSize - rb.rIndex
		if pLen := len(p); pLen < n {
			n = pLen
		}
		copy(p, rb.buffer[rb.rIndex:rb.rIndex+n])
		rb.rIndex = (rb.rIndex + n) & (ringBufferSize - 1)
	}

	return n, nil
}
