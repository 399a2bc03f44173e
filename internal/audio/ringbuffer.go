package audio

import "sync"

// RingBuffer is a thread-safe circular byte buffer sitting between a
// device callback and the polling side. When full the oldest bytes are
// overwritten so the callback never blocks.
type RingBuffer struct {
	mu       sync.Mutex
	buf      []byte
	readPos  int
	count    int
	overruns int
}

// NewRingBuffer creates a ring buffer with the given capacity in bytes
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{buf: make([]byte, capacity)}
}

// Write appends p, dropping the oldest bytes on overflow
func (rb *RingBuffer) Write(p []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	size := len(rb.buf)
	if size == 0 {
		return
	}
	if len(p) > size {
		p = p[len(p)-size:]
		rb.readPos = 0
		rb.count = 0
		rb.overruns++
	} else if over := rb.count + len(p) - size; over > 0 {
		rb.overruns++
		rb.readPos = (rb.readPos + over) % size
		rb.count -= over
	}

	writePos := (rb.readPos + rb.count) % size
	n := copy(rb.buf[writePos:], p)
	copy(rb.buf, p[n:])
	rb.count += len(p)
}

// Peek copies up to len(dst) of the oldest bytes into dst without consuming them
func (rb *RingBuffer) Peek(dst []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := min(len(dst), rb.count)
	first := copy(dst[:n], rb.buf[rb.readPos:])
	copy(dst[first:n], rb.buf)
	return n
}

// Discard drops the n oldest bytes and returns how many were dropped
func (rb *RingBuffer) Discard(n int) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n = min(n, rb.count)
	if n <= 0 {
		return 0
	}
	rb.readPos = (rb.readPos + n) % len(rb.buf)
	rb.count -= n
	return n
}

// Len returns the number of buffered bytes
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Overruns returns how many writes lost data
func (rb *RingBuffer) Overruns() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.overruns
}

// Reset empties the buffer
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.readPos = 0
	rb.count = 0
}
