package audio

import "sync"

// RingBuffer is a fixed-capacity byte queue between the capture callback and
// the segmentation loop. When a push would exceed capacity the oldest bytes
// are overwritten, so the producer never blocks or fails.
type RingBuffer struct {
	mu      sync.Mutex
	buffer  []byte
	size    int
	readPos int
	length  int
	dropped uint64
}

// NewRingBuffer creates a new ring buffer with the specified size in bytes
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = DefaultFormat().FrameBytes()
	}
	return &RingBuffer{
		buffer: make([]byte, size),
		size:   size,
	}
}

// Push appends data, evicting the oldest bytes if needed
func (rb *RingBuffer) Push(data []byte) {
	if len(data) == 0 {
		return
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	// Only the tail of an oversized push can survive
	if len(data) >= rb.size {
		rb.dropped += uint64(rb.length + len(data) - rb.size)
		copy(rb.buffer, data[len(data)-rb.size:])
		rb.readPos = 0
		rb.length = rb.size
		return
	}

	if overflow := rb.length + len(data) - rb.size; overflow > 0 {
		rb.readPos = (rb.readPos + overflow) % rb.size
		rb.length -= overflow
		rb.dropped += uint64(overflow)
	}

	writePos := (rb.readPos + rb.length) % rb.size
	n := copy(rb.buffer[writePos:], data)
	copy(rb.buffer, data[n:])
	rb.length += len(data)
}

// DrainAll removes and returns everything currently buffered
// Returns nil when the buffer is empty
func (rb *RingBuffer) DrainAll() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.length == 0 {
		return nil
	}

	out := make([]byte, rb.length)
	n := copy(out, rb.buffer[rb.readPos:min(rb.readPos+rb.length, rb.size)])
	copy(out[n:], rb.buffer[:rb.length-n])

	rb.readPos = 0
	rb.length = 0
	return out
}

// Len returns the number of buffered bytes
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.length
}

// Size returns the total size of the buffer
func (rb *RingBuffer) Size() int {
	return rb.size
}

// Dropped returns the number of bytes evicted since creation
func (rb *RingBuffer) Dropped() uint64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.dropped
}
