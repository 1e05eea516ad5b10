package tools

import "sync"

const defaultTailSize = 64 * 1024

// TailBuffer is an io.Writer that retains only the newest bytes up to a fixed
// capacity. Command output funnels through it so a runaway `yes` or giant cat
// costs a bounded amount of memory while the interesting tail survives.
type TailBuffer struct {
	mu   sync.Mutex
	ring []byte
	n    int64 // total bytes ever written; n % len(ring) is the write cursor
}

// NewTailBuffer returns a buffer holding at most size bytes. Non-positive
// sizes fall back to 64KB.
func NewTailBuffer(size int) *TailBuffer {
	if size <= 0 {
		size = defaultTailSize
	}
	return &TailBuffer{ring: make([]byte, size)}
}

// Write implements io.Writer and never fails; older bytes are displaced once
// the capacity is exceeded.
func (tb *TailBuffer) Write(p []byte) (int, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	written := len(p)
	// A chunk larger than the ring can only contribute its own tail; account
	// for the skipped prefix so the cursor stays aligned.
	if len(p) > len(tb.ring) {
		tb.n += int64(len(p) - len(tb.ring))
		p = p[len(p)-len(tb.ring):]
	}
	cur := int(tb.n % int64(len(tb.ring)))
	c := copy(tb.ring[cur:], p)
	copy(tb.ring, p[c:])
	tb.n += int64(len(p))
	return written, nil
}

// String returns the retained bytes in the order they were written.
func (tb *TailBuffer) String() string {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	size := int64(len(tb.ring))
	if tb.n <= size {
		return string(tb.ring[:tb.n])
	}
	cur := int(tb.n % size)
	return string(tb.ring[cur:]) + string(tb.ring[:cur])
}

// Len returns the number of retained bytes.
func (tb *TailBuffer) Len() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.n < int64(len(tb.ring)) {
		return int(tb.n)
	}
	return len(tb.ring)
}

// Reset discards all retained bytes.
func (tb *TailBuffer) Reset() {
	tb.mu.Lock()
	tb.n = 0
	tb.mu.Unlock()
}

// Capacity returns the maximum number of bytes the buffer retains.
func (tb *TailBuffer) Capacity() int { return len(tb.ring) }
