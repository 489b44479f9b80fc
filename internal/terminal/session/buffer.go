package session

import "sync"

// OutputBuffer is a bounded FIFO of output chunks used by the polling
// transport. When full, the oldest chunk is dropped. Draining removes
// exactly the drained prefix: each byte is delivered to at most one caller.
type OutputBuffer struct {
	mu       sync.Mutex
	chunks   [][]byte
	maxChunk int
	dropped  int64
}

// NewOutputBuffer creates a buffer capped at maxChunks entries.
func NewOutputBuffer(maxChunks int) *OutputBuffer {
	if maxChunks <= 0 {
		maxChunks = 1000
	}
	return &OutputBuffer{maxChunk: maxChunks}
}

// Append adds a chunk, evicting the oldest entry on overflow.
func (b *OutputBuffer) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	owned := make([]byte, len(chunk))
	copy(owned, chunk)

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.chunks) >= b.maxChunk {
		b.chunks = b.chunks[1:]
		b.dropped++
	}
	b.chunks = append(b.chunks, owned)
}

// Drain returns all buffered bytes in FIFO order and clears the buffer.
func (b *OutputBuffer) Drain() []byte {
	b.mu.Lock()
	chunks := b.chunks
	b.chunks = nil
	b.mu.Unlock()

	if len(chunks) == 0 {
		return nil
	}

	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// Len returns the number of buffered chunks.
func (b *OutputBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// Dropped returns how many chunks were evicted due to overflow.
func (b *OutputBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
