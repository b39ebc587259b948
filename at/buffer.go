package at

import (
	"bytes"
	"errors"
)

// ErrOverflow is returned when appending a chunk would grow a
// ResponseBuffer past its capacity.
//
// The chunk is rejected as a whole. Truncating it could hide a completion
// marker or corrupt a later field scan, so callers must abort the exchange.
var ErrOverflow = errors.New("response buffer overflow")

// ResponseBuffer accumulates modem output for one command at a time.
//
// The backing storage is allocated once and reused across Reset calls. One
// slot of the capacity stays reserved, so at most Cap()-1 bytes are ever
// held.
type ResponseBuffer struct {
	buf []byte
	n   int
}

// NewResponseBuffer allocates a buffer with the given total capacity.
func NewResponseBuffer(capacity int) *ResponseBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ResponseBuffer{buf: make([]byte, capacity)}
}

// Reset empties the buffer without releasing its storage.
func (b *ResponseBuffer) Reset() {
	b.n = 0
}

// Append copies chunk to the end of the accumulated text.
func (b *ResponseBuffer) Append(chunk []byte) error {
	if b.n+len(chunk) > len(b.buf)-1 {
		return ErrOverflow
	}
	b.n += copy(b.buf[b.n:], chunk)
	return nil
}

// Contains reports whether marker appears anywhere in the accumulated text.
func (b *ResponseBuffer) Contains(marker string) bool {
	return bytes.Contains(b.buf[:b.n], []byte(marker))
}

// Bytes returns the accumulated text. The slice aliases the buffer and is
// only valid until the next Reset or Append.
func (b *ResponseBuffer) Bytes() []byte {
	return b.buf[:b.n]
}

func (b *ResponseBuffer) String() string {
	return string(b.buf[:b.n])
}

// Len returns the number of accumulated bytes.
func (b *ResponseBuffer) Len() int { return b.n }

// Cap returns the total capacity, including the reserved slot.
func (b *ResponseBuffer) Cap() int { return len(b.buf) }
