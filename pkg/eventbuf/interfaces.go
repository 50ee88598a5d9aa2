package eventbuf

import (
	"context"
	"io"
)

// Appender is the producer-facing side of the buffer.
type Appender interface {
	// Append stores event followed by a newline. The event must not contain
	// the delimiter; the caller formats it. Append never blocks on a consumer
	// and has no failure return: when the buffer is full the overflow policy
	// decides which record is lost.
	Append(event string)
}

// Drainer is the consumer-facing side of the buffer.
type Drainer interface {
	// Drain returns the entire buffered contents and empties the buffer.
	// With nonBlocking set it returns ErrWouldBlock instead of waiting on an
	// empty buffer. A cancelled ctx yields ErrInterrupted and consumes nothing.
	Drain(ctx context.Context, nonBlocking bool) (string, error)

	// DrainInto is Drain into caller-owned memory. If dst cannot hold the
	// buffered contents ErrShortBuffer is returned and the buffer is unchanged.
	DrainInto(ctx context.Context, dst []byte, nonBlocking bool) (int, error)
}

// Resetter is the administrative side of the buffer.
type Resetter interface {
	// Reset discards all buffered records. It is idempotent.
	Reset()
}

// Store combines all three access paths over one guarded buffer.
type Store interface {
	io.Closer
	Appender
	Drainer
	Resetter

	// Stats returns a consistent snapshot of the buffer state and counters.
	Stats() Stats
}

// Stats is a point-in-time view of a Store.
type Stats struct {
	Capacity int    // Fixed size of the buffer in bytes
	Length   int    // Bytes currently buffered
	HasData  bool   // True iff Length > 0
	Policy   Policy // Overflow policy in effect

	Appended  uint64 // Records accepted by Append
	Evicted   uint64 // Old records removed to make room (PolicyEvictOldest)
	Rejected  uint64 // New records discarded because the buffer was full (PolicyRejectNewest)
	Oversized uint64 // Records that could never fit in the buffer
	Drains    uint64 // Successful drains
	Resets    uint64 // Reset calls
}
