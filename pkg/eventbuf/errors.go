package eventbuf

import "errors"

var (
	// ErrWouldBlock is returned by a non-blocking drain of an empty buffer.
	ErrWouldBlock = errors.New("eventbuf: no data available")
	// ErrInterrupted is returned when a blocked drain is cancelled before data arrives.
	ErrInterrupted = errors.New("eventbuf: wait interrupted")
	// ErrShortBuffer is returned when the destination cannot hold the buffered records.
	ErrShortBuffer = errors.New("eventbuf: destination buffer too small")
	// ErrClosed is returned by drains on a closed buffer.
	ErrClosed = errors.New("eventbuf: buffer closed")
	// ErrUnsupportedCommand is returned for unknown administrative commands.
	ErrUnsupportedCommand = errors.New("eventbuf: unsupported operation")

	// ErrInvalidCapacity is returned when a configured capacity is not positive.
	ErrInvalidCapacity = errors.New("capacity must be positive")
	// ErrUnknownPolicy is returned for an unrecognised overflow policy.
	ErrUnknownPolicy = errors.New("unknown overflow policy")
)
