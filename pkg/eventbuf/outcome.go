package eventbuf

import "fmt"

// Outcome reports what an append did with its record.
type Outcome int

const (
	// OutcomeStored means the record is in the buffer. Older records may
	// have been evicted to make room.
	OutcomeStored Outcome = iota
	// OutcomeRejected means the buffer was full under PolicyRejectNewest.
	OutcomeRejected
	// OutcomeOversized means the record can never fit in the buffer.
	OutcomeOversized
	// OutcomeClosed means the buffer was closed and ignored the record.
	OutcomeClosed
)

// String returns the wire name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeStored:
		return "stored"
	case OutcomeRejected:
		return "rejected"
	case OutcomeOversized:
		return "oversized"
	case OutcomeClosed:
		return "closed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}
