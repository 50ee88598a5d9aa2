package eventbuf

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/rmacdonaldsmith/inputlog/pkg/eventbuf"
)

// Store implements eventbuf.Store over a fixed-size byte region.
//
// The contents, length and hasData flag form one unit guarded by mu. The ready
// channel is closed exactly while hasData is true: Append closes it on the
// empty to non-empty transition and the emptying paths replace it with a fresh
// one. A consumer captures ready under the guard before it sleeps, so an
// append that lands between the check and the wait still wakes it.
//
// It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	buf     []byte
	length  int
	hasData bool
	ready   chan struct{}

	closed bool
	done   chan struct{}

	policy      eventbuf.Policy
	nonBlocking bool
	logger      *slog.Logger

	appended  uint64
	evicted   uint64
	rejected  uint64
	oversized uint64
	drains    uint64
	resets    uint64
}

// NewStore creates an empty Store. A nil config gets all defaults.
func NewStore(config *Config) (*Store, error) {
	var cfg Config
	if config != nil {
		cfg = *config
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event buffer config: %w", err)
	}

	return &Store{
		buf:         make([]byte, cfg.Capacity),
		ready:       make(chan struct{}),
		done:        make(chan struct{}),
		policy:      cfg.Policy,
		nonBlocking: !cfg.DisableNonBlocking,
		logger:      cfg.Logger,
	}, nil
}

// Append stores event plus a trailing newline. It only ever waits for the
// guard, whose critical sections are bounded, and never allocates.
func (s *Store) Append(event string) {
	s.Offer(event)
}

// Offer is Append that also reports what happened to the record and how many
// older records were evicted to make room for it.
func (s *Store) Offer(event string) (eventbuf.Outcome, int) {
	needed := len(event) + 1

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return eventbuf.OutcomeClosed, 0
	}

	if needed > len(s.buf) {
		s.oversized++
		s.mu.Unlock()
		if s.logger.Enabled(context.Background(), slog.LevelDebug) {
			s.logger.Debug("event dropped: larger than buffer", "bytes", needed, "capacity", len(s.buf))
		}
		return eventbuf.OutcomeOversized, 0
	}

	evicted := 0
	if s.length+needed > len(s.buf) {
		if s.policy == eventbuf.PolicyRejectNewest {
			s.rejected++
			buffered := s.length
			s.mu.Unlock()
			if s.logger.Enabled(context.Background(), slog.LevelDebug) {
				s.logger.Debug("event discarded: buffer full", "event", event, "buffered", buffered, "capacity", len(s.buf))
			}
			return eventbuf.OutcomeRejected, 0
		}
		evicted = s.makeRoomLocked(needed)
	}

	start := s.length
	n := copy(s.buf[start:], event)
	for i := start; i < start+n; i++ {
		if s.buf[i] == '\n' || s.buf[i] == '\r' {
			s.buf[i] = ' '
		}
	}
	s.buf[start+n] = '\n'
	s.length += needed
	s.appended++

	s.markReadyLocked()
	s.mu.Unlock()
	return eventbuf.OutcomeStored, evicted
}

// Restore puts a drained block that never reached its consumer back at the
// front of the buffer, ahead of anything appended since. Records already
// buffered are never displaced: when the block does not fit in the free space
// its oldest records are dropped and counted as evicted. A closed store
// ignores the block, as does one whose block does not end on a record boundary.
func (s *Store) Restore(block string) {
	if block == "" || block[len(block)-1] != '\n' {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	free := len(s.buf) - s.length
	for len(block) > free {
		idx := strings.IndexByte(block, '\n')
		block = block[idx+1:]
		s.evicted++
	}
	if block == "" {
		return
	}

	copy(s.buf[len(block):], s.buf[:s.length])
	copy(s.buf, block)
	s.length += len(block)
	s.markReadyLocked()
}

// markReadyLocked wakes waiting consumers on the empty to non-empty transition.
func (s *Store) markReadyLocked() {
	if !s.hasData {
		s.hasData = true
		close(s.ready)
	}
}

// makeRoomLocked evicts the oldest records until needed bytes fit and returns
// how many it removed. needed must not exceed the capacity.
func (s *Store) makeRoomLocked(needed int) int {
	evicted := 0
	for s.length+needed > len(s.buf) {
		idx := bytes.IndexByte(s.buf[:s.length], '\n')
		if idx < 0 {
			// No record boundary left: the contents cannot be trusted.
			s.length = 0
			continue
		}
		shift := idx + 1
		copy(s.buf, s.buf[shift:s.length])
		s.length -= shift
		s.evicted++
		evicted++
	}
	return evicted
}

// Drain waits for records and returns the entire buffer, leaving it empty.
func (s *Store) Drain(ctx context.Context, nonBlocking bool) (string, error) {
	if err := s.waitForData(ctx, nonBlocking); err != nil {
		return "", err
	}

	out := string(s.buf[:s.length])
	s.clearLocked()
	s.drains++
	s.mu.Unlock()

	return out, nil
}

// DrainInto copies the entire buffer into dst and empties it. When dst is too
// small nothing is consumed and ErrShortBuffer is returned.
func (s *Store) DrainInto(ctx context.Context, dst []byte, nonBlocking bool) (int, error) {
	if err := s.waitForData(ctx, nonBlocking); err != nil {
		return 0, err
	}

	if len(dst) < s.length {
		pending := s.length
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: %d bytes pending, %d available", eventbuf.ErrShortBuffer, pending, len(dst))
	}

	n := copy(dst, s.buf[:s.length])
	s.clearLocked()
	s.drains++
	s.mu.Unlock()

	return n, nil
}

// waitForData acquires the guard and waits until the buffer holds data.
// On a nil return the guard is still held and the caller must release it;
// on error the guard has already been released.
func (s *Store) waitForData(ctx context.Context, nonBlocking bool) error {
	s.mu.Lock()
	for {
		if s.closed {
			s.mu.Unlock()
			return eventbuf.ErrClosed
		}
		if s.length > 0 {
			return nil
		}
		if nonBlocking && s.nonBlocking {
			s.mu.Unlock()
			return eventbuf.ErrWouldBlock
		}

		ready := s.ready
		s.mu.Unlock()

		select {
		case <-ready:
		case <-s.done:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", eventbuf.ErrInterrupted, context.Cause(ctx))
		}

		s.mu.Lock()
	}
}

// Reset discards all buffered records. Nobody is woken: there is nothing to
// wake for on an empty buffer.
func (s *Store) Reset() {
	s.mu.Lock()
	s.clearLocked()
	s.resets++
	s.mu.Unlock()
}

// clearLocked empties the buffer and re-arms the ready channel.
func (s *Store) clearLocked() {
	s.length = 0
	if s.hasData {
		s.hasData = false
		s.ready = make(chan struct{})
	}
}

// Stats returns a snapshot taken under the guard.
func (s *Store) Stats() eventbuf.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return eventbuf.Stats{
		Capacity:  len(s.buf),
		Length:    s.length,
		HasData:   s.hasData,
		Policy:    s.policy,
		Appended:  s.appended,
		Evicted:   s.evicted,
		Rejected:  s.rejected,
		Oversized: s.oversized,
		Drains:    s.drains,
		Resets:    s.resets,
	}
}

// Capacity returns the fixed size of the buffer in bytes.
func (s *Store) Capacity() int {
	return len(s.buf)
}

// Close releases blocked consumers and discards the contents. Later drains
// return ErrClosed and later appends are ignored. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	s.clearLocked()

	return nil
}

// Verify that Store implements the eventbuf.Store interface at compile time
var _ eventbuf.Store = (*Store)(nil)
