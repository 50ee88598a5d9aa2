package inputevent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/rmacdonaldsmith/inputlog/pkg/eventbuf"
)

// Source yields raw input events. Next returns io.EOF when no more events
// will arrive.
type Source interface {
	Next(ctx context.Context) (Event, error)
}

// ChannelSource adapts a channel of events to a Source. A closed channel
// reads as io.EOF.
type ChannelSource <-chan Event

// Next waits for the next event or for ctx to be done.
func (c ChannelSource) Next(ctx context.Context) (Event, error) {
	select {
	case e, ok := <-c:
		if !ok {
			return Event{}, io.EOF
		}
		return e, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Ingestor moves events from a Source into the event buffer.
type Ingestor struct {
	source Source
	sink   eventbuf.Appender
	logger *slog.Logger

	ingested atomic.Uint64
	ignored  atomic.Uint64
}

// NewIngestor creates an Ingestor. A nil logger uses slog.Default().
func NewIngestor(source Source, sink eventbuf.Appender, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		source: source,
		sink:   sink,
		logger: logger.With("component", "ingestor"),
	}
}

// Run forwards events until the source is exhausted (nil) or ctx is done
// (ctx.Err()). Source failures are returned wrapped.
func (i *Ingestor) Run(ctx context.Context) error {
	i.logger.Info("ingestor started")
	defer i.logger.Info("ingestor stopped", "ingested", i.ingested.Load(), "ignored", i.ignored.Load())

	for {
		event, err := i.source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("input source failed: %w", err)
		}

		record, ok := Format(event)
		if !ok {
			i.ignored.Add(1)
			continue
		}
		i.sink.Append(record)
		i.ingested.Add(1)
	}
}

// Ingested returns the number of events appended to the buffer.
func (i *Ingestor) Ingested() uint64 {
	return i.ingested.Load()
}

// Ignored returns the number of events that produced no record.
func (i *Ingestor) Ignored() uint64 {
	return i.ignored.Load()
}
