package inputevent

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// RecordSize is the size of struct input_event on 64-bit Linux:
// a 16-byte timeval followed by type (u16), code (u16) and value (s32).
const RecordSize = 24

// Decoder reads evdev records from a character device such as
// /dev/input/event3, or from any reader producing the same layout.
type Decoder struct {
	r     io.Reader
	order binary.ByteOrder
	buf   [RecordSize]byte
}

// NewDecoder creates a Decoder for little-endian records.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, order: binary.LittleEndian}
}

// Next reads one event. It returns io.EOF when the reader is exhausted on a
// record boundary and io.ErrUnexpectedEOF for a truncated record. A blocked
// read is not interrupted by ctx; close the underlying device instead.
func (d *Decoder) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}

	if _, err := io.ReadFull(d.r, d.buf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Event{}, io.EOF
		}
		return Event{}, fmt.Errorf("failed to read input event: %w", err)
	}

	sec := int64(d.order.Uint64(d.buf[0:8]))
	usec := int64(d.order.Uint64(d.buf[8:16]))

	return Event{
		Time:  time.Unix(sec, usec*int64(time.Microsecond)).UTC(),
		Type:  d.order.Uint16(d.buf[16:18]),
		Code:  d.order.Uint16(d.buf[18:20]),
		Value: int32(d.order.Uint32(d.buf[20:24])),
	}, nil
}

// Encode writes e in the layout Decoder reads. It is used to replay
// captured events and by tests.
func Encode(w io.Writer, e Event) error {
	var buf [RecordSize]byte
	order := binary.LittleEndian

	usec := e.Time.UnixMicro()
	order.PutUint64(buf[0:8], uint64(usec/1e6))
	order.PutUint64(buf[8:16], uint64(usec%1e6))
	order.PutUint16(buf[16:18], e.Type)
	order.PutUint16(buf[18:20], e.Code)
	order.PutUint32(buf[20:24], uint32(e.Value))

	_, err := w.Write(buf[:])
	return err
}
