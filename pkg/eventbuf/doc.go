// Package eventbuf defines the contract of the bounded event buffer that sits
// between a non-blocking producer of input events and a single blocking
// consumer.
//
// The buffer holds newline-terminated text records in a fixed-capacity region:
//   - Appender: producer side. Append never blocks on the consumer and never fails.
//   - Drainer: consumer side. Drain waits until records exist and then hands
//     back the whole buffer at once, leaving it empty.
//   - Resetter: administrative side. Reset empties the buffer unconditionally.
//
// The interfaces use Go idioms:
//   - context.Context for cancelling a blocked Drain (the store is left untouched)
//   - Sentinel errors (ErrWouldBlock, ErrInterrupted, ...) checked with errors.Is
//   - io.Closer for tearing the buffer down at shutdown
//
// Example usage:
//
//	// Producer
//	store.Append("Left Click")
//
//	// Consumer loop
//	for {
//		block, err := store.Drain(ctx, false)
//		if errors.Is(err, eventbuf.ErrInterrupted) {
//			return nil
//		}
//		if err != nil {
//			return err
//		}
//		fmt.Print(block) // "Left Click\n"
//	}
//
//	// Administrative clear
//	store.Reset()
package eventbuf
