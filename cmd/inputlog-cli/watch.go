package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/rmacdonaldsmith/inputlog/internal/control"
	"github.com/rmacdonaldsmith/inputlog/internal/recordfilter"
	"github.com/rmacdonaldsmith/inputlog/pkg/eventbuf"
	"github.com/rmacdonaldsmith/inputlog/pkg/httpclient"
	"github.com/spf13/cobra"
)

// watchOptions configures the watch loop
type watchOptions struct {
	match   string
	filter  string
	all     bool
	noClear bool
	stream  bool
	max     int
}

func newWatchCommand() *cobra.Command {
	opts := watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Clear the buffer, then print new records as they arrive",
		Long: `Watch clears the buffer (admin), then repeatedly drains it, splits each
block into records and prints the ones that pass the filter. By default only
records containing "Click" are printed.

  inputlog-cli --client-id admin watch
  inputlog-cli --client-id admin watch --all
  inputlog-cli --client-id admin watch --filter 'record.startsWith("Mouse Move")'

Press Ctrl+C to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.match, "match", "Click", "Print only records containing this text")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "CEL expression over `record` that must be true")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Print every record (ignores --match)")
	cmd.Flags().BoolVar(&opts.noClear, "no-clear", false, "Keep records buffered before the watch started")
	cmd.Flags().BoolVar(&opts.stream, "stream", false, "Use the server-sent event stream instead of blocking drains")
	cmd.Flags().IntVar(&opts.max, "max", 0, "Largest block to accept per drain in bytes (0 = no limit)")

	return cmd
}

func runWatch(cmd *cobra.Command, opts watchOptions) error {
	keyword := opts.match
	if opts.all {
		keyword = ""
	}
	filter, err := recordfilter.New(keyword, opts.filter)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := requireAuthentication(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !opts.noClear {
		if _, err := client.Control(ctx, control.CommandClear.String()); err != nil {
			return fmt.Errorf("failed to clear buffer: %w", err)
		}
	}

	fmt.Fprintln(out, "Listening for mouse events...")

	if opts.stream {
		err = watchStream(ctx, out, filter)
	} else {
		err = watchDrain(ctx, out, filter, opts.max)
	}
	if ctx.Err() != nil {
		fmt.Fprintln(out, "\n🛑 Stopped watching")
		return nil
	}
	return err
}

// watchDrain loops on blocking drains until ctx is done
func watchDrain(ctx context.Context, out io.Writer, filter *recordfilter.Filter, maxBytes int) error {
	for {
		resp, err := client.Drain(ctx, httpclient.DrainOptions{Max: maxBytes})
		if err != nil {
			if errors.Is(err, eventbuf.ErrInterrupted) {
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}

		if err := printRecords(out, filter, resp.Data); err != nil {
			return err
		}
	}
}

// watchStream prints blocks delivered over server-sent events
func watchStream(ctx context.Context, out io.Writer, filter *recordfilter.Filter) error {
	stream, err := client.Stream(ctx, httpclient.StreamConfig{})
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-stream.Events():
			if !ok {
				return nil
			}
			for _, record := range msg.Records {
				if err := printRecord(out, filter, record); err != nil {
					return err
				}
			}
		case err, ok := <-stream.Errors():
			if !ok {
				return nil
			}
			if errors.Is(err, eventbuf.ErrClosed) {
				return fmt.Errorf("server closed the buffer")
			}
			fmt.Fprintf(out, "❌ Stream error: %v\n", err)
		}
	}
}

// printRecords prints the records of a drained block that pass filter
func printRecords(out io.Writer, filter *recordfilter.Filter, block string) error {
	kept, err := filter.Apply(block)
	if err != nil {
		return err
	}
	for _, record := range kept {
		fmt.Fprintf(out, "Mouse Event: %s\n", record)
	}
	return nil
}

func printRecord(out io.Writer, filter *recordfilter.Filter, record string) error {
	ok, err := filter.Match(record)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintf(out, "Mouse Event: %s\n", record)
	}
	return nil
}
