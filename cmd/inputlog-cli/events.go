package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rmacdonaldsmith/inputlog/pkg/eventbuf"
	"github.com/rmacdonaldsmith/inputlog/pkg/httpclient"
	"github.com/spf13/cobra"
)

func newAppendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "append <event>...",
		Short: "Append an event to the buffer",
		Long: `Append an event description to the buffer. Multiple arguments are
joined with spaces, so quoting is optional:

  inputlog-cli append Left Click`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAppend,
	}

	return cmd
}

func runAppend(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if err := requireAuthentication(ctx); err != nil {
		return err
	}

	event := strings.Join(args, " ")
	resp, err := client.Append(ctx, event)
	if err != nil {
		return err
	}

	if !resp.Stored() {
		fmt.Fprintf(cmd.OutOrStdout(), "⚠️  Event %q was not stored: %s\n", event, resp.Status)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Appended %q (%d bytes)\n", event, resp.Bytes)
	if resp.Evicted > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "   %d older record(s) evicted\n", resp.Evicted)
	}
	return nil
}

func newDrainCommand() *cobra.Command {
	var (
		nonBlocking bool
		maxBytes    int
	)

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Take everything in the buffer",
		Long: `Drain returns every buffered record and empties the buffer. Without
--nonblock it waits until at least one record is available.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrain(cmd, nonBlocking, maxBytes)
		},
	}

	cmd.Flags().BoolVar(&nonBlocking, "nonblock", false, "Return immediately when the buffer is empty")
	cmd.Flags().IntVar(&maxBytes, "max", 0, "Largest block to accept in bytes (0 = no limit)")

	return cmd
}

func runDrain(cmd *cobra.Command, nonBlocking bool, maxBytes int) error {
	ctx := cmd.Context()
	if nonBlocking {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := requireAuthentication(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	resp, err := client.Drain(ctx, httpclient.DrainOptions{NonBlocking: nonBlocking, Max: maxBytes})
	switch {
	case errors.Is(err, eventbuf.ErrWouldBlock):
		fmt.Fprintln(out, "No data available")
		return nil
	case errors.Is(err, eventbuf.ErrShortBuffer):
		return fmt.Errorf("buffered data exceeds --max %d; nothing was drained", maxBytes)
	case err != nil:
		return err
	}

	for _, record := range resp.Records {
		fmt.Fprintln(out, record)
	}
	return nil
}
