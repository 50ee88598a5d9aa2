package main

import (
	"context"
	"fmt"

	"github.com/rmacdonaldsmith/inputlog/internal/control"
	"github.com/spf13/cobra"
)

func newClearCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Discard everything in the buffer (admin)",
		RunE:  runClear,
	}

	return cmd
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if err := requireAuthentication(ctx); err != nil {
		return err
	}

	if _, err := client.Reset(ctx); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✅ Buffer cleared")
	return nil
}

func newControlCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "control <command>",
		Short: "Send a control command (admin)",
		Long: `Send a control command by name or number. "clear" (0x4d01) empties the
buffer; any other command is rejected by the server.`,
		Args: cobra.ExactArgs(1),
		RunE: runControl,
	}

	return cmd
}

func runControl(cmd *cobra.Command, args []string) error {
	command, err := control.ParseCommand(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if err := requireAuthentication(ctx); err != nil {
		return err
	}

	resp, err := client.Control(ctx, command.String())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ %s (0x%04x): %s\n", resp.Command, resp.Code, resp.Status)
	return nil
}

func newStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show buffer statistics (admin)",
		RunE:  runStats,
	}

	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if err := requireAuthentication(ctx); err != nil {
		return err
	}

	stats, err := client.Stats(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Buffer: %d/%d bytes (%s)\n", stats.Length, stats.Capacity, stats.Policy)
	fmt.Fprintf(out, "Has data: %t\n", stats.HasData)
	fmt.Fprintf(out, "Appended: %d\n", stats.Appended)
	fmt.Fprintf(out, "Evicted: %d\n", stats.Evicted)
	fmt.Fprintf(out, "Rejected: %d\n", stats.Rejected)
	fmt.Fprintf(out, "Oversized: %d\n", stats.Oversized)
	fmt.Fprintf(out, "Drains: %d\n", stats.Drains)
	fmt.Fprintf(out, "Resets: %d\n", stats.Resets)
	return nil
}
