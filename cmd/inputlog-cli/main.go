package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rmacdonaldsmith/inputlog/pkg/httpclient"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	serverURL string
	clientID  string
	token     string
	timeout   time.Duration
	noAuth    bool

	// Global client instance
	client *httpclient.Client
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand builds the command tree
func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "inputlog-cli",
		Short: "inputlog HTTP API command line interface",
		Long: `inputlog-cli talks to an inputlog daemon over its HTTP API.
It appends events, drains the buffer, watches for new records the way a
device reader would, and runs the admin commands (clear, control, stats).`,
		PersistentPreRunE: initializeClient,
		SilenceUsage:      true,
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "inputlog server URL")
	rootCmd.PersistentFlags().StringVar(&clientID, "client-id", "", "Client ID for authentication (\"admin\" for admin commands)")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("INPUTLOG_TOKEN"), "JWT token (default $INPUTLOG_TOKEN)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVar(&noAuth, "no-auth", false, "Skip authentication (for development with --no-auth servers)")

	rootCmd.AddCommand(newAuthCommand())
	rootCmd.AddCommand(newAppendCommand())
	rootCmd.AddCommand(newDrainCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newClearCommand())
	rootCmd.AddCommand(newControlCommand())
	rootCmd.AddCommand(newStatsCommand())
	rootCmd.AddCommand(newHealthCommand())

	return rootCmd
}

// initializeClient sets up the HTTP client with global configuration
func initializeClient(cmd *cobra.Command, args []string) error {
	// Skip client initialization for help commands
	if cmd.Name() == "help" || cmd.Parent() == nil {
		return nil
	}

	effectiveClientID := clientID
	if effectiveClientID == "" {
		effectiveClientID = "cli"
	}

	var err error
	client, err = httpclient.NewClient(httpclient.Config{
		ServerURL: serverURL,
		ClientID:  effectiveClientID,
		Timeout:   timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	if token != "" {
		client.SetToken(token)
	} else if noAuth {
		// Dummy token to pass client-side auth checks
		client.SetToken("no-auth-mode")
	}

	return nil
}

// requireAuthentication makes sure the client holds a token, logging in
// with --client-id when none was given
func requireAuthentication(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("client not initialized")
	}
	if client.IsAuthenticated() {
		return nil
	}
	if clientID == "" {
		return fmt.Errorf("not authenticated - provide --client-id, --token or --no-auth")
	}

	if _, err := client.Authenticate(ctx); err != nil {
		return err
	}
	return nil
}
