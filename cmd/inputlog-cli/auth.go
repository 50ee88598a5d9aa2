package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with the inputlog server",
		Long: `Authenticate with the inputlog server using your client ID.
This generates a JWT token that can be reused with --token or $INPUTLOG_TOKEN.`,
		RunE: runAuth,
	}

	return cmd
}

func runAuth(cmd *cobra.Command, args []string) error {
	if clientID == "" {
		return fmt.Errorf("client-id is required")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Authenticating with server %s as client %s...\n", serverURL, clientID)

	resp, err := client.Authenticate(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "✅ Authentication successful!\n")
	if resp.IsAdmin {
		fmt.Fprintf(out, "Admin: yes\n")
	}
	fmt.Fprintf(out, "Expires: %s\n", resp.ExpiresAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Token: %s\n", resp.Token)
	fmt.Fprintf(out, "\nSave the token for future use:\n")
	fmt.Fprintf(out, "  export INPUTLOG_TOKEN=\"%s\"\n", resp.Token)
	fmt.Fprintf(out, "  inputlog-cli drain --nonblock\n")

	return nil
}
