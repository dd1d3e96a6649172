package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourorg/listing-sync/internal/tokenstore"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the CRM OAuth connection",
}

// -- auth url --

var authURLCmd = &cobra.Command{
	Use:   "url",
	Short: "Print the CRM consent URL",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		u, err := env.Flow.AuthorizationURL()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), u)
		return nil
	},
}

// -- auth exchange --

var authExchangeCmd = &cobra.Command{
	Use:   "exchange <code>",
	Short: "Exchange an authorization code and store the token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		b, err := env.Flow.Exchange(ctx, args[0])
		if err != nil {
			return err
		}
		if err := env.Tokens.Set(ctx, b); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Connected location %s until %s\n", b.LocationID, b.ExpiresAt.Format(time.RFC3339))
		return nil
	},
}

// -- auth status --

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a valid CRM token is stored",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		b, ok, err := env.Tokens.Get(ctx)
		if err != nil {
			return err
		}
		switch {
		case !ok:
			fmt.Fprintln(cmd.OutOrStdout(), "Not connected.")
		case !tokenstore.Valid(b, time.Now()):
			fmt.Fprintf(cmd.OutOrStdout(), "Token for location %s expired at %s.\n", b.LocationID, b.ExpiresAt.Format(time.RFC3339))
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "Connected location %s until %s.\n", b.LocationID, b.ExpiresAt.Format(time.RFC3339))
		}
		return nil
	},
}

// -- auth disconnect --

var authDisconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Remove the stored CRM token",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Tokens.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Disconnected.")
		return nil
	},
}

func init() {
	authCmd.AddCommand(authURLCmd, authExchangeCmd, authStatusCmd, authDisconnectCmd)
	rootCmd.AddCommand(authCmd)
}
