package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yourorg/listing-sync/internal/ghl"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Search, enrich and export listings as CRM contacts",
	Long: "Runs a search, waits for agent enrichment, then exports the selected listings " +
		"(all of them by default). Requires a stored CRM token. The memory token backend " +
		"does not survive between invocations, so set tokens.backend to redis or postgres.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		q, err := queryFromFlags(cmd)
		if err != nil {
			return err
		}
		ids, _ := cmd.Flags().GetStringSlice("id")

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if !env.Tokens.IsValid(ctx) {
			return authorizationHint(cmd.ErrOrStderr(), env.Flow)
		}

		if _, err := searchAndEnrich(ctx, env, q, nil); err != nil {
			return err
		}
		ls, err := env.Finder.Listings(ids)
		if err != nil {
			return err
		}
		if len(ls) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No listings to export.")
			return nil
		}

		batch, err := env.Gateway.ExportMany(ctx, ls)
		formatOutcomes(cmd.OutOrStdout(), batch)
		if errors.Is(err, ghl.ErrAuthorizationRequired) {
			return authorizationHint(cmd.ErrOrStderr(), env.Flow)
		}
		return err
	},
}

func authorizationHint(w io.Writer, flow *ghl.Flow) error {
	if u, err := flow.AuthorizationURL(); err == nil {
		fmt.Fprintf(w, "CRM authorization required. Open:\n  %s\nthen run: listingctl auth exchange <code>\n", u)
	}
	return ghl.ErrAuthorizationRequired
}

func formatOutcomes(w io.Writer, b ghl.BatchResult) {
	for _, o := range b.Outcomes {
		if o.OK {
			fmt.Fprintf(w, "ok      %-12s contact %s\n", o.ListingID, o.Result.ContactID)
			continue
		}
		fmt.Fprintf(w, "failed  %-12s %v\n", o.ListingID, o.Err)
	}
	fmt.Fprintf(w, "%d exported, %d failed\n", b.Succeeded, b.Failed)
}

func init() {
	addQueryFlags(exportCmd)
	exportCmd.Flags().StringSlice("id", nil, "listing ids to export (default all results)")
	rootCmd.AddCommand(exportCmd)
}
