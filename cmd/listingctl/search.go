package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/yourorg/listing-sync/internal/app"
	"github.com/yourorg/listing-sync/internal/events"
	"github.com/yourorg/listing-sync/internal/finder"
	"github.com/yourorg/listing-sync/internal/listing"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search listings and stream agent detail as it resolves",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		q, err := queryFromFlags(cmd)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		snap, err := searchAndEnrich(ctx, env, q, func(evt events.AgentResolved) {
			if !asJSON {
				fmt.Fprintf(cmd.OutOrStdout(), "agent  %-12s %s | %s | %s\n",
					evt.ListingID, evt.Agent.Name, evt.Agent.Phone, evt.Agent.Email)
			}
		})
		if err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d listings\n", len(snap.Listings), snap.Total)
		formatListings(cmd.OutOrStdout(), snap.Listings)
		return nil
	},
}

// searchAndEnrich runs a search, reports each agent resolution to onAgent as
// it lands, and returns the snapshot once enrichment has finished.
func searchAndEnrich(ctx context.Context, env *app.Env, q listing.Query, onAgent func(events.AgentResolved)) (finder.Snapshot, error) {
	ch, unsub := env.Hub.SubscribeAgentResolved(256)
	defer unsub()

	if _, err := env.Finder.Search(ctx, q); err != nil {
		return finder.Snapshot{}, err
	}

	done := make(chan error, 1)
	go func() { done <- env.Finder.Wait(ctx) }()

	for {
		select {
		case evt := <-ch:
			if onAgent != nil {
				onAgent(evt)
			}
		case err := <-done:
			// Drain what was published before the run finished.
			for {
				select {
				case evt := <-ch:
					if onAgent != nil {
						onAgent(evt)
					}
				default:
					if err != nil {
						return finder.Snapshot{}, eris.Wrap(err, "enrichment interrupted")
					}
					return env.Finder.Current(), nil
				}
			}
		}
	}
}

func queryFromFlags(cmd *cobra.Command) (listing.Query, error) {
	f := cmd.Flags()
	location, _ := f.GetString("location")
	state, _ := f.GetString("state")
	types, _ := f.GetStringSlice("type")
	minPrice, _ := f.GetInt("min-price")
	maxPrice, _ := f.GetInt("max-price")
	beds, _ := f.GetInt("beds")
	baths, _ := f.GetInt("baths")
	minSqft, _ := f.GetInt("min-sqft")
	maxSqft, _ := f.GetInt("max-sqft")
	sort, _ := f.GetString("sort")
	page, _ := f.GetInt("page")

	q := listing.Query{
		Location: location,
		State:    state,
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Beds:     beds,
		Baths:    baths,
		MinSqft:  minSqft,
		MaxSqft:  maxSqft,
		Sort:     sort,
		Page:     page,
	}
	for _, t := range types {
		q.HomeTypes = append(q.HomeTypes, listing.PropertyType(t))
	}
	q = q.Normalize()
	return q, q.Validate()
}

func addQueryFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("location", "", "city to search (required)")
	f.String("state", "", "state name or two-letter code (required)")
	f.StringSlice("type", nil, "property types: Houses, Apartments, Condos, Townhomes, Manufactured, Lots/Land, Multi-family (default all)")
	f.Int("min-price", 0, "minimum price")
	f.Int("max-price", 0, "maximum price (default no limit)")
	f.Int("beds", 0, "minimum bedrooms")
	f.Int("baths", 0, "minimum bathrooms")
	f.Int("min-sqft", 0, "minimum square feet")
	f.Int("max-sqft", 0, "maximum square feet (default no limit)")
	f.String("sort", "", "provider sort order")
	f.Int("page", 1, "result page")
}

func formatListings(w io.Writer, ls []listing.Listing) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tADDRESS\tPRICE\tBEDS\tBATHS\tSQFT\tYEAR\tAGENT\tPHONE")
	for _, l := range ls {
		year := "-"
		if l.YearBuilt > 0 {
			year = fmt.Sprint(l.YearBuilt)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.1f\t%d\t%s\t%s\t%s\n",
			l.ID, l.OneLine(), l.Price, l.Beds, l.Baths, l.Sqft, year, l.Agent.Name, l.Agent.Phone)
	}
	_ = tw.Flush()
}

func init() {
	addQueryFlags(searchCmd)
	searchCmd.Flags().Bool("json", false, "print the final result as JSON")
	rootCmd.AddCommand(searchCmd)
}
