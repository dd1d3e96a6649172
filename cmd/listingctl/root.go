package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourorg/listing-sync/internal/app"
	"github.com/yourorg/listing-sync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "listingctl",
	Short: "Search listings, enrich agents and export to the CRM",
	Long: "Runs a listing search, resolves listing-agent detail one listing at a time, " +
		"and exports enriched listings as CRM contacts once the CRM connection is authorized.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// initEnv builds the component graph; callers must Close it.
func initEnv(ctx context.Context) (*app.Env, error) {
	return app.Init(ctx, cfg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
