package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/autopublisher/internal/observability"
	"github.com/jonathan/autopublisher/internal/publishing"
	"github.com/jonathan/autopublisher/internal/types"
)

var platformsInsights bool

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "Show platform configuration and credential status",
	RunE:  runPlatforms,
}

func init() {
	platformsCmd.Flags().BoolVar(&platformsInsights, "insights", false, "Also fetch Instagram account insights")
	rootCmd.AddCommand(platformsCmd)
}

func runPlatforms(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	observability.NewPrinter(out).PrintPlatforms(newPublishingService(cfg, logger, nil).PlatformStatuses(ctx))
	if !platformsInsights {
		return nil
	}

	p, err := newFactory(cfg, logger).Create(types.PlatformInstagram, cfg.Platforms)
	if err != nil {
		return fmt.Errorf("instagram: %w", err)
	}
	instagram, ok := p.(*publishing.InstagramPublisher)
	if !ok {
		return fmt.Errorf("instagram publisher is not available")
	}
	insights, err := instagram.AccountInsights(ctx, nil)
	if err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(insights, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal insights: %w", err)
	}
	_, err = fmt.Fprintf(out, "\nInstagram insights:\n%s\n", encoded)
	return err
}
