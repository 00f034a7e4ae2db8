package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/autopublisher/internal/observability"
	"github.com/jonathan/autopublisher/internal/types"
)

var publishInput string

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a single post directly",
	Long:  "Reads a PublicationRequest JSON file and publishes it with retries, bypassing the workflow queue.",
	RunE:  runPublish,
}

func init() {
	publishCmd.Flags().StringVarP(&publishInput, "in", "i", "", "Path to PublicationRequest JSON file (required)")
	if err := publishCmd.MarkFlagRequired("in"); err != nil {
		panic(fmt.Sprintf("failed to mark in flag as required: %v", err))
	}
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, _ []string) error {
	var req types.PublicationRequest
	if err := readJSONFile(publishInput, &req); err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	publicationLog, err := openPublicationLog(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if publicationLog != nil {
		defer publicationLog.Close()
	}

	resp, err := newPublishingService(cfg, logger, publicationLog).Publish(ctx, &req)
	if err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintPublication(resp)
	if !resp.Published() {
		return fmt.Errorf("publication %s", resp.Status)
	}
	return nil
}
