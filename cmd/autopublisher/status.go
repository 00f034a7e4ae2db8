package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/autopublisher/internal/observability"
	"github.com/jonathan/autopublisher/internal/workflow"
)

var statusCmd = &cobra.Command{
	Use:   "status <workflow-id>",
	Short: "Show the status of a queued workflow",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	broker, err := openBroker(cfg, logger)
	if err != nil {
		return err
	}
	defer broker.Close() //nolint:errcheck

	resp, err := workflow.NewDispatcher(broker, logger).Status(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintWorkflow(resp)
	return nil
}
