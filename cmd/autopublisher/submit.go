package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/autopublisher/internal/observability"
	"github.com/jonathan/autopublisher/internal/schemas"
	"github.com/jonathan/autopublisher/internal/types"
	"github.com/jonathan/autopublisher/internal/workflow"
	schemafiles "github.com/jonathan/autopublisher/schemas"
)

var submitInput string

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Queue a workflow from a JSON file",
	Long:  "Validates a WorkflowRequest JSON file against its schema and queues it for the worker pool.",
	RunE:  runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&submitInput, "in", "i", "", "Path to WorkflowRequest JSON file (required)")
	if err := submitCmd.MarkFlagRequired("in"); err != nil {
		panic(fmt.Sprintf("failed to mark in flag as required: %v", err))
	}
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	req, err := loadWorkflowRequest(submitInput)
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	broker, err := openBroker(cfg, logger)
	if err != nil {
		return err
	}
	defer broker.Close() //nolint:errcheck

	resp, err := workflow.NewDispatcher(broker, logger).Submit(cmd.Context(), req)
	if err != nil {
		return err
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintWorkflow(resp)
	return nil
}

// loadWorkflowRequest reads a workflow request after checking it against the
// workflow request schema.
func loadWorkflowRequest(path string) (*types.WorkflowRequest, error) {
	if err := schemas.ValidateFile(schemafiles.WorkflowRequest, path); err != nil {
		return nil, fmt.Errorf("invalid workflow request: %w", err)
	}
	var req types.WorkflowRequest
	if err := readJSONFile(path, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
