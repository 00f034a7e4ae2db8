// Package workflow runs content workflows: generate an article, publish it to
// each target, and report progress and results through the task queue.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonathan/autopublisher/internal/content"
	"github.com/jonathan/autopublisher/internal/observability"
	"github.com/jonathan/autopublisher/internal/publishing"
	"github.com/jonathan/autopublisher/internal/types"
)

// Progress schedule.
const (
	ProgressInitializing = 10
	ProgressGenerating   = 20
	ProgressPublishing   = 60
	ProgressCompleted    = 100
)

// Step descriptions reported with progress.
const (
	StepInitializing = "Initializing workflow"
	StepGenerating   = "Generating content"
	StepPublishing   = "Publishing content"
	StepCompleted    = "Workflow completed"
)

// ProgressFunc receives progress updates from a running workflow.
type ProgressFunc func(progress int, step string)

// Runner executes one workflow end to end.
type Runner struct {
	generator content.Generator
	service   *publishing.Service
	logger    *slog.Logger
}

// NewRunner creates a runner.
func NewRunner(generator content.Generator, service *publishing.Service, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = observability.Discard()
	}
	return &Runner{generator: generator, service: service, logger: logger}
}

// Run executes the workflow and always returns a result. Content generation
// failure fails the workflow; a target failure is recorded in that target's
// result and the remaining targets are still attempted.
func (r *Runner) Run(ctx context.Context, workflowID string, req *types.WorkflowRequest, report ProgressFunc) (result types.WorkflowResult) {
	logger := r.logger.With("workflow_id", workflowID)
	report = monotonic(report)

	defer func() {
		if p := recover(); p != nil {
			logger.Error("workflow panicked", "panic", p)
			result = failedResult(workflowID, fmt.Sprintf("Workflow failed: %v", p))
		}
	}()

	logger.Info("starting workflow", "topic", req.ContentParams.Topic, "targets", len(req.PublishingTargets))
	report(ProgressInitializing, StepInitializing)

	report(ProgressGenerating, StepGenerating)
	article, err := r.generate(ctx, req.ContentParams)
	if err != nil {
		logger.Error("content generation failed", "error", err)
		return failedResult(workflowID, "Content generation failed: "+err.Error())
	}
	logger.Info("content generated", "title", article.Title, "words", article.WordCount)

	results := []types.TargetResult{}
	if !req.AutoPublish {
		logger.Info("auto-publish disabled, skipping publishing")
		report(ProgressCompleted, StepCompleted)
		return completedResult(workflowID, article, results)
	}

	report(ProgressPublishing, StepPublishing)
	for _, target := range req.PublishingTargets {
		if err := ctx.Err(); err != nil {
			logger.Warn("workflow interrupted", "error", err, "published", len(results))
			res := failedResult(workflowID, interruptedMessage(err))
			res.Content = article
			res.PublishingResults = results
			return res
		}
		results = append(results, r.publishTarget(ctx, workflowID, article, target))
	}

	report(ProgressCompleted, StepCompleted)
	logger.Info("workflow completed", "results", len(results))
	return completedResult(workflowID, article, results)
}

func (r *Runner) generate(ctx context.Context, params types.ContentParams) (*types.Article, error) {
	article, err := r.generator.Generate(ctx, params)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, errors.New("generator returned no article")
	}
	if article.Error != "" {
		return nil, errors.New(article.Error)
	}
	return article, nil
}

// publishTarget publishes to one target. Every failure, including a panic in
// a publisher, becomes an unsuccessful TargetResult.
func (r *Runner) publishTarget(ctx context.Context, workflowID string, article *types.Article, target types.PublishingTarget) (res types.TargetResult) {
	res = types.TargetResult{Platform: target.Platform}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("publish panicked", "workflow_id", workflowID, "platform", string(target.Platform), "panic", p)
			res.Success = false
			res.ErrorMessage = fmt.Sprintf("%v", p)
		}
	}()

	p, req, err := r.prepare(article, target)
	if err != nil {
		r.logger.Error("cannot publish to target", "workflow_id", workflowID, "platform", string(target.Platform), "error", err)
		res.ErrorMessage = err.Error()
		return res
	}

	resp := r.service.PublishWith(ctx, p, req, workflowID)
	res.Success = resp.Published()
	res.PostID = resp.PlatformPostID
	res.PostURL = resp.PlatformURL
	res.ErrorMessage = resp.ErrorMessage
	return res
}

func (r *Runner) prepare(article *types.Article, target types.PublishingTarget) (publishing.Publisher, *types.PublicationRequest, error) {
	req, err := BuildPublication(article, target)
	if err != nil {
		return nil, nil, err
	}
	if !r.service.IsConfigured(target.Platform) {
		return nil, nil, &publishing.NotConfiguredError{Platform: target.Platform}
	}
	p, err := r.service.Resolve(target.Platform)
	if err != nil {
		return nil, nil, err
	}
	return p, req, nil
}

// monotonic drops updates that would move progress backwards.
func monotonic(report ProgressFunc) ProgressFunc {
	if report == nil {
		return func(int, string) {}
	}
	last := -1
	return func(progress int, step string) {
		if progress < last {
			return
		}
		last = progress
		report(progress, step)
	}
}

func interruptedMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "Workflow timed out"
	}
	return "Workflow cancelled"
}

func completedResult(workflowID string, article *types.Article, results []types.TargetResult) types.WorkflowResult {
	return types.WorkflowResult{
		WorkflowID:        workflowID,
		Status:            types.ResultCompleted,
		Content:           article,
		PublishingResults: results,
		CompletedAt:       time.Now().UTC(),
	}
}

func failedResult(workflowID, message string) types.WorkflowResult {
	return types.WorkflowResult{
		WorkflowID:        workflowID,
		Status:            types.ResultFailed,
		PublishingResults: []types.TargetResult{},
		ErrorMessage:      message,
		CompletedAt:       time.Now().UTC(),
	}
}
