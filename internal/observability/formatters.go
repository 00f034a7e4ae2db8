// Package observability provides structured logging and formatted CLI output.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/autopublisher/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer writes human-readable summaries for the CLI.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, clip(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintWorkflow outputs the projected state of a workflow.
func (p *Printer) PrintWorkflow(resp *types.WorkflowResponse) {
	if resp == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ID:       %s\n", resp.WorkflowID))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", resp.Status))
	sb.WriteString(fmt.Sprintf("Progress: %d%% %s\n", resp.ProgressPercentage, progressBar(resp.ProgressPercentage)))
	sb.WriteString(fmt.Sprintf("Step:     %s\n", resp.CurrentStep))
	if resp.ArticleTitle != "" {
		sb.WriteString(fmt.Sprintf("Title:    %s\n", resp.ArticleTitle))
		sb.WriteString(fmt.Sprintf("Words:    %d\n", resp.WordCount))
	}
	if resp.ErrorMessage != "" {
		sb.WriteString(fmt.Sprintf("Error:    %s\n", resp.ErrorMessage))
	}

	if len(resp.PublishingResults) > 0 {
		sb.WriteString("\nTargets:\n")
		for _, r := range resp.PublishingResults {
			sb.WriteString(fmt.Sprintf("  %s %s", mark(r.Success), r.Platform))
			switch {
			case r.Success && r.PostURL != "":
				sb.WriteString(fmt.Sprintf("  %s", r.PostURL))
			case !r.Success && r.ErrorMessage != "":
				sb.WriteString(fmt.Sprintf("  %s", r.ErrorMessage))
			}
			sb.WriteString("\n")
		}
	}

	p.printBox("WORKFLOW", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintBulkWorkflows outputs the placeholders returned for a bulk submission.
func (p *Printer) PrintBulkWorkflows(resp *types.BulkWorkflowResponse) {
	if resp == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Submitted %d of %d workflows (%d failed)\n\n", resp.InProgress, resp.Total, resp.Failed))

	count := min(len(resp.Workflows), maxItemsToShow)
	for i := 0; i < count; i++ {
		wf := resp.Workflows[i]
		sb.WriteString(fmt.Sprintf("• %s  %s\n", wf.WorkflowID, wf.Status))
	}
	if len(resp.Workflows) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(resp.Workflows)-maxItemsToShow))
	}

	p.printBox("BULK SUBMISSION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintPublication outputs a single publication response.
func (p *Printer) PrintPublication(resp *types.PublicationResponse) {
	if resp == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Platform: %s\n", resp.Platform))
	sb.WriteString(fmt.Sprintf("Status:   %s %s\n", mark(resp.Published()), resp.Status))
	if resp.PlatformPostID != "" {
		sb.WriteString(fmt.Sprintf("Post ID:  %s\n", resp.PlatformPostID))
	}
	if resp.PlatformURL != "" {
		sb.WriteString(fmt.Sprintf("URL:      %s\n", resp.PlatformURL))
	}
	if resp.ErrorMessage != "" {
		sb.WriteString(fmt.Sprintf("Error:    %s\n", resp.ErrorMessage))
	}
	sb.WriteString(fmt.Sprintf("Retries:  %d", resp.RetryCount))

	p.printBox("PUBLICATION", sb.String())
}

// PrintPlatforms outputs the platform status report.
func (p *Printer) PrintPlatforms(statuses []types.PlatformStatus) {
	if len(statuses) == 0 {
		return
	}

	var sb strings.Builder
	for _, s := range statuses {
		configured := "not configured"
		if s.Configured {
			configured = "configured"
		}
		sb.WriteString(fmt.Sprintf("%s %-10s %s", mark(s.Available), s.Platform, configured))
		if s.ErrorMessage != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", s.ErrorMessage))
		}
		sb.WriteString("\n")
	}

	p.printBox("PLATFORMS", strings.TrimSuffix(sb.String(), "\n"))
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func progressBar(pct int) string {
	const width = 20
	pct = max(0, min(pct, 100))
	filled := pct * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func clip(line string, width int) string {
	runes := []rune(line)
	if len(runes) <= width {
		return line
	}
	return string(runes[:width-3]) + "..."
}
