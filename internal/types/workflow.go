package types

import (
	"encoding/json"
	"time"
)

// WorkflowStatus is the externally observed status of a workflow.
type WorkflowStatus string

const (
	WorkflowPending           WorkflowStatus = "pending"
	WorkflowGeneratingContent WorkflowStatus = "generating_content"
	WorkflowContentGenerated  WorkflowStatus = "content_generated"
	WorkflowPublishing        WorkflowStatus = "publishing"
	WorkflowPublished         WorkflowStatus = "published"
	WorkflowFailed            WorkflowStatus = "failed"
	WorkflowCancelled         WorkflowStatus = "cancelled"
)

// IsTerminal reports whether no further transitions can occur from s.
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowPublished || s == WorkflowFailed || s == WorkflowCancelled
}

// ResultTag is the terminal tag stored in a WorkflowResult.
type ResultTag string

const (
	ResultCompleted ResultTag = "completed"
	ResultFailed    ResultTag = "failed"
)

// Content generation defaults.
const (
	DefaultLanguage     = "ar"
	DefaultTargetLength = 1500
	DefaultSEOLevel     = "high"
	DefaultTone         = "professional"
	DefaultPostStatus   = "publish"
)

// ContentParams are the parameters passed to the content generator.
type ContentParams struct {
	Topic          string   `json:"topic" validate:"required,min=3,max=500"`
	Language       string   `json:"language" validate:"oneof=ar en fr es"`
	TargetLength   int      `json:"target_length" validate:"min=300,max=5000"`
	SEOLevel       string   `json:"seo_level" validate:"oneof=basic medium high extreme"`
	Tone           string   `json:"tone" validate:"oneof=professional casual friendly authoritative conversational"`
	TargetKeywords []string `json:"target_keywords,omitempty" validate:"max=10"`
	IncludeImage   bool     `json:"include_image"`
	IncludeFAQ     bool     `json:"include_faq"`
	TargetAudience string   `json:"target_audience,omitempty"`
}

// UnmarshalJSON applies defaults for fields absent from the document, so that
// include_image and include_faq default to true.
func (p *ContentParams) UnmarshalJSON(data []byte) error {
	type plain ContentParams
	aux := struct {
		*plain
		IncludeImage *bool `json:"include_image"`
		IncludeFAQ   *bool `json:"include_faq"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.IncludeImage = aux.IncludeImage == nil || *aux.IncludeImage
	p.IncludeFAQ = aux.IncludeFAQ == nil || *aux.IncludeFAQ
	p.ApplyDefaults()
	return nil
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (p *ContentParams) ApplyDefaults() {
	if p.Language == "" {
		p.Language = DefaultLanguage
	}
	if p.TargetLength == 0 {
		p.TargetLength = DefaultTargetLength
	}
	if p.SEOLevel == "" {
		p.SEOLevel = DefaultSEOLevel
	}
	if p.Tone == "" {
		p.Tone = DefaultTone
	}
}

// PublishingTarget is one platform to publish to within a workflow, with its overrides.
type PublishingTarget struct {
	Platform     PlatformType `json:"platform" validate:"required"`
	PostStatus   string       `json:"post_status,omitempty" validate:"omitempty,oneof=publish draft pending private"`
	Categories   []string     `json:"categories,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	Hashtags     []string     `json:"hashtags,omitempty" validate:"max=30"`
	LocationID   string       `json:"location_id,omitempty"`
	ScheduleTime *time.Time   `json:"schedule_time,omitempty"`
}

// WorkflowRequest asks for content to be generated and optionally published.
type WorkflowRequest struct {
	ContentParams     ContentParams      `json:"content_params"`
	PublishingTargets []PublishingTarget `json:"publishing_targets" validate:"required,min=1,dive"`
	AutoPublish       bool               `json:"auto_publish"`
	Metadata          map[string]any     `json:"metadata,omitempty"`
}

// UnmarshalJSON defaults auto_publish to true when it is absent.
func (r *WorkflowRequest) UnmarshalJSON(data []byte) error {
	type plain WorkflowRequest
	aux := struct {
		*plain
		AutoPublish *bool `json:"auto_publish"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.AutoPublish = aux.AutoPublish == nil || *aux.AutoPublish
	return nil
}

// Validate checks the request, including content parameters and every target.
func (r *WorkflowRequest) Validate() error {
	r.ContentParams.ApplyDefaults()
	return validateStruct(r)
}

// TargetResult is the outcome of publishing to one target.
type TargetResult struct {
	Platform     PlatformType `json:"platform"`
	Success      bool         `json:"success"`
	PostID       string       `json:"post_id,omitempty"`
	PostURL      string       `json:"post_url,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// WorkflowResult is the payload a workflow task stores in the queue backend.
type WorkflowResult struct {
	WorkflowID        string         `json:"workflow_id"`
	Status            ResultTag      `json:"status"`
	Content           *Article       `json:"content,omitempty"`
	PublishingResults []TargetResult `json:"publishing_results"`
	ErrorMessage      string         `json:"error_message,omitempty"`
	CompletedAt       time.Time      `json:"completed_at"`
}

// WorkflowResponse is the externally observable projection of a workflow.
type WorkflowResponse struct {
	WorkflowID         string         `json:"workflow_id"`
	Status             WorkflowStatus `json:"status"`
	ContentGenerated   bool           `json:"content_generated"`
	ArticleTitle       string         `json:"article_title,omitempty"`
	WordCount          int            `json:"word_count,omitempty"`
	PublishingResults  []TargetResult `json:"publishing_results"`
	ProgressPercentage int            `json:"progress_percentage"`
	CurrentStep        string         `json:"current_step"`
	ErrorMessage       string         `json:"error_message,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// MaxBulkWorkflows is the maximum number of workflows in one bulk request.
const MaxBulkWorkflows = 50

// BulkWorkflowRequest submits several workflows at once.
type BulkWorkflowRequest struct {
	Workflows         []WorkflowRequest `json:"workflows" validate:"required,min=1,max=50,dive"`
	ParallelExecution bool              `json:"parallel_execution"`
	StopOnFirstError  bool              `json:"stop_on_first_error"`
}

// UnmarshalJSON defaults parallel_execution to true when it is absent.
func (r *BulkWorkflowRequest) UnmarshalJSON(data []byte) error {
	type plain BulkWorkflowRequest
	aux := struct {
		*plain
		ParallelExecution *bool `json:"parallel_execution"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.ParallelExecution = aux.ParallelExecution == nil || *aux.ParallelExecution
	return nil
}

// Validate checks the envelope and every workflow in it.
func (r *BulkWorkflowRequest) Validate() error {
	for i := range r.Workflows {
		r.Workflows[i].ContentParams.ApplyDefaults()
	}
	return validateStruct(r)
}

// QueueStats describes the workflow queue backlog.
type QueueStats struct {
	// Length counts stream entries, including processed ones kept until cleanup.
	Length int64 `json:"queue_length"`
	// Pending counts tasks delivered to workers and not yet acknowledged.
	Pending int64 `json:"pending_tasks"`
}

// BulkWorkflowResponse aggregates the placeholders returned for a bulk submission.
type BulkWorkflowResponse struct {
	Total      int                `json:"total"`
	Successful int                `json:"successful"`
	Failed     int                `json:"failed"`
	InProgress int                `json:"in_progress"`
	Workflows  []WorkflowResponse `json:"workflows"`
}
