package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/autopublisher/internal/config"
	"github.com/jonathan/autopublisher/internal/types"
)

func TestRunner_PublishesEveryTargetInOrder(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(testArticle(), nil).Once()

	wp := &fakePublisher{platform: types.PlatformWordPress}
	ig := &fakePublisher{platform: types.PlatformInstagram, fail: "image rejected"}
	svc := newTestService(allConfigured, wp, ig)

	progress := &progressLog{}
	req := workflowRequest(types.PlatformWordPress, types.PlatformInstagram, types.PlatformWordPress)
	result := NewRunner(gen, svc.Service, nil).Run(context.Background(), "wf-1", req, progress.report)

	assert.Equal(t, types.ResultCompleted, result.Status)
	assert.Equal(t, "wf-1", result.WorkflowID)
	require.Len(t, result.PublishingResults, 3)

	assert.True(t, result.PublishingResults[0].Success)
	assert.Equal(t, types.PlatformWordPress, result.PublishingResults[0].Platform)
	assert.Equal(t, "post-wordpress", result.PublishingResults[0].PostID)

	assert.False(t, result.PublishingResults[1].Success)
	assert.Equal(t, types.PlatformInstagram, result.PublishingResults[1].Platform)
	assert.Contains(t, result.PublishingResults[1].ErrorMessage, "Failed after 2 attempts. Last error: image rejected")

	assert.True(t, result.PublishingResults[2].Success)

	assert.Equal(t, []int{10, 20, 60, 100}, progress.steps)
	assert.Equal(t, []string{StepInitializing, StepGenerating, StepPublishing, StepCompleted}, progress.names)
	assert.Len(t, wp.Requests(), 2)
	gen.AssertExpectations(t)
}

func TestRunner_BuildsPlatformPayloads(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(testArticle(), nil)

	wp := &fakePublisher{platform: types.PlatformWordPress}
	ig := &fakePublisher{platform: types.PlatformInstagram}
	svc := newTestService(allConfigured, wp, ig)

	req := workflowRequest()
	req.PublishingTargets = []types.PublishingTarget{
		{Platform: types.PlatformWordPress, PostStatus: "draft", Categories: []string{"News"}},
		{Platform: types.PlatformInstagram, Hashtags: []string{"go"}, LocationID: "loc"},
	}
	result := NewRunner(gen, svc.Service, nil).Run(context.Background(), "wf-1", req, nil)
	require.Equal(t, types.ResultCompleted, result.Status)

	wpReq := wp.Requests()[0].WordPressData
	require.NotNil(t, wpReq)
	assert.Equal(t, "T", wpReq.Title)
	assert.Equal(t, "draft", wpReq.Status)
	assert.Equal(t, []string{"News"}, wpReq.Categories)
	assert.Equal(t, []string{"meta-tag"}, wpReq.Tags)
	assert.Equal(t, "https://cdn.example.com/t.jpg", wpReq.FeaturedImageURL)
	assert.Equal(t, "t", wpReq.Slug)
	assert.Equal(t, "desc", wpReq.MetaDescription)
	assert.Contains(t, wpReq.Content, "<h2>H</h2>")

	igReq := ig.Requests()[0].InstagramData
	require.NotNil(t, igReq)
	assert.Equal(t, "T\n\nIntro", igReq.Caption)
	assert.Equal(t, "https://cdn.example.com/t.jpg", igReq.ImageURL)
	assert.Equal(t, []string{"go"}, igReq.Hashtags)
	assert.Equal(t, "loc", igReq.LocationID)
}

func TestRunner_GenerationFailureSkipsPublishing(t *testing.T) {
	tests := []struct {
		name    string
		article *types.Article
		err     error
		message string
	}{
		{name: "error", err: errors.New("HTTP 500: boom"), message: "Content generation failed: HTTP 500: boom"},
		{name: "in-band error", article: &types.Article{Error: "quota"}, message: "Content generation failed: quota"},
		{name: "no article", message: "Content generation failed: generator returned no article"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{}
			gen.On("Generate", mock.Anything, mock.Anything).Return(tt.article, tt.err)

			wp := &fakePublisher{platform: types.PlatformWordPress}
			svc := newTestService(allConfigured, wp)

			progress := &progressLog{}
			result := NewRunner(gen, svc.Service, nil).Run(context.Background(), "wf-1", workflowRequest(types.PlatformWordPress), progress.report)

			assert.Equal(t, types.ResultFailed, result.Status)
			assert.Equal(t, tt.message, result.ErrorMessage)
			assert.Empty(t, result.PublishingResults)
			assert.Nil(t, result.Content)
			assert.Equal(t, 0, svc.Constructed())
			assert.Equal(t, []int{10, 20}, progress.steps)
		})
	}
}

func TestRunner_AutoPublishDisabled(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(testArticle(), nil)

	wp := &fakePublisher{platform: types.PlatformWordPress}
	svc := newTestService(allConfigured, wp)

	req := workflowRequest(types.PlatformWordPress)
	req.AutoPublish = false
	progress := &progressLog{}
	result := NewRunner(gen, svc.Service, nil).Run(context.Background(), "wf-1", req, progress.report)

	assert.Equal(t, types.ResultCompleted, result.Status)
	assert.NotNil(t, result.PublishingResults)
	assert.Empty(t, result.PublishingResults)
	assert.Equal(t, 0, svc.Constructed())
	assert.Empty(t, wp.Requests())
	assert.Equal(t, []int{10, 20, 100}, progress.steps)
}

func TestRunner_TargetErrorsAreIsolated(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(testArticle(), nil)

	wp := &fakePublisher{platform: types.PlatformWordPress, panicMsg: "nil map"}
	ig := &fakePublisher{platform: types.PlatformInstagram}
	// instagram is not configured
	platforms := config.Platforms{WordPress: allConfigured.WordPress}
	svc := newTestService(platforms, wp, ig)

	req := workflowRequest(types.PlatformFacebook, types.PlatformInstagram, types.PlatformWordPress, types.PlatformLinkedIn)
	result := NewRunner(gen, svc.Service, nil).Run(context.Background(), "wf-1", req, nil)

	assert.Equal(t, types.ResultCompleted, result.Status)
	require.Len(t, result.PublishingResults, 4)
	assert.Equal(t, "Unsupported platform: facebook", result.PublishingResults[0].ErrorMessage)
	assert.Equal(t, "Platform instagram is not configured", result.PublishingResults[1].ErrorMessage)
	assert.Contains(t, result.PublishingResults[2].ErrorMessage, "publisher panic: nil map")
	assert.Equal(t, "Unsupported platform: linkedin", result.PublishingResults[3].ErrorMessage)
	for _, r := range result.PublishingResults {
		assert.False(t, r.Success)
	}
}

func TestRunner_InstagramWithoutImageFailsValidation(t *testing.T) {
	article := testArticle()
	article.FeaturedImage = nil
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(article, nil)

	ig := &fakePublisher{platform: types.PlatformInstagram}
	svc := newTestService(allConfigured, ig)

	result := NewRunner(gen, svc.Service, nil).Run(context.Background(), "wf-1", workflowRequest(types.PlatformInstagram), nil)

	require.Len(t, result.PublishingResults, 1)
	assert.False(t, result.PublishingResults[0].Success)
	assert.Contains(t, result.PublishingResults[0].ErrorMessage, "image_url")
	assert.Empty(t, ig.Requests())
}

func TestRunner_CancellationStopsBeforeNextTarget(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(testArticle(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wp := &fakePublisher{platform: types.PlatformWordPress, onPublish: cancel}
	ig := &fakePublisher{platform: types.PlatformInstagram}
	svc := newTestService(allConfigured, wp, ig)

	progress := &progressLog{}
	result := NewRunner(gen, svc.Service, nil).Run(ctx, "wf-1", workflowRequest(types.PlatformWordPress, types.PlatformInstagram), progress.report)

	assert.Equal(t, types.ResultFailed, result.Status)
	assert.Equal(t, "Workflow cancelled", result.ErrorMessage)
	require.Len(t, result.PublishingResults, 1)
	assert.True(t, result.PublishingResults[0].Success)
	assert.Empty(t, ig.Requests())
	assert.Equal(t, []int{10, 20, 60}, progress.steps)
}

func TestRunner_GeneratorPanicIsRecovered(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Run(func(mock.Arguments) { panic("generator exploded") })

	svc := newTestService(allConfigured)
	result := NewRunner(gen, svc.Service, nil).Run(context.Background(), "wf-1", workflowRequest(types.PlatformWordPress), nil)

	assert.Equal(t, types.ResultFailed, result.Status)
	assert.Equal(t, "Workflow failed: generator exploded", result.ErrorMessage)
}

func TestMonotonic(t *testing.T) {
	progress := &progressLog{}
	report := monotonic(progress.report)
	report(10, "a")
	report(60, "b")
	report(20, "c")
	report(60, "d")
	report(100, "e")

	assert.Equal(t, []int{10, 60, 60, 100}, progress.steps)
	assert.NotPanics(t, func() { monotonic(nil)(10, "x") })
}
