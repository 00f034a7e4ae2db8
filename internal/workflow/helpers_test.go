package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/jonathan/autopublisher/internal/config"
	"github.com/jonathan/autopublisher/internal/publishing"
	"github.com/jonathan/autopublisher/internal/types"
)

// mockGenerator is a testify mock of content.Generator.
type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, params types.ContentParams) (*types.Article, error) {
	args := m.Called(ctx, params)
	article, _ := args.Get(0).(*types.Article)
	return article, args.Error(1)
}

// fakePublisher succeeds or fails every publish, optionally blocking until released.
type fakePublisher struct {
	mu        sync.Mutex
	platform  types.PlatformType
	fail      string
	panicMsg  string
	requests  []*types.PublicationRequest
	onPublish func()
}

func (f *fakePublisher) Platform() types.PlatformType { return f.platform }

func (f *fakePublisher) Publish(_ context.Context, req *types.PublicationRequest) *types.PublicationResponse {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	hook := f.onPublish
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	resp := &types.PublicationResponse{PublicationID: "pub-1", Platform: f.platform}
	if f.fail != "" {
		resp.Status = types.PublicationFailed
		resp.ErrorMessage = f.fail
		return resp
	}
	resp.Status = types.PublicationPublished
	resp.PlatformPostID = "post-" + string(f.platform)
	resp.PlatformURL = "https://example.com/" + string(f.platform)
	return resp
}

func (f *fakePublisher) ValidateCredentials(context.Context) bool { return true }

func (f *fakePublisher) DeletePost(context.Context, string) bool { return true }

func (f *fakePublisher) Requests() []*types.PublicationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.PublicationRequest(nil), f.requests...)
}

var allConfigured = config.Platforms{
	WordPress: config.WordPressConfig{URL: "https://blog.example.com", Username: "u", AppPassword: "p"},
	Instagram: config.InstagramConfig{AccessToken: "t", BusinessAccountID: "1"},
}

// testService wires publishers into a service. constructed counts constructor calls.
type testService struct {
	*publishing.Service
	mu          sync.Mutex
	constructed int
}

func (s *testService) Constructed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.constructed
}

func newTestService(platforms config.Platforms, pubs ...*fakePublisher) *testService {
	ts := &testService{}
	f := publishing.NewFactory()
	for _, p := range pubs {
		pub := p
		f.Register(pub.platform, func(config.Platforms, ...publishing.Option) (publishing.Publisher, error) {
			ts.mu.Lock()
			ts.constructed++
			ts.mu.Unlock()
			return pub, nil
		})
	}
	policy := publishing.RetryPolicy{
		MaxAttempts: 2,
		Sleep:       func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
	}
	ts.Service = publishing.NewService(f, platforms, policy)
	return ts
}

func testArticle() *types.Article {
	return &types.Article{
		Title:         "T",
		Introduction:  "Intro",
		Sections:      []types.Section{{Heading: "H", Content: "Body", HeadingLevel: 2}},
		Conclusion:    "End",
		Metadata:      types.ArticleMetadata{Slug: "t", MetaDescription: "desc", Tags: []string{"meta-tag"}},
		FeaturedImage: &types.Image{URL: "https://cdn.example.com/t.jpg"},
		WordCount:     500,
		Language:      "en",
	}
}

func workflowRequest(targets ...types.PlatformType) *types.WorkflowRequest {
	req := &types.WorkflowRequest{
		ContentParams: types.ContentParams{Topic: "X topic"},
		AutoPublish:   true,
	}
	for _, p := range targets {
		req.PublishingTargets = append(req.PublishingTargets, types.PublishingTarget{Platform: p})
	}
	req.ContentParams.ApplyDefaults()
	return req
}

type progressLog struct {
	mu    sync.Mutex
	steps []int
	names []string
}

func (p *progressLog) report(progress int, step string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, progress)
	p.names = append(p.names, step)
}
