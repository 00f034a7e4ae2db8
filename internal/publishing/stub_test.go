package publishing

import (
	"context"
	"sync"
	"time"

	"github.com/jonathan/autopublisher/internal/types"
)

// stubPublisher returns scripted responses in order, repeating the last one.
type stubPublisher struct {
	mu        sync.Mutex
	platform  types.PlatformType
	responses []*types.PublicationResponse
	panicOn   map[int]bool
	calls     int
	valid     bool
	deleted   []string
}

func newStub(platform types.PlatformType, responses ...*types.PublicationResponse) *stubPublisher {
	return &stubPublisher{platform: platform, responses: responses, valid: true}
}

func (s *stubPublisher) Platform() types.PlatformType { return s.platform }

func (s *stubPublisher) Publish(_ context.Context, _ *types.PublicationRequest) *types.PublicationResponse {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	if s.panicOn[call] {
		panic("boom")
	}
	idx := min(call-1, len(s.responses)-1)
	if idx < 0 {
		return nil
	}
	resp := *s.responses[idx]
	return &resp
}

func (s *stubPublisher) ValidateCredentials(context.Context) bool { return s.valid }

func (s *stubPublisher) DeletePost(_ context.Context, postID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, postID)
	return s.valid
}

func (s *stubPublisher) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func okResponse(platform types.PlatformType, postID string) *types.PublicationResponse {
	return publishedResponse(platform, postID, "https://example.com/"+postID)
}

func failResponse(platform types.PlatformType, msg string) *types.PublicationResponse {
	return failedResponse(platform, msg)
}

// sleepRecorder records requested waits without sleeping.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}
