package server

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/jonathan/autopublisher/internal/db"
	"github.com/jonathan/autopublisher/internal/types"
)

type mockWorkflows struct {
	mock.Mock
}

func (m *mockWorkflows) Submit(ctx context.Context, req *types.WorkflowRequest) (*types.WorkflowResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*types.WorkflowResponse)
	return resp, args.Error(1)
}

func (m *mockWorkflows) SubmitBulk(ctx context.Context, bulk *types.BulkWorkflowRequest) (*types.BulkWorkflowResponse, error) {
	args := m.Called(ctx, bulk)
	resp, _ := args.Get(0).(*types.BulkWorkflowResponse)
	return resp, args.Error(1)
}

func (m *mockWorkflows) Status(ctx context.Context, workflowID string) (*types.WorkflowResponse, error) {
	args := m.Called(ctx, workflowID)
	resp, _ := args.Get(0).(*types.WorkflowResponse)
	return resp, args.Error(1)
}

func (m *mockWorkflows) Cancel(ctx context.Context, workflowID string) error {
	return m.Called(ctx, workflowID).Error(0)
}

func (m *mockWorkflows) Healthy(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *mockWorkflows) QueueStats(ctx context.Context) (*types.QueueStats, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(*types.QueueStats)
	return stats, args.Error(1)
}

type mockPublishing struct {
	mock.Mock
}

func (m *mockPublishing) Publish(ctx context.Context, req *types.PublicationRequest) (*types.PublicationResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*types.PublicationResponse)
	return resp, args.Error(1)
}

func (m *mockPublishing) PublishBulk(ctx context.Context, bulk *types.BulkPublicationRequest) (*types.BulkPublicationResponse, error) {
	args := m.Called(ctx, bulk)
	resp, _ := args.Get(0).(*types.BulkPublicationResponse)
	return resp, args.Error(1)
}

func (m *mockPublishing) PlatformStatuses(ctx context.Context) []types.PlatformStatus {
	statuses, _ := m.Called(ctx).Get(0).([]types.PlatformStatus)
	return statuses
}

func (m *mockPublishing) Delete(ctx context.Context, platform types.PlatformType, postID string) error {
	return m.Called(ctx, platform, postID).Error(0)
}

func (m *mockPublishing) SupportedPlatforms() []types.PlatformType {
	platforms, _ := m.Called().Get(0).([]types.PlatformType)
	return platforms
}

type mockPublications struct {
	mock.Mock
}

func (m *mockPublications) ListPublications(ctx context.Context, filter db.PublicationFilter) ([]db.Publication, error) {
	args := m.Called(ctx, filter)
	pubs, _ := args.Get(0).([]db.Publication)
	return pubs, args.Error(1)
}

func (m *mockPublications) GetPublication(ctx context.Context, id uuid.UUID) (*db.Publication, error) {
	args := m.Called(ctx, id)
	pub, _ := args.Get(0).(*db.Publication)
	return pub, args.Error(1)
}

func (m *mockPublications) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
