package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/textmesh/sms-dispatch/internal/dispatch/domain"
)

// --- Mocks ---

type MockOutboundMessageRepository struct {
	mock.Mock
}

func (m *MockOutboundMessageRepository) FindByStatus(ctx context.Context, status domain.DeliveryStatus, limit int) ([]*domain.OutboundMessage, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OutboundMessage), args.Error(1)
}

func (m *MockOutboundMessageRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.OutboundMessage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OutboundMessage), args.Error(1)
}

func (m *MockOutboundMessageRepository) Save(ctx context.Context, msg *domain.OutboundMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockOutboundMessageRepository) SaveAll(ctx context.Context, msgs []*domain.OutboundMessage) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Send(ctx context.Context, msg *domain.OutboundMessage) (string, domain.DeliveryStatus, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Get(1).(domain.DeliveryStatus), args.Error(2)
}

func (m *MockGateway) QueryStatus(ctx context.Context, externalIDs []string) (map[string]domain.DeliveryStatus, error) {
	args := m.Called(ctx, externalIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.DeliveryStatus), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

// --- Test setup ---

type dispatchJobTestComponents struct {
	job         *DispatchJob
	mockRepo    *MockOutboundMessageRepository
	mockGateway *MockGateway
}

func setupDispatchJobTest(t *testing.T, cfg JobConfig) dispatchJobTestComponents {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mockRepo := new(MockOutboundMessageRepository)
	mockGateway := new(MockGateway)

	job := NewDispatchJob(mockRepo, mockGateway, cfg, logger)
	return dispatchJobTestComponents{job: job, mockRepo: mockRepo, mockGateway: mockGateway}
}

func pendingMessage(recipient string) *domain.OutboundMessage {
	return &domain.OutboundMessage{
		ID:            uuid.New(),
		SourceAddress: "SENDER",
		MobileNumber:  recipient,
		Body:          "test body",
		Status:        domain.StatusPending,
	}
}

// --- Tests ---

func TestDispatchJob_Run_SchedulerDisabled(t *testing.T) {
	comps := setupDispatchJobTest(t, JobConfig{Enabled: false, MaxBatchSize: 100})

	err := comps.job.Run(context.Background())
	require.NoError(t, err)

	comps.mockRepo.AssertNotCalled(t, "FindByStatus", mock.Anything, mock.Anything, mock.Anything)
	comps.mockGateway.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestDispatchJob_Run_EmptyPendingSetIsNoOp(t *testing.T) {
	comps := setupDispatchJobTest(t, JobConfig{Enabled: true, MaxBatchSize: 100})
	ctx := context.Background()

	comps.mockRepo.On("FindByStatus", ctx, domain.StatusPending, 100).
		Return([]*domain.OutboundMessage{}, nil).Once()

	err := comps.job.Run(ctx)
	require.NoError(t, err)

	comps.mockRepo.AssertExpectations(t)
	comps.mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	comps.mockGateway.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestDispatchJob_Run_SuccessfulSubmission(t *testing.T) {
	comps := setupDispatchJobTest(t, JobConfig{Enabled: true, MaxBatchSize: 100})
	ctx := context.Background()
	msg := pendingMessage("250788000001")

	comps.mockRepo.On("FindByStatus", ctx, domain.StatusPending, 100).
		Return([]*domain.OutboundMessage{msg}, nil).Once()
	comps.mockGateway.On("Send", ctx, msg).
		Return("ext-1", domain.StatusWaitingForReport, nil).Once()
	comps.mockRepo.On("Save", ctx, msg).Return(nil).Once()

	err := comps.job.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusWaitingForReport, msg.Status)
	assert.Equal(t, sql.NullString{String: "ext-1", Valid: true}, msg.ExternalID)
	assert.True(t, msg.SubmittedAt.Valid, "submission timestamp must be set on success")
	comps.mockRepo.AssertExpectations(t)
	comps.mockGateway.AssertExpectations(t)
}

func TestDispatchJob_Run_PartialFailureIsolation(t *testing.T) {
	comps := setupDispatchJobTest(t, JobConfig{Enabled: true, MaxBatchSize: 100})
	ctx := context.Background()

	good1 := pendingMessage("250788000001")
	bad := pendingMessage("250788000002")
	good2 := pendingMessage("250788000003")
	batch := []*domain.OutboundMessage{good1, bad, good2}

	comps.mockRepo.On("FindByStatus", ctx, domain.StatusPending, 100).Return(batch, nil).Once()
	comps.mockGateway.On("Send", ctx, good1).Return("ext-1", domain.StatusSent, nil).Once()
	comps.mockGateway.On("Send", ctx, bad).Return("", domain.DeliveryStatus(0), errors.New("provider timeout")).Once()
	comps.mockGateway.On("Send", ctx, good2).Return("ext-3", domain.StatusSent, nil).Once()
	comps.mockRepo.On("Save", ctx, mock.AnythingOfType("*domain.OutboundMessage")).Return(nil).Times(3)

	err := comps.job.Run(ctx)
	require.NoError(t, err, "one message failing must not fail the run")

	assert.Equal(t, domain.StatusSent, good1.Status)
	assert.True(t, good1.ExternalID.Valid)

	assert.Equal(t, domain.StatusFailed, bad.Status)
	assert.False(t, bad.ExternalID.Valid, "failed message must not carry an external id")
	assert.False(t, bad.SubmittedAt.Valid)

	assert.Equal(t, domain.StatusSent, good2.Status, "messages after the failure must still be processed")
	assert.True(t, good2.ExternalID.Valid)

	comps.mockRepo.AssertExpectations(t)
	comps.mockGateway.AssertExpectations(t)
}

func TestDispatchJob_Run_MissingExternalIDIsFailure(t *testing.T) {
	comps := setupDispatchJobTest(t, JobConfig{Enabled: true, MaxBatchSize: 100})
	ctx := context.Background()
	msg := pendingMessage("250788000001")

	comps.mockRepo.On("FindByStatus", ctx, domain.StatusPending, 100).
		Return([]*domain.OutboundMessage{msg}, nil).Once()
	comps.mockGateway.On("Send", ctx, msg).Return("", domain.StatusSent, nil).Once()
	comps.mockRepo.On("Save", ctx, msg).Return(nil).Once()

	err := comps.job.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, msg.Status)
	assert.False(t, msg.ExternalID.Valid)
}

func TestDispatchJob_Run_RepositoryLoadFailure(t *testing.T) {
	comps := setupDispatchJobTest(t, JobConfig{Enabled: true, MaxBatchSize: 100})
	ctx := context.Background()

	comps.mockRepo.On("FindByStatus", ctx, domain.StatusPending, 100).
		Return(nil, errors.New("database unavailable")).Once()

	err := comps.job.Run(ctx)
	require.Error(t, err)
	comps.mockGateway.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestDispatchJob_Run_PersistFailureDoesNotAbortBatch(t *testing.T) {
	comps := setupDispatchJobTest(t, JobConfig{Enabled: true, MaxBatchSize: 100})
	ctx := context.Background()

	first := pendingMessage("250788000001")
	second := pendingMessage("250788000002")

	comps.mockRepo.On("FindByStatus", ctx, domain.StatusPending, 100).
		Return([]*domain.OutboundMessage{first, second}, nil).Once()
	comps.mockGateway.On("Send", ctx, first).Return("ext-1", domain.StatusSent, nil).Once()
	comps.mockGateway.On("Send", ctx, second).Return("ext-2", domain.StatusSent, nil).Once()
	comps.mockRepo.On("Save", ctx, first).Return(errors.New("write conflict")).Once()
	comps.mockRepo.On("Save", ctx, second).Return(nil).Once()

	err := comps.job.Run(ctx)
	require.NoError(t, err)
	comps.mockRepo.AssertExpectations(t)
	comps.mockGateway.AssertExpectations(t)
}
