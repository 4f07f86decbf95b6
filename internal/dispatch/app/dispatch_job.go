package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/textmesh/sms-dispatch/internal/dispatch/domain"
)

// Gateway is the provider boundary the jobs depend on.
type Gateway interface {
	// Send submits one message and returns the provider-assigned external id
	// and the mapped initial delivery status.
	Send(ctx context.Context, msg *domain.OutboundMessage) (string, domain.DeliveryStatus, error)
	// QueryStatus performs one batched status query; ids without a report are
	// absent from the result.
	QueryStatus(ctx context.Context, externalIDs []string) (map[string]domain.DeliveryStatus, error)
}

// JobConfig is the immutable configuration snapshot a job takes at
// construction time.
type JobConfig struct {
	Enabled      bool
	MaxBatchSize int
}

// DispatchJob submits pending messages to the gateway, one batch per tick.
type DispatchJob struct {
	repo    domain.OutboundMessageRepository
	gateway Gateway
	cfg     JobConfig
	logger  *slog.Logger
}

// NewDispatchJob creates a DispatchJob.
func NewDispatchJob(repo domain.OutboundMessageRepository, gateway Gateway, cfg JobConfig, logger *slog.Logger) *DispatchJob {
	return &DispatchJob{
		repo:    repo,
		gateway: gateway,
		cfg:     cfg,
		logger:  logger.With("job", "outbound_dispatch"),
	}
}

// Name implements scheduler.Job.
func (j *DispatchJob) Name() string { return "outbound_dispatch" }

// Run loads up to MaxBatchSize pending messages and submits each one
// independently. One message failing must not block the rest of the batch:
// a failed submission is recorded as StatusFailed on that message only.
//
// A message whose updated state fails to persist after a successful send stays
// pending and is re-submitted next tick; duplicate sends are the accepted
// at-least-once failure mode.
func (j *DispatchJob) Run(ctx context.Context) error {
	if !j.cfg.Enabled {
		dispatchRunsCounter.WithLabelValues("disabled").Inc()
		j.logger.DebugContext(ctx, "Outbound scheduler disabled, skipping dispatch run")
		return nil
	}

	timer := prometheus.NewTimer(dispatchRunDurationHist)
	defer timer.ObserveDuration()

	messages, err := j.repo.FindByStatus(ctx, domain.StatusPending, j.cfg.MaxBatchSize)
	if err != nil {
		dispatchRunsCounter.WithLabelValues("error").Inc()
		return fmt.Errorf("loading pending messages: %w", err)
	}
	if len(messages) == 0 {
		dispatchRunsCounter.WithLabelValues("success").Inc()
		return nil
	}

	j.logger.InfoContext(ctx, "Dispatching pending messages", "count", len(messages))

	var submitted, failed int
	for _, msg := range messages {
		externalID, status, sendErr := j.gateway.Send(ctx, msg)

		if sendErr != nil || externalID == "" {
			failed++
			dispatchedMessagesCounter.WithLabelValues("failed").Inc()
			msg.Status = domain.StatusFailed
			msg.ExternalID = sql.NullString{}
			j.logger.WarnContext(ctx, "Message submission failed",
				"message_id", msg.ID, "recipient", msg.MobileNumber, "error", sendErr)
		} else {
			submitted++
			dispatchedMessagesCounter.WithLabelValues("submitted").Inc()
			msg.SubmittedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
			msg.ExternalID = sql.NullString{String: externalID, Valid: true}
			msg.Status = status
		}

		if err := j.repo.Save(ctx, msg); err != nil {
			j.logger.ErrorContext(ctx, "Failed to persist dispatch outcome",
				"message_id", msg.ID, "status", msg.Status.String(), "error", err)
		}
	}

	dispatchRunsCounter.WithLabelValues("success").Inc()
	j.logger.InfoContext(ctx, "Dispatch run finished",
		"total", len(messages), "submitted", submitted, "failed", failed)
	return nil
}
