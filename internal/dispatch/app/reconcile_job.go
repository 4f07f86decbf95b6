package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/textmesh/sms-dispatch/internal/dispatch/domain"
	"github.com/textmesh/sms-dispatch/internal/platform/messagebroker"
)

// ReconciliationJob polls the gateway for the current delivery status of
// in-flight messages and applies the updates.
type ReconciliationJob struct {
	repo      domain.OutboundMessageRepository
	gateway   Gateway
	publisher messagebroker.Publisher
	cfg       JobConfig
	logger    *slog.Logger
}

// NewReconciliationJob creates a ReconciliationJob. publisher may be nil when
// no broker is configured; status events are then skipped.
func NewReconciliationJob(
	repo domain.OutboundMessageRepository,
	gateway Gateway,
	publisher messagebroker.Publisher,
	cfg JobConfig,
	logger *slog.Logger,
) *ReconciliationJob {
	return &ReconciliationJob{
		repo:      repo,
		gateway:   gateway,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With("job", "delivery_reconciliation"),
	}
}

// Name implements scheduler.Job.
func (j *ReconciliationJob) Name() string { return "delivery_reconciliation" }

// Run loads in-flight messages (sent, then waiting-for-report), queries the
// gateway once for the whole batch, and overwrites the delivery status of each
// message that has a report. Messages absent from the response keep their
// current status; persisting an unchanged status is an idempotent no-op, so
// the whole batch is saved in one operation.
//
// A failure of the single batched query aborts the run; states are unchanged
// and the next tick retries naturally.
func (j *ReconciliationJob) Run(ctx context.Context) error {
	if !j.cfg.Enabled {
		reconcileRunsCounter.WithLabelValues("disabled").Inc()
		j.logger.DebugContext(ctx, "Outbound scheduler disabled, skipping reconciliation run")
		return nil
	}

	sent, err := j.repo.FindByStatus(ctx, domain.StatusSent, j.cfg.MaxBatchSize)
	if err != nil {
		reconcileRunsCounter.WithLabelValues("error").Inc()
		return fmt.Errorf("loading sent messages: %w", err)
	}
	waiting, err := j.repo.FindByStatus(ctx, domain.StatusWaitingForReport, j.cfg.MaxBatchSize)
	if err != nil {
		reconcileRunsCounter.WithLabelValues("error").Inc()
		return fmt.Errorf("loading waiting-for-report messages: %w", err)
	}

	messages := append(sent, waiting...)
	if len(messages) == 0 {
		reconcileRunsCounter.WithLabelValues("success").Inc()
		return nil
	}

	// External ids must be unique among in-flight messages; a duplicate would
	// let one message silently swallow the other's status update, so fail the
	// run loudly instead.
	byExternalID := make(map[string]*domain.OutboundMessage, len(messages))
	externalIDs := make([]string, 0, len(messages))
	for _, msg := range messages {
		if !msg.ExternalID.Valid || msg.ExternalID.String == "" {
			j.logger.WarnContext(ctx, "In-flight message has no external id, skipping",
				"message_id", msg.ID, "status", msg.Status.String())
			continue
		}
		if _, exists := byExternalID[msg.ExternalID.String]; exists {
			reconcileRunsCounter.WithLabelValues("error").Inc()
			return fmt.Errorf("duplicate external id %q among in-flight messages", msg.ExternalID.String)
		}
		byExternalID[msg.ExternalID.String] = msg
		externalIDs = append(externalIDs, msg.ExternalID.String)
	}
	if len(externalIDs) == 0 {
		reconcileRunsCounter.WithLabelValues("success").Inc()
		return nil
	}

	statuses, err := j.gateway.QueryStatus(ctx, externalIDs)
	if err != nil {
		reconcileRunsCounter.WithLabelValues("error").Inc()
		return fmt.Errorf("querying delivery status for %d messages: %w", len(externalIDs), err)
	}

	var updated int
	for externalID, status := range statuses {
		msg, ok := byExternalID[externalID]
		if !ok {
			j.logger.WarnContext(ctx, "Gateway reported status for an id we did not ask about",
				"external_id", externalID)
			continue
		}
		if msg.Status == status {
			continue
		}
		previous := msg.Status
		msg.Status = status
		updated++
		reconciledStatusCounter.WithLabelValues(status.String()).Inc()
		j.publishStatusChange(ctx, msg, previous)
	}

	if err := j.repo.SaveAll(ctx, messages); err != nil {
		reconcileRunsCounter.WithLabelValues("error").Inc()
		return fmt.Errorf("persisting reconciled messages: %w", err)
	}

	reconcileRunsCounter.WithLabelValues("success").Inc()
	j.logger.InfoContext(ctx, "Reconciliation run finished",
		"in_flight", len(externalIDs), "reports", len(statuses), "updated", updated)
	return nil
}

func (j *ReconciliationJob) publishStatusChange(ctx context.Context, msg *domain.OutboundMessage, previous domain.DeliveryStatus) {
	if j.publisher == nil {
		return
	}
	event := domain.StatusChangedEvent{
		MessageID:      msg.ID.String(),
		ExternalID:     msg.ExternalID.String,
		PreviousStatus: previous.String(),
		NewStatus:      msg.Status.String(),
		Source:         "reconciliation",
		OccurredAt:     time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to marshal status change event", "error", err, "message_id", msg.ID)
		return
	}
	if err := j.publisher.Publish(ctx, domain.StatusChangedSubject, data); err != nil {
		j.logger.WarnContext(ctx, "Failed to publish status change event", "error", err, "message_id", msg.ID)
	}
}
