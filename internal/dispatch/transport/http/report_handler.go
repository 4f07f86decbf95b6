package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/textmesh/sms-dispatch/internal/dispatch/domain"
	"github.com/textmesh/sms-dispatch/internal/dispatch/gateway"
	"github.com/textmesh/sms-dispatch/internal/platform/messagebroker"
)

const maxReportBodySize = 1 << 20 // 1 MB

// ReportHandler receives asynchronous delivery reports pushed by the provider
// to the per-message callback URL registered at send time.
//
// The endpoint acknowledges with 204 No Content unconditionally, including for
// unknown message ids and malformed payloads: anything else triggers
// provider-side retry storms, and a stale callback is not an error condition.
type ReportHandler struct {
	repo      domain.OutboundMessageRepository
	publisher messagebroker.Publisher
	logger    *slog.Logger
	validate  *validator.Validate
}

// NewReportHandler creates a ReportHandler. publisher may be nil.
func NewReportHandler(repo domain.OutboundMessageRepository, publisher messagebroker.Publisher, logger *slog.Logger, validate *validator.Validate) *ReportHandler {
	return &ReportHandler{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With("handler", "delivery_report"),
		validate:  validate,
	}
}

// RegisterRoutes mounts the callback endpoint on the given router.
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Post("/report/{messageID}", h.HandleDeliveryReport)
}

// HandleDeliveryReport applies one pushed status record to the addressed
// message. This path races with the reconciliation job on the same message;
// both writes are idempotent last-write-wins on delivery status.
func (h *ReportHandler) HandleDeliveryReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	// The response is fixed before any processing happens.
	defer w.WriteHeader(http.StatusNoContent)

	rawMessageID := chi.URLParam(r, "messageID")
	messageID, err := uuid.Parse(rawMessageID)
	if err != nil {
		logger.WarnContext(ctx, "Delivery report with unparseable message id", "message_id", rawMessageID)
		return
	}
	logger = logger.With("message_id", messageID)

	r.Body = http.MaxBytesReader(w, r.Body, maxReportBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.WarnContext(ctx, "Failed to read delivery report body", "error", err)
		return
	}

	var payload deliveryReportPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.WarnContext(ctx, "Failed to decode delivery report JSON", "error", err)
		return
	}
	if err := h.validate.StructCtx(ctx, payload); err != nil {
		logger.WarnContext(ctx, "Delivery report failed validation", "error", err)
		return
	}

	msg, err := h.repo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			logger.InfoContext(ctx, "Delivery report for unknown message, discarding")
		} else {
			logger.ErrorContext(ctx, "Failed to look up message for delivery report", "error", err)
		}
		return
	}

	report := payload.Results[0]
	status, err := gateway.MapGroupCode(report.Status.GroupID)
	if err != nil {
		logger.WarnContext(ctx, "Delivery report with unmappable status code",
			"group_code", report.Status.GroupID, "group_name", report.Status.GroupName)
		return
	}

	previous := msg.Status
	msg.Status = status
	if err := h.repo.Save(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "Failed to persist delivery report status", "error", err)
		return
	}

	logger.InfoContext(ctx, "Delivery report applied",
		"previous_status", previous.String(), "new_status", status.String())

	if h.publisher != nil && previous != status {
		h.publishStatusChange(ctx, logger, msg, previous)
	}
}

func (h *ReportHandler) publishStatusChange(ctx context.Context, logger *slog.Logger, msg *domain.OutboundMessage, previous domain.DeliveryStatus) {
	event := domain.StatusChangedEvent{
		MessageID:      msg.ID.String(),
		ExternalID:     msg.ExternalID.String,
		PreviousStatus: previous.String(),
		NewStatus:      msg.Status.String(),
		Source:         "callback",
		OccurredAt:     time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to marshal status change event", "error", err)
		return
	}
	if err := h.publisher.Publish(ctx, domain.StatusChangedSubject, data); err != nil {
		logger.WarnContext(ctx, "Failed to publish status change event", "error", err)
	}
}
