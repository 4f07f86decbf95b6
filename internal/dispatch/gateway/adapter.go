package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/textmesh/sms-dispatch/internal/dispatch/domain"
)

// Adapter is the application-facing gateway boundary: it sends one message and
// queries delivery status for a set of external ids, resolving clients through
// the credential-keyed cache and translating provider status codes via the
// mapping table. It never retries; transport, authentication and rejection
// errors are surfaced uninterpreted so the caller can decide message-level vs
// batch-level handling.
type Adapter struct {
	cache           *ClientCache
	cred            Credential
	callbackBaseURL string
	logger          *slog.Logger
}

// NewAdapter creates an Adapter bound to the active gateway credential.
// callbackBaseURL is the externally reachable base the provider pushes
// delivery reports to; the per-message report path is appended at send time.
func NewAdapter(cache *ClientCache, cred Credential, callbackBaseURL string, logger *slog.Logger) *Adapter {
	return &Adapter{
		cache:           cache,
		cred:            cred,
		callbackBaseURL: strings.TrimRight(callbackBaseURL, "/"),
		logger:          logger.With("component", "gateway_adapter"),
	}
}

// Send submits one message and returns the provider-assigned external id plus
// the mapped initial delivery status.
func (a *Adapter) Send(ctx context.Context, msg *domain.OutboundMessage) (string, domain.DeliveryStatus, error) {
	notifyURL := fmt.Sprintf("%s/report/%s", a.callbackBaseURL, msg.ID)

	client := a.cache.SendClient(a.cred)
	externalID, groupCode, err := client.Submit(ctx, SubmitRequest{
		From:      msg.SourceAddress,
		To:        msg.MobileNumber,
		Text:      msg.Body,
		NotifyURL: notifyURL,
	})
	if err != nil {
		return "", domain.StatusPending, err
	}
	if externalID == "" {
		return "", domain.StatusPending, errors.New("gateway accepted message without assigning an external id")
	}

	status, err := MapGroupCode(groupCode)
	if err != nil {
		return "", domain.StatusPending, fmt.Errorf("mapping initial send status: %w", err)
	}

	a.logger.DebugContext(ctx, "Message submitted to gateway",
		"message_id", msg.ID, "external_id", externalID, "initial_status", status.String())
	return externalID, status, nil
}

// QueryStatus performs a single batched status query for the given external
// ids. Ids without a report are absent from the result map; the caller must
// treat absence as "unchanged, try again later". Reports carrying a status
// code outside the mapping table are skipped and logged rather than failing
// the whole batch.
func (a *Adapter) QueryStatus(ctx context.Context, externalIDs []string) (map[string]domain.DeliveryStatus, error) {
	if len(externalIDs) == 0 {
		return map[string]domain.DeliveryStatus{}, nil
	}

	client := a.cache.ReportClient(a.cred)
	reports, err := client.QueryBatch(ctx, externalIDs)
	if err != nil {
		return nil, err
	}

	statuses := make(map[string]domain.DeliveryStatus, len(reports))
	for _, report := range reports {
		status, err := MapGroupCode(report.GroupCode)
		if err != nil {
			a.logger.WarnContext(ctx, "Skipping delivery report with unmappable status code",
				"external_id", report.ExternalID, "group_code", report.GroupCode)
			continue
		}
		statuses[report.ExternalID] = status
	}
	return statuses, nil
}
