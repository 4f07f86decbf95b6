package gateway

import (
	"fmt"

	"github.com/textmesh/sms-dispatch/internal/dispatch/domain"
)

// Provider status group codes as reported by the gateway's send and delivery
// report APIs.
const (
	GroupAccepted      = 0
	GroupPending       = 1
	GroupUndeliverable = 2
	GroupDelivered     = 3
	GroupExpired       = 4
	GroupRejected      = 5
)

// statusByGroup is the authoritative mapping from provider status groups onto
// internal delivery statuses. It is data, not control flow: extending the
// provider vocabulary means adding a row here.
var statusByGroup = map[int]domain.DeliveryStatus{
	GroupAccepted:      domain.StatusSent,
	GroupPending:       domain.StatusWaitingForReport,
	GroupUndeliverable: domain.StatusUndeliverable,
	GroupDelivered:     domain.StatusDelivered,
	GroupExpired:       domain.StatusExpired,
	GroupRejected:      domain.StatusRejected,
}

// UnknownStatusCodeError is returned when the provider reports a status group
// outside the mapping table. Silently defaulting such a code would corrupt the
// message lifecycle, so it is always surfaced to the caller.
type UnknownStatusCodeError struct {
	Code int
}

func (e *UnknownStatusCodeError) Error() string {
	return fmt.Sprintf("unknown provider status group code: %d", e.Code)
}

// MapGroupCode translates a provider status group code into an internal
// delivery status. Pure and total over the mapping table.
func MapGroupCode(code int) (domain.DeliveryStatus, error) {
	status, ok := statusByGroup[code]
	if !ok {
		return domain.StatusPending, &UnknownStatusCodeError{Code: code}
	}
	return status, nil
}
