package domain

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus represents the lifecycle stage of an outbound message.
type DeliveryStatus int

const (
	// StatusPending means the message has been created but not yet submitted to the gateway.
	StatusPending DeliveryStatus = iota
	// StatusSent means the gateway accepted the message for delivery.
	StatusSent
	// StatusWaitingForReport means the message is with the gateway, awaiting a delivery report.
	StatusWaitingForReport
	// StatusDelivered means the message was confirmed delivered to the handset.
	StatusDelivered
	// StatusFailed means submission to the gateway failed.
	StatusFailed
	// StatusExpired means the message expired before delivery could complete.
	StatusExpired
	// StatusRejected means the gateway or carrier rejected the message.
	StatusRejected
	// StatusUndeliverable means the message could not be delivered (e.g., invalid number).
	StatusUndeliverable
)

// String returns the string representation of the DeliveryStatus.
func (s DeliveryStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSent:
		return "sent"
	case StatusWaitingForReport:
		return "waiting_for_report"
	case StatusDelivered:
		return "delivered"
	case StatusFailed:
		return "failed"
	case StatusExpired:
		return "expired"
	case StatusRejected:
		return "rejected"
	case StatusUndeliverable:
		return "undeliverable"
	default:
		return "unknown"
	}
}

// ParseDeliveryStatus converts the stored string form back into a DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	switch value {
	case "pending":
		return StatusPending, nil
	case "sent":
		return StatusSent, nil
	case "waiting_for_report":
		return StatusWaitingForReport, nil
	case "delivered":
		return StatusDelivered, nil
	case "failed":
		return StatusFailed, nil
	case "expired":
		return StatusExpired, nil
	case "rejected":
		return StatusRejected, nil
	case "undeliverable":
		return StatusUndeliverable, nil
	default:
		return StatusPending, fmt.Errorf("unknown delivery status value: %q", value)
	}
}

// Value implements the driver.Valuer interface for DeliveryStatus.
func (s DeliveryStatus) Value() (driver.Value, error) {
	return s.String(), nil
}

// Scan implements the sql.Scanner interface for DeliveryStatus.
func (s *DeliveryStatus) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan DeliveryStatus: value is not string or []byte, it is %T", value)
		}
		strVal = string(bytesVal)
	}
	parsed, err := ParseDeliveryStatus(strVal)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// InFlight reports whether the message has been handed to the gateway but has
// no final outcome yet, i.e. it is still eligible for reconciliation.
func (s DeliveryStatus) InFlight() bool {
	return s == StatusSent || s == StatusWaitingForReport
}

// OutboundMessage represents one SMS send attempt.
//
// ExternalID is assigned by the gateway on acceptance and is only valid once
// the status has moved past StatusPending.
type OutboundMessage struct {
	ID            uuid.UUID      `json:"id"`
	SourceAddress string         `json:"source_address"`
	MobileNumber  string         `json:"mobile_number"`
	Body          string         `json:"body"`
	Status        DeliveryStatus `json:"status"`
	ExternalID    sql.NullString `json:"external_id,omitempty"`
	SubmittedAt   sql.NullTime   `json:"submitted_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
