package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrMessageNotFound is returned when a lookup misses. A miss is a valid
// outcome for callback processing, not a fault.
var ErrMessageNotFound = errors.New("outbound message not found")

// OutboundMessageRepository defines the persistence contract consumed by the
// dispatch and reconciliation jobs.
type OutboundMessageRepository interface {
	// FindByStatus returns up to limit messages in the given status, in a
	// stable repository-defined order (insertion order).
	FindByStatus(ctx context.Context, status DeliveryStatus, limit int) ([]*OutboundMessage, error)
	FindByID(ctx context.Context, id uuid.UUID) (*OutboundMessage, error)
	Save(ctx context.Context, msg *OutboundMessage) error
	SaveAll(ctx context.Context, msgs []*OutboundMessage) error
}
