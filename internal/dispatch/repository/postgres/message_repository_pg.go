package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/textmesh/sms-dispatch/internal/dispatch/domain"
)

// PgxPool is the subset of pgxpool.Pool the repository uses; it also matches
// pgxmock's pool interface for tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgOutboundMessageRepository struct {
	db     PgxPool
	logger *slog.Logger
}

// NewPgOutboundMessageRepository creates a PostgreSQL-backed repository.
func NewPgOutboundMessageRepository(db PgxPool, logger *slog.Logger) domain.OutboundMessageRepository {
	return &pgOutboundMessageRepository{
		db:     db,
		logger: logger.With("component", "outbound_message_repository_pg"),
	}
}

const messageColumns = `id, source_address, mobile_number, body, status, external_id, submitted_at, created_at, updated_at`

func (r *pgOutboundMessageRepository) FindByStatus(ctx context.Context, status domain.DeliveryStatus, limit int) ([]*domain.OutboundMessage, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM outbound_messages
		WHERE status = $1
		ORDER BY created_at, id
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("querying messages by status %q: %w", status.String(), err)
	}
	defer rows.Close()

	var messages []*domain.OutboundMessage
	for rows.Next() {
		msg := &domain.OutboundMessage{}
		if err := rows.Scan(
			&msg.ID, &msg.SourceAddress, &msg.MobileNumber, &msg.Body, &msg.Status,
			&msg.ExternalID, &msg.SubmittedAt, &msg.CreatedAt, &msg.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}
	return messages, nil
}

func (r *pgOutboundMessageRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.OutboundMessage, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM outbound_messages
		WHERE id = $1
	`
	msg := &domain.OutboundMessage{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&msg.ID, &msg.SourceAddress, &msg.MobileNumber, &msg.Body, &msg.Status,
		&msg.ExternalID, &msg.SubmittedAt, &msg.CreatedAt, &msg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("querying message by id: %w", err)
	}
	return msg, nil
}

func (r *pgOutboundMessageRepository) Save(ctx context.Context, msg *domain.OutboundMessage) error {
	now := time.Now().UTC()
	query := `
		UPDATE outbound_messages
		SET status = $2, external_id = $3, submitted_at = $4, updated_at = $5
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, msg.ID, msg.Status, msg.ExternalID, msg.SubmittedAt, now)
	if err != nil {
		return fmt.Errorf("updating message %s: %w", msg.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	msg.UpdatedAt = now
	return nil
}

// SaveAll persists a batch. Each row write is independent and idempotent;
// re-writing an unchanged status is a no-op at the data level, so the caller
// may pass the full loaded batch.
func (r *pgOutboundMessageRepository) SaveAll(ctx context.Context, msgs []*domain.OutboundMessage) error {
	for _, msg := range msgs {
		if err := r.Save(ctx, msg); err != nil {
			return fmt.Errorf("saving message %s in batch: %w", msg.ID, err)
		}
	}
	return nil
}
