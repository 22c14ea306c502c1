package core

import (
	"context"
	"fmt"
	"time"

	"yourobc-billing/internal/db"

	"github.com/google/uuid"
)

const (
	EntityInvoice        = "invoice"
	EntityExchangeRate   = "exchange_rate"
	EntityInvoiceCounter = "invoice_numbering"
	EntityDashboard      = "accounting_dashboard"
)

// AuditEntry is one row of the audit trail.
type AuditEntry struct {
	ID          string    `json:"id"`
	Action      string    `json:"action"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	EntityTitle string    `json:"entity_title"`
	Description string    `json:"description"`
	ActorID     string    `json:"actor_id"`
	Timestamp   time.Time `json:"timestamp"`
}

// AuditLog records audit entries through the caller's querier so the entry
// commits or rolls back with the mutation it describes.
type AuditLog interface {
	Record(ctx context.Context, q db.Querier, e AuditEntry) error
	History(ctx context.Context, q db.Querier, entityType, entityID string) ([]AuditEntry, error)
}

type pgAuditLog struct{}

func NewAuditLog() AuditLog {
	return pgAuditLog{}
}

func (pgAuditLog) Record(ctx context.Context, q db.Querier, e AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO audit_logs (id, action, entity_type, entity_id, entity_title, description, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))`,
		e.ID, e.Action, e.EntityType, e.EntityID, e.EntityTitle, e.Description, e.ActorID, nullTime(e.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to write audit entry %s: %w", e.Action, err)
	}
	return nil
}

func (pgAuditLog) History(ctx context.Context, q db.Querier, entityType, entityID string) ([]AuditEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT id, action, entity_type, entity_id, entity_title, description, actor_id, created_at
		FROM audit_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at ASC, id ASC`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit history: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.EntityType, &e.EntityID, &e.EntityTitle, &e.Description, &e.ActorID, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
