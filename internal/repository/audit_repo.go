package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/veckopay/verification/internal/domain/event"
	"github.com/veckopay/verification/pkg/database"
)

// AuditRepository persists audit events for later review. It implements
// the audit sink port; the payload is stored as JSON so the table stays
// stable as payload shapes evolve.
type AuditRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *database.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// StoredEvent is one persisted audit row. The payload stays raw JSON;
// readers only need the envelope fields.
type StoredEvent struct {
	ID          string          `json:"id"`
	Kind        event.Kind      `json:"kind"`
	Severity    event.Severity  `json:"severity"`
	Actor       string          `json:"actor"`
	Description string          `json:"description"`
	BusinessID  string          `json:"business_id"`
	BatchID     string          `json:"batch_id,omitempty"`
	SessionID   string          `json:"session_id,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   string          `json:"created_at"`
}

// Record inserts the event. Audit writes ride outside the caller's
// transaction on purpose: a rolled-back workflow still leaves its trace.
func (r *AuditRepository) Record(ctx context.Context, e *event.Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_events (
			id, kind, severity, actor, description,
			business_id, batch_id, session_id, payload, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		e.ID,
		e.Kind.String(),
		string(e.Severity),
		e.Actor,
		e.Description,
		e.BusinessID,
		e.BatchID,
		e.SessionID,
		string(payload),
		e.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to record audit event", zap.String("kind", e.Kind.String()), zap.Error(err))
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// ListBySession returns the session's audit trail in insertion order
func (r *AuditRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*StoredEvent, error) {
	query := `
		SELECT id, kind, severity, actor, description,
			business_id, batch_id, session_id, payload, created_at
		FROM audit_events
		WHERE session_id = ?
		ORDER BY created_at ASC, rowid ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		r.logger.Error("Failed to list audit events", zap.String("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []*StoredEvent
	for rows.Next() {
		var e StoredEvent
		var kind, severity, payload string
		if err := rows.Scan(
			&e.ID, &kind, &severity, &e.Actor, &e.Description,
			&e.BusinessID, &e.BatchID, &e.SessionID, &payload, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.Kind = event.Kind(kind)
		e.Severity = event.Severity(severity)
		e.Payload = json.RawMessage(payload)
		events = append(events, &e)
	}
	return events, rows.Err()
}
