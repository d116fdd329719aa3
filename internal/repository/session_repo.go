package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veckopay/verification/internal/domain/entity"
	"github.com/veckopay/verification/pkg/database"
)

// SessionRepository handles verification session database operations
type SessionRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.DB, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

const sessionColumns = `id, batch_id, business_id, status, total_transactions,
	verified_transactions, approved_count, rejected_count, current_index,
	deadline, auto_approval_threshold, average_risk_score, scored_transactions,
	started_at, paused_at, completed_at, pause_count, version, created_at, updated_at`

// Create inserts a new session
func (r *SessionRepository) Create(ctx context.Context, session *entity.VerificationSession) error {
	query := `
		INSERT INTO verification_sessions (
			id, batch_id, business_id, status, total_transactions,
			verified_transactions, approved_count, rejected_count,
			current_index, deadline, auto_approval_threshold,
			average_risk_score, scored_transactions, started_at, paused_at,
			completed_at, pause_count, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Runner(ctx).ExecContext(ctx, query,
		session.ID,
		session.BatchID,
		session.BusinessID,
		session.Status.String(),
		session.TotalTransactions,
		session.VerifiedTransactions,
		session.ApprovedCount,
		session.RejectedCount,
		session.CurrentIndex,
		session.Deadline,
		session.AutoApprovalThreshold,
		session.AverageRiskScore,
		session.ScoredTransactions,
		session.StartedAt,
		session.PausedAt,
		session.CompletedAt,
		session.PauseCount,
		session.Version,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: batch %s already has an active session", entity.ErrDuplicateSession, session.BatchID)
		}
		r.logger.Error("Failed to create session", zap.Error(err))
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by ID
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*entity.VerificationSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM verification_sessions WHERE id = ?`

	session, err := r.scanSession(r.db.Runner(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", entity.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get session by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// FindActiveByBatch returns the non-terminal session for the batch
func (r *SessionRepository) FindActiveByBatch(ctx context.Context, batchID string) (*entity.VerificationSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM verification_sessions
		WHERE batch_id = ? AND status IN ('not_started', 'in_progress', 'paused')
	`

	session, err := r.scanSession(r.db.Runner(ctx).QueryRowContext(ctx, query, batchID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no active session for batch %s", entity.ErrNotFound, batchID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active session: %w", err)
	}
	return session, nil
}

// ListActive returns active sessions ordered by deadline, oldest first.
// The resolution pass scans this set.
func (r *SessionRepository) ListActive(ctx context.Context, limit int) ([]*entity.VerificationSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM verification_sessions
		WHERE status IN ('not_started', 'in_progress', 'paused')
		ORDER BY deadline ASC
		LIMIT ?
	`

	rows, err := r.db.Runner(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to list active sessions", zap.Error(err))
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*entity.VerificationSession
	for rows.Next() {
		session, err := r.scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Update writes all mutable fields guarded by the version column. The
// caller's copy gets the incremented version on success.
func (r *SessionRepository) Update(ctx context.Context, session *entity.VerificationSession) error {
	query := `
		UPDATE verification_sessions
		SET status = ?, verified_transactions = ?, approved_count = ?,
			rejected_count = ?, current_index = ?, average_risk_score = ?,
			scored_transactions = ?, started_at = ?, paused_at = ?,
			completed_at = ?, pause_count = ?,
			version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?
	`

	result, err := r.db.Runner(ctx).ExecContext(ctx, query,
		session.Status.String(),
		session.VerifiedTransactions,
		session.ApprovedCount,
		session.RejectedCount,
		session.CurrentIndex,
		session.AverageRiskScore,
		session.ScoredTransactions,
		session.StartedAt,
		session.PausedAt,
		session.CompletedAt,
		session.PauseCount,
		session.ID,
		session.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update session", zap.String("id", session.ID), zap.Error(err))
		return fmt.Errorf("failed to update session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: session %s version %d is stale", entity.ErrConcurrentModification, session.ID, session.Version)
	}

	session.Version++
	return nil
}

// UpdateStatusIf transitions the session only while its status is in
// from. Terminal targets also stamp the completion time.
func (r *SessionRepository) UpdateStatusIf(ctx context.Context, id string, from []entity.SessionStatus, to entity.SessionStatus, at time.Time) error {
	placeholders := strings.Repeat("?,", len(from))
	placeholders = placeholders[:len(placeholders)-1]

	var query string
	args := make([]interface{}, 0, len(from)+3)
	if to.IsTerminal() {
		query = fmt.Sprintf(`
			UPDATE verification_sessions
			SET status = ?, completed_at = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND status IN (%s)
		`, placeholders)
		args = append(args, to.String(), at, id)
	} else {
		query = fmt.Sprintf(`
			UPDATE verification_sessions
			SET status = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND status IN (%s)
		`, placeholders)
		args = append(args, to.String(), id)
	}
	for _, s := range from {
		args = append(args, s.String())
	}

	result, err := r.db.Runner(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update session status", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update session status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: session %s not in expected status", entity.ErrConcurrentModification, id)
	}
	return nil
}

func (r *SessionRepository) scanSession(row rowScanner) (*entity.VerificationSession, error) {
	var session entity.VerificationSession
	var status string
	var startedAt, pausedAt, completedAt sql.NullTime

	err := row.Scan(
		&session.ID,
		&session.BatchID,
		&session.BusinessID,
		&status,
		&session.TotalTransactions,
		&session.VerifiedTransactions,
		&session.ApprovedCount,
		&session.RejectedCount,
		&session.CurrentIndex,
		&session.Deadline,
		&session.AutoApprovalThreshold,
		&session.AverageRiskScore,
		&session.ScoredTransactions,
		&startedAt,
		&pausedAt,
		&completedAt,
		&session.PauseCount,
		&session.Version,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	session.Status = entity.SessionStatus(status)
	if startedAt.Valid {
		session.StartedAt = &startedAt.Time
	}
	if pausedAt.Valid {
		session.PausedAt = &pausedAt.Time
	}
	if completedAt.Valid {
		session.CompletedAt = &completedAt.Time
	}
	return &session, nil
}
