package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/veckopay/verification/internal/domain/entity"
	"github.com/veckopay/verification/pkg/database"
)

// ResultRepository handles verification result database operations. The
// table is append-only; corrections insert a new row referencing the
// superseded one.
type ResultRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *database.DB, logger *zap.Logger) *ResultRepository {
	return &ResultRepository{
		db:     db,
		logger: logger,
	}
}

const resultColumns = `id, session_id, transaction_id, decision, verified,
	rejection_reason, reviewer_id, notes, duration_seconds, risk_score,
	supersedes, created_at`

// Create inserts a verification result
func (r *ResultRepository) Create(ctx context.Context, result *entity.VerificationResult) error {
	query := `
		INSERT INTO verification_results (
			id, session_id, transaction_id, decision, verified,
			rejection_reason, reviewer_id, notes, duration_seconds,
			risk_score, supersedes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var reason interface{}
	if result.RejectionReason != nil {
		reason = string(*result.RejectionReason)
	}
	var supersedes interface{}
	if result.Supersedes != "" {
		supersedes = result.Supersedes
	}

	_, err := r.db.Runner(ctx).ExecContext(ctx, query,
		result.ID,
		result.SessionID,
		result.TransactionID,
		string(result.Decision),
		result.Verified,
		reason,
		result.ReviewerID,
		result.Notes,
		result.DurationSeconds,
		result.RiskScore,
		supersedes,
		result.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", entity.ErrTransactionAlreadyVerified, result.TransactionID)
		}
		r.logger.Error("Failed to create result", zap.Error(err))
		return fmt.Errorf("failed to create result: %w", err)
	}
	return nil
}

// GetEffective returns the newest result for the transaction, which in
// an append-only chain is the one not yet superseded.
func (r *ResultRepository) GetEffective(ctx context.Context, sessionID, transactionID string) (*entity.VerificationResult, error) {
	query := `
		SELECT ` + resultColumns + `
		FROM verification_results
		WHERE session_id = ? AND transaction_id = ?
		ORDER BY rowid DESC
		LIMIT 1
	`

	result, err := r.scanResult(r.db.Runner(ctx).QueryRowContext(ctx, query, sessionID, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s in session %s", entity.ErrNotFound, transactionID, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get effective result: %w", err)
	}
	return result, nil
}

// ListBySession returns every result row for the session, including
// superseded ones, in insertion order
func (r *ResultRepository) ListBySession(ctx context.Context, sessionID string) ([]*entity.VerificationResult, error) {
	query := `
		SELECT ` + resultColumns + `
		FROM verification_results
		WHERE session_id = ?
		ORDER BY rowid ASC
	`

	rows, err := r.db.Runner(ctx).QueryContext(ctx, query, sessionID)
	if err != nil {
		r.logger.Error("Failed to list results", zap.String("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var results []*entity.VerificationResult
	for rows.Next() {
		result, err := r.scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// Analytics derives the session aggregates from the effective result
// set. Superseded rows are excluded so corrections replace, not stack.
func (r *ResultRepository) Analytics(ctx context.Context, sessionID string) (*entity.SessionAnalytics, error) {
	// A row is effective when no other row supersedes it.
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN decision = 'approved' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN decision = 'rejected' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(risk_score), 0),
			COALESCE(AVG(duration_seconds), 0)
		FROM verification_results vr
		WHERE vr.session_id = ?
			AND NOT EXISTS (
				SELECT 1 FROM verification_results nxt WHERE nxt.supersedes = vr.id
			)
	`

	analytics := &entity.SessionAnalytics{
		SessionID:       sessionID,
		ReasonHistogram: make(map[entity.RejectionReason]int),
	}
	err := r.db.Runner(ctx).QueryRowContext(ctx, query, sessionID).Scan(
		&analytics.VerifiedCount,
		&analytics.ApprovedCount,
		&analytics.RejectedCount,
		&analytics.AverageRisk,
		&analytics.AverageDuration,
	)
	if err != nil {
		r.logger.Error("Failed to compute analytics", zap.String("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("failed to compute analytics: %w", err)
	}

	if analytics.VerifiedCount > 0 {
		analytics.ApprovalRate = float64(analytics.ApprovedCount) / float64(analytics.VerifiedCount) * 100
	}

	histQuery := `
		SELECT rejection_reason, COUNT(*)
		FROM verification_results vr
		WHERE vr.session_id = ? AND vr.decision = 'rejected'
			AND vr.rejection_reason IS NOT NULL
			AND NOT EXISTS (
				SELECT 1 FROM verification_results nxt WHERE nxt.supersedes = vr.id
			)
		GROUP BY rejection_reason
	`
	rows, err := r.db.Runner(ctx).QueryContext(ctx, histQuery, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute rejection histogram: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reason string
		var count int
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, fmt.Errorf("failed to scan histogram row: %w", err)
		}
		analytics.ReasonHistogram[entity.RejectionReason(reason)] = count
	}
	return analytics, rows.Err()
}

func (r *ResultRepository) scanResult(row rowScanner) (*entity.VerificationResult, error) {
	var result entity.VerificationResult
	var decision string
	var reason, supersedes sql.NullString
	var riskScore sql.NullFloat64

	err := row.Scan(
		&result.ID,
		&result.SessionID,
		&result.TransactionID,
		&decision,
		&result.Verified,
		&reason,
		&result.ReviewerID,
		&result.Notes,
		&result.DurationSeconds,
		&riskScore,
		&supersedes,
		&result.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	result.Decision = entity.Decision(decision)
	if reason.Valid {
		rr := entity.RejectionReason(reason.String)
		result.RejectionReason = &rr
	}
	if riskScore.Valid {
		result.RiskScore = &riskScore.Float64
	}
	if supersedes.Valid {
		result.Supersedes = supersedes.String
	}
	return &result, nil
}
