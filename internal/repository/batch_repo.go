// Package repository implements the application ports on sqlite. Status
// transitions use conditional updates so concurrent writers cannot both
// win; duplicates are enforced by partial unique indexes and mapped to
// the domain sentinels.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/veckopay/verification/internal/domain/entity"
	"github.com/veckopay/verification/pkg/database"
)

// BatchRepository handles payment batch database operations
type BatchRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB, logger *zap.Logger) *BatchRepository {
	return &BatchRepository{
		db:     db,
		logger: logger,
	}
}

const batchColumns = `id, business_id, week_number, year, total_transactions,
	total_amount, status, deadline, created_by, version, created_at, updated_at`

// Create inserts a new batch
func (r *BatchRepository) Create(ctx context.Context, batch *entity.PaymentBatch) error {
	query := `
		INSERT INTO payment_batches (
			id, business_id, week_number, year, total_transactions,
			total_amount, status, deadline, created_by, version,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Runner(ctx).ExecContext(ctx, query,
		batch.ID,
		batch.BusinessID,
		batch.WeekNumber,
		batch.Year,
		batch.TotalTransactions,
		batch.TotalAmount,
		batch.Status.String(),
		batch.Deadline,
		batch.CreatedBy,
		batch.Version,
		batch.CreatedAt,
		batch.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: business %s week %d/%d",
				entity.ErrDuplicateBatch, batch.BusinessID, batch.WeekNumber, batch.Year)
		}
		r.logger.Error("Failed to create batch", zap.Error(err))
		return fmt.Errorf("failed to create batch: %w", err)
	}
	return nil
}

// GetByID retrieves a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*entity.PaymentBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM payment_batches WHERE id = ?`

	batch, err := r.scanBatch(r.db.Runner(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: batch %s", entity.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get batch by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return batch, nil
}

// FindActive returns the non-terminal batch for (business, week, year)
func (r *BatchRepository) FindActive(ctx context.Context, businessID string, week, year int) (*entity.PaymentBatch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM payment_batches
		WHERE business_id = ? AND week_number = ? AND year = ?
			AND status NOT IN ('completed', 'auto_approved', 'expired')
	`

	batch, err := r.scanBatch(r.db.Runner(ctx).QueryRowContext(ctx, query, businessID, week, year))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no active batch for %s week %d/%d", entity.ErrNotFound, businessID, week, year)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active batch: %w", err)
	}
	return batch, nil
}

// ListByBusiness returns the business's batches, newest week first
func (r *BatchRepository) ListByBusiness(ctx context.Context, businessID string, limit, offset int) ([]*entity.PaymentBatch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM payment_batches
		WHERE business_id = ?
		ORDER BY year DESC, week_number DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.Runner(ctx).QueryContext(ctx, query, businessID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list batches", zap.String("business_id", businessID), zap.Error(err))
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	var batches []*entity.PaymentBatch
	for rows.Next() {
		batch, err := r.scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

// UpdateStatusIf transitions the batch only while its status is in from
func (r *BatchRepository) UpdateStatusIf(ctx context.Context, id string, from []entity.BatchStatus, to entity.BatchStatus) error {
	placeholders := strings.Repeat("?,", len(from))
	placeholders = placeholders[:len(placeholders)-1]
	query := fmt.Sprintf(`
		UPDATE payment_batches
		SET status = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status IN (%s)
	`, placeholders)

	args := make([]interface{}, 0, len(from)+2)
	args = append(args, to.String(), id)
	for _, s := range from {
		args = append(args, s.String())
	}

	result, err := r.db.Runner(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update batch status", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update batch status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: batch %s not in expected status", entity.ErrConcurrentModification, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *BatchRepository) scanBatch(row rowScanner) (*entity.PaymentBatch, error) {
	var batch entity.PaymentBatch
	var status string
	var deadline, createdAt, updatedAt time.Time

	err := row.Scan(
		&batch.ID,
		&batch.BusinessID,
		&batch.WeekNumber,
		&batch.Year,
		&batch.TotalTransactions,
		&batch.TotalAmount,
		&status,
		&deadline,
		&batch.CreatedBy,
		&batch.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	batch.Status = entity.BatchStatus(status)
	batch.Deadline = deadline
	batch.CreatedAt = createdAt
	batch.UpdatedAt = updatedAt
	return &batch, nil
}

// isUniqueViolation reports whether err is a sqlite unique constraint error
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
