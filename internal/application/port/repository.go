// Package port defines the narrow contracts the application layer
// consumes: storage, advisory risk assessment, audit, and notification.
// Implementations live under internal/repository and
// internal/infrastructure.
package port

import (
	"context"
	"time"

	"github.com/veckopay/verification/internal/domain/entity"
)

// TransactionManager runs a function inside a storage transaction
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// BatchRepository persists payment batches
type BatchRepository interface {
	// Create inserts a batch; returns entity.ErrDuplicateBatch when a
	// non-terminal batch already exists for (business, week, year).
	Create(ctx context.Context, batch *entity.PaymentBatch) error

	GetByID(ctx context.Context, id string) (*entity.PaymentBatch, error)

	// FindActive returns the non-terminal batch for the key, or
	// entity.ErrNotFound.
	FindActive(ctx context.Context, businessID string, week, year int) (*entity.PaymentBatch, error)

	ListByBusiness(ctx context.Context, businessID string, limit, offset int) ([]*entity.PaymentBatch, error)

	// UpdateStatusIf is the conditional status update: it succeeds only
	// while the current status is in from, otherwise returns
	// entity.ErrConcurrentModification.
	UpdateStatusIf(ctx context.Context, id string, from []entity.BatchStatus, to entity.BatchStatus) error
}

// SessionRepository persists verification sessions
type SessionRepository interface {
	// Create inserts a session; returns entity.ErrDuplicateSession when a
	// non-terminal session already exists for the batch.
	Create(ctx context.Context, session *entity.VerificationSession) error

	GetByID(ctx context.Context, id string) (*entity.VerificationSession, error)

	// FindActiveByBatch returns the non-terminal session for the batch,
	// or entity.ErrNotFound.
	FindActiveByBatch(ctx context.Context, batchID string) (*entity.VerificationSession, error)

	// ListActive returns sessions in the active set, oldest deadline first.
	ListActive(ctx context.Context, limit int) ([]*entity.VerificationSession, error)

	// Update writes all mutable fields guarded by the session version;
	// returns entity.ErrConcurrentModification when the version moved.
	Update(ctx context.Context, session *entity.VerificationSession) error

	// UpdateStatusIf transitions the session only while its status is in
	// from, stamping at as the completion time for terminal targets.
	UpdateStatusIf(ctx context.Context, id string, from []entity.SessionStatus, to entity.SessionStatus, at time.Time) error
}

// ResultRepository persists per-transaction verification results.
// Results are append-only; corrections reference the superseded row.
type ResultRepository interface {
	Create(ctx context.Context, result *entity.VerificationResult) error

	// GetEffective returns the non-superseded result for the transaction,
	// or entity.ErrNotFound.
	GetEffective(ctx context.Context, sessionID, transactionID string) (*entity.VerificationResult, error)

	ListBySession(ctx context.Context, sessionID string) ([]*entity.VerificationResult, error)

	// Analytics derives the read-only session aggregates from the
	// effective result set at query time.
	Analytics(ctx context.Context, sessionID string) (*entity.SessionAnalytics, error)
}
