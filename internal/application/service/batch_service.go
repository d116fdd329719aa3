package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/veckopay/verification/internal/application/port"
	"github.com/veckopay/verification/internal/domain/entity"
	"github.com/veckopay/verification/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Clock returns the current time; injected so deadline logic is testable
type Clock func() time.Time

// BatchService manages the payment batch lifecycle
type BatchService interface {
	Create(ctx context.Context, actor string, input CreateBatchInput) (*entity.PaymentBatch, error)
	Get(ctx context.Context, actor, id string) (*entity.PaymentBatch, error)
	Release(ctx context.Context, actor, id string) (*entity.PaymentBatch, error)
	ListUrgent(ctx context.Context, actor, businessID string, limit int) ([]BatchUrgency, error)
}

// CreateBatchInput is the batch creation request
type CreateBatchInput struct {
	BusinessID        string  `json:"business_id"`
	WeekNumber        int     `json:"week_number"`
	Year              int     `json:"year"`
	TotalTransactions int     `json:"total_transactions"`
	TotalAmount       float64 `json:"total_amount"`
	DeadlineDays      int     `json:"-"`
}

// BatchUrgency pairs a batch with its display priority
type BatchUrgency struct {
	Batch        *entity.PaymentBatch `json:"batch"`
	UrgencyScore int                  `json:"urgency_score"`
}

type batchServiceImpl struct {
	batchRepo  port.BatchRepository
	audit      port.AuditSink
	authorizer port.Authorizer
	logger     Logger
	now        Clock
}

// NewBatchService creates a new BatchService
func NewBatchService(
	batchRepo port.BatchRepository,
	audit port.AuditSink,
	authorizer port.Authorizer,
	logger Logger,
	now Clock,
) BatchService {
	if now == nil {
		now = time.Now
	}
	return &batchServiceImpl{
		batchRepo:  batchRepo,
		audit:      audit,
		authorizer: authorizer,
		logger:     logger,
		now:        now,
	}
}

// Create validates and inserts a new weekly batch in draft status
func (s *batchServiceImpl) Create(ctx context.Context, actor string, input CreateBatchInput) (*entity.PaymentBatch, error) {
	if !s.authorizer.Authorize(actor, input.BusinessID) {
		return nil, fmt.Errorf("%w: %s on %s", entity.ErrUnauthorized, actor, input.BusinessID)
	}

	now := s.now()
	deadlineDays := input.DeadlineDays
	if deadlineDays <= 0 {
		deadlineDays = 7
	}

	batch := &entity.PaymentBatch{
		ID:                uuid.NewString(),
		BusinessID:        input.BusinessID,
		WeekNumber:        input.WeekNumber,
		Year:              input.Year,
		TotalTransactions: input.TotalTransactions,
		TotalAmount:       input.TotalAmount,
		Status:            entity.BatchDraft,
		Deadline:          entity.SessionDeadline(now, deadlineDays),
		CreatedBy:         actor,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := batch.Validate(); err != nil {
		return nil, err
	}
	if err := entity.ValidateWeekNotFuture(batch.WeekNumber, batch.Year, now); err != nil {
		return nil, err
	}

	// The partial unique index backs this check; the pre-read gives a
	// cleaner error without relying on constraint mapping alone.
	if existing, err := s.batchRepo.FindActive(ctx, input.BusinessID, input.WeekNumber, input.Year); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: week %d/%d", entity.ErrDuplicateBatch, input.WeekNumber, input.Year)
	} else if err != nil && !errors.Is(err, entity.ErrNotFound) {
		return nil, err
	}

	if err := s.batchRepo.Create(ctx, batch); err != nil {
		s.logger.Error("Failed to create batch", "error", err, "business_id", input.BusinessID)
		return nil, err
	}

	s.record(ctx, event.New(actor, event.SeverityInfo, "weekly batch created", event.BatchCreated{
		BatchID:           batch.ID,
		WeekNumber:        batch.WeekNumber,
		Year:              batch.Year,
		TotalTransactions: batch.TotalTransactions,
		TotalAmount:       batch.TotalAmount,
	}).WithRefs(batch.BusinessID, batch.ID, ""))

	s.logger.Info("Batch created", "batch_id", batch.ID, "week", batch.WeekNumber, "year", batch.Year)
	return batch, nil
}

// Get retrieves a batch the actor is allowed to see
func (s *batchServiceImpl) Get(ctx context.Context, actor, id string) (*entity.PaymentBatch, error) {
	batch, err := s.batchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.authorizer.Authorize(actor, batch.BusinessID) {
		return nil, fmt.Errorf("%w: %s on %s", entity.ErrUnauthorized, actor, batch.BusinessID)
	}
	return batch, nil
}

// Release moves a draft batch to pending_verification
func (s *batchServiceImpl) Release(ctx context.Context, actor, id string) (*entity.PaymentBatch, error) {
	batch, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if !batch.Status.CanTransitionTo(entity.BatchPendingVerification) {
		return nil, fmt.Errorf("%w: batch %s -> %s", entity.ErrInvalidTransition, batch.Status, entity.BatchPendingVerification)
	}

	if err := s.batchRepo.UpdateStatusIf(ctx, id,
		[]entity.BatchStatus{entity.BatchDraft}, entity.BatchPendingVerification); err != nil {
		return nil, err
	}

	s.record(ctx, event.New(actor, event.SeverityInfo, "batch released for verification", event.BatchStatusChanged{
		From: batch.Status,
		To:   entity.BatchPendingVerification,
	}).WithRefs(batch.BusinessID, batch.ID, ""))

	batch.Status = entity.BatchPendingVerification
	return batch, nil
}

// ListUrgent returns the business's batches ordered by urgency score
// descending. Purely a display ordering.
func (s *batchServiceImpl) ListUrgent(ctx context.Context, actor, businessID string, limit int) ([]BatchUrgency, error) {
	if !s.authorizer.Authorize(actor, businessID) {
		return nil, fmt.Errorf("%w: %s on %s", entity.ErrUnauthorized, actor, businessID)
	}
	if limit <= 0 {
		limit = 50
	}

	batches, err := s.batchRepo.ListByBusiness(ctx, businessID, limit, 0)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]BatchUrgency, 0, len(batches))
	for _, b := range batches {
		if b.Status.IsTerminal() {
			continue
		}
		out = append(out, BatchUrgency{Batch: b, UrgencyScore: b.UrgencyScore(now)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UrgencyScore > out[j].UrgencyScore
	})
	return out, nil
}

// record delivers an audit event; failures are logged and swallowed
func (s *batchServiceImpl) record(ctx context.Context, e *event.Event) {
	if err := s.audit.Record(ctx, e); err != nil {
		s.logger.Warn("Audit record failed", "error", err, "kind", e.Kind.String())
	}
}
