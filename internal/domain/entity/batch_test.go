package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBatchStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from BatchStatus
		to   BatchStatus
		want bool
	}{
		{"draft release", BatchDraft, BatchPendingVerification, true},
		{"pending to in progress", BatchPendingVerification, BatchInProgress, true},
		{"pending expires", BatchPendingVerification, BatchExpired, true},
		{"in progress completes", BatchInProgress, BatchCompleted, true},
		{"in progress expires", BatchInProgress, BatchExpired, true},
		{"in progress auto approves", BatchInProgress, BatchAutoApproved, true},
		{"late resolution out of expired", BatchExpired, BatchAutoApproved, true},
		{"draft cannot skip release", BatchDraft, BatchInProgress, false},
		{"completed is terminal", BatchCompleted, BatchExpired, false},
		{"auto approved is terminal", BatchAutoApproved, BatchCompleted, false},
		{"expired cannot complete", BatchExpired, BatchCompleted, false},
		{"no going back", BatchInProgress, BatchDraft, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestPaymentBatch_Transition(t *testing.T) {
	b := &PaymentBatch{Status: BatchDraft}

	assert.NoError(t, b.Transition(BatchPendingVerification))
	assert.Equal(t, BatchPendingVerification, b.Status)

	err := b.Transition(BatchCompleted)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, BatchPendingVerification, b.Status, "failed transition must not change status")
}

func TestPaymentBatch_Validate(t *testing.T) {
	valid := PaymentBatch{
		BusinessID:        "biz-1",
		WeekNumber:        10,
		Year:              2026,
		TotalTransactions: 25,
		TotalAmount:       5400.50,
	}

	tests := []struct {
		name    string
		mutate  func(*PaymentBatch)
		wantErr error
	}{
		{"valid", func(b *PaymentBatch) {}, nil},
		{"missing business", func(b *PaymentBatch) { b.BusinessID = "" }, ErrValidation},
		{"zero transactions", func(b *PaymentBatch) { b.TotalTransactions = 0 }, ErrValidation},
		{"negative amount", func(b *PaymentBatch) { b.TotalAmount = -1 }, ErrValidation},
		{"week zero", func(b *PaymentBatch) { b.WeekNumber = 0 }, ErrInvalidWeek},
		{"week beyond year", func(b *PaymentBatch) { b.WeekNumber = 53; b.Year = 2025 }, ErrInvalidWeek},
		{"week 53 in long year", func(b *PaymentBatch) { b.WeekNumber = 53; b.Year = 2026 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid
			tt.mutate(&b)
			err := b.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
		})
	}
}

func TestISOWeeksInYear(t *testing.T) {
	assert.Equal(t, 52, ISOWeeksInYear(2025))
	assert.Equal(t, 53, ISOWeeksInYear(2026))
	assert.Equal(t, 53, ISOWeeksInYear(2020))
}

func TestValidateWeekNotFuture(t *testing.T) {
	// Monday of ISO week 11, 2026
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

	assert.NoError(t, ValidateWeekNotFuture(11, 2026, now), "current week")
	assert.NoError(t, ValidateWeekNotFuture(10, 2026, now), "past week")
	assert.NoError(t, ValidateWeekNotFuture(50, 2025, now), "previous year")
	assert.NoError(t, ValidateWeekNotFuture(12, 2026, now), "next week is allowed")

	err := ValidateWeekNotFuture(13, 2026, now)
	assert.True(t, errors.Is(err, ErrFutureBatch))

	err = ValidateWeekNotFuture(1, 2027, now)
	assert.True(t, errors.Is(err, ErrFutureBatch))
}

func TestPaymentBatch_UrgencyScore(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

	small := func(deadline time.Time) *PaymentBatch {
		return &PaymentBatch{TotalTransactions: 10, TotalAmount: 1000, Deadline: deadline}
	}

	tests := []struct {
		name string
		b    *PaymentBatch
		min  int
		max  int
	}{
		{"overdue", small(now.Add(-2 * time.Hour)), 90, 90},
		{"under 24h", small(now.Add(5 * time.Hour)), 90, 90},
		{"under 48h", small(now.Add(30 * time.Hour)), 70, 70},
		{"under 72h", small(now.Add(60 * time.Hour)), 50, 50},
		{"far out decays", small(now.Add(10 * 24 * time.Hour)), 5, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.b.UrgencyScore(now)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}

	t.Run("size and amount multipliers cap at 100", func(t *testing.T) {
		b := &PaymentBatch{
			TotalTransactions: 800,
			TotalAmount:       250000,
			Deadline:          now.Add(-time.Hour),
		}
		assert.Equal(t, 100, b.UrgencyScore(now))
	})

	t.Run("multipliers raise a medium base", func(t *testing.T) {
		plain := small(now.Add(60 * time.Hour))
		big := &PaymentBatch{
			TotalTransactions: 300,
			TotalAmount:       60000,
			Deadline:          now.Add(60 * time.Hour),
		}
		assert.Greater(t, big.UrgencyScore(now), plain.UrgencyScore(now))
	})
}
