package entity

import (
	"fmt"
	"math"
	"time"
)

// BatchStatus represents the lifecycle state of a payment batch
type BatchStatus string

const (
	BatchDraft               BatchStatus = "draft"
	BatchPendingVerification BatchStatus = "pending_verification"
	BatchInProgress          BatchStatus = "in_progress"
	BatchCompleted           BatchStatus = "completed"
	BatchAutoApproved        BatchStatus = "auto_approved"
	BatchExpired             BatchStatus = "expired"
)

// batchTransitions is the fixed allow-list of batch status changes.
// expired -> auto_approved is the sole late-resolution exception out of
// an otherwise terminal-looking state.
var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchDraft:               {BatchPendingVerification},
	BatchPendingVerification: {BatchInProgress, BatchExpired},
	BatchInProgress:          {BatchCompleted, BatchExpired, BatchAutoApproved},
	BatchExpired:             {BatchAutoApproved},
}

// IsTerminal returns true when the batch can receive no further work.
// Note expired still admits the late auto_approved resolution.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchCompleted || s == BatchAutoApproved || s == BatchExpired
}

// CanTransitionTo validates a status change against the allow-list
func (s BatchStatus) CanTransitionTo(to BatchStatus) bool {
	for _, allowed := range batchTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// String returns the string representation of the status
func (s BatchStatus) String() string {
	return string(s)
}

// PaymentBatch is one week's worth of payment transactions submitted by a
// business for verification. At most one non-terminal batch may exist per
// (business, week, year).
type PaymentBatch struct {
	ID                string      `json:"id"`
	BusinessID        string      `json:"business_id"`
	WeekNumber        int         `json:"week_number"`
	Year              int         `json:"year"`
	TotalTransactions int         `json:"total_transactions"`
	TotalAmount       float64     `json:"total_amount"`
	Status            BatchStatus `json:"status"`
	Deadline          time.Time   `json:"deadline"`
	CreatedBy         string      `json:"created_by"`
	Version           int64       `json:"version"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Validate checks the batch fields that do not depend on the clock
func (b *PaymentBatch) Validate() error {
	if b.BusinessID == "" {
		return fmt.Errorf("%w: business id is required", ErrValidation)
	}
	if b.TotalTransactions <= 0 {
		return fmt.Errorf("%w: total transactions must be positive", ErrValidation)
	}
	if b.TotalAmount < 0 {
		return fmt.Errorf("%w: total amount cannot be negative", ErrValidation)
	}
	if b.Year < 2000 || b.Year > 2100 {
		return fmt.Errorf("%w: year %d out of range", ErrValidation, b.Year)
	}
	if b.WeekNumber < 1 || b.WeekNumber > ISOWeeksInYear(b.Year) {
		return fmt.Errorf("%w: week %d of %d", ErrInvalidWeek, b.WeekNumber, b.Year)
	}
	return nil
}

// Transition moves the batch to a new status if the allow-list permits it
func (b *PaymentBatch) Transition(to BatchStatus) error {
	if !b.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: batch %s -> %s", ErrInvalidTransition, b.Status, to)
	}
	b.Status = to
	return nil
}

// UrgencyScore returns a 0-100 priority score for display ordering.
// Base score comes from hours to deadline, scaled up by batch size and
// amount, capped at 100. Has no gating effect.
func (b *PaymentBatch) UrgencyScore(now time.Time) int {
	hoursLeft := b.Deadline.Sub(now).Hours()

	var base float64
	switch {
	case hoursLeft < 24: // includes overdue
		base = 90
	case hoursLeft < 48:
		base = 70
	case hoursLeft < 72:
		base = 50
	default:
		base = 50 - (hoursLeft-72)/24*5
		if base < 5 {
			base = 5
		}
	}

	sizeFactor := 1.0
	switch {
	case b.TotalTransactions > 500:
		sizeFactor = 1.2
	case b.TotalTransactions > 200:
		sizeFactor = 1.1
	case b.TotalTransactions > 100:
		sizeFactor = 1.05
	}

	amountFactor := 1.0
	switch {
	case b.TotalAmount > 100000:
		amountFactor = 1.15
	case b.TotalAmount > 50000:
		amountFactor = 1.1
	case b.TotalAmount > 10000:
		amountFactor = 1.05
	}

	score := math.Round(base * sizeFactor * amountFactor)
	if score > 100 {
		score = 100
	}
	return int(score)
}

// ISOWeeksInYear returns 52 or 53 depending on the year.
// December 28 always falls in the last ISO week of its year.
func ISOWeeksInYear(year int) int {
	_, week := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return week
}

// ValidateWeekNotFuture fails when (year, week) is more than one ISO week
// ahead of now.
func ValidateWeekNotFuture(week, year int, now time.Time) error {
	nowYear, nowWeek := now.ISOWeek()
	nextYear, nextWeek := now.AddDate(0, 0, 7).ISOWeek()

	if year < nowYear || (year == nowYear && week <= nowWeek) {
		return nil
	}
	if year == nextYear && week == nextWeek {
		return nil
	}
	return fmt.Errorf("%w: week %d/%d", ErrFutureBatch, week, year)
}
