package entity

import (
	"fmt"
	"time"
)

// Decision is the recorded outcome for one transaction
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	DecisionPending  Decision = "pending"
)

// RejectionReason categorizes why a transaction was rejected
type RejectionReason string

const (
	ReasonFraudSuspected  RejectionReason = "fraud_suspected"
	ReasonInvalidAmount   RejectionReason = "invalid_amount"
	ReasonDuplicate       RejectionReason = "duplicate"
	ReasonPolicyViolation RejectionReason = "policy_violation"
	ReasonQualityIssue    RejectionReason = "quality_issue"
	ReasonCustomerDispute RejectionReason = "customer_dispute"
	ReasonOther           RejectionReason = "other"
)

var validRejectionReasons = map[RejectionReason]bool{
	ReasonFraudSuspected:  true,
	ReasonInvalidAmount:   true,
	ReasonDuplicate:       true,
	ReasonPolicyViolation: true,
	ReasonQualityIssue:    true,
	ReasonCustomerDispute: true,
	ReasonOther:           true,
}

// IsValid returns true if the reason is one of the defined categories
func (r RejectionReason) IsValid() bool {
	return validRejectionReasons[r]
}

// VerificationResult is the recorded decision for one transaction within a
// session. Results are immutable once written; corrections are appended as
// superseding records carrying a back-reference.
type VerificationResult struct {
	ID              string           `json:"id"`
	SessionID       string           `json:"session_id"`
	TransactionID   string           `json:"transaction_id"`
	Decision        Decision         `json:"decision"`
	Verified        bool             `json:"verified"`
	RejectionReason *RejectionReason `json:"rejection_reason,omitempty"`
	ReviewerID      string           `json:"reviewer_id,omitempty"` // empty means automated
	Notes           string           `json:"notes,omitempty"`
	DurationSeconds int              `json:"duration_seconds"`
	RiskScore       *float64         `json:"risk_score,omitempty"`
	Supersedes      string           `json:"supersedes,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Automated reports whether the decision was machine-entered
func (r *VerificationResult) Automated() bool {
	return r.ReviewerID == ""
}

// Validate enforces the decision consistency rules before persistence:
// approved and rejected imply verified, rejection requires a reason, and
// pending is never persisted as a final result.
func (r *VerificationResult) Validate() error {
	if r.SessionID == "" || r.TransactionID == "" {
		return fmt.Errorf("%w: session and transaction ids are required", ErrValidation)
	}
	switch r.Decision {
	case DecisionApproved:
		if !r.Verified {
			return fmt.Errorf("%w: approved result must be verified", ErrValidation)
		}
		if r.RejectionReason != nil {
			return fmt.Errorf("%w: approved result cannot carry a rejection reason", ErrValidation)
		}
	case DecisionRejected:
		if !r.Verified {
			return fmt.Errorf("%w: rejected result must be verified", ErrValidation)
		}
		if r.RejectionReason == nil {
			return fmt.Errorf("%w: rejection requires a reason", ErrValidation)
		}
		if !r.RejectionReason.IsValid() {
			return fmt.Errorf("%w: unknown rejection reason %q", ErrValidation, *r.RejectionReason)
		}
	case DecisionPending:
		return fmt.Errorf("%w: pending is not a final result", ErrValidation)
	default:
		return fmt.Errorf("%w: unknown decision %q", ErrValidation, r.Decision)
	}
	if r.DurationSeconds < 0 {
		return fmt.Errorf("%w: duration cannot be negative", ErrValidation)
	}
	return nil
}

// PaymentImpact is the payable outcome derived from a decision.
// It is a pure function of the decision: rejected and pending pay nothing.
type PaymentImpact struct {
	RewardPayable     float64 `json:"reward_payable"`
	CommissionPayable float64 `json:"commission_payable"`
}

// SessionAnalytics is a read-only view derived from the effective result
// set at query time; it is never stored.
type SessionAnalytics struct {
	SessionID       string                  `json:"session_id"`
	VerifiedCount   int                     `json:"verified_count"`
	ApprovedCount   int                     `json:"approved_count"`
	RejectedCount   int                     `json:"rejected_count"`
	ApprovalRate    float64                 `json:"approval_rate"`
	AverageRisk     float64                 `json:"average_risk"`
	AverageDuration float64                 `json:"average_duration_seconds"`
	ReasonHistogram map[RejectionReason]int `json:"reason_histogram"`
}
