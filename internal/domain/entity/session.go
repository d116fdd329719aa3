package entity

import (
	"fmt"
	"math"
	"time"
)

// SessionStatus represents the lifecycle state of a verification session
type SessionStatus string

const (
	SessionNotStarted   SessionStatus = "not_started"
	SessionInProgress   SessionStatus = "in_progress"
	SessionPaused       SessionStatus = "paused"
	SessionCompleted    SessionStatus = "completed"
	SessionAutoApproved SessionStatus = "auto_approved"
	SessionExpired      SessionStatus = "expired"
	SessionCancelled    SessionStatus = "cancelled"
)

// ActiveSessionStatuses is the set of states the deadline scheduler scans
// and the set guarding every optimistic resolution update.
var ActiveSessionStatuses = []SessionStatus{
	SessionNotStarted,
	SessionInProgress,
	SessionPaused,
}

// IsTerminal returns true when no further transition is allowed
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionCompleted, SessionAutoApproved, SessionExpired, SessionCancelled:
		return true
	}
	return false
}

// IsActive returns true when the session is still subject to the deadline
func (s SessionStatus) IsActive() bool {
	return !s.IsTerminal()
}

// String returns the string representation of the status
func (s SessionStatus) String() string {
	return string(s)
}

// BatchStatusFor maps a resolved session status onto the owning batch.
// Completion always cascades.
func (s SessionStatus) BatchStatusFor() (BatchStatus, bool) {
	switch s {
	case SessionCompleted:
		return BatchCompleted, true
	case SessionAutoApproved:
		return BatchAutoApproved, true
	case SessionExpired:
		return BatchExpired, true
	}
	return "", false
}

// VerificationSession is the active verification workflow bound to one
// batch. Exactly one non-terminal session may exist per batch.
type VerificationSession struct {
	ID                    string        `json:"id"`
	BatchID               string        `json:"batch_id"`
	BusinessID            string        `json:"business_id"`
	Status                SessionStatus `json:"status"`
	TotalTransactions     int           `json:"total_transactions"`
	VerifiedTransactions  int           `json:"verified_transactions"`
	ApprovedCount         int           `json:"approved_count"`
	RejectedCount         int           `json:"rejected_count"`
	CurrentIndex          int           `json:"current_index"`
	Deadline              time.Time     `json:"deadline"`
	AutoApprovalThreshold int           `json:"auto_approval_threshold"`
	AverageRiskScore      float64       `json:"average_risk_score"`
	ScoredTransactions    int           `json:"scored_transactions"`
	StartedAt             *time.Time    `json:"started_at,omitempty"`
	PausedAt              *time.Time    `json:"paused_at,omitempty"`
	CompletedAt           *time.Time    `json:"completed_at,omitempty"`
	PauseCount            int           `json:"pause_count"`
	Version               int64         `json:"version"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// CompletionPercentage returns round(verified/total*100)
func (s *VerificationSession) CompletionPercentage() int {
	if s.TotalTransactions == 0 {
		return 0
	}
	return int(math.Round(float64(s.VerifiedTransactions) / float64(s.TotalTransactions) * 100))
}

// CheckInvariants validates the counter invariants:
// approved + rejected == verified <= total.
func (s *VerificationSession) CheckInvariants() error {
	if s.VerifiedTransactions > s.TotalTransactions {
		return fmt.Errorf("%w: verified %d exceeds total %d",
			ErrValidation, s.VerifiedTransactions, s.TotalTransactions)
	}
	if s.ApprovedCount+s.RejectedCount != s.VerifiedTransactions {
		return fmt.Errorf("%w: approved %d + rejected %d != verified %d",
			ErrValidation, s.ApprovedCount, s.RejectedCount, s.VerifiedTransactions)
	}
	return nil
}

// RecordDecision applies one verified transaction to the counters and
// folds its risk score into the running average. The average is taken
// over assessed transactions only; unscored verifications must not
// dilute it below what the scheduler's risk gate would otherwise see.
func (s *VerificationSession) RecordDecision(decision Decision, riskScore *float64) {
	s.VerifiedTransactions++
	switch decision {
	case DecisionApproved:
		s.ApprovedCount++
	case DecisionRejected:
		s.RejectedCount++
	}
	if riskScore != nil {
		s.ScoredTransactions++
		n := float64(s.ScoredTransactions)
		s.AverageRiskScore = (s.AverageRiskScore*(n-1) + *riskScore) / n
	}
	s.CurrentIndex = s.VerifiedTransactions
}

// CanPauseAt reports whether pausing is still allowed at t: the deadline
// must be at least cutoff away.
func (s *VerificationSession) CanPauseAt(t time.Time, cutoff time.Duration) bool {
	return s.Deadline.Sub(t) >= cutoff
}

// CanResumeAt reports whether the deadline still allows resuming at t
func (s *VerificationSession) CanResumeAt(t time.Time) bool {
	return !t.After(s.Deadline)
}

// GraceDeadline returns the point past which the scheduler resolves the session
func (s *VerificationSession) GraceDeadline(grace time.Duration) time.Time {
	return s.Deadline.Add(grace)
}

// SessionDeadline returns the nominal deadline for a session created at t:
// seven days out, extended to end of day.
func SessionDeadline(t time.Time, days int) time.Time {
	d := t.AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, d.Location())
}
