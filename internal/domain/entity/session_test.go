package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionStatus_IsTerminal(t *testing.T) {
	assert.False(t, SessionNotStarted.IsTerminal())
	assert.False(t, SessionInProgress.IsTerminal())
	assert.False(t, SessionPaused.IsTerminal())
	assert.True(t, SessionCompleted.IsTerminal())
	assert.True(t, SessionAutoApproved.IsTerminal())
	assert.True(t, SessionExpired.IsTerminal())
	assert.True(t, SessionCancelled.IsTerminal())
}

func TestSessionStatus_BatchStatusFor(t *testing.T) {
	tests := []struct {
		status  SessionStatus
		want    BatchStatus
		cascade bool
	}{
		{SessionCompleted, BatchCompleted, true},
		{SessionAutoApproved, BatchAutoApproved, true},
		{SessionExpired, BatchExpired, true},
		{SessionCancelled, "", false},
		{SessionInProgress, "", false},
	}

	for _, tt := range tests {
		got, ok := tt.status.BatchStatusFor()
		assert.Equal(t, tt.cascade, ok, "status %s", tt.status)
		if tt.cascade {
			assert.Equal(t, tt.want, got)
		}
	}
}

func TestVerificationSession_CompletionPercentage(t *testing.T) {
	tests := []struct {
		verified int
		total    int
		want     int
	}{
		{0, 10, 0},
		{4, 10, 40},
		{10, 10, 100},
		{1, 3, 33},
		{2, 3, 67},
		{0, 0, 0},
	}

	for _, tt := range tests {
		s := VerificationSession{VerifiedTransactions: tt.verified, TotalTransactions: tt.total}
		assert.Equal(t, tt.want, s.CompletionPercentage(), "%d/%d", tt.verified, tt.total)
	}
}

func TestVerificationSession_CheckInvariants(t *testing.T) {
	ok := VerificationSession{
		TotalTransactions:    10,
		VerifiedTransactions: 6,
		ApprovedCount:        4,
		RejectedCount:        2,
	}
	assert.NoError(t, ok.CheckInvariants())

	overVerified := ok
	overVerified.VerifiedTransactions = 11
	overVerified.ApprovedCount = 9
	assert.True(t, errors.Is(overVerified.CheckInvariants(), ErrValidation))

	mismatch := ok
	mismatch.ApprovedCount = 3
	assert.True(t, errors.Is(mismatch.CheckInvariants(), ErrValidation))
}

func TestVerificationSession_RecordDecision(t *testing.T) {
	s := VerificationSession{TotalTransactions: 10}

	risk := 40.0
	s.RecordDecision(DecisionApproved, &risk)
	risk2 := 20.0
	s.RecordDecision(DecisionRejected, &risk2)

	assert.Equal(t, 2, s.VerifiedTransactions)
	assert.Equal(t, 1, s.ApprovedCount)
	assert.Equal(t, 1, s.RejectedCount)
	assert.Equal(t, 2, s.CurrentIndex)
	assert.Equal(t, 2, s.ScoredTransactions)
	assert.InDelta(t, 30.0, s.AverageRiskScore, 1e-9)
	assert.NoError(t, s.CheckInvariants())

	// Unscored verification counts toward progress but not the average
	s.RecordDecision(DecisionApproved, nil)
	assert.Equal(t, 3, s.VerifiedTransactions)
	assert.Equal(t, 2, s.ScoredTransactions)
	assert.InDelta(t, 30.0, s.AverageRiskScore, 1e-9)
}

func TestVerificationSession_AverageRiskOverScoredSubset(t *testing.T) {
	s := VerificationSession{TotalTransactions: 10}

	// Nine approvals recorded without an assessment must not dilute the
	// average below the single assessed score.
	for i := 0; i < 9; i++ {
		s.RecordDecision(DecisionApproved, nil)
	}
	high := 80.0
	s.RecordDecision(DecisionRejected, &high)

	assert.Equal(t, 10, s.VerifiedTransactions)
	assert.Equal(t, 1, s.ScoredTransactions)
	assert.InDelta(t, 80.0, s.AverageRiskScore, 1e-9)
}

func TestSessionDeadline(t *testing.T) {
	created := time.Date(2026, 3, 9, 14, 30, 0, 0, time.UTC)
	deadline := SessionDeadline(created, 7)

	assert.Equal(t, time.Date(2026, 3, 16, 23, 59, 59, 0, time.UTC), deadline)
}

func TestVerificationSession_DeadlineWindows(t *testing.T) {
	s := VerificationSession{Deadline: time.Date(2026, 3, 16, 23, 59, 59, 0, time.UTC)}

	assert.True(t, s.CanPauseAt(s.Deadline.Add(-7*time.Hour), 6*time.Hour))
	assert.False(t, s.CanPauseAt(s.Deadline.Add(-3*time.Hour), 6*time.Hour))
	assert.True(t, s.CanResumeAt(s.Deadline))
	assert.False(t, s.CanResumeAt(s.Deadline.Add(time.Second)))
}

func TestVerificationSession_GraceDeadline(t *testing.T) {
	deadline := time.Date(2026, 3, 16, 23, 59, 59, 0, time.UTC)
	s := VerificationSession{Deadline: deadline}

	assert.Equal(t, deadline.Add(2*time.Hour), s.GraceDeadline(2*time.Hour))
}
