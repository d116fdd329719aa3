package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veckopay/verification/internal/audit"
	"github.com/veckopay/verification/internal/domain/entity"
	"github.com/veckopay/verification/internal/domain/event"
)

func overdueSession(id string, verified int, avgRisk float64) *entity.VerificationSession {
	approved := verified
	return &entity.VerificationSession{
		ID:                    id,
		BatchID:               "batch-" + id,
		BusinessID:            "biz-1",
		Status:                entity.SessionInProgress,
		TotalTransactions:     10,
		VerifiedTransactions:  verified,
		ApprovedCount:         approved,
		AverageRiskScore:      avgRisk,
		Deadline:              testNow.Add(-3 * time.Hour), // past grace
		AutoApprovalThreshold: 30,
		Version:               1,
	}
}

func newResolverFixture(sessions ...*entity.VerificationSession) (*Resolver, *memSessionStore, *mockBatchRepo, *audit.RecordingSink) {
	store := newMemSessionStore(sessions...)
	batches := &mockBatchRepo{}
	sink := audit.NewRecordingSink()
	resolver := NewResolver(store, batches, sink, &mockNotifier{}, nopLogger{}, DefaultResolverConfig())
	return resolver, store, batches, sink
}

func TestResolvePass_AutoApprovesAboveThreshold(t *testing.T) {
	// 4 of 10 verified (40%), average risk 20: meets the 30% floor with
	// acceptable risk, so the deadline resolves in the merchant's favour.
	resolver, store, batches, sink := newResolverFixture(overdueSession("s1", 4, 20))

	var cascadedTo entity.BatchStatus
	batches.updateStatusIfFunc = func(ctx context.Context, id string, from []entity.BatchStatus, to entity.BatchStatus) error {
		cascadedTo = to
		return nil
	}

	report, err := resolver.ResolvePass(context.Background(), testNow)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.AutoApproved)
	assert.Equal(t, 0, report.Expired)
	assert.Equal(t, entity.SessionAutoApproved, store.status("s1"))
	assert.Equal(t, entity.BatchAutoApproved, cascadedTo)
	assert.Len(t, sink.ByKind(event.KindSessionAutoApproved), 1)
}

func TestResolvePass_HighRiskExpires(t *testing.T) {
	// Completion is fine but average risk 85 exceeds the risk ceiling,
	// so the session expires instead of auto-approving.
	resolver, store, _, sink := newResolverFixture(overdueSession("s1", 8, 85))

	report, err := resolver.ResolvePass(context.Background(), testNow)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Expired)
	assert.Equal(t, 0, report.AutoApproved)
	assert.Equal(t, entity.SessionExpired, store.status("s1"))

	events := sink.ByKind(event.KindSessionExpired)
	require.Len(t, events, 1)
	assert.Equal(t, event.SeverityWarning, events[0].Severity)
}

func TestResolvePass_LowCompletionExpires(t *testing.T) {
	// 2 of 10 verified (20%) is below the 30% floor.
	resolver, store, _, _ := newResolverFixture(overdueSession("s1", 2, 10))

	report, err := resolver.ResolvePass(context.Background(), testNow)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Expired)
	assert.Equal(t, entity.SessionExpired, store.status("s1"))
}

func TestResolvePass_SessionThresholdStricterThanFloor(t *testing.T) {
	s := overdueSession("s1", 4, 10) // 40% complete
	s.AutoApprovalThreshold = 50     // session demands more than the config floor
	resolver, store, _, _ := newResolverFixture(s)

	_, err := resolver.ResolvePass(context.Background(), testNow)
	require.NoError(t, err)

	assert.Equal(t, entity.SessionExpired, store.status("s1"))
}

func TestResolvePass_WithinGraceIsSkipped(t *testing.T) {
	s := overdueSession("s1", 4, 20)
	s.Deadline = testNow.Add(-time.Hour) // grace period is two hours
	resolver, store, _, sink := newResolverFixture(s)

	report, err := resolver.ResolvePass(context.Background(), testNow)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, entity.SessionInProgress, store.status("s1"))
	assert.Empty(t, sink.Events())
}

func TestResolvePass_PausedSessionResolves(t *testing.T) {
	s := overdueSession("s1", 4, 20)
	s.Status = entity.SessionPaused
	resolver, store, _, _ := newResolverFixture(s)

	_, err := resolver.ResolvePass(context.Background(), testNow)
	require.NoError(t, err)

	assert.Equal(t, entity.SessionAutoApproved, store.status("s1"))
}

func TestResolvePass_Idempotent(t *testing.T) {
	// Two consecutive passes over the same store must resolve the
	// session once: the second pass no longer sees it as active.
	resolver, store, _, sink := newResolverFixture(overdueSession("s1", 4, 20))

	first, err := resolver.ResolvePass(context.Background(), testNow)
	require.NoError(t, err)
	second, err := resolver.ResolvePass(context.Background(), testNow.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, 1, first.AutoApproved)
	assert.Equal(t, 0, second.Scanned)
	assert.Equal(t, entity.SessionAutoApproved, store.status("s1"))
	assert.Len(t, sink.ByKind(event.KindSessionAutoApproved), 1)
}

func TestResolvePass_ConcurrentResolutionSkippedSilently(t *testing.T) {
	// Simulates a racing worker: the session goes terminal between the
	// list and the conditional update. The precondition fails and the
	// session is skipped without an error or a duplicate event.
	s := overdueSession("s1", 4, 20)
	store := newMemSessionStore(s)
	sink := audit.NewRecordingSink()
	resolver := NewResolver(store, &mockBatchRepo{}, sink, &mockNotifier{}, nopLogger{}, DefaultResolverConfig())

	listed, err := store.ListActive(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	// Another worker wins the race.
	require.NoError(t, store.UpdateStatusIf(context.Background(), "s1",
		entity.ActiveSessionStatuses, entity.SessionExpired, testNow))

	report, err := resolver.ResolvePass(context.Background(), testNow)
	require.NoError(t, err)

	assert.Equal(t, 0, report.AutoApproved)
	assert.Equal(t, 0, report.Expired)
	assert.Empty(t, report.Errors)
	assert.Empty(t, sink.Events())
}

func TestResolvePass_ErrorIsolation(t *testing.T) {
	// A repository failure on one session must not stop the others from
	// resolving in the same pass.
	good := overdueSession("s1", 4, 20)
	bad := overdueSession("s2", 4, 20)
	store := newMemSessionStore(good, bad)
	sink := audit.NewRecordingSink()

	failing := &failingSessionStore{memSessionStore: store, failID: "s2"}
	resolver := NewResolver(failing, &mockBatchRepo{}, sink, &mockNotifier{}, nopLogger{}, DefaultResolverConfig())

	report, err := resolver.ResolvePass(context.Background(), testNow)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.AutoApproved)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "s2", report.Errors[0].SessionID)
	assert.Equal(t, entity.SessionAutoApproved, store.status("s1"))
	assert.Equal(t, entity.SessionInProgress, store.status("s2"))
}

func TestCountdownFor(t *testing.T) {
	tests := []struct {
		name      string
		remaining time.Duration
		want      Urgency
	}{
		{"overdue", -time.Hour, UrgencyCritical},
		{"five hours", 5 * time.Hour, UrgencyCritical},
		{"twelve hours", 12 * time.Hour, UrgencyHigh},
		{"two days", 48 * time.Hour, UrgencyMedium},
		{"one week", 7 * 24 * time.Hour, UrgencyLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &entity.VerificationSession{Deadline: testNow.Add(tt.remaining)}
			assert.Equal(t, tt.want, CountdownFor(s, testNow))
		})
	}
}

// failingSessionStore wraps the in-memory store and fails conditional
// updates for one chosen session id.
type failingSessionStore struct {
	*memSessionStore
	failID string
}

func (f *failingSessionStore) UpdateStatusIf(ctx context.Context, id string, from []entity.SessionStatus, to entity.SessionStatus, at time.Time) error {
	if id == f.failID {
		return assert.AnError
	}
	return f.memSessionStore.UpdateStatusIf(ctx, id, from, to, at)
}
