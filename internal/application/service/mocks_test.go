package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/veckopay/verification/internal/application/port"
	"github.com/veckopay/verification/internal/domain/entity"
)

// Mock repositories in the function-field style: each method delegates to
// an optional override and falls back to a harmless default.

type mockBatchRepo struct {
	createFunc         func(ctx context.Context, batch *entity.PaymentBatch) error
	getByIDFunc        func(ctx context.Context, id string) (*entity.PaymentBatch, error)
	findActiveFunc     func(ctx context.Context, businessID string, week, year int) (*entity.PaymentBatch, error)
	listByBusinessFunc func(ctx context.Context, businessID string, limit, offset int) ([]*entity.PaymentBatch, error)
	updateStatusIfFunc func(ctx context.Context, id string, from []entity.BatchStatus, to entity.BatchStatus) error
}

func (m *mockBatchRepo) Create(ctx context.Context, batch *entity.PaymentBatch) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, batch)
	}
	return nil
}

func (m *mockBatchRepo) GetByID(ctx context.Context, id string) (*entity.PaymentBatch, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &entity.PaymentBatch{ID: id, BusinessID: "biz-1", Status: entity.BatchPendingVerification, TotalTransactions: 10}, nil
}

func (m *mockBatchRepo) FindActive(ctx context.Context, businessID string, week, year int) (*entity.PaymentBatch, error) {
	if m.findActiveFunc != nil {
		return m.findActiveFunc(ctx, businessID, week, year)
	}
	return nil, entity.ErrNotFound
}

func (m *mockBatchRepo) ListByBusiness(ctx context.Context, businessID string, limit, offset int) ([]*entity.PaymentBatch, error) {
	if m.listByBusinessFunc != nil {
		return m.listByBusinessFunc(ctx, businessID, limit, offset)
	}
	return nil, nil
}

func (m *mockBatchRepo) UpdateStatusIf(ctx context.Context, id string, from []entity.BatchStatus, to entity.BatchStatus) error {
	if m.updateStatusIfFunc != nil {
		return m.updateStatusIfFunc(ctx, id, from, to)
	}
	return nil
}

type mockSessionRepo struct {
	createFunc            func(ctx context.Context, session *entity.VerificationSession) error
	getByIDFunc           func(ctx context.Context, id string) (*entity.VerificationSession, error)
	findActiveByBatchFunc func(ctx context.Context, batchID string) (*entity.VerificationSession, error)
	listActiveFunc        func(ctx context.Context, limit int) ([]*entity.VerificationSession, error)
	updateFunc            func(ctx context.Context, session *entity.VerificationSession) error
	updateStatusIfFunc    func(ctx context.Context, id string, from []entity.SessionStatus, to entity.SessionStatus, at time.Time) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *entity.VerificationSession) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) GetByID(ctx context.Context, id string) (*entity.VerificationSession, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, entity.ErrNotFound
}

func (m *mockSessionRepo) FindActiveByBatch(ctx context.Context, batchID string) (*entity.VerificationSession, error) {
	if m.findActiveByBatchFunc != nil {
		return m.findActiveByBatchFunc(ctx, batchID)
	}
	return nil, entity.ErrNotFound
}

func (m *mockSessionRepo) ListActive(ctx context.Context, limit int) ([]*entity.VerificationSession, error) {
	if m.listActiveFunc != nil {
		return m.listActiveFunc(ctx, limit)
	}
	return nil, nil
}

func (m *mockSessionRepo) Update(ctx context.Context, session *entity.VerificationSession) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) UpdateStatusIf(ctx context.Context, id string, from []entity.SessionStatus, to entity.SessionStatus, at time.Time) error {
	if m.updateStatusIfFunc != nil {
		return m.updateStatusIfFunc(ctx, id, from, to, at)
	}
	return nil
}

type mockResultRepo struct {
	createFunc        func(ctx context.Context, result *entity.VerificationResult) error
	getEffectiveFunc  func(ctx context.Context, sessionID, transactionID string) (*entity.VerificationResult, error)
	listBySessionFunc func(ctx context.Context, sessionID string) ([]*entity.VerificationResult, error)
	analyticsFunc     func(ctx context.Context, sessionID string) (*entity.SessionAnalytics, error)
}

func (m *mockResultRepo) Create(ctx context.Context, result *entity.VerificationResult) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, result)
	}
	return nil
}

func (m *mockResultRepo) GetEffective(ctx context.Context, sessionID, transactionID string) (*entity.VerificationResult, error) {
	if m.getEffectiveFunc != nil {
		return m.getEffectiveFunc(ctx, sessionID, transactionID)
	}
	return nil, entity.ErrNotFound
}

func (m *mockResultRepo) ListBySession(ctx context.Context, sessionID string) ([]*entity.VerificationResult, error) {
	if m.listBySessionFunc != nil {
		return m.listBySessionFunc(ctx, sessionID)
	}
	return nil, nil
}

func (m *mockResultRepo) Analytics(ctx context.Context, sessionID string) (*entity.SessionAnalytics, error) {
	if m.analyticsFunc != nil {
		return m.analyticsFunc(ctx, sessionID)
	}
	return &entity.SessionAnalytics{SessionID: sessionID}, nil
}

type mockTxManager struct{}

func (mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type allowAllAuthorizer struct{}

func (allowAllAuthorizer) Authorize(actor, businessID string) bool { return true }

type denyAuthorizer struct{}

func (denyAuthorizer) Authorize(actor, businessID string) bool { return false }

type mockNotifier struct {
	mu        sync.Mutex
	snapshots []port.Progress
}

func (m *mockNotifier) Notify(_ context.Context, p port.Progress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, p)
}

func (m *mockNotifier) last() (port.Progress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snapshots) == 0 {
		return port.Progress{}, false
	}
	return m.snapshots[len(m.snapshots)-1], true
}

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

// memSessionStore backs the resolver tests with real precondition
// semantics: UpdateStatusIf only succeeds while the stored status is in
// the from set.
type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*entity.VerificationSession
}

func newMemSessionStore(sessions ...*entity.VerificationSession) *memSessionStore {
	store := &memSessionStore{sessions: make(map[string]*entity.VerificationSession)}
	for _, s := range sessions {
		copied := *s
		store.sessions[s.ID] = &copied
	}
	return store
}

func (m *memSessionStore) Create(_ context.Context, session *entity.VerificationSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *memSessionStore) GetByID(_ context.Context, id string) (*entity.VerificationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *memSessionStore) FindActiveByBatch(_ context.Context, batchID string) (*entity.VerificationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.BatchID == batchID && s.Status.IsActive() {
			copied := *s
			return &copied, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (m *memSessionStore) ListActive(_ context.Context, limit int) ([]*entity.VerificationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.VerificationSession
	for _, s := range m.sessions {
		if s.Status.IsActive() {
			copied := *s
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memSessionStore) Update(_ context.Context, session *entity.VerificationSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.sessions[session.ID]
	if !ok {
		return entity.ErrNotFound
	}
	if current.Version != session.Version {
		return entity.ErrConcurrentModification
	}
	copied := *session
	copied.Version++
	m.sessions[session.ID] = &copied
	session.Version = copied.Version
	return nil
}

func (m *memSessionStore) UpdateStatusIf(_ context.Context, id string, from []entity.SessionStatus, to entity.SessionStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.sessions[id]
	if !ok {
		return entity.ErrNotFound
	}
	for _, f := range from {
		if current.Status == f {
			current.Status = to
			current.Version++
			if to.IsTerminal() {
				current.CompletedAt = &at
			}
			return nil
		}
	}
	return fmt.Errorf("%w: session %s is %s", entity.ErrConcurrentModification, id, current.Status)
}

func (m *memSessionStore) status(id string) entity.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id].Status
}
