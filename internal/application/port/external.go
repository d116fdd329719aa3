package port

import (
	"context"

	"github.com/veckopay/verification/internal/domain/entity"
	"github.com/veckopay/verification/internal/domain/event"
	"github.com/veckopay/verification/internal/fraud"
)

// RiskAssessor is the advisory risk assessment capability. Callers bound
// it with a context timeout and fall back to rule-based scoring on error;
// a failing assessor never fails verification.
type RiskAssessor interface {
	Assess(ctx context.Context, tc fraud.TransactionContext) (*entity.FraudAssessment, error)
}

// AuditSink receives structured audit events. Delivery is fire-and-forget:
// callers log a returned error and continue.
type AuditSink interface {
	Record(ctx context.Context, e *event.Event) error
}

// Progress is the snapshot yielded after each session mutation for an
// external real-time layer to broadcast.
type Progress struct {
	SessionID  string               `json:"session_id"`
	BatchID    string               `json:"batch_id"`
	Verified   int                  `json:"verified"`
	Total      int                  `json:"total"`
	Approved   int                  `json:"approved"`
	Rejected   int                  `json:"rejected"`
	Completion int                  `json:"completion_percentage"`
	Status     entity.SessionStatus `json:"status"`
}

// ProgressNotifier receives progress snapshots. Best-effort, like the
// audit sink.
type ProgressNotifier interface {
	Notify(ctx context.Context, p Progress)
}

// Authorizer is the single ownership capability check injected into the
// orchestrator instead of per-operation ad hoc checks.
type Authorizer interface {
	Authorize(actor, businessID string) bool
}
