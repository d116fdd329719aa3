// Package event defines the structured audit events emitted by the
// verification core. Each event kind carries its own typed payload; the
// payload determines the kind, so an event can never be mislabeled.
package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/veckopay/verification/internal/domain/entity"
)

// ActorSystem is the actor recorded for automated transitions
const ActorSystem = "system"

// Payload is implemented by every event payload variant
type Payload interface {
	Kind() Kind
}

// Event is one structured audit record. Delivery is fire-and-forget from
// the core's perspective.
type Event struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Actor       string    `json:"actor"`
	BusinessID  string    `json:"business_id"`
	BatchID     string    `json:"batch_id,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Payload     Payload   `json:"payload"`
	Timestamp   time.Time `json:"timestamp"`
}

// New creates an audit event; the kind is derived from the payload
func New(actor string, severity Severity, description string, payload Payload) *Event {
	return &Event{
		ID:          uuid.NewString(),
		Kind:        payload.Kind(),
		Actor:       actor,
		Severity:    severity,
		Description: description,
		Payload:     payload,
		Timestamp:   time.Now(),
	}
}

// WithRefs attaches the business/batch/session references and returns the event
func (e *Event) WithRefs(businessID, batchID, sessionID string) *Event {
	e.BusinessID = businessID
	e.BatchID = batchID
	e.SessionID = sessionID
	return e
}

// BatchCreated records a new weekly batch
type BatchCreated struct {
	BatchID           string  `json:"batch_id"`
	WeekNumber        int     `json:"week_number"`
	Year              int     `json:"year"`
	TotalTransactions int     `json:"total_transactions"`
	TotalAmount       float64 `json:"total_amount"`
}

func (BatchCreated) Kind() Kind { return KindBatchCreated }

// BatchStatusChanged records a batch lifecycle transition
type BatchStatusChanged struct {
	From entity.BatchStatus `json:"from"`
	To   entity.BatchStatus `json:"to"`
}

func (BatchStatusChanged) Kind() Kind { return KindBatchStatusChanged }

// SessionStarted records the session entering in_progress
type SessionStarted struct {
	TotalTransactions int       `json:"total_transactions"`
	Deadline          time.Time `json:"deadline"`
}

func (SessionStarted) Kind() Kind { return KindSessionStarted }

// TransactionVerified records one decision
type TransactionVerified struct {
	TransactionID string          `json:"transaction_id"`
	Decision      entity.Decision `json:"decision"`
	Automated     bool            `json:"automated"`
	RiskScore     *float64        `json:"risk_score,omitempty"`
	Completion    int             `json:"completion_percentage"`
}

func (TransactionVerified) Kind() Kind { return KindTransactionVerified }

// ResultSuperseded records an append-only correction
type ResultSuperseded struct {
	TransactionID string          `json:"transaction_id"`
	OldResultID   string          `json:"old_result_id"`
	NewResultID   string          `json:"new_result_id"`
	NewDecision   entity.Decision `json:"new_decision"`
}

func (ResultSuperseded) Kind() Kind { return KindResultSuperseded }

// SessionPaused records a pause with its reason
type SessionPaused struct {
	Reason     string `json:"reason"`
	PauseCount int    `json:"pause_count"`
}

func (SessionPaused) Kind() Kind { return KindSessionPaused }

// SessionResumed records leaving the paused state
type SessionResumed struct{}

func (SessionResumed) Kind() Kind { return KindSessionResumed }

// SessionCompleted records completion, manual or by full verification
type SessionCompleted struct {
	Notes      string `json:"notes,omitempty"`
	Completion int    `json:"completion_percentage"`
}

func (SessionCompleted) Kind() Kind { return KindSessionCompleted }

// SessionAutoApproved records a deadline auto-approval resolution
type SessionAutoApproved struct {
	Completion       int     `json:"completion_percentage"`
	AverageRiskScore float64 `json:"average_risk_score"`
}

func (SessionAutoApproved) Kind() Kind { return KindSessionAutoApproved }

// SessionExpired records a deadline expiry resolution
type SessionExpired struct {
	Completion       int     `json:"completion_percentage"`
	AverageRiskScore float64 `json:"average_risk_score"`
}

func (SessionExpired) Kind() Kind { return KindSessionExpired }

// SessionCancelled records a manual cancellation
type SessionCancelled struct {
	Reason string `json:"reason,omitempty"`
}

func (SessionCancelled) Kind() Kind { return KindSessionCancelled }

// AssessmentFallback records the advisory provider failing over to the
// rule-based default
type AssessmentFallback struct {
	TransactionID string `json:"transaction_id"`
	Cause         string `json:"cause"`
}

func (AssessmentFallback) Kind() Kind { return KindAssessmentFallback }

// PatternDetected records a cross-transaction fraud pattern surfacing in
// the session's transaction window
type PatternDetected struct {
	Pattern        string   `json:"pattern"`
	RiskLevel      string   `json:"risk_level"`
	Confidence     float64  `json:"confidence"`
	TransactionIDs []string `json:"transaction_ids"`
	Description    string   `json:"description,omitempty"`
}

func (PatternDetected) Kind() Kind { return KindPatternDetected }
