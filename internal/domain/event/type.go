package event

// Kind identifies the type of audit event
type Kind string

const (
	KindBatchCreated        Kind = "batch.created"
	KindBatchStatusChanged  Kind = "batch.status_changed"
	KindSessionStarted      Kind = "session.started"
	KindTransactionVerified Kind = "session.transaction_verified"
	KindResultSuperseded    Kind = "session.result_superseded"
	KindSessionPaused       Kind = "session.paused"
	KindSessionResumed      Kind = "session.resumed"
	KindSessionCompleted    Kind = "session.completed"
	KindSessionAutoApproved Kind = "session.auto_approved"
	KindSessionExpired      Kind = "session.expired"
	KindSessionCancelled    Kind = "session.cancelled"
	KindAssessmentFallback  Kind = "assessment.fallback"
	KindPatternDetected     Kind = "fraud.pattern_detected"
)

// String returns the string representation of the event kind
func (k Kind) String() string {
	return string(k)
}

// IsValid checks if the kind is one of the defined constants
func (k Kind) IsValid() bool {
	switch k {
	case KindBatchCreated,
		KindBatchStatusChanged,
		KindSessionStarted,
		KindTransactionVerified,
		KindResultSuperseded,
		KindSessionPaused,
		KindSessionResumed,
		KindSessionCompleted,
		KindSessionAutoApproved,
		KindSessionExpired,
		KindSessionCancelled,
		KindAssessmentFallback,
		KindPatternDetected:
		return true
	default:
		return false
	}
}

// Severity classifies how notable an event is
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)
