package workflow

// SessionGuards carries the deadline-window predicates evaluated when the
// pause and resume transitions fire. A nil predicate permits the
// transition unconditionally.
type SessionGuards struct {
	CanPause  GuardFunc
	CanResume GuardFunc
}

// NewSessionMachine builds the verification session lifecycle:
// not_started -> in_progress <-> paused -> completed, with every active
// state able to expire, cancel, or auto-approve. Terminal states permit
// nothing. Pause and resume are gated by the guards.
func NewSessionMachine(initial State, guards SessionGuards) StateMachine {
	b := NewBuilder()

	b.Configure(StateNotStarted).
		Permit(TriggerStart, StateInProgress).
		Permit(TriggerExpire, StateExpired).
		Permit(TriggerAutoApprove, StateAutoApproved).
		Permit(TriggerCancel, StateCancelled)

	b.Configure(StateInProgress).
		PermitIf(TriggerPause, StatePaused, guards.CanPause).
		Permit(TriggerComplete, StateCompleted).
		Permit(TriggerExpire, StateExpired).
		Permit(TriggerAutoApprove, StateAutoApproved).
		Permit(TriggerCancel, StateCancelled)

	b.Configure(StatePaused).
		PermitIf(TriggerResume, StateInProgress, guards.CanResume).
		Permit(TriggerExpire, StateExpired).
		Permit(TriggerAutoApprove, StateAutoApproved).
		Permit(TriggerCancel, StateCancelled)

	return b.Build(initial)
}
