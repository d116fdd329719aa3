package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateNotStarted, false},
		{StateInProgress, false},
		{StatePaused, false},
		{StateCompleted, true},
		{StateAutoApproved, true},
		{StateExpired, true},
		{StateCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"active state", StateInProgress, true},
		{"terminal state", StateExpired, true},
		{"invalid state", State("done"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMachine_Fire(t *testing.T) {
	b := NewBuilder()
	b.Configure(StateNotStarted).Permit(TriggerStart, StateInProgress)
	b.Configure(StateInProgress).Permit(TriggerComplete, StateCompleted)

	m := b.Build(StateNotStarted)

	if err := m.Fire(context.Background(), TriggerStart); err != nil {
		t.Fatalf("Fire(START) unexpected error: %v", err)
	}
	if m.State() != StateInProgress {
		t.Errorf("State() = %v, want %v", m.State(), StateInProgress)
	}

	// Trigger not configured for the current state
	err := m.Fire(context.Background(), TriggerStart)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire(START) from in_progress error = %v, want ErrInvalidTransition", err)
	}
}

func TestMachine_FireGuard(t *testing.T) {
	allowed := false
	b := NewBuilder()
	b.Configure(StateInProgress).PermitIf(TriggerPause, StatePaused, func(ctx context.Context) bool {
		return allowed
	})

	m := b.Build(StateInProgress)

	err := m.Fire(context.Background(), TriggerPause)
	if !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire(PAUSE) with failing guard error = %v, want ErrGuardFailed", err)
	}
	if m.State() != StateInProgress {
		t.Errorf("failed guard must not change state, got %v", m.State())
	}

	allowed = true
	if err := m.Fire(context.Background(), TriggerPause); err != nil {
		t.Fatalf("Fire(PAUSE) with passing guard unexpected error: %v", err)
	}
	if m.State() != StatePaused {
		t.Errorf("State() = %v, want %v", m.State(), StatePaused)
	}
}

func TestSessionMachine_Lifecycle(t *testing.T) {
	tests := []struct {
		name    string
		initial State
		trigger Trigger
		want    State
		wantErr bool
	}{
		{"start", StateNotStarted, TriggerStart, StateInProgress, false},
		{"pause", StateInProgress, TriggerPause, StatePaused, false},
		{"resume", StatePaused, TriggerResume, StateInProgress, false},
		{"complete", StateInProgress, TriggerComplete, StateCompleted, false},
		{"expire while paused", StatePaused, TriggerExpire, StateExpired, false},
		{"auto approve before start", StateNotStarted, TriggerAutoApprove, StateAutoApproved, false},
		{"cancel in progress", StateInProgress, TriggerCancel, StateCancelled, false},
		{"complete before start", StateNotStarted, TriggerComplete, StateNotStarted, true},
		{"resume while running", StateInProgress, TriggerResume, StateInProgress, true},
		{"pause while paused", StatePaused, TriggerPause, StatePaused, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewSessionMachine(tt.initial, SessionGuards{})
			err := m.Fire(context.Background(), tt.trigger)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("Fire(%s) error = %v, want ErrInvalidTransition", tt.trigger, err)
				}
			} else if err != nil {
				t.Errorf("Fire(%s) unexpected error: %v", tt.trigger, err)
			}
			if m.State() != tt.want {
				t.Errorf("State() = %v, want %v", m.State(), tt.want)
			}
		})
	}
}

func TestSessionMachine_DeadlineGuards(t *testing.T) {
	allow := func(context.Context) bool { return true }
	deny := func(context.Context) bool { return false }

	m := NewSessionMachine(StateInProgress, SessionGuards{CanPause: deny})
	if err := m.Fire(context.Background(), TriggerPause); !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire(PAUSE) with blocked window error = %v, want ErrGuardFailed", err)
	}
	if m.State() != StateInProgress {
		t.Errorf("State() after blocked pause = %v, want %v", m.State(), StateInProgress)
	}

	m = NewSessionMachine(StatePaused, SessionGuards{CanResume: deny})
	if err := m.Fire(context.Background(), TriggerResume); !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire(RESUME) past deadline error = %v, want ErrGuardFailed", err)
	}

	m = NewSessionMachine(StateInProgress, SessionGuards{CanPause: allow, CanResume: allow})
	if err := m.Fire(context.Background(), TriggerPause); err != nil {
		t.Errorf("Fire(PAUSE) with open window unexpected error: %v", err)
	}
	if err := m.Fire(context.Background(), TriggerResume); err != nil {
		t.Errorf("Fire(RESUME) before deadline unexpected error: %v", err)
	}
}

func TestSessionMachine_TerminalStatesPermitNothing(t *testing.T) {
	for _, state := range []State{StateCompleted, StateAutoApproved, StateExpired, StateCancelled} {
		m := NewSessionMachine(state, SessionGuards{})
		if got := len(m.PermittedTriggers()); got != 0 {
			t.Errorf("PermittedTriggers() from %s = %d triggers, want 0", state, got)
		}
		for _, trigger := range []Trigger{TriggerStart, TriggerPause, TriggerResume, TriggerComplete, TriggerExpire, TriggerCancel, TriggerAutoApprove} {
			if m.CanFire(trigger) {
				t.Errorf("CanFire(%s) from terminal %s = true, want false", trigger, state)
			}
		}
	}
}
