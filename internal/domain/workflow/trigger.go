package workflow

// Trigger represents an event that can cause a session state transition
type Trigger string

const (
	TriggerStart       Trigger = "START"
	TriggerPause       Trigger = "PAUSE"
	TriggerResume      Trigger = "RESUME"
	TriggerComplete    Trigger = "COMPLETE"
	TriggerAutoApprove Trigger = "AUTO_APPROVE"
	TriggerExpire      Trigger = "EXPIRE"
	TriggerCancel      Trigger = "CANCEL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
