package recorder

// State represents the stream manager lifecycle state.
type State string

// Stream manager states. Recording is reachable only from Active, and
// Stopping always returns to Active so the capture handle stays live for
// preview. Destroy is the only path back to Idle.
const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateActive    State = "active"
	StateRecording State = "recording"
	StateStopping  State = "stopping"
	StateError     State = "error"
)
