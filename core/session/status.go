package session

type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateListening  State = "listening"
	StateThinking   State = "thinking"
	StateSpeaking   State = "speaking"
	StateError      State = "error"
	StateStopped    State = "stopped"
)

// Status is a snapshot of the session reported to the status observer. Only
// the fields relevant to the state are set.
type Status struct {
	State     State
	SessionID string

	Interim   string
	Utterance string
	Reply     string
	Err       error
}
