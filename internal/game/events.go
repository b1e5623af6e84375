package game

import "aidm/internal/domain"

// Event is a notification emitted by the orchestrator as the session
// evolves. Consumers render from snapshots, so a dropped event under
// backpressure costs a repaint, never state.
type Event interface{ event() }

// SessionStarted reports that the backend assigned a session id.
type SessionStarted struct {
	SessionID string
}

// PhaseChanged reports a state machine transition.
type PhaseChanged struct {
	Phase domain.Phase
}

// MessageAppended reports a new timeline entry (closed or streaming-open).
type MessageAppended struct {
	Message domain.Message
}

// StreamChunk reports text growth on the open streaming entry.
type StreamChunk struct {
	MessageID int64
	Text      string
}

// StreamClosed reports that the streaming entry was sealed.
type StreamClosed struct {
	MessageID int64
}

// StateUpdated reports that world/character state or the inner monologue
// changed.
type StateUpdated struct{}

// Errored reports a user-visible failure recorded on the session.
type Errored struct {
	Message string
}

// BusyChanged reports busy-gate transitions.
type BusyChanged struct {
	Busy bool
}

func (SessionStarted) event()  {}
func (PhaseChanged) event()    {}
func (MessageAppended) event() {}
func (StreamChunk) event()     {}
func (StreamClosed) event()    {}
func (StateUpdated) event()    {}
func (Errored) event()         {}
func (BusyChanged) event()     {}
