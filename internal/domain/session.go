package domain

// Session is the record for one game instance. The orchestrator owns the
// only mutable copy; snapshots handed to the UI are value copies.
type Session struct {
	// ID is assigned by the backend on creation and never changes afterwards.
	ID    string
	Phase Phase

	// Busy is the busy-gate: true while a phase-advancing network operation
	// is outstanding. New dispatches are ignored while set.
	Busy bool

	// LastErr is the most recent user-visible error, empty when the last
	// operation succeeded.
	LastErr string

	World     WorldState
	Character CharacterState

	// Monologue is the dungeon master's inner monologue from the latest
	// non-streaming gameplay turn.
	Monologue string
}
