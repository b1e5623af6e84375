// Package domain defines the core types of a game session.
package domain

// Phase is the current stage of a game session. It is written only by the
// orchestrator's state machine; every other component just reads it.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseWorldCreation
	PhaseCharacterCreation
	PhaseGameplay
	PhaseGameOver
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseWorldCreation:
		return "world creation"
	case PhaseCharacterCreation:
		return "character creation"
	case PhaseGameplay:
		return "gameplay"
	case PhaseGameOver:
		return "game over"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseGameOver
}
