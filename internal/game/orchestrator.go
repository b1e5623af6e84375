package game

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"aidm/internal/backend"
	"aidm/internal/domain"
)

// openingGreeting is the fixed payload of the implicit dispatch that opens
// world creation.
const openingGreeting = "Hello"

// gameplayOpener is the synthetic input that starts the first gameplay turn.
// It is sent to the narrator but never shown in the transcript.
const gameplayOpener = "begin"

const (
	defaultPollInterval = time.Second
	defaultPollTimeout  = 20 * time.Second
)

// Backend is the slice of the agent service API the orchestrator drives.
// *backend.Client satisfies it.
type Backend interface {
	CreateSession(ctx context.Context) (backend.SessionCreated, error)
	SessionStatus(ctx context.Context, sessionID string) (backend.SessionStatus, error)
	ProcessAgent(ctx context.Context, kind backend.AgentKind, sessionID, userInput string) (backend.AgentResult, error)
	Play(ctx context.Context, sessionID, userInput string) (backend.TurnResult, error)
	PlayStream(ctx context.Context, sessionID, userInput string) iter.Seq2[string, error]
}

// Recorder archives the transcript as it grows. Recording is best-effort:
// a failed write is logged and play continues.
type Recorder interface {
	SaveSession(ctx context.Context, sessionID string, phase domain.Phase) error
	SaveMessage(ctx context.Context, sessionID string, msg domain.Message) error
}

// Options tune the orchestrator.
type Options struct {
	// PollInterval is the readiness query cadence. Default 1s.
	PollInterval time.Duration
	// PollTimeout bounds the whole readiness wait. Default 20 intervals.
	PollTimeout time.Duration
	// Streaming selects the event-stream gameplay endpoint over the
	// single-shot one.
	Streaming bool
}

// Orchestrator sequences one game session through world creation, character
// creation and gameplay. All session mutation is serialized through its
// mutex; operations are expected to be invoked one at a time (the busy-gate
// turns overlapping invocations into no-ops).
type Orchestrator struct {
	backend Backend
	rec     Recorder
	opts    Options

	mu       sync.Mutex
	session  domain.Session
	timeline *Timeline
	// epoch invalidates in-flight async work on reset: any completion
	// carrying a stale epoch aborts silently before mutating state.
	epoch int

	events chan Event
}

// New creates an orchestrator. rec may be nil to disable transcript
// archiving.
func New(b Backend, rec Recorder, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	return &Orchestrator{
		backend:  b,
		rec:      rec,
		opts:     opts,
		timeline: NewTimeline(),
		events:   make(chan Event, 256),
	}
}

// Events returns the notification channel. Events may be dropped under
// backpressure; consumers must render from Snapshot, not replay events.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// Snapshot returns value copies of the session record and transcript.
func (o *Orchestrator) Snapshot() (domain.Session, []domain.Message) {
	o.mu.Lock()
	session := o.session
	tl := o.timeline
	o.mu.Unlock()
	return session, tl.Messages()
}

// StartSession creates the backend session and fires the implicit opening
// dispatch to the world builder. A session that is already started or busy
// is left alone.
func (o *Orchestrator) StartSession(ctx context.Context) {
	o.mu.Lock()
	if o.session.Busy || o.session.ID != "" {
		o.mu.Unlock()
		return
	}
	epoch := o.epoch
	o.session.Busy = true
	o.mu.Unlock()
	o.emit(BusyChanged{Busy: true})

	created, err := o.backend.CreateSession(ctx)
	if err != nil {
		o.fail(epoch, err)
		return
	}

	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		return
	}
	o.session.ID = created.SessionID
	o.mu.Unlock()
	o.emit(SessionStarted{SessionID: created.SessionID})
	o.saveSession(created.SessionID, domain.PhaseInit)

	if created.Message != "" {
		o.appendMessage(epoch, domain.SenderSystem, created.Message)
	}
	o.setPhase(epoch, domain.PhaseWorldCreation)
	o.agentTurn(ctx, epoch, backend.AgentWorldBuilder, openingGreeting, true)
}

// Submit forwards player input to the agent owning the current phase. Input
// is ignored when no session exists, the busy-gate is set, or the game is
// over; ignored input makes no network call and appends nothing.
func (o *Orchestrator) Submit(ctx context.Context, input string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return
	}

	o.mu.Lock()
	if o.session.ID == "" || o.session.Busy || o.session.Phase.Terminal() {
		o.mu.Unlock()
		return
	}
	phase := o.session.Phase
	epoch := o.epoch
	o.session.Busy = true
	o.mu.Unlock()
	o.emit(BusyChanged{Busy: true})

	switch phase {
	case domain.PhaseWorldCreation:
		o.agentTurn(ctx, epoch, backend.AgentWorldBuilder, input, false)
	case domain.PhaseCharacterCreation:
		o.agentTurn(ctx, epoch, backend.AgentCharacterManager, input, false)
	case domain.PhaseGameplay:
		o.gameplayTurn(ctx, epoch, input, false)
	default:
		o.finish(epoch)
	}
}

// Reset abandons the current session so a new one can be started. Any
// in-flight operation, stream or poller is invalidated and will abort
// without touching the fresh state.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.epoch++
	o.session = domain.Session{}
	o.timeline = NewTimeline()
	o.mu.Unlock()
	o.emit(PhaseChanged{Phase: domain.PhaseInit})
	o.emit(StateUpdated{})
	o.emit(BusyChanged{Busy: false})
}

// agentTurn runs one creation-phase dispatch. Synthetic turns are the
// machine-issued opening prompts; they reach the backend but are not shown
// as player messages.
func (o *Orchestrator) agentTurn(ctx context.Context, epoch int, kind backend.AgentKind, input string, synthetic bool) {
	if !synthetic {
		o.appendMessage(epoch, domain.SenderPlayer, input)
	}

	res, err := o.backend.ProcessAgent(ctx, kind, o.sessionID(), input)
	if err != nil {
		o.fail(epoch, err)
		return
	}

	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		return
	}
	o.session.LastErr = ""
	switch {
	case res.World != nil:
		o.session.World = *res.World
	case res.Character != nil:
		o.session.Character = *res.Character
	}
	o.mu.Unlock()
	o.emit(StateUpdated{})

	o.appendMessage(epoch, domain.SenderDungeonMaster, res.Response)

	if !res.IsComplete {
		o.finish(epoch)
		return
	}
	switch kind {
	case backend.AgentWorldBuilder:
		o.setPhase(epoch, domain.PhaseCharacterCreation)
		o.agentTurn(ctx, epoch, backend.AgentCharacterManager, "", true)
	case backend.AgentCharacterManager:
		// Completion alone does not enter gameplay; backend readiness does.
		o.awaitReadiness(ctx, epoch)
	}
}

// awaitReadiness polls session status until the backend reports it is ready
// for gameplay. Exactly one terminal branch fires: ready (transition and
// synthetic opening turn), query failure (fatal, no retry) or timeout.
func (o *Orchestrator) awaitReadiness(ctx context.Context, epoch int) {
	sessionID := o.sessionID()

	ticker := time.NewTicker(o.opts.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(o.opts.PollTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			o.fail(epoch, fmt.Errorf("cannot verify readiness: %w", ctx.Err()))
			return
		case <-deadline.C:
			o.fail(epoch, errors.New("timed out waiting for the game to become ready"))
			return
		case <-ticker.C:
			status, err := o.backend.SessionStatus(ctx, sessionID)
			if err != nil {
				o.fail(epoch, fmt.Errorf("cannot verify readiness: %w", err))
				return
			}
			if !status.ReadyForGame {
				continue
			}
			o.mu.Lock()
			if epoch != o.epoch {
				o.mu.Unlock()
				return
			}
			o.session.World = status.WorldState
			o.session.Character = status.CharacterState
			o.mu.Unlock()
			o.emit(StateUpdated{})
			o.setPhase(epoch, domain.PhaseGameplay)
			o.gameplayTurn(ctx, epoch, gameplayOpener, true)
			return
		}
	}
}

// gameplayTurn runs one narrator turn, streaming or single-shot.
func (o *Orchestrator) gameplayTurn(ctx context.Context, epoch int, input string, synthetic bool) {
	if !synthetic {
		o.appendMessage(epoch, domain.SenderPlayer, input)
	}
	if o.opts.Streaming {
		o.streamTurn(ctx, epoch, input)
		return
	}

	res, err := o.backend.Play(ctx, o.sessionID(), input)
	if err != nil {
		o.turnError(epoch, err)
		return
	}

	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		return
	}
	o.session.LastErr = ""
	o.session.Monologue = res.InnerMonologue
	o.mu.Unlock()
	o.emit(StateUpdated{})

	o.appendMessage(epoch, domain.SenderDungeonMaster, res.Narrative)
	if res.IsGameOver {
		o.endGame(epoch)
		return
	}
	o.finish(epoch)
}

// streamTurn consumes one narration event stream into a single open
// timeline entry. A mid-stream failure keeps the partial narration.
func (o *Orchestrator) streamTurn(ctx context.Context, epoch int, input string) {
	o.mu.Lock()
	sessionID := o.session.ID
	tl := o.timeline
	o.mu.Unlock()

	var openID int64
	for chunk, err := range o.backend.PlayStream(ctx, sessionID, input) {
		if !o.sameEpoch(epoch) {
			return
		}
		if err != nil {
			o.closeStream(epoch, tl, openID)
			o.turnError(epoch, err)
			return
		}
		if openID == 0 {
			msg, openErr := tl.OpenStreaming(domain.SenderDungeonMaster)
			if openErr != nil {
				o.fail(epoch, openErr)
				return
			}
			openID = msg.ID
			o.emit(MessageAppended{Message: msg})
		}
		if _, ok := tl.AppendChunk(openID, chunk); ok {
			o.emit(StreamChunk{MessageID: openID, Text: chunk})
		}
	}

	o.closeStream(epoch, tl, openID)
	o.mu.Lock()
	if epoch == o.epoch {
		o.session.LastErr = ""
	}
	o.mu.Unlock()
	o.finish(epoch)
}

// closeStream seals the open streaming entry and archives its final text.
func (o *Orchestrator) closeStream(epoch int, tl *Timeline, id int64) {
	if id == 0 || !o.sameEpoch(epoch) {
		return
	}
	final, ok := tl.CloseStreaming(id)
	if !ok {
		return
	}
	o.emit(StreamClosed{MessageID: id})
	o.saveMessage(o.sessionID(), final)
}

// turnError routes a gameplay failure: a vanished session means the backend
// ended the game, anything else is a retryable error.
func (o *Orchestrator) turnError(epoch int, err error) {
	if errors.Is(err, backend.ErrNotFound) {
		o.endGame(epoch)
		return
	}
	o.fail(epoch, err)
}

func (o *Orchestrator) endGame(epoch int) {
	o.setPhase(epoch, domain.PhaseGameOver)
	o.appendMessage(epoch, domain.SenderSystem, "The adventure has come to an end.")
	o.finish(epoch)
}

// appendMessage adds a closed timeline entry and archives it.
func (o *Orchestrator) appendMessage(epoch int, sender domain.Sender, text string) {
	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		return
	}
	msg := o.timeline.Append(sender, text)
	sessionID := o.session.ID
	o.mu.Unlock()
	o.emit(MessageAppended{Message: msg})
	o.saveMessage(sessionID, msg)
}

// setPhase performs a state machine transition.
func (o *Orchestrator) setPhase(epoch int, phase domain.Phase) {
	o.mu.Lock()
	if epoch != o.epoch || o.session.Phase == phase {
		o.mu.Unlock()
		return
	}
	o.session.Phase = phase
	sessionID := o.session.ID
	o.mu.Unlock()
	o.emit(PhaseChanged{Phase: phase})
	o.saveSession(sessionID, phase)
}

// fail records a user-visible error and clears the busy-gate so the player
// can retry from the same phase.
func (o *Orchestrator) fail(epoch int, err error) {
	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		return
	}
	o.session.LastErr = err.Error()
	o.session.Busy = false
	o.mu.Unlock()
	slog.Warn("session operation failed", "error", err)
	o.emit(Errored{Message: err.Error()})
	o.emit(BusyChanged{Busy: false})
}

// finish clears the busy-gate after a settled operation.
func (o *Orchestrator) finish(epoch int) {
	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		return
	}
	o.session.Busy = false
	o.mu.Unlock()
	o.emit(BusyChanged{Busy: false})
}

func (o *Orchestrator) sessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.ID
}

func (o *Orchestrator) sameEpoch(epoch int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return epoch == o.epoch
}

// emit sends an event without blocking; consumers repaint from snapshots,
// so dropping under backpressure is safe.
func (o *Orchestrator) emit(ev Event) {
	select {
	case o.events <- ev:
	default:
	}
}

func (o *Orchestrator) saveSession(sessionID string, phase domain.Phase) {
	if o.rec == nil || sessionID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.rec.SaveSession(ctx, sessionID, phase); err != nil {
		slog.Warn("failed to archive session", "session_id", sessionID, "error", err)
	}
}

func (o *Orchestrator) saveMessage(sessionID string, msg domain.Message) {
	if o.rec == nil || sessionID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.rec.SaveMessage(ctx, sessionID, msg); err != nil {
		slog.Warn("failed to archive transcript entry", "session_id", sessionID, "message_id", msg.ID, "error", err)
	}
}
