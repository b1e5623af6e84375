// Package stub is a scripted stand-in for the agent service, good enough to
// develop and demo the client without the real backend. It speaks the same
// HTTP/SSE API with canned content and no LLM behind it.
package stub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"aidm/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// farewellWord ends the game when it appears in a gameplay input.
const farewellWord = "farewell"

// session is the stub's server-side session state.
type session struct {
	id        string
	world     domain.WorldState
	character domain.CharacterState

	// The first call to each creation agent is the client's synthetic
	// opener; it draws the first question without consuming an answer.
	worldOpened bool
	charOpened  bool
	worldStep   int
	charStep    int
	charDoneAt  time.Time
	turn        int
}

func (s *session) worldComplete() bool     { return s.worldStep >= len(worldScript) }
func (s *session) characterComplete() bool { return s.charStep >= len(characterScript) }

// Server holds the in-memory session store and scripted agents.
type Server struct {
	mu       sync.Mutex
	sessions map[string]*session

	// readyDelay models the backend's derived-state computation: readiness
	// is reported only this long after character creation completed, which
	// is what the client's poller exists to wait out.
	readyDelay time.Duration
	// chunkDelay paces narration chunks on the stream endpoint.
	chunkDelay time.Duration
}

// New creates a stub server.
func New(readyDelay time.Duration) *Server {
	return &Server{
		sessions:   make(map[string]*session),
		readyDelay: readyDelay,
		chunkDelay: 20 * time.Millisecond,
	}
}

// Routes returns the API router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/sessions", s.createSession)
	r.Get("/sessions/{sessionID}", s.getSession)
	r.Post("/agents/{agentKind}/process", s.processAgent)
	r.Post("/game/play", s.play)
	r.Post("/game/play/stream", s.playStream)
	return r
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	id := req.SessionID
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	if _, exists := s.sessions[id]; exists {
		s.mu.Unlock()
		detail(w, http.StatusBadRequest, "session already exists")
		return
	}
	s.sessions[id] = &session{id: id}
	s.mu.Unlock()

	slog.Info("session created", "session_id", id)
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": id,
		"message":    "Welcome, adventurer. Let us shape the world your story will live in.",
	})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(chi.URLParam(r, "sessionID"))
	if !ok {
		detail(w, http.StatusNotFound, "session does not exist")
		return
	}

	s.mu.Lock()
	ready := sess.worldComplete() && sess.characterComplete() &&
		time.Since(sess.charDoneAt) >= s.readyDelay
	resp := map[string]any{
		"session_id":         sess.id,
		"world_complete":     sess.worldComplete(),
		"character_complete": sess.characterComplete(),
		"ready_for_game":     ready,
		"world_state":        sess.world,
		"character_state":    sess.character,
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) processAgent(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "agentKind")
	var req struct {
		SessionID string `json:"session_id"`
		UserInput string `json:"user_input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		detail(w, http.StatusBadRequest, "malformed request body")
		return
	}

	sess, ok := s.lookup(req.SessionID)
	if !ok {
		detail(w, http.StatusNotFound, "session does not exist")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var reply string
	var complete bool
	var state any
	switch kind {
	case "world-builder":
		reply, complete = advanceWorld(sess, req.UserInput)
		state = sess.world
	case "character-manager":
		reply, complete = advanceCharacter(sess, req.UserInput)
		state = sess.character
	default:
		detail(w, http.StatusNotFound, fmt.Sprintf("agent %q does not exist", kind))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"response":      reply,
		"is_complete":   complete,
		"updated_state": state,
	})
}

func (s *Server) play(w http.ResponseWriter, r *http.Request) {
	sess, input, ok := s.gameSession(w, r)
	if !ok {
		return
	}

	narrative, gameOver := s.nextNarrative(sess, input)
	if gameOver {
		s.drop(sess.id)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"narrative":       narrative,
		"inner_monologue": "The dice are weighed; let the scene breathe.",
		"is_game_over":    gameOver,
	})
}

func (s *Server) playStream(w http.ResponseWriter, r *http.Request) {
	sess, input, ok := s.gameSession(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, flushable := w.(http.Flusher)
	if !flushable {
		detail(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	narrative, gameOver := s.nextNarrative(sess, input)
	for _, chunk := range chunkWords(narrative, 3) {
		fmt.Fprintf(w, "data: %s\n\n", chunk)
		flusher.Flush()
		time.Sleep(s.chunkDelay)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()

	if gameOver {
		s.drop(sess.id)
	}
}

// gameSession validates a gameplay request: the session must exist and be
// ready for play.
func (s *Server) gameSession(w http.ResponseWriter, r *http.Request) (*session, string, bool) {
	var req struct {
		SessionID string `json:"session_id"`
		UserInput string `json:"user_input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		detail(w, http.StatusBadRequest, "malformed request body")
		return nil, "", false
	}

	sess, ok := s.lookup(req.SessionID)
	if !ok {
		detail(w, http.StatusNotFound, "session does not exist")
		return nil, "", false
	}

	s.mu.Lock()
	ready := sess.worldComplete() && sess.characterComplete()
	s.mu.Unlock()
	if !ready {
		detail(w, http.StatusBadRequest, "the game is not ready yet; finish world and character creation first")
		return nil, "", false
	}
	return sess, req.UserInput, true
}

func (s *Server) lookup(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Server) drop(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	slog.Info("session ended", "session_id", id)
}

func (s *Server) nextNarrative(sess *session, input string) (string, bool) {
	if strings.Contains(strings.ToLower(input), farewellWord) {
		return "You lay down your arms and walk into the sunset. The tale of " +
			valueOr(sess.character.Name, "the nameless hero") + " passes into legend.", true
	}

	s.mu.Lock()
	turn := sess.turn
	sess.turn++
	s.mu.Unlock()
	return narratives[turn%len(narratives)], false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// detail writes the API's error shape.
func detail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// chunkWords splits text into groups of n words, keeping trailing spaces so
// the client can concatenate chunks verbatim.
func chunkWords(text string, n int) []string {
	words := strings.SplitAfter(text, " ")
	var out []string
	for i := 0; i < len(words); i += n {
		end := min(i+n, len(words))
		out = append(out, strings.Join(words[i:end], ""))
	}
	return out
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
