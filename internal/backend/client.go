// Package backend is the HTTP client for the agent service API.
package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"aidm/internal/domain"
)

// AgentKind selects which backend agent handles a dispatch.
type AgentKind string

const (
	AgentWorldBuilder     AgentKind = "world-builder"
	AgentCharacterManager AgentKind = "character-manager"
)

// doneSentinel terminates a narration event stream.
const doneSentinel = "[DONE]"

// ErrNotFound reports that the backend no longer knows the session. The
// backend deletes a session when its game ends, so during gameplay this
// doubles as the game-over signal.
var ErrNotFound = errors.New("session not found")

// Client talks to the agent service over HTTP(S) JSON.
type Client struct {
	baseURL string
	http    *http.Client
	stream  *http.Client
}

// NewClient creates a client for the service at baseURL. The timeout bounds
// request/response calls; streaming requests are exempt because a narration
// stream legitimately outlives any fixed deadline.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		stream:  &http.Client{},
	}
}

// SessionCreated is the response to a session creation request.
type SessionCreated struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// SessionStatus reports backend-side completion and readiness flags.
type SessionStatus struct {
	SessionID         string                `json:"session_id"`
	WorldComplete     bool                  `json:"world_complete"`
	CharacterComplete bool                  `json:"character_complete"`
	ReadyForGame      bool                  `json:"ready_for_game"`
	WorldState        domain.WorldState     `json:"world_state"`
	CharacterState    domain.CharacterState `json:"character_state"`
}

// AgentResult is a single-shot agent reply. Exactly one of World/Character is
// set, matching the agent kind that produced it.
type AgentResult struct {
	Response   string
	IsComplete bool
	World      *domain.WorldState
	Character  *domain.CharacterState
}

// TurnResult is a non-streaming gameplay turn reply.
type TurnResult struct {
	Narrative      string `json:"narrative"`
	InnerMonologue string `json:"inner_monologue"`
	IsGameOver     bool   `json:"is_game_over"`
}

// CreateSession registers a new game session with the backend.
func (c *Client) CreateSession(ctx context.Context) (SessionCreated, error) {
	var out SessionCreated
	err := c.do(ctx, http.MethodPost, "/sessions", map[string]any{}, &out)
	return out, err
}

// SessionStatus fetches completion and readiness flags for a session.
func (c *Client) SessionStatus(ctx context.Context, sessionID string) (SessionStatus, error) {
	var out SessionStatus
	err := c.do(ctx, http.MethodGet, "/sessions/"+sessionID, nil, &out)
	return out, err
}

// ProcessAgent performs one request/response round trip with the given
// agent. The loosely-typed updated_state payload is decoded here into the
// statically-shaped state matching the agent kind.
func (c *Client) ProcessAgent(ctx context.Context, kind AgentKind, sessionID, userInput string) (AgentResult, error) {
	var raw struct {
		Response     string          `json:"response"`
		IsComplete   bool            `json:"is_complete"`
		UpdatedState json.RawMessage `json:"updated_state"`
	}
	req := map[string]string{"session_id": sessionID, "user_input": userInput}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/agents/%s/process", kind), req, &raw); err != nil {
		return AgentResult{}, err
	}

	res := AgentResult{Response: raw.Response, IsComplete: raw.IsComplete}
	if len(raw.UpdatedState) == 0 {
		return res, nil
	}
	switch kind {
	case AgentWorldBuilder:
		var w domain.WorldState
		if err := json.Unmarshal(raw.UpdatedState, &w); err != nil {
			return AgentResult{}, fmt.Errorf("decode world state: %w", err)
		}
		res.World = &w
	case AgentCharacterManager:
		var ch domain.CharacterState
		if err := json.Unmarshal(raw.UpdatedState, &ch); err != nil {
			return AgentResult{}, fmt.Errorf("decode character state: %w", err)
		}
		res.Character = &ch
	}
	return res, nil
}

// Play performs a non-streaming gameplay turn.
func (c *Client) Play(ctx context.Context, sessionID, userInput string) (TurnResult, error) {
	var out TurnResult
	req := map[string]string{"session_id": sessionID, "user_input": userInput}
	err := c.do(ctx, http.MethodPost, "/game/play", req, &out)
	return out, err
}

// PlayStream performs a streaming gameplay turn and yields narration
// fragments in arrival order. The sequence ends when the backend sends the
// completion sentinel or closes the stream cleanly; a mid-stream failure is
// yielded as the final element. Breaking out of the range aborts the stream.
func (c *Client) PlayStream(ctx context.Context, sessionID, userInput string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		body, _ := json.Marshal(map[string]string{"session_id": sessionID, "user_input": userInput})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/game/play/stream", bytes.NewReader(body))
		if err != nil {
			yield("", fmt.Errorf("build stream request: %w", err))
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")

		// The stream client has no timeout: a narration stream stays open
		// for as long as the backend keeps generating.
		resp, err := c.stream.Do(req)
		if err != nil {
			yield("", fmt.Errorf("open narration stream: %w", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			yield("", c.responseError(resp))
			return
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
			yield("", fmt.Errorf("unexpected stream content type %q", ct))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			payload := strings.TrimPrefix(line, "data: ")
			if payload == doneSentinel {
				return
			}
			if !yield(payload, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("read narration stream: %w", err))
		}
		// Clean EOF without a sentinel counts as completion.
	}
}

// do performs one JSON round trip and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.responseError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// responseError converts a non-success response into a user-visible error,
// preferring the backend's detail message when present.
func (c *Client) responseError(resp *http.Response) error {
	var payload struct {
		Detail string `json:"detail"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	_ = json.Unmarshal(data, &payload)

	msg := strings.TrimSpace(payload.Detail)
	if msg == "" {
		msg = fmt.Sprintf("backend returned status %d", resp.StatusCode)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	}
	return errors.New(msg)
}
