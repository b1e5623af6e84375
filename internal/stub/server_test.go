package stub

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"aidm/internal/backend"
)

func newTestServer(t *testing.T, readyDelay time.Duration) *httptest.Server {
	t.Helper()
	stub := New(readyDelay)
	stub.chunkDelay = 0
	srv := httptest.NewServer(stub.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func createSession(t *testing.T, base string) string {
	t.Helper()
	resp := postJSON(t, base+"/sessions", map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create session: status %d", resp.StatusCode)
	}
	var created struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	decodeBody(t, resp, &created)
	if created.SessionID == "" {
		t.Fatal("create session: empty session_id")
	}
	if created.Message == "" {
		t.Fatal("create session: empty welcome message")
	}
	return created.SessionID
}

type agentReply struct {
	Response     string          `json:"response"`
	IsComplete   bool            `json:"is_complete"`
	UpdatedState json.RawMessage `json:"updated_state"`
}

func process(t *testing.T, base, kind, sessionID, input string) agentReply {
	t.Helper()
	resp := postJSON(t, base+"/agents/"+kind+"/process", map[string]string{
		"session_id": sessionID,
		"user_input": input,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("process %s: status %d", kind, resp.StatusCode)
	}
	var reply agentReply
	decodeBody(t, resp, &reply)
	return reply
}

// completeCreation walks both creation scripts to the end.
func completeCreation(t *testing.T, base, sessionID string) {
	t.Helper()
	// Opening greeting, then one answer per question.
	reply := process(t, base, "world-builder", sessionID, "Hello")
	for i := 0; !reply.IsComplete; i++ {
		if i > 10 {
			t.Fatal("world creation never completed")
		}
		reply = process(t, base, "world-builder", sessionID, fmt.Sprintf("world answer %d", i))
	}
	reply = process(t, base, "character-manager", sessionID, "")
	for i := 0; !reply.IsComplete; i++ {
		if i > 10 {
			t.Fatal("character creation never completed")
		}
		reply = process(t, base, "character-manager", sessionID, fmt.Sprintf("character answer %d", i))
	}
}

func sessionStatus(t *testing.T, base, sessionID string) map[string]any {
	t.Helper()
	resp, err := http.Get(base + "/sessions/" + sessionID)
	if err != nil {
		t.Fatalf("GET session: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET session: status %d", resp.StatusCode)
	}
	var status map[string]any
	decodeBody(t, resp, &status)
	return status
}

func TestCreateSessionRejectsDuplicateID(t *testing.T) {
	srv := newTestServer(t, 0)

	resp := postJSON(t, srv.URL+"/sessions", map[string]string{"session_id": "fixed"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first create: status %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/sessions", map[string]string{"session_id": "fixed"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate create: expected 400, got %d", resp.StatusCode)
	}
	var errBody struct {
		Detail string `json:"detail"`
	}
	decodeBody(t, resp, &errBody)
	if !strings.Contains(errBody.Detail, "already exists") {
		t.Errorf("Unexpected detail: %q", errBody.Detail)
	}
}

func TestUnknownSessionReturns404(t *testing.T) {
	srv := newTestServer(t, 0)

	resp, err := http.Get(srv.URL + "/sessions/ghost")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown session, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/agents/world-builder/process", map[string]string{
		"session_id": "ghost", "user_input": "hi",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown session dispatch, got %d", resp.StatusCode)
	}
}

func TestCreationScriptsRunToCompletion(t *testing.T) {
	srv := newTestServer(t, 0)
	id := createSession(t, srv.URL)

	// The opener draws the first question without consuming an answer.
	opener := process(t, srv.URL, "world-builder", id, "Hello")
	if opener.IsComplete {
		t.Fatal("Opening dispatch reported completion")
	}
	first := process(t, srv.URL, "world-builder", id, "Aerth")
	if first.Response == opener.Response {
		t.Error("First answer did not advance the script")
	}

	var world struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(first.UpdatedState, &world); err != nil {
		t.Fatalf("decode updated_state: %v", err)
	}
	if world.Name != "Aerth" {
		t.Errorf("Answer not folded into state: %+v", world)
	}

	completeCreation(t, srv.URL, id)

	status := sessionStatus(t, srv.URL, id)
	if status["world_complete"] != true || status["character_complete"] != true {
		t.Errorf("Expected both creations complete: %v", status)
	}
}

func TestReadinessWaitsForDelay(t *testing.T) {
	srv := newTestServer(t, 150*time.Millisecond)
	id := createSession(t, srv.URL)
	completeCreation(t, srv.URL, id)

	if status := sessionStatus(t, srv.URL, id); status["ready_for_game"] != false {
		t.Error("Expected not ready immediately after completion")
	}

	time.Sleep(200 * time.Millisecond)

	if status := sessionStatus(t, srv.URL, id); status["ready_for_game"] != true {
		t.Error("Expected ready after the delay")
	}
}

func TestGameplayRejectedBeforeCreationFinishes(t *testing.T) {
	srv := newTestServer(t, 0)
	id := createSession(t, srv.URL)

	resp := postJSON(t, srv.URL+"/game/play", map[string]string{
		"session_id": id, "user_input": "begin",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 before creation finishes, got %d", resp.StatusCode)
	}
}

func TestPlayReturnsNarrativeAndMonologue(t *testing.T) {
	srv := newTestServer(t, 0)
	id := createSession(t, srv.URL)
	completeCreation(t, srv.URL, id)

	resp := postJSON(t, srv.URL+"/game/play", map[string]string{
		"session_id": id, "user_input": "begin",
	})
	var turn struct {
		Narrative      string `json:"narrative"`
		InnerMonologue string `json:"inner_monologue"`
		IsGameOver     bool   `json:"is_game_over"`
	}
	decodeBody(t, resp, &turn)
	if turn.Narrative == "" {
		t.Error("Expected a narrative")
	}
	if turn.InnerMonologue == "" {
		t.Error("Expected an inner monologue")
	}
	if turn.IsGameOver {
		t.Error("Opening turn should not end the game")
	}
}

func TestStreamEndsWithSentinel(t *testing.T) {
	srv := newTestServer(t, 0)
	id := createSession(t, srv.URL)
	completeCreation(t, srv.URL, id)

	resp := postJSON(t, srv.URL+"/game/play/stream", map[string]string{
		"session_id": id, "user_input": "begin",
	})
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("Expected event-stream content type, got %q", ct)
	}

	var chunks []string
	sawDone := false
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			sawDone = true
			break
		}
		chunks = append(chunks, payload)
	}
	if !sawDone {
		t.Error("Stream did not end with the completion sentinel")
	}
	if len(chunks) < 2 {
		t.Errorf("Expected the narrative split into chunks, got %v", chunks)
	}
	// Chunks concatenate verbatim into prose.
	joined := strings.Join(chunks, "")
	if strings.Contains(joined, "  ") || !strings.Contains(joined, " ") {
		t.Errorf("Chunk boundaries corrupted the text: %q", joined)
	}
}

func TestFarewellEndsGameAndDropsSession(t *testing.T) {
	srv := newTestServer(t, 0)
	id := createSession(t, srv.URL)
	completeCreation(t, srv.URL, id)

	resp := postJSON(t, srv.URL+"/game/play", map[string]string{
		"session_id": id, "user_input": "I bid you farewell",
	})
	var turn struct {
		IsGameOver bool `json:"is_game_over"`
	}
	decodeBody(t, resp, &turn)
	if !turn.IsGameOver {
		t.Fatal("Expected farewell to end the game")
	}

	// The ended session is gone, like the real backend.
	resp, err := http.Get(srv.URL + "/sessions/" + id)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 after game over, got %d", resp.StatusCode)
	}
}

// TestClientAgainstStub drives the real HTTP client through a full session.
func TestClientAgainstStub(t *testing.T) {
	srv := newTestServer(t, 0)
	client := backend.NewClient(srv.URL, 5*time.Second)
	ctx := context.Background()

	created, err := client.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	res, err := client.ProcessAgent(ctx, backend.AgentWorldBuilder, created.SessionID, "Hello")
	if err != nil {
		t.Fatalf("Opening dispatch failed: %v", err)
	}
	for i := 0; !res.IsComplete; i++ {
		if i > 10 {
			t.Fatal("world creation never completed")
		}
		res, err = client.ProcessAgent(ctx, backend.AgentWorldBuilder, created.SessionID, "an answer")
		if err != nil {
			t.Fatalf("World dispatch failed: %v", err)
		}
	}
	if res.World == nil || res.World.MagicSystem == "" {
		t.Errorf("World state not fully decoded: %+v", res.World)
	}

	res, err = client.ProcessAgent(ctx, backend.AgentCharacterManager, created.SessionID, "")
	if err != nil {
		t.Fatalf("Character opener failed: %v", err)
	}
	for i := 0; !res.IsComplete; i++ {
		if i > 10 {
			t.Fatal("character creation never completed")
		}
		res, err = client.ProcessAgent(ctx, backend.AgentCharacterManager, created.SessionID, "Wren")
		if err != nil {
			t.Fatalf("Character dispatch failed: %v", err)
		}
	}

	status, err := client.SessionStatus(ctx, created.SessionID)
	if err != nil {
		t.Fatalf("SessionStatus failed: %v", err)
	}
	if !status.ReadyForGame {
		t.Fatalf("Expected ready with zero delay: %+v", status)
	}

	var narration strings.Builder
	for chunk, streamErr := range client.PlayStream(ctx, created.SessionID, "begin") {
		if streamErr != nil {
			t.Fatalf("Stream failed: %v", streamErr)
		}
		narration.WriteString(chunk)
	}
	if narration.Len() == 0 {
		t.Error("Expected streamed narration")
	}

	turn, err := client.Play(ctx, created.SessionID, "farewell, old friend")
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if !turn.IsGameOver {
		t.Error("Expected farewell to end the game")
	}

	_, err = client.SessionStatus(ctx, created.SessionID)
	if !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after game over, got %v", err)
	}
}
