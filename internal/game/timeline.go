// Package game implements the session orchestrator: the phase state machine,
// the message timeline, the streaming reply consumer and the readiness
// poller that drive one playthrough against the backend agent service.
package game

import (
	"errors"
	"sync"

	"aidm/internal/domain"
)

// ErrStreamOpen reports an attempt to open a second streaming entry while
// one is already receiving chunks.
var ErrStreamOpen = errors.New("a streaming entry is already open")

// Timeline is the ordered, append-only transcript of a session. Entries
// never move, disappear or change sender; the only post-append mutation is
// text growth on the single open streaming entry.
type Timeline struct {
	mu      sync.Mutex
	nextID  int64
	entries []domain.Message
	openID  int64 // 0 = no open streaming entry
}

// NewTimeline returns an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{nextID: 1}
}

// Append inserts a closed entry at the end and returns it.
func (t *Timeline) Append(sender domain.Sender, text string) domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.append(sender, text)
}

// OpenStreaming appends an empty entry that may receive chunks until it is
// closed. Only one entry may be open at a time.
func (t *Timeline) OpenStreaming(sender domain.Sender) (domain.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.openID != 0 {
		return domain.Message{}, ErrStreamOpen
	}
	msg := t.append(sender, "")
	t.openID = msg.ID
	return msg, nil
}

// AppendChunk concatenates text onto the open streaming entry. Chunks
// addressed to any other entry are dropped; the updated entry and whether
// the chunk was applied are returned.
func (t *Timeline) AppendChunk(id int64, chunk string) (domain.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id == 0 || id != t.openID {
		return domain.Message{}, false
	}
	for i := range t.entries {
		if t.entries[i].ID == id {
			t.entries[i].Text += chunk
			return t.entries[i], true
		}
	}
	return domain.Message{}, false
}

// CloseStreaming seals the open streaming entry and returns its final form.
// Closing is idempotent; closing an entry that is not open is a no-op.
func (t *Timeline) CloseStreaming(id int64) (domain.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id == 0 || id != t.openID {
		return domain.Message{}, false
	}
	t.openID = 0
	for _, m := range t.entries {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Message{}, false
}

// Messages returns a snapshot of the transcript. Every snapshot is a prefix
// of any later snapshot, modulo text growth on the open streaming entry.
func (t *Timeline) Messages() []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Message, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Timeline) append(sender domain.Sender, text string) domain.Message {
	msg := domain.Message{ID: t.nextID, Sender: sender, Text: text}
	t.nextID++
	t.entries = append(t.entries, msg)
	return msg
}
