package game

import (
	"errors"
	"testing"

	"aidm/internal/domain"
)

func TestTimelineAppendAssignsIncreasingIDs(t *testing.T) {
	tl := NewTimeline()

	first := tl.Append(domain.SenderPlayer, "hello")
	second := tl.Append(domain.SenderDungeonMaster, "greetings")

	if first.ID >= second.ID {
		t.Errorf("Expected increasing ids, got %d then %d", first.ID, second.ID)
	}
	if got := tl.Len(); got != 2 {
		t.Errorf("Expected 2 entries, got %d", got)
	}
}

func TestTimelineSnapshotsArePrefixStable(t *testing.T) {
	tl := NewTimeline()
	tl.Append(domain.SenderPlayer, "one")
	tl.Append(domain.SenderDungeonMaster, "two")

	before := tl.Messages()
	tl.Append(domain.SenderSystem, "three")
	after := tl.Messages()

	if len(after) != len(before)+1 {
		t.Fatalf("Expected %d entries after append, got %d", len(before)+1, len(after))
	}
	for i, msg := range before {
		if after[i] != msg {
			t.Errorf("Entry %d changed: %+v -> %+v", i, msg, after[i])
		}
	}
}

func TestTimelineSnapshotIsACopy(t *testing.T) {
	tl := NewTimeline()
	tl.Append(domain.SenderPlayer, "original")

	snap := tl.Messages()
	snap[0].Text = "mutated"

	if got := tl.Messages()[0].Text; got != "original" {
		t.Errorf("Timeline mutated through snapshot: %q", got)
	}
}

func TestTimelineStreamingEntry(t *testing.T) {
	tl := NewTimeline()

	open, err := tl.OpenStreaming(domain.SenderDungeonMaster)
	if err != nil {
		t.Fatalf("OpenStreaming failed: %v", err)
	}

	if _, err := tl.OpenStreaming(domain.SenderDungeonMaster); !errors.Is(err, ErrStreamOpen) {
		t.Errorf("Expected ErrStreamOpen for second open entry, got %v", err)
	}

	for _, chunk := range []string{"Hello, ", "world"} {
		if _, ok := tl.AppendChunk(open.ID, chunk); !ok {
			t.Fatalf("AppendChunk(%q) was dropped", chunk)
		}
	}

	final, ok := tl.CloseStreaming(open.ID)
	if !ok {
		t.Fatal("CloseStreaming did not find the open entry")
	}
	if final.Text != "Hello, world" {
		t.Errorf("Expected final text %q, got %q", "Hello, world", final.Text)
	}

	// Closing is idempotent and chunks after close are dropped.
	if _, ok := tl.CloseStreaming(open.ID); ok {
		t.Error("Expected second close to be a no-op")
	}
	if _, ok := tl.AppendChunk(open.ID, "[more]"); ok {
		t.Error("Expected chunk after close to be dropped")
	}
	if got := tl.Messages()[0].Text; got != "Hello, world" {
		t.Errorf("Text changed after close: %q", got)
	}
}

func TestTimelineChunkToClosedEntryIsDropped(t *testing.T) {
	tl := NewTimeline()
	closed := tl.Append(domain.SenderDungeonMaster, "done")

	if _, ok := tl.AppendChunk(closed.ID, "extra"); ok {
		t.Error("Expected chunk to a closed entry to be dropped")
	}
	if got := tl.Messages()[0].Text; got != "done" {
		t.Errorf("Closed entry mutated: %q", got)
	}
}
