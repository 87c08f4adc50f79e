package sqlite

import (
	"context"
	"testing"

	"github.com/vovakirdan/framechat-server/internal/store"
)

func TestSaveAndListMessages(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()

	seed := []struct {
		room, sender, body string
	}{
		{"general", "alice", "first"},
		{"general", "bob", "second"},
		{"random", "carol", "elsewhere"},
		{"general", "alice", "third"},
	}
	for _, m := range seed {
		msg := &store.Message{Room: m.room, Sender: m.sender, Body: m.body}
		if err := s.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("save %q: %v", m.body, err)
		}
		if msg.ID == 0 {
			t.Errorf("save %q did not assign an id", m.body)
		}
	}

	msgs, err := s.ListMessages(ctx, "general", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	// Oldest first.
	for i, want := range []string{"first", "second", "third"} {
		if msgs[i].Body != want {
			t.Errorf("message %d = %q, want %q", i, msgs[i].Body, want)
		}
	}
	if msgs[0].Sender != "alice" || msgs[0].Room != "general" {
		t.Errorf("message 0 = %+v", msgs[0])
	}
}

func TestListMessagesLimit(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		body := string(rune('a' + i))
		if err := s.SaveMessage(ctx, &store.Message{Room: "general", Sender: "alice", Body: body}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	msgs, err := s.ListMessages(ctx, "general", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	// The two most recent, still oldest first.
	if msgs[0].Body != "d" || msgs[1].Body != "e" {
		t.Errorf("got %q then %q, want d then e", msgs[0].Body, msgs[1].Body)
	}
}

func TestListMessagesEmptyRoom(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	msgs, err := s.ListMessages(context.Background(), "ghost", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d messages for unknown room", len(msgs))
	}
}
