package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/framechat-server/internal/proto"
)

// captureSink records every message delivered to it.
type captureSink struct {
	mu   sync.Mutex
	msgs []proto.Message
	fail bool
}

func (c *captureSink) Send(m proto.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("sink closed")
	}
	c.msgs = append(c.msgs, m)
	return nil
}

func (c *captureSink) messages() []proto.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]proto.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func (c *captureSink) lastKind(t *testing.T) proto.Kind {
	t.Helper()
	msgs := c.messages()
	if len(msgs) == 0 {
		t.Fatal("sink received no messages")
	}
	return msgs[len(msgs)-1].Kind
}

func newTestRouter() *Router {
	logger := zerolog.Nop()
	return NewRouter(nil, 0, &logger)
}

// login runs a login transition and fails the test unless it succeeds.
func login(t *testing.T, r *Router, username string) (string, *captureSink) {
	t.Helper()

	sink := &captureSink{}
	id := r.Handle(context.Background(), proto.New(proto.KindLoginRequest, username, username), "", sink)
	if id == "" {
		t.Fatalf("login %q failed", username)
	}
	if got := sink.lastKind(t); got != proto.KindLoginResponse {
		t.Fatalf("login %q reply kind = %v, want LOGIN_RESPONSE", username, got)
	}
	return id, sink
}

func join(t *testing.T, r *Router, sessionID, room string, sink *captureSink) {
	t.Helper()

	r.Handle(context.Background(), proto.New(proto.KindJoinRoomRequest, "", room), sessionID, sink)
	if got := sink.lastKind(t); got != proto.KindJoinRoomRequest {
		t.Fatalf("join %q reply kind = %v, want join confirmation", room, got)
	}
}
