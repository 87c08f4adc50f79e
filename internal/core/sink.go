package core

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/framechat-server/internal/proto"
)

// Sink is the per-session outbound write capability supplied by the
// transport layer. Implementations encode and write one frame; a failed
// write is reported, never thrown past this boundary.
type Sink interface {
	Send(msg proto.Message) error
}

// SinkTable maps session ids to their outbound sinks. The table looks up,
// never owns: the transport registers a sink when a login succeeds and
// unregisters it on disconnect.
type SinkTable struct {
	mu    sync.RWMutex
	sinks map[string]Sink
	log   *zerolog.Logger
}

// NewSinkTable constructs an empty table.
func NewSinkTable(logger *zerolog.Logger) *SinkTable {
	return &SinkTable{
		sinks: make(map[string]Sink),
		log:   logger,
	}
}

// Register binds a sink to a session id, replacing any previous binding.
func (t *SinkTable) Register(sessionID string, sink Sink) {
	t.mu.Lock()
	t.sinks[sessionID] = sink
	t.mu.Unlock()
}

// Unregister removes the binding for a session id.
func (t *SinkTable) Unregister(sessionID string) {
	t.mu.Lock()
	delete(t.sinks, sessionID)
	t.mu.Unlock()
}

// Send writes one message to the session's sink. Returns false when no
// sink is registered or the write fails; failures are logged and absorbed
// so a bad recipient never disturbs the caller's fan-out.
func (t *SinkTable) Send(sessionID string, msg proto.Message) bool {
	t.mu.RLock()
	sink := t.sinks[sessionID]
	t.mu.RUnlock()

	if sink == nil {
		return false
	}
	if err := sink.Send(msg); err != nil {
		t.log.Warn().Err(err).Str("session_id", sessionID).Msg("sink write failed")
		return false
	}
	return true
}
