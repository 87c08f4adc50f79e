package ws

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/framechat-server/internal/core"
	"github.com/vovakirdan/framechat-server/internal/proto"
)

// Handler upgrades HTTP connections and bridges them to the shared
// protocol router. Each websocket binary message carries exactly one frame
// in the same wire format the TCP listener reads.
type Handler struct {
	router  *core.Router
	maxBody int
	log     *zerolog.Logger
}

// NewHandler builds a new WebSocket handler.
func NewHandler(router *core.Router, maxBody int, logger *zerolog.Logger) stdhttp.Handler {
	return &Handler{router: router, maxBody: maxBody, log: logger}
}

func (h *Handler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	sink := &wsSink{ctx: ctx, conn: conn}
	sessionID := ""
	defer func() {
		h.router.Disconnect(sessionID)
	}()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				conn.Close(websocket.StatusNormalClosure, "closing")
				return
			}
			h.log.Warn().Err(err).Msg("ws read failed")
			return
		}
		if typ != websocket.MessageBinary {
			_ = sink.Send(proto.New(proto.KindErrorResponse, "server", "ERROR: Invalid message format"))
			continue
		}

		sessionID = h.router.HandleFrame(ctx, data, sessionID, sink)
	}
}

// wsSink delivers frames as binary websocket messages. Router fan-out may
// hit it from several goroutines, so writes are serialized.
type wsSink struct {
	ctx  context.Context
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSink) Send(m proto.Message) error {
	data, err := proto.Encode(m)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Write(s.ctx, websocket.MessageBinary, data)
}
