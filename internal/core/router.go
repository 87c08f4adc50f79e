package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/framechat-server/internal/proto"
	"github.com/vovakirdan/framechat-server/internal/store"
)

const (
	// MaxTextChars bounds inbound TEXT_MESSAGE content.
	MaxTextChars = 1000

	serverSender = "server"
	systemSender = "system"
)

// Router is the protocol state machine. Given a decoded message and the
// caller's current session id it drives the registries and pushes outbound
// frames through the delivery sinks. One router instance is shared by all
// connections; registries guard their own state.
type Router struct {
	sessions *SessionRegistry
	rooms    *RoomRegistry
	sinks    *SinkTable
	history  store.MessageStore
	maxBody  int
	log      *zerolog.Logger
}

// NewRouter constructs a router with fresh registries. history may be nil
// to disable the broadcast log.
func NewRouter(history store.MessageStore, maxBody int, logger *zerolog.Logger) *Router {
	if maxBody <= 0 {
		maxBody = proto.DefaultMaxBodyBytes
	}
	return &Router{
		sessions: NewSessionRegistry(),
		rooms:    NewRoomRegistry(),
		sinks:    NewSinkTable(logger),
		history:  history,
		maxBody:  maxBody,
		log:      logger,
	}
}

// Sessions exposes the session registry for transports and tests.
func (r *Router) Sessions() *SessionRegistry {
	return r.sessions
}

// Rooms exposes the room registry.
func (r *Router) Rooms() *RoomRegistry {
	return r.rooms
}

// HandleFrame decodes one raw frame and dispatches it. A malformed frame is
// answered with a single error response on the caller's reply sink and
// leaves the session id unchanged; the connection stays alive.
func (r *Router) HandleFrame(ctx context.Context, data []byte, sessionID string, reply Sink) string {
	msg, err := proto.Decode(data, r.maxBody)
	if err != nil {
		var fe *proto.FrameError
		if errors.As(err, &fe) {
			r.log.Warn().Str("reason", fe.Reason).Msg("malformed frame")
		} else {
			r.log.Warn().Err(err).Msg("frame decode failed")
		}
		r.sendError(reply, ErrCodeBadFrame, "Invalid message format")
		return sessionID
	}
	return r.Handle(ctx, msg, sessionID, reply)
}

// Handle runs one protocol transition and returns the possibly-updated
// session id for the connection.
func (r *Router) Handle(ctx context.Context, msg proto.Message, sessionID string, reply Sink) string {
	r.log.Debug().
		Stringer("kind", msg.Kind).
		Str("from", msg.Sender).
		Msg("protocol message")

	switch msg.Kind {
	case proto.KindLoginRequest:
		return r.handleLogin(msg, reply)
	case proto.KindJoinRoomRequest:
		r.handleJoinRoom(msg, sessionID, reply)
	case proto.KindTextMessage:
		r.handleBroadcast(ctx, msg, sessionID)
	case proto.KindPrivateMessage:
		r.handlePrivate(msg, sessionID)
	case proto.KindUserListRequest:
		r.handleUserList(reply)
	case proto.KindLoginResponse, proto.KindUserListResponse, proto.KindErrorResponse:
		// Server-to-client kinds arriving inbound are protocol misuse.
		r.sendError(reply, ErrCodeUnknownKind, fmt.Sprintf("Unknown message type: %s", msg.Kind))
	default:
		r.sendError(reply, ErrCodeUnknownKind, fmt.Sprintf("Unknown message type: %s", msg.Kind))
	}
	return sessionID
}

// handleLogin claims a username and opens a session. The reply sink becomes
// the session's delivery sink. Returns the new session id, or "" when the
// username is taken and the caller stays unauthenticated.
func (r *Router) handleLogin(msg proto.Message, reply Sink) string {
	username := msg.Sender

	session, err := r.sessions.Create(username)
	if err != nil {
		r.log.Info().Str("user", username).Msg("login rejected: duplicate username")
		r.sendError(reply, ErrCodeDuplicateUsername, fmt.Sprintf("Username '%s' already taken", username))
		return ""
	}

	r.sinks.Register(session.ID, reply)

	r.log.Info().
		Str("user", username).
		Str("session_id", session.ID[:8]).
		Int("total", r.sessions.Len()).
		Msg("login")

	r.send(reply, proto.New(proto.KindLoginResponse, serverSender, fmt.Sprintf("Welcome %s!", username)))
	return session.ID
}

// handleJoinRoom moves the session into the named room, leaving its
// current room first. Content carries the bare room name.
func (r *Router) handleJoinRoom(msg proto.Message, sessionID string, reply Sink) {
	if sessionID == "" {
		r.sendError(reply, ErrCodeNotAuthenticated, "Not authenticated. Please login first.")
		return
	}
	session := r.sessions.Get(sessionID)
	if session == nil {
		r.sendError(reply, ErrCodeInvalidSession, "Invalid session")
		return
	}

	roomName := msg.Content

	if old := session.Room(); old != "" {
		if oldRoom := r.rooms.Get(old); oldRoom != nil {
			oldRoom.RemoveMember(session)
			r.log.Info().Str("user", session.Username).Str("room", old).Msg("left room")
		}
	}

	room := r.rooms.GetOrCreate(roomName)
	room.AddMember(session)
	session.SetRoom(roomName)

	r.log.Info().
		Str("user", session.Username).
		Str("room", roomName).
		Int("members", room.Len()).
		Msg("joined room")

	r.send(reply, proto.New(proto.KindJoinRoomRequest, serverSender, fmt.Sprintf("Joined room: %s", roomName)))
	r.notifyRoom(room, fmt.Sprintf("%s joined the room", session.Username), sessionID)
}

// handleBroadcast fans a text message out to every member of the sender's
// room, the sender included. Failures are silent toward the sender.
func (r *Router) handleBroadcast(ctx context.Context, msg proto.Message, sessionID string) {
	if sessionID == "" {
		r.log.Warn().Msg("broadcast dropped: no session")
		return
	}
	sender := r.sessions.Get(sessionID)
	if sender == nil || sender.Room() == "" {
		r.log.Warn().Str("session_id", sessionID).Msg("broadcast dropped: not in a room")
		return
	}
	if len([]rune(msg.Content)) > MaxTextChars {
		r.log.Warn().Str("user", sender.Username).Int("chars", len([]rune(msg.Content))).Msg("broadcast dropped: content too long")
		return
	}

	roomName := sender.Room()
	room := r.rooms.Get(roomName)
	if room == nil {
		return
	}

	out := proto.New(proto.KindTextMessage, serverSender, fmt.Sprintf("[%s]: %s", sender.Username, msg.Content))

	delivered := 0
	for _, member := range room.Members() {
		if r.sinks.Send(member.ID, out) {
			delivered++
		}
	}

	r.log.Info().
		Str("room", roomName).
		Str("from", sender.Username).
		Int("delivered", delivered).
		Msg("broadcast")

	if r.history != nil {
		rec := &store.Message{Room: roomName, Sender: sender.Username, Body: msg.Content}
		if err := r.history.SaveMessage(ctx, rec); err != nil {
			r.log.Warn().Err(err).Str("room", roomName).Msg("history write failed")
		}
	}
}

// handlePrivate delivers a direct message. Content is "<recipient>:<text>";
// only the first colon splits, the text may contain more. Failures are
// logged, never reported to the sender.
func (r *Router) handlePrivate(msg proto.Message, sessionID string) {
	if sessionID == "" {
		r.log.Warn().Msg("private message dropped: no session")
		return
	}
	sender := r.sessions.Get(sessionID)
	if sender == nil {
		r.log.Warn().Str("session_id", sessionID).Msg("private message dropped: invalid sender")
		return
	}

	recipientName, text, ok := strings.Cut(msg.Content, ":")
	if !ok {
		r.log.Warn().Str("from", sender.Username).Msg("private message dropped: bad format")
		return
	}
	recipientName = strings.TrimSpace(recipientName)
	text = strings.TrimSpace(text)

	recipient := r.sessions.FindByUsername(recipientName)
	if recipient == nil {
		r.log.Warn().Str("from", sender.Username).Str("to", recipientName).Msg("private message: recipient not found")
		return
	}

	out := proto.New(proto.KindPrivateMessage, serverSender, fmt.Sprintf("[PM from %s]: %s", sender.Username, text))
	if r.sinks.Send(recipient.ID, out) {
		r.log.Info().Str("from", sender.Username).Str("to", recipientName).Msg("private message delivered")
	}
}

// handleUserList answers with every active user and their room. No session
// is required to ask.
func (r *Router) handleUserList(reply Sink) {
	sessions := r.sessions.Snapshot()

	var parts []string
	for _, s := range sessions {
		if room := s.Room(); room != "" {
			parts = append(parts, fmt.Sprintf("%s (in %s)", s.Username, room))
		} else {
			parts = append(parts, s.Username)
		}
	}

	list := "No users online"
	if len(parts) > 0 {
		list = strings.Join(parts, ", ")
	}

	r.log.Info().Int("users", len(sessions)).Msg("user list sent")
	r.send(reply, proto.New(proto.KindUserListResponse, serverSender, "Active users: "+list))
}

// Disconnect tears down a session when its connection goes away: the
// session and its sink are dropped, and if it occupied a room the
// remaining members are told it left. Safe to call with an empty or stale
// id.
func (r *Router) Disconnect(sessionID string) {
	if sessionID == "" {
		return
	}

	r.sinks.Unregister(sessionID)

	session := r.sessions.Remove(sessionID)
	if session == nil {
		return
	}

	if roomName := session.Room(); roomName != "" {
		if room := r.rooms.Get(roomName); room != nil {
			room.RemoveMember(session)
			r.notifyRoom(room, fmt.Sprintf("%s left the room", session.Username), sessionID)
		}
	}

	r.log.Info().
		Str("user", session.Username).
		Int("remaining", r.sessions.Len()).
		Msg("logout")
}

// notifyRoom sends a system notification to every room member except the
// subject of the notification.
func (r *Router) notifyRoom(room *Room, notification, excludeSessionID string) {
	out := proto.New(proto.KindTextMessage, systemSender, "[SYSTEM] "+notification)
	for _, member := range room.Members() {
		if member.ID == excludeSessionID {
			continue
		}
		r.sinks.Send(member.ID, out)
	}
}

func (r *Router) send(sink Sink, msg proto.Message) {
	if sink == nil {
		return
	}
	if err := sink.Send(msg); err != nil {
		r.log.Warn().Err(err).Stringer("kind", msg.Kind).Msg("reply write failed")
	}
}

func (r *Router) sendError(sink Sink, code, message string) {
	cerr := coreError(code, message)
	r.log.Warn().Str("code", cerr.Code).Str("error", cerr.Message).Msg("protocol error")
	r.send(sink, proto.New(proto.KindErrorResponse, serverSender, "ERROR: "+cerr.Message))
}
