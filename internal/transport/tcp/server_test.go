package tcp

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/framechat-server/internal/config"
	"github.com/vovakirdan/framechat-server/internal/core"
	"github.com/vovakirdan/framechat-server/internal/proto"
)

func newTestServer(t *testing.T) string {
	t.Helper()

	logger := zerolog.Nop()
	router := core.NewRouter(nil, 0, &logger)

	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"

	srv, err := NewServer(router, cfg, &logger)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Run(ctx); err != nil {
			t.Errorf("server run: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Error("server did not shut down")
		}
	})

	return srv.Addr()
}

type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *testClient {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) send(kind proto.Kind, sender, content string) {
	c.t.Helper()

	data, err := proto.Encode(proto.New(kind, sender, content))
	if err != nil {
		c.t.Fatalf("encode: %v", err)
	}
	if _, err := c.conn.Write(data); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *testClient) recv() proto.Message {
	c.t.Helper()

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	frame, err := proto.ReadFrame(c.r, 0)
	if err != nil {
		c.t.Fatalf("read frame: %v", err)
	}
	msg, err := proto.Decode(frame, 0)
	if err != nil {
		c.t.Fatalf("decode frame: %v", err)
	}
	return msg
}

// expect reads frames until one matches kind and content substring.
func (c *testClient) expect(kind proto.Kind, contains string) proto.Message {
	c.t.Helper()

	for i := 0; i < 10; i++ {
		msg := c.recv()
		if msg.Kind == kind && strings.Contains(msg.Content, contains) {
			return msg
		}
	}
	c.t.Fatalf("no frame matching kind=%v content~%q", kind, contains)
	return proto.Message{}
}

func (c *testClient) loginAndJoin(user, room string) {
	c.t.Helper()

	c.send(proto.KindLoginRequest, user, user)
	c.expect(proto.KindLoginResponse, "Welcome "+user)
	c.send(proto.KindJoinRoomRequest, user, room)
	c.expect(proto.KindJoinRoomRequest, "Joined room: "+room)
}

func TestEndToEndChat(t *testing.T) {
	addr := newTestServer(t)

	alice := dial(t, addr)
	alice.loginAndJoin("alice", "general")

	bob := dial(t, addr)
	bob.loginAndJoin("bob", "general")

	alice.expect(proto.KindTextMessage, "bob joined the room")

	alice.send(proto.KindTextMessage, "alice", "hi")
	got := bob.expect(proto.KindTextMessage, "[alice]: hi")
	if got.Sender != "server" {
		t.Errorf("broadcast sender = %q, want server", got.Sender)
	}
	alice.expect(proto.KindTextMessage, "[alice]: hi")
}

func TestDuplicateUsernameOverWire(t *testing.T) {
	addr := newTestServer(t)

	alice := dial(t, addr)
	alice.send(proto.KindLoginRequest, "alice", "alice")
	alice.expect(proto.KindLoginResponse, "Welcome alice")

	imposter := dial(t, addr)
	imposter.send(proto.KindLoginRequest, "alice", "alice")
	imposter.expect(proto.KindErrorResponse, "already taken")

	// The rejected connection stays usable.
	imposter.send(proto.KindLoginRequest, "alice2", "alice2")
	imposter.expect(proto.KindLoginResponse, "Welcome alice2")
}

func TestPrivateMessageOverWire(t *testing.T) {
	addr := newTestServer(t)

	alice := dial(t, addr)
	alice.send(proto.KindLoginRequest, "alice", "alice")
	alice.expect(proto.KindLoginResponse, "Welcome")

	bob := dial(t, addr)
	bob.send(proto.KindLoginRequest, "bob", "bob")
	bob.expect(proto.KindLoginResponse, "Welcome")

	alice.send(proto.KindPrivateMessage, "alice", "bob:hello")
	bob.expect(proto.KindPrivateMessage, "[PM from alice]: hello")
}

func TestUserListOverWire(t *testing.T) {
	addr := newTestServer(t)

	alice := dial(t, addr)
	alice.loginAndJoin("alice", "general")

	// No login required for the listing itself.
	anon := dial(t, addr)
	anon.send(proto.KindUserListRequest, "", "")
	msg := anon.expect(proto.KindUserListResponse, "Active users:")
	if !strings.Contains(msg.Content, "alice (in general)") {
		t.Errorf("list = %q", msg.Content)
	}
}

func TestMalformedFrameKeepsConnection(t *testing.T) {
	addr := newTestServer(t)

	c := dial(t, addr)

	// Header declaring an absurd body length.
	bad := make([]byte, proto.HeaderSize)
	bad[0] = proto.ProtocolVersion
	bad[2], bad[3], bad[4], bad[5] = 0xFF, 0xFF, 0xFF, 0xFF
	if _, err := c.conn.Write(bad); err != nil {
		t.Fatalf("write: %v", err)
	}
	c.expect(proto.KindErrorResponse, "Invalid message format")

	// Connection survives; a valid login still works.
	c.send(proto.KindLoginRequest, "alice", "alice")
	c.expect(proto.KindLoginResponse, "Welcome alice")
}

func TestDisconnectNotifiesRoom(t *testing.T) {
	addr := newTestServer(t)

	alice := dial(t, addr)
	alice.loginAndJoin("alice", "general")

	bob := dial(t, addr)
	bob.loginAndJoin("bob", "general")
	alice.expect(proto.KindTextMessage, "bob joined the room")

	bob.conn.Close()

	msg := alice.expect(proto.KindTextMessage, "bob left the room")
	if msg.Sender != "system" {
		t.Errorf("leave notification sender = %q, want system", msg.Sender)
	}
}
