package tcp

import (
	"net"
	"sync"

	"github.com/vovakirdan/framechat-server/internal/proto"
)

// connSink writes encoded frames to one connection. The router fans out
// from multiple goroutines, so writes are serialized per connection.
type connSink struct {
	mu   sync.Mutex
	conn net.Conn
}

func newConnSink(conn net.Conn) *connSink {
	return &connSink{conn: conn}
}

func (c *connSink) Send(m proto.Message) error {
	data, err := proto.Encode(m)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.conn.Write(data)
	return err
}
