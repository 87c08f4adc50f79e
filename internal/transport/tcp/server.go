package tcp

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/framechat-server/internal/config"
	"github.com/vovakirdan/framechat-server/internal/core"
	"github.com/vovakirdan/framechat-server/internal/proto"
)

// Server accepts framed protocol connections over TCP, optionally wrapped
// in TLS, and bridges each one to the shared router with a dedicated
// worker goroutine.
type Server struct {
	addr    string
	tlsConf *tls.Config
	router  *core.Router
	maxBody int
	log     *zerolog.Logger

	mu    sync.Mutex
	ln    net.Listener
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// NewServer builds a TCP server. When the config carries a certificate and
// key the listener speaks TLS; otherwise plain TCP.
func NewServer(router *core.Router, cfg config.Config, logger *zerolog.Logger) (*Server, error) {
	var tlsConf *tls.Config
	if cfg.TLSEnabled() {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return nil, fmt.Errorf("load tls keypair: %w", err)
		}
		tlsConf = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	return &Server{
		addr:    cfg.Addr,
		tlsConf: tlsConf,
		router:  router,
		maxBody: cfg.MaxBodyBytes,
		log:     logger,
		conns:   make(map[net.Conn]struct{}),
	}, nil
}

// Addr returns the bound listener address, or "" before Run.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Listen binds the listener without accepting yet, so callers can learn
// the resolved address (":0" in tests) before Run.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	if s.tlsConf != nil {
		ln = tls.NewListener(ln, s.tlsConf)
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Bool("tls", s.tlsConf != nil).
		Msg("tcp listener ready")
	return nil
}

// Run accepts connections until the context is canceled, then closes the
// listener and every live connection and waits for the workers to finish.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
		s.mu.Lock()
		ln = s.ln
		s.mu.Unlock()
	}

	go func() {
		<-ctx.Done()
		s.shutdown()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.track(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		s.ln.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// handleConn is the per-connection worker: it reads frames in arrival
// order, feeds them to the router, and threads the session id through the
// loop. Registry cleanup runs on every exit path.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	s.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("connection accepted")

	sink := newConnSink(conn)
	sessionID := ""
	defer func() {
		s.router.Disconnect(sessionID)
	}()

	reader := bufio.NewReader(conn)
	for {
		frame, err := proto.ReadFrame(reader, s.maxBody)
		if err != nil {
			var fe *proto.FrameError
			switch {
			case errors.Is(err, io.EOF):
				s.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("client disconnected")
				return
			case errors.As(err, &fe):
				// A bad declared length is answered without dropping the
				// connection; the stream may still recover.
				s.log.Warn().Str("reason", fe.Reason).Msg("rejected frame")
				if sendErr := sink.Send(proto.New(proto.KindErrorResponse, "server", "ERROR: Invalid message format")); sendErr != nil {
					return
				}
				continue
			default:
				s.log.Warn().Err(err).Msg("connection read failed")
				return
			}
		}

		sessionID = s.router.HandleFrame(ctx, frame, sessionID, sink)
	}
}
