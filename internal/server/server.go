// Package server ties every other YAT package together: a device registry,
// a TCP acceptor for tracker/monitor sessions, a UDP listener for
// unreliable tracker telemetry, and the dispatch table that turns a decoded
// message into a DeviceState mutation, a reply, or both.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/yat-project/yat/internal/config"
	"github.com/yat-project/yat/internal/linkbroker"
	"github.com/yat-project/yat/internal/persist"
	"github.com/yat-project/yat/internal/ratelimit"
	"github.com/yat-project/yat/internal/session"
	"github.com/yat-project/yat/pkg/transport"
)

// Server owns every piece of shared state: the device registry, the rate
// limiter, the link broker, and the persistence pipeline. Directly adapted
// from strandapi/pkg/server/server.go's semaphore-bounded per-frame
// goroutine dispatch and done-channel shutdown shape.
type Server struct {
	cfg config.Config

	registry *registry
	limiter  *ratelimit.Limiter
	broker   *linkbroker.Broker
	persist  *persist.Pipeline

	tcpListener net.Listener
	udp         *transport.UDPTransport

	mu   sync.Mutex
	done chan struct{}

	// sem bounds the number of in-flight frame-handler goroutines across
	// both the TCP and UDP paths.
	sem chan struct{}
	wg  sync.WaitGroup
}

// New constructs a Server from cfg. It does not yet touch the filesystem or
// network; call Open then ListenAndServe.
func New(cfg config.Config) *Server {
	maxFrames := cfg.MaxConcurrentFrames
	if maxFrames <= 0 {
		maxFrames = config.DefaultMaxConcurrentFrames
	}
	return &Server{
		cfg:      cfg,
		registry: newRegistry(),
		limiter:  ratelimit.New(cfg.RateLimitInterval),
		broker:   linkbroker.New(cfg.LinkRequestExpiry),
		done:     make(chan struct{}),
		sem:      make(chan struct{}, maxFrames),
	}
}

// Open validates the configuration, scans the storage directory to rebuild
// the registry and replay durable history, and opens today's persistence
// file. Call this once, before ListenAndServe.
func (s *Server) Open() error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if err := s.open(); err != nil {
		return fmt.Errorf("yat server: scan storage directory: %w", err)
	}
	p, err := persist.Open(s.cfg.StoragePath, time.Now())
	if err != nil {
		return fmt.Errorf("yat server: open persistence file: %w", err)
	}
	s.persist = p
	return nil
}

// Listen binds the TCP and UDP listeners on cfg.Port. Split out from Serve
// so callers (and tests) can discover the bound addresses -- useful with
// Port 0 -- before the accept/receive loops start running.
func (s *Server) Listen() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)

	tcpListener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("yat server: tcp listen %s: %w", addr, err)
	}
	s.tcpListener = tcpListener

	udpTransport, err := transport.ListenUDP(addr)
	if err != nil {
		tcpListener.Close()
		return fmt.Errorf("yat server: udp listen %s: %w", addr, err)
	}
	s.udp = udpTransport
	return nil
}

// Serve runs the accept and receive loops until Stop is called or a fatal
// error occurs. Listen must have been called first.
func (s *Server) Serve() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-s.done
		cancel()
		s.tcpListener.Close()
		s.udp.Close()
	}()

	errCh := make(chan error, 2)
	go func() { errCh <- s.acceptLoop(s.tcpListener) }()
	go func() { errCh <- s.udpLoop(ctx, s.udp) }()

	err := <-errCh
	select {
	case <-s.done:
		return nil
	default:
		return err
	}
}

// ListenAndServe binds the listeners and serves until Stop is called or a
// fatal error occurs.
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// TCPAddr returns the bound TCP listener's address. Valid after Listen.
func (s *Server) TCPAddr() net.Addr {
	return s.tcpListener.Addr()
}

// UDPAddr returns the bound UDP transport's address. Valid after Listen.
func (s *Server) UDPAddr() net.Addr {
	return s.udp.LocalAddr()
}

// acceptLoop accepts TCP connections and hands each to a per-connection
// goroutine, bounded by the shared frame-handler semaphore.
func (s *Server) acceptLoop(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
				log.Printf("yat server: accept error: %v", err)
				return err
			}
		}

		select {
		case s.sem <- struct{}{}:
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer func() { <-s.sem }()
				s.serveConn(c)
			}(conn)
		default:
			log.Printf("yat server: overloaded, rejecting connection from %s", conn.RemoteAddr())
			conn.Close()
		}
	}
}

// serveConn runs one TCP session's read loop until it errors, is closed by
// the dispatch table, or the idle timer fires.
func (s *Server) serveConn(conn net.Conn) {
	sess := session.New(conn, s.cfg.ReadIdleTimeout)
	defer func() {
		sess.Close()
		if dev := s.registry.removeSubscription(sess); dev != nil {
			dev.Unsubscribe(sess)
		}
	}()

	remoteAddr := conn.RemoteAddr().String()
	for {
		msg, err := sess.ReadMessage()
		if err != nil {
			return
		}
		if !s.dispatchTCP(sess, remoteAddr, msg) {
			return
		}
	}
}

// udpLoop receives datagrams and dispatches each in its own bounded
// goroutine; only Tracking messages are valid over UDP (java:Server.java's
// DatagramListenerImpl) -- anything else is logged and dropped.
func (s *Server) udpLoop(ctx context.Context, t *transport.UDPTransport) error {
	for {
		msg, from, err := t.Recv(ctx)
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
				log.Printf("yat server: udp recv error: %v", err)
				continue
			}
		}

		select {
		case s.sem <- struct{}{}:
			s.wg.Add(1)
			go func(m []byte, addr transport.Addr) {
				defer s.wg.Done()
				defer func() { <-s.sem }()
				s.dispatchUDP(m, addr)
			}(msg, from)
		default:
			log.Printf("yat server: overloaded, dropping udp datagram from %s", from)
		}
	}
}

// Stop signals every loop to exit, waits up to ShutdownFlushTimeout for
// in-flight handlers and the persistence pipeline to drain, and stops the
// sweep timers owned by the rate limiter and link broker.
func (s *Server) Stop() {
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		return
	default:
		close(s.done)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.cfg.ShutdownFlushTimeout):
		log.Printf("yat server: shutdown timeout exceeded, forcing close")
	}

	s.limiter.Stop()
	s.broker.Stop()
	if s.persist != nil {
		if !s.persist.Close(s.cfg.ShutdownFlushTimeout) {
			log.Printf("yat server: persistence pipeline did not drain before shutdown timeout")
		}
	}
}
