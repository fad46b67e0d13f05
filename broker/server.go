package broker

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/c360/brokerkit/config"
	"github.com/c360/brokerkit/errors"
	"github.com/c360/brokerkit/metric"
)

// shutdownTimeout bounds the wait for acceptor teardown.
const shutdownTimeout = 10 * time.Second

// Server runs the configured acceptors and owns the live connections.
type Server struct {
	cfg     *config.Config
	handler FrameHandler
	logger  *slog.Logger
	metrics *metric.Metrics

	lifecycleMu sync.Mutex
	started     bool
	cancel      context.CancelFunc
	group       *errgroup.Group

	connMu      sync.Mutex
	connections map[string]*Connection

	listeners   []net.Listener
	httpServers []*http.Server
}

// NewServer creates a server for the given configuration and handler.
func NewServer(cfg *config.Config, handler FrameHandler, logger *slog.Logger, registry *metric.MetricsRegistry) *Server {
	s := &Server{
		cfg:         cfg,
		handler:     handler,
		logger:      logger.With("component", "broker"),
		connections: make(map[string]*Connection),
	}
	if registry != nil {
		s.metrics = registry.CoreMetrics()
	}
	return s
}

// Start binds every configured acceptor. Starting a started server is a
// no-op.
func (s *Server) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, runCtx := errgroup.WithContext(runCtx)
	s.cancel = cancel
	s.group = group

	for _, acceptor := range s.cfg.Acceptors {
		switch acceptor.Type {
		case config.AcceptorTCP:
			if err := s.startTCP(runCtx, acceptor); err != nil {
				cancel()
				return err
			}
		case config.AcceptorWebSocket:
			if err := s.startWebSocket(acceptor); err != nil {
				cancel()
				return err
			}
		default:
			cancel()
			return errors.Wrap(
				fmt.Errorf("unknown acceptor type %q", acceptor.Type),
				"Server", "Start", "binding acceptor "+acceptor.Name)
		}
	}

	s.started = true
	return nil
}

// Stop closes the acceptors and every live connection. Stopping a stopped
// server is a no-op.
func (s *Server) Stop() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false
	s.cancel()

	for _, listener := range s.listeners {
		_ = listener.Close()
	}
	s.listeners = nil

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, server := range s.httpServers {
		_ = server.Shutdown(shutdownCtx)
	}
	s.httpServers = nil

	s.connMu.Lock()
	conns := make([]*Connection, 0, len(s.connections))
	for _, conn := range s.connections {
		conns = append(conns, conn)
	}
	s.connMu.Unlock()
	for _, conn := range conns {
		conn.Close()
	}

	err := s.group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// Addrs returns the bound addresses of the TCP acceptors, useful when
// configured with port 0.
func (s *Server) Addrs() []string {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	addrs := make([]string, 0, len(s.listeners))
	for _, listener := range s.listeners {
		addrs = append(addrs, listener.Addr().String())
	}
	return addrs
}

// ConnectionCount reports the number of live connections.
func (s *Server) ConnectionCount() int {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return len(s.connections)
}

func (s *Server) startTCP(ctx context.Context, acceptor config.AcceptorConfig) error {
	listener, err := net.Listen("tcp", acceptor.Address)
	if err != nil {
		return errors.Wrap(err, "Server", "startTCP", "binding "+acceptor.Address)
	}
	s.listeners = append(s.listeners, listener)
	s.logger.Info("acceptor listening", "name", acceptor.Name, "type", acceptor.Type, "address", listener.Addr().String())

	s.group.Go(func() error {
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return nil
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return nil
				}
				return err
			}
			s.attach(&tcpTransport{conn: conn})
		}
	})
	return nil
}

func (s *Server) startWebSocket(acceptor config.AcceptorConfig) error {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		// The broker core does no origin policying; that belongs to the
		// security layer in front of it.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/stomp", func(w http.ResponseWriter, r *http.Request) {
		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		s.attach(&wsTransport{conn: wsConn})
	})

	httpServer := &http.Server{Addr: acceptor.Address, Handler: mux}
	s.httpServers = append(s.httpServers, httpServer)
	s.logger.Info("acceptor listening", "name", acceptor.Name, "type", acceptor.Type, "address", acceptor.Address)

	s.group.Go(func() error {
		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	return nil
}

// attach registers a transport as a live connection and serves it.
func (s *Server) attach(t transport) {
	conn := newConnection(t, s.handler, s.logger, s.metrics, s.detach)

	s.connMu.Lock()
	s.connections[conn.ID()] = conn
	s.connMu.Unlock()

	if s.metrics != nil {
		s.metrics.ConnectionsActive.Inc()
	}
	s.logger.Debug("connection opened", "connection", conn.ID())

	s.group.Go(func() error {
		conn.serve()
		return nil
	})
}

func (s *Server) detach(conn *Connection) {
	s.connMu.Lock()
	_, present := s.connections[conn.ID()]
	delete(s.connections, conn.ID())
	s.connMu.Unlock()

	if present {
		if s.metrics != nil {
			s.metrics.ConnectionsActive.Dec()
		}
		s.logger.Debug("connection closed", "connection", conn.ID())
	}
}
