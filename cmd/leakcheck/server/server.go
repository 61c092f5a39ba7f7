// Package server provides the leak-check HTTP server: a test page, offer and
// trickle signaling through a guard, and audits of what browsers disclose.
// E2E tests start and stop it programmatically.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/thesyncim/rtcguard/pkg/guard"
)

// ErrServerClosed is returned for connections requested after Shutdown.
var ErrServerClosed = errors.New("leak-check server is not running")

// Config holds server configuration options.
type Config struct {
	Addr          string        // Listen address (e.g., ":8080" or ":0" for random port)
	ReadTimeout   time.Duration // HTTP read timeout
	WriteTimeout  time.Duration // HTTP write timeout
	GatherTimeout time.Duration // Upper bound on server-side ICE gathering per answer

	// ICEServers is served to the test page and used for server connections.
	// The page's shim and the server guard decide what survives.
	ICEServers []webrtc.ICEServer

	// Guard creates the server's peer connections. Nil means a strict guard
	// over NewAPI defaults.
	Guard *guard.Guard

	Logger *zap.Logger
}

// DefaultConfig returns a configuration suitable for testing.
// Uses ":0" to bind to a random available port.
func DefaultConfig() Config {
	return Config{
		Addr:          ":0",
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
		GatherTimeout: 10 * time.Second,
	}
}

// Server is the leak-check HTTP server.
type Server struct {
	cfg        Config
	guard      *guard.Guard
	logger     *zap.Logger
	store      *Store
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
	addr     string
	running  bool
	conns    map[*guard.PeerConnection]struct{}
}

// NewServer creates a new server with the given configuration.
// The server is not started until Start() is called.
func NewServer(cfg Config) (*Server, error) {
	if cfg.GatherTimeout <= 0 {
		return nil, errors.New("gather timeout must be positive")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	g := cfg.Guard
	if g == nil {
		api, err := guard.NewAPI(guard.WithAPILogger(logger.Named("pion")))
		if err != nil {
			return nil, fmt.Errorf("failed to build WebRTC API: %w", err)
		}
		g, err = guard.New(api, guard.WithLogger(logger.Named("guard")))
		if err != nil {
			return nil, fmt.Errorf("failed to create guard: %w", err)
		}
	}

	s := &Server{
		cfg:    cfg,
		guard:  g,
		logger: logger,
		store:  NewStore(),
		conns:  make(map[*guard.PeerConnection]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /config", s.handleConfig)
	mux.HandleFunc("POST /offer", s.handleOffer)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /reports", s.handleReports)
	mux.HandleFunc("GET /reports/{id}", s.handleReport)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// Start begins listening and serving HTTP requests.
// Returns the actual address the server is listening on (useful when port is 0).
// This method is non-blocking - the server runs in a goroutine.
func (s *Server) Start() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return s.addr, nil
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = ln
	s.addr = ln.Addr().String()
	s.running = true

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", zap.Error(err))
		}
	}()

	s.logger.Info("leak-check server listening", zap.String("addr", s.addr))
	return s.addr, nil
}

// Shutdown gracefully shuts down the server and closes every peer
// connection it created.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	conns := s.conns
	s.conns = make(map[*guard.PeerConnection]struct{})
	s.mu.Unlock()

	for pc := range conns {
		_ = pc.Close()
	}
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the address the server is listening on.
// Returns empty string if server is not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Reports returns the store holding audit records.
func (s *Server) Reports() *Store {
	return s.store
}

// newPeerConnection creates a guarded connection that is closed on failure
// or at Shutdown.
func (s *Server) newPeerConnection() (*guard.PeerConnection, error) {
	pc, err := s.guard.NewPeerConnection(&webrtc.Configuration{ICEServers: s.cfg.ICEServers})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		_ = pc.Close()
		return nil, ErrServerClosed
	}
	s.conns[pc] = struct{}{}
	s.mu.Unlock()

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.logger.Debug("connection state", zap.String("state", state.String()))
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			s.release(pc)
		}
	})
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			_ = dc.Send(msg.Data)
		})
	})
	return pc, nil
}

func (s *Server) release(pc *guard.PeerConnection) {
	s.mu.Lock()
	delete(s.conns, pc)
	s.mu.Unlock()
	_ = pc.Close()
}
