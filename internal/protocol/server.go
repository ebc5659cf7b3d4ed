package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lexvault/lexvault/pkg/config"
	apperrors "github.com/lexvault/lexvault/pkg/errors"
	"github.com/lexvault/lexvault/pkg/logger"
	"github.com/lexvault/lexvault/pkg/metrics"
)

// HandlerFunc serves one request. It receives the full request frame so
// it can decode the operation-specific fields itself.
type HandlerFunc func(ctx context.Context, req json.RawMessage) (any, error)

// opUnknown is the metric label for requests that never resolved to a
// registered operation, keeping the op label set bounded.
const opUnknown = "unknown"

// Server accepts framed JSON requests over TCP and dispatches them to
// registered operation handlers. Connections are persistent: one frame
// in, one frame out, until the peer disconnects or sends a frame the
// server cannot recover from.
type Server struct {
	cfg     config.ServerConfig
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	listener net.Listener
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// NewServer creates a server for the given listener settings. Metrics
// may be nil, in which case no metrics are recorded.
func NewServer(cfg config.ServerConfig, m *metrics.Metrics) *Server {
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = DefaultMaxFrameBytes
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 256
	}
	return &Server{
		cfg:      cfg,
		metrics:  m,
		logger:   logger.WithComponent("protocol"),
		handlers: make(map[string]HandlerFunc),
		sem:      semaphore.NewWeighted(cfg.MaxConns),
		done:     make(chan struct{}),
	}
}

// Register adds a handler for the given operation name.
func (s *Server) Register(op string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[op] = handler
	s.logger.Debug("operation registered", "op", op)
}

// Listen binds the configured address. Serve calls it implicitly;
// calling it first lets the caller read Addr before serving.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound listen address, empty before Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve accepts connections until Stop is called or ctx is cancelled.
// Each connection is served on its own goroutine, bounded by the
// configured connection limit.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.logger.Info("protocol server listening", "addr", s.Addr())

	for {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return nil
		}
		conn, err := s.listener.Accept()
		if err != nil {
			s.sem.Release(1)
			select {
			case <-s.done:
				return nil
			default:
			}
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}
		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.sem.Release(1)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Unblocks a pending read when the context dies or Stop is called.
	go func() {
		select {
		case <-connCtx.Done():
		case <-s.done:
		}
		conn.Close()
	}()

	if s.metrics != nil {
		s.metrics.ConnectionsActive.Inc()
		defer s.metrics.ConnectionsActive.Dec()
	}

	remote := conn.RemoteAddr().String()
	s.logger.Debug("connection opened", "remote", remote)
	defer s.logger.Debug("connection closed", "remote", remote)

	for {
		if s.cfg.IdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		payload, err := ReadFrame(conn, s.cfg.MaxFrameBytes)
		if err != nil {
			s.logReadEnd(connCtx, err, remote)
			return
		}
		if err := s.serveRequest(connCtx, conn, payload); err != nil {
			s.logger.Warn("write failed, closing connection", "remote", remote, "error", err)
			return
		}
	}
}

// logReadEnd classifies why a connection's read loop ended. Clean
// disconnects and shutdowns are expected and logged quietly.
func (s *Server) logReadEnd(ctx context.Context, err error, remote string) {
	switch {
	case errors.Is(err, ErrFrameTooLarge):
		s.logger.Warn("oversize frame, closing connection", "remote", remote, "error", err)
	case errors.Is(err, io.EOF):
	case ctx.Err() != nil:
	case errors.Is(err, net.ErrClosed):
	default:
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			s.logger.Debug("idle timeout, closing connection", "remote", remote)
			return
		}
		s.logger.Debug("read failed", "remote", remote, "error", err)
	}
}

// serveRequest dispatches one frame and writes exactly one response
// frame. A non-nil return means the response could not be written and
// the connection must be dropped; protocol-level errors (malformed
// JSON, unknown op) are reported to the peer and return nil.
func (s *Server) serveRequest(ctx context.Context, conn net.Conn, payload []byte) error {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		s.countRequest(opUnknown, StatusError)
		return s.writeError(conn, apperrors.Formatf("malformed request payload: %v", err))
	}
	if env.Op == "" {
		s.countRequest(opUnknown, StatusError)
		return s.writeError(conn, apperrors.Formatf("request missing op"))
	}

	s.mu.RLock()
	handler, ok := s.handlers[env.Op]
	s.mu.RUnlock()
	if !ok {
		s.countRequest(opUnknown, StatusError)
		return s.writeError(conn, apperrors.Formatf("unknown operation %q", env.Op))
	}

	reqCtx := logger.NewRequestContext(ctx)
	log := logger.FromContext(reqCtx)

	start := time.Now()
	data, err := handler(reqCtx, payload)
	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.RequestDuration.WithLabelValues(env.Op).Observe(elapsed.Seconds())
	}

	if err != nil {
		s.countRequest(env.Op, StatusError)
		log.Info("request failed",
			"op", env.Op,
			"kind", apperrors.Kind(err),
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
		)
		return s.writeError(conn, err)
	}

	body, err := json.Marshal(data)
	if err != nil {
		s.countRequest(env.Op, StatusError)
		log.Error("encoding response failed", "op", env.Op, "error", err)
		return s.writeError(conn, fmt.Errorf("encoding response: %w", err))
	}

	s.countRequest(env.Op, StatusOK)
	log.Info("request handled",
		"op", env.Op,
		"duration_ms", elapsed.Milliseconds(),
		"bytes", len(body),
	)
	if err := WriteFrame(conn, body, s.cfg.MaxFrameBytes); err != nil {
		if errors.Is(err, ErrFrameTooLarge) {
			// The result outgrew the frame limit; tell the peer instead
			// of silently dropping the connection.
			return s.writeError(conn, fmt.Errorf("response exceeds frame limit"))
		}
		return err
	}
	return nil
}

// writeError sends an ErrorResponse frame carrying the error's taxonomy
// kind and message.
func (s *Server) writeError(conn net.Conn, err error) error {
	resp := ErrorResponse{
		Status:  StatusError,
		Kind:    apperrors.Kind(err),
		Message: errorMessage(err),
	}
	body, merr := json.Marshal(resp)
	if merr != nil {
		return merr
	}
	return WriteFrame(conn, body, s.cfg.MaxFrameBytes)
}

// errorMessage prefers the vault error message over the full chain so
// peers see "no document at 19/0/7", not "not found: no document ...".
func errorMessage(err error) string {
	var verr *apperrors.VaultError
	if errors.As(err, &verr) {
		return verr.Message
	}
	return err.Error()
}

func (s *Server) countRequest(op, status string) {
	if s.metrics != nil {
		s.metrics.RequestsTotal.WithLabelValues(op, status).Inc()
	}
}

// Stop closes the listener and waits for in-flight connections, bounded
// by ctx.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			s.listener.Close()
		}
	})

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		s.logger.Info("protocol server stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
