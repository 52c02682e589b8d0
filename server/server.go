// Package server accepts TCP connections and hands each one to a worker pool
// as a single job.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"golang.org/x/net/netutil"

	"github.com/firasghr/GoDispatcher/config"
	"github.com/firasghr/GoDispatcher/logger"
	"github.com/firasghr/GoDispatcher/metrics"
	"github.com/firasghr/GoDispatcher/worker"
)

// Executor runs jobs asynchronously.  *worker.ThreadPool satisfies it.
type Executor interface {
	Execute(job worker.Job) error
}

// Server bridges a TCP listener and an Executor.
//
// Architecture:
//   - Serve runs the accept loop on the calling goroutine.  Every accepted
//     connection becomes one job; the job reads the request, writes the
//     response and closes the connection on a worker goroutine.
//   - The Server never waits for the jobs it submits.  Draining them is the
//     Executor's business (ThreadPool.Shutdown).
//   - Stop closes the listener, which makes the blocked Accept return and the
//     loop exit.  Connections already handed to the executor are unaffected.
type Server struct {
	cfg     *config.Config
	exec    Executor
	pages   *Pages
	log     *logger.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	ln       net.Listener
	stopped  bool
	accepted int
}

// New creates a Server that submits connections to exec.  Call Listen and
// then Serve, or just Serve.
func New(cfg *config.Config, exec Executor, log *logger.Logger, m *metrics.Metrics) *Server {
	if log == nil {
		log = logger.Discard()
	}
	if m == nil {
		m = metrics.NewMetrics()
	}
	return &Server{
		cfg:     cfg,
		exec:    exec,
		pages:   NewPages(cfg.PublicDir),
		log:     log,
		metrics: m,
	}
}

// Listen binds the configured address.  When MaxOpenConns is set the
// listener blocks further accepts while that many connections are open.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return errors.New("server: stopped")
	}
	if s.ln != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.cfg.ListenAddr, err)
	}
	if s.cfg.MaxOpenConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxOpenConns)
	}
	s.ln = ln
	s.log.Infof("listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Accepted returns how many connections have been handed to the executor.
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// Serve accepts connections until ctx is done, Stop is called, or
// MaxConnections connections have been accepted.  It returns nil in all of
// those cases.  If the executor refuses a connection, the connection is
// closed and the error returned.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		if s.isStopped() {
			return nil
		}
		return err
	}
	stop := context.AfterFunc(ctx, s.Stop)
	defer stop()

	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isStopped() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.Warnf("accept: %v", err)
				continue
			}
			return fmt.Errorf("server: accept: %w", err)
		}

		if err := s.exec.Execute(func() { s.handleConnection(conn) }); err != nil {
			conn.Close()
			s.metrics.ObserveRequest(0)
			return fmt.Errorf("server: dispatch %s: %w", conn.RemoteAddr(), err)
		}

		if s.countAccepted() {
			s.log.Infof("accepted %d connections; no longer accepting", s.cfg.MaxConnections)
			s.Stop()
			return nil
		}
	}
}

// countAccepted records one accepted connection and reports whether the
// MaxConnections limit has been reached.
func (s *Server) countAccepted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted++
	return s.cfg.MaxConnections > 0 && s.accepted >= s.cfg.MaxConnections
}

// Stop closes the listener.  It is idempotent and safe to call before Listen.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if s.ln != nil {
		if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Warnf("close listener: %v", err)
		}
	}
}

func (s *Server) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
