// SPDX-License-Identifier: MPL-2.0

package hostcall

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
)

// Start starts the callback server and blocks until either:
//   - The server is ready to accept connections (returns nil)
//   - The server fails to start (returns error)
//   - The context is cancelled (returns context error)
//   - The startup timeout is exceeded (returns error)
//
// After Start() returns nil, use Err() to monitor for runtime errors.
func (s *Server) Start(ctx context.Context) error {
	if err := s.lc.begin(ctx); err != nil {
		return err
	}

	startupCtx, startupCancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer startupCancel()

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var netCfg net.ListenConfig
	listener, err := netCfg.Listen(startupCtx, "tcp", addr)
	if err != nil {
		s.lc.fail(fmt.Errorf("failed to listen on %s: %w", addr, err))
		return s.lc.failureErr()
	}

	s.srvMu.Lock()
	s.listener = listener
	s.addr = listener.Addr().String()
	s.srvMu.Unlock()

	// wish composes middleware so the last entry runs first: execMiddleware
	// handles one-shot commands, interactive sessions fall through the
	// activeterm PTY gate into the shell handler.
	srv, err := wish.NewServer(
		wish.WithAddress(addr),
		wish.WithPublicKeyAuth(s.publicKeyHandler),
		wish.WithPasswordAuth(s.passwordHandler),
		wish.WithMiddleware(
			s.shellMiddleware(),
			activeterm.Middleware(),
			s.execMiddleware(),
		),
	)
	if err != nil {
		_ = listener.Close() // Best-effort cleanup on error
		s.lc.fail(fmt.Errorf("failed to create SSH server: %w", err))
		return s.lc.failureErr()
	}

	s.srvMu.Lock()
	s.srv = srv
	s.srvMu.Unlock()

	s.lc.track(s.serve)
	s.lc.track(s.cleanupExpiredTokens)

	// Wait for the server to be ready or fail.
	select {
	case <-s.lc.ready:
		s.logger.Info("callback server started", "address", s.addr)
		return nil

	case err := <-s.lc.errs:
		s.lc.fail(err)
		return err

	case <-startupCtx.Done():
		s.lc.fail(fmt.Errorf("startup timeout: %w", startupCtx.Err()))
		return s.lc.failureErr()
	}
}

// Stop gracefully stops the callback server. It blocks until all
// connections are closed or the shutdown timeout is reached. Safe to call
// multiple times; subsequent calls are no-ops.
func (s *Server) Stop() error {
	if !s.lc.drain() {
		// Never started, already stopped, or another Stop owns shutdown.
		s.lc.waitIdle()
		return nil
	}

	return s.doStop()
}

// doStop performs the actual shutdown logic.
func (s *Server) doStop() error {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error
	s.srvMu.Lock()
	if s.srv != nil {
		shutdownErr = s.srv.Shutdown(shutdownCtx)
		if shutdownErr != nil && !isClosedConnError(shutdownErr) {
			s.logger.Error("shutdown error", "error", shutdownErr)
		} else {
			shutdownErr = nil
		}
	}
	if s.listener != nil {
		_ = s.listener.Close() //nolint:errcheck // Best-effort cleanup during shutdown
	}
	s.srvMu.Unlock()

	s.lc.waitIdle()

	s.lc.finish()
	s.lc.closeErrs()
	s.logger.Info("callback server stopped")

	return shutdownErr
}

// serve runs the SSH server and reports unexpected errors.
func (s *Server) serve() {
	// Phase transition Starting -> Serving signals readiness.
	s.lc.serving()

	s.srvMu.Lock()
	srv := s.srv
	listener := s.listener
	s.srvMu.Unlock()

	if srv == nil || listener == nil {
		return
	}

	err := srv.Serve(listener)
	if err != nil {
		// Ignore expected shutdown errors.
		if errors.Is(err, ssh.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
			return
		}
		s.lc.report(fmt.Errorf("serve error: %w", err))
	}
}

// Phase returns the server's current lifecycle phase.
func (s *Server) Phase() Phase {
	return s.lc.Phase()
}

// IsRunning returns whether the server is currently accepting connections.
func (s *Server) IsRunning() bool {
	return s.lc.Phase() == PhaseServing
}

// Err returns a channel that receives runtime errors from the serve loop.
// The channel is closed when the server stops.
func (s *Server) Err() <-chan error {
	return s.lc.errs
}

// Address returns the server's bound address (host:port). Blocks until the
// server has started or failed; returns empty string if it never started.
func (s *Server) Address() string {
	select {
	case <-s.lc.ready:
		s.srvMu.Lock()
		defer s.srvMu.Unlock()
		return s.addr
	default:
		// Server not ready yet; wait on the lifecycle context if one exists.
		ctx := s.lc.context()
		if ctx == nil {
			return ""
		}
		select {
		case <-s.lc.ready:
			s.srvMu.Lock()
			defer s.srvMu.Unlock()
			return s.addr
		case <-ctx.Done():
			return ""
		}
	}
}

// Port returns the server's listening port. Blocks until the server has
// started or failed; returns 0 if it never started.
func (s *Server) Port() int {
	addr := s.Address()
	if addr == "" {
		return 0
	}
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return 0
	}
	return port
}

// Host returns the server's configured host address.
func (s *Server) Host() string {
	return s.cfg.Host.String()
}

// Wait blocks until the server stops (either gracefully or due to error).
// Returns the error if the server failed, nil otherwise.
func (s *Server) Wait() error {
	s.lc.waitIdle()

	if s.lc.Phase() == PhaseFailed {
		return s.lc.failureErr()
	}
	return nil
}

// isClosedConnError checks for the "use of closed network connection" error
// that a closed listener produces during shutdown.
func isClosedConnError(err error) bool {
	if err == nil {
		return false
	}
	if opErr, ok := errors.AsType[*net.OpError](err); ok {
		return opErr.Err.Error() == "use of closed network connection"
	}
	return false
}
