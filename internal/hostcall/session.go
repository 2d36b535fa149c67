// SPDX-License-Identifier: MPL-2.0

package hostcall

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
)

// envNameContextKey stores the authenticated environment name on the
// session context.
const envNameContextKey = "gauntletEnv"

// execMiddleware handles one-shot command sessions (ssh host -- argv...).
// Sessions without a command fall through to the interactive chain.
func (s *Server) execMiddleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			cmd := sess.Command()
			if len(cmd) == 0 {
				next(sess)
				return
			}
			s.runCommand(sess, cmd)
		}
	}
}

// shellMiddleware serves interactive sessions. It sits behind the
// activeterm gate, so every session reaching it holds a PTY.
func (s *Server) shellMiddleware() wish.Middleware {
	return func(ssh.Handler) ssh.Handler {
		return s.runInteractiveShell
	}
}

// runCommand executes a single host-side command and mirrors its exit
// status to the session. A one-element argv is run through the default
// shell so quoting survives the SSH hop.
func (s *Server) runCommand(sess ssh.Session, args []string) {
	var cmd *exec.Cmd
	if len(args) == 1 {
		cmd = exec.CommandContext(sess.Context(), s.cfg.DefaultShell, "-c", args[0])
	} else {
		cmd = exec.CommandContext(sess.Context(), args[0], args[1:]...)
	}

	cmd.Env = append(os.Environ(), sess.Environ()...)
	cmd.Stdin = sess
	cmd.Stdout = sess
	cmd.Stderr = sess.Stderr()

	s.logger.Debug("executing callback command", "env", sessionEnvName(sess), "argv", args)

	if err := cmd.Run(); err != nil {
		if exitErr, ok := errors.AsType[*exec.ExitError](err); ok {
			_ = sess.Exit(exitErr.ExitCode()) //nolint:errcheck // Terminal operation; error non-critical
			return
		}
		_, _ = fmt.Fprintf(sess.Stderr(), "Error: %v\n", err)
		_ = sess.Exit(1) //nolint:errcheck // Terminal operation; error non-critical
		return
	}
	_ = sess.Exit(0) //nolint:errcheck // Terminal operation; error non-critical
}

// runInteractiveShell runs the default shell on a PTY and wires it to the
// session.
func (s *Server) runInteractiveShell(sess ssh.Session) {
	cmd := exec.CommandContext(sess.Context(), s.cfg.DefaultShell)
	cmd.Env = append(os.Environ(), sess.Environ()...)

	ptyReq, winCh, isPty := sess.Pty()
	if isPty {
		cmd.Env = append(cmd.Env, "TERM="+ptyReq.Term)
	}

	f, err := startPty(cmd)
	if err != nil {
		_, _ = fmt.Fprintf(sess.Stderr(), "Error starting shell: %v\n", err)
		_ = sess.Exit(1) //nolint:errcheck // Terminal operation; error non-critical
		return
	}
	defer func() { _ = f.Close() }() // PTY cleanup; error non-critical

	// Track window size changes.
	go func() {
		for win := range winCh {
			setWinsize(f, win.Width, win.Height)
		}
	}()

	// Copy I/O both ways; the session side returns when the shell exits.
	go func() {
		_, _ = copyBuffer(f, sess) //nolint:errcheck // I/O copy; errors are non-recoverable
	}()
	_, _ = copyBuffer(sess, f) //nolint:errcheck // I/O copy; errors are non-recoverable

	if err := cmd.Wait(); err != nil {
		if exitErr, ok := errors.AsType[*exec.ExitError](err); ok {
			_ = sess.Exit(exitErr.ExitCode()) //nolint:errcheck // Terminal operation; error non-critical
			return
		}
	}
	_ = sess.Exit(0) //nolint:errcheck // Terminal operation; error non-critical
}

// sessionEnvName returns the environment name the session authenticated
// for, or empty when unknown.
func sessionEnvName(sess ssh.Session) string {
	if v, ok := sess.Context().Value(envNameContextKey).(string); ok {
		return v
	}
	return ""
}
