// SPDX-License-Identifier: MPL-2.0

package hostcall

import (
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"

	"github.com/gauntlet-run/gauntlet/internal/testutil"
	"github.com/gauntlet-run/gauntlet/pkg/types"
)

// CallbackUser is the SSH user name in-container commands authenticate as.
const CallbackUser = "gauntlet"

type (
	// Token is a single-use credential bound to one environment run.
	Token struct {
		Value     TokenValue
		CreatedAt time.Time
		ExpiresAt time.Time
		// EnvName scopes the token to the environment run it was minted for.
		EnvName string
		// Used flips when the token authenticates a session. A used token
		// never authenticates again.
		Used bool
	}

	// Config holds immutable configuration for the callback server.
	Config struct {
		// Host is the address to bind to (default: 127.0.0.1).
		Host HostAddress
		// Port is the port to listen on (0 = auto-select).
		Port types.ListenPort
		// TokenTTL is how long tokens stay valid (default: 1 hour).
		TokenTTL time.Duration
		// ShutdownTimeout bounds graceful shutdown (default: 10s).
		ShutdownTimeout time.Duration
		// DefaultShell runs callback commands and interactive sessions
		// (default: /bin/sh).
		DefaultShell string
		// StartupTimeout is the max time to wait for the listener to come up
		// (default: 5s).
		StartupTimeout time.Duration
	}

	// ConnectionInfo is everything an environment needs to reach the server.
	// The session injects it as the GAUNTLET_CALLBACK_* variables.
	ConnectionInfo struct {
		Host     string
		Port     int
		Token    TokenValue
		User     string
		ExpireAt time.Time
	}

	// Server is the loopback SSH server container environments call back
	// into. A Server is single-use: once stopped or failed, create a new
	// instance.
	Server struct {
		lc *lifecycle

		// Immutable configuration, set at creation.
		cfg Config

		// Initialized during Start; srvMu guards writes.
		srvMu    sync.Mutex
		srv      *ssh.Server
		listener net.Listener
		addr     string

		// Token store, keyed by token value.
		tokens  map[TokenValue]*Token
		tokenMu sync.RWMutex

		clock  testutil.Clock
		logger *log.Logger
	}
)

// IsValid returns whether the Config has valid fields: a usable Host, a
// Port inside the TCP range, and a DefaultShell that is not whitespace-only
// (empty means the built-in default).
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Host.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Port.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.DefaultShell != "" && strings.TrimSpace(c.DefaultShell) == "" {
		errs = append(errs, fmt.Errorf("default shell must not be whitespace-only"))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidServerConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// DefaultConfig returns the server defaults. They match the callback
// section of the app configuration.
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            0,
		TokenTTL:        time.Hour,
		ShutdownTimeout: 10 * time.Second,
		DefaultShell:    "/bin/sh",
		StartupTimeout:  5 * time.Second,
	}
}

// New creates a callback server. The server is not started; call Start to
// begin accepting connections.
func New(cfg Config) *Server {
	return NewWithClock(cfg, testutil.RealClock{})
}

// NewWithClock creates a callback server with an explicit clock. Tests use
// a FakeClock to exercise token expiry deterministically.
func NewWithClock(cfg Config, clock testutil.Clock) *Server {
	// Apply defaults.
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.DefaultShell == "" {
		cfg.DefaultShell = "/bin/sh"
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = 5 * time.Second
	}

	return &Server{
		lc:     newLifecycle(),
		cfg:    cfg,
		tokens: make(map[TokenValue]*Token),
		clock:  clock,
		logger: log.NewWithOptions(os.Stderr, log.Options{Prefix: "hostcall"}),
	}
}
