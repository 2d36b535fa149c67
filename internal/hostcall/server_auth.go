// SPDX-License-Identifier: MPL-2.0

package hostcall

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/charmbracelet/ssh"
)

// GenerateToken mints a token scoped to one environment run.
func (s *Server) GenerateToken(envName string) (*Token, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	value := TokenValue(hex.EncodeToString(tokenBytes))
	now := s.clock.Now()

	token := &Token{
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
		EnvName:   envName,
	}

	s.tokenMu.Lock()
	s.tokens[value] = token
	s.tokenMu.Unlock()

	s.logger.Debug("generated callback token", "env", envName)

	return token, nil
}

// ConsumeToken validates a token and burns it: unknown, expired, and
// already-used values all fail. A token authenticates exactly one session.
func (s *Server) ConsumeToken(value TokenValue) (*Token, bool) {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	token, exists := s.tokens[value]
	if !exists {
		return nil, false
	}
	if s.clock.Now().After(token.ExpiresAt) {
		delete(s.tokens, value)
		return nil, false
	}
	if token.Used {
		return nil, false
	}

	token.Used = true
	return token, true
}

// RevokeToken invalidates a token.
func (s *Server) RevokeToken(value TokenValue) {
	s.tokenMu.Lock()
	delete(s.tokens, value)
	s.tokenMu.Unlock()
}

// RevokeTokensForEnv drops every token minted for an environment. The
// session calls it when the environment finishes, so host access ends with
// the environment run.
func (s *Server) RevokeTokensForEnv(envName string) {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	for value, token := range s.tokens {
		if token.EnvName == envName {
			delete(s.tokens, value)
		}
	}
}

// GetConnectionInfo mints a token for an environment run and returns the
// coordinates in-container commands need to reach the server. Returns an
// error if the server is not running.
func (s *Server) GetConnectionInfo(envName string) (*ConnectionInfo, error) {
	if !s.IsRunning() {
		return nil, fmt.Errorf("callback server is not running (state: %s)", s.Phase())
	}

	token, err := s.GenerateToken(envName)
	if err != nil {
		return nil, err
	}

	return &ConnectionInfo{
		Host:     s.cfg.Host.String(),
		Port:     s.Port(),
		Token:    token.Value,
		User:     CallbackUser,
		ExpireAt: token.ExpiresAt,
	}, nil
}

// cleanupExpiredTokens periodically removes expired tokens.
func (s *Server) cleanupExpiredTokens() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	ctx := s.lc.context()
	if ctx == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tokenMu.Lock()
			now := s.clock.Now()
			for value, token := range s.tokens {
				if now.After(token.ExpiresAt) {
					delete(s.tokens, value)
				}
			}
			s.tokenMu.Unlock()
		}
	}
}

// passwordHandler authenticates sessions against the token store. A
// successful attempt consumes the token.
func (s *Server) passwordHandler(ctx ssh.Context, password string) bool {
	token, ok := s.ConsumeToken(TokenValue(password))
	if !ok {
		s.logger.Warn("rejected callback authentication", "user", ctx.User())
		return false
	}

	// Stash the environment name for the session handlers.
	ctx.SetValue(envNameContextKey, token.EnvName)

	s.logger.Debug("callback session authenticated", "env", token.EnvName)
	return true
}

// publicKeyHandler rejects all public key authentication. Tokens are the
// only accepted credential.
func (s *Server) publicKeyHandler(ssh.Context, ssh.PublicKey) bool {
	return false
}
