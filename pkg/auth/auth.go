// Package auth resolves the caller identity of a request from a bearer API
// token or an established session.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pario-ai/promptgate/pkg/store"
)

// ErrUnauthorized means no valid caller identity could be resolved.
var ErrUnauthorized = errors.New("unauthorized")

// TokenPrefix marks raw API tokens.
const TokenPrefix = "pat_"

// Session is an identity established by the host identity system.
type Session struct {
	UserID string
}

// Credentials carries whatever the caller presented.
type Credentials struct {
	Bearer  string
	Session *Session
}

// Method names how an identity was resolved.
type Method string

const (
	MethodToken   Method = "token"
	MethodSession Method = "session"
)

// Identity is a resolved caller.
type Identity struct {
	UserID  string
	Method  Method
	TokenID string
}

// Resolver resolves credentials against the token store.
type Resolver struct {
	tokens store.TokenStore
	log    zerolog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(tokens store.TokenStore, log zerolog.Logger) *Resolver {
	return &Resolver{tokens: tokens, log: log.With().Str("component", "auth").Logger()}
}

// Resolve returns the caller identity. A presented bearer token is
// authoritative: if it does not resolve, the session is not consulted.
func (r *Resolver) Resolve(ctx context.Context, c Credentials) (Identity, error) {
	if c.Bearer != "" {
		return r.resolveToken(ctx, c.Bearer)
	}
	if c.Session != nil && c.Session.UserID != "" {
		r.log.Debug().Str("user_id", c.Session.UserID).Msg("auth via session")
		return Identity{UserID: c.Session.UserID, Method: MethodSession}, nil
	}
	return Identity{}, ErrUnauthorized
}

func (r *Resolver) resolveToken(ctx context.Context, raw string) (Identity, error) {
	hash := HashToken(raw)
	prefix := HashPrefix(hash)

	tok, err := r.tokens.FindTokenByHash(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		r.log.Warn().Str("hash_prefix", prefix).Msg("token not found")
		return Identity{}, ErrUnauthorized
	}
	if err != nil {
		r.log.Error().Err(err).Str("hash_prefix", prefix).Msg("token lookup failed")
		return Identity{}, fmt.Errorf("token lookup: %w", err)
	}
	if tok.Revoked() {
		r.log.Warn().Str("hash_prefix", prefix).Msg("token revoked")
		return Identity{}, ErrUnauthorized
	}

	r.log.Debug().Str("hash_prefix", prefix).Str("user_id", tok.UserID).Msg("token ok")
	return Identity{UserID: tok.UserID, Method: MethodToken, TokenID: tok.ID}, nil
}

// HashToken returns the sha256 hex digest of a raw token.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// HashPrefix returns the first 8 characters of a digest, the only part of a
// token that may appear in logs.
func HashPrefix(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}

// NewToken generates a raw token and its digest. The raw value must be shown
// to the caller once and never stored.
func NewToken() (raw, hash string, err error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	raw = TokenPrefix + base64.RawURLEncoding.EncodeToString(b)
	return raw, HashToken(raw), nil
}
