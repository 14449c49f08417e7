package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSession means a session token failed verification.
var ErrInvalidSession = errors.New("invalid session")

// SessionVerifier checks HS256 session tokens minted by the host identity
// system. The subject claim is the user id.
type SessionVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewSessionVerifier creates a verifier. An empty secret yields nil, which
// disables session auth on the wire.
func NewSessionVerifier(secret, issuer string) *SessionVerifier {
	if secret == "" {
		return nil
	}
	return &SessionVerifier{secret: []byte(secret), issuer: issuer, leeway: 30 * time.Second}
}

// Verify parses and validates a session token.
func (v *SessionVerifier) Verify(raw string) (*Session, error) {
	if v == nil {
		return nil, ErrInvalidSession
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidSession)
	}
	return &Session{UserID: claims.Subject}, nil
}

// Sign mints a session token. Used by tests and local tooling standing in
// for the host identity system.
func (v *SessionVerifier) Sign(userID string, ttl time.Duration) (string, error) {
	if v == nil {
		return "", ErrInvalidSession
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
