// Package store defines the narrow persistence interfaces used by the
// gateway. Each interface exposes only what its consumer needs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/pario-ai/promptgate/pkg/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// TokenStore looks up API tokens by digest.
type TokenStore interface {
	FindTokenByHash(ctx context.Context, tokenHash string) (*models.APIToken, error)
}

// CredentialStore looks up sealed provider credentials. A nil userID selects
// the shared credential.
type CredentialStore interface {
	FindCredential(ctx context.Context, provider string, userID *string) (*models.ProviderCredential, error)
}

// BlacklistStore lists dynamic blacklist terms.
type BlacklistStore interface {
	ListTerms(ctx context.Context) ([]models.BlacklistTerm, error)
}

// LedgerStore appends audit entries.
type LedgerStore interface {
	AppendLogEntry(ctx context.Context, entry *models.LogEntry) error
}

// TokenAdmin manages API tokens.
type TokenAdmin interface {
	TokenStore
	CreateToken(ctx context.Context, tok *models.APIToken) error
	// RevokeToken sets revoked_at if it is not already set.
	RevokeToken(ctx context.Context, id string, at time.Time) error
	ListTokens(ctx context.Context, userID string) ([]models.APIToken, error)
}

// CredentialAdmin manages provider credentials.
type CredentialAdmin interface {
	CredentialStore
	UpsertCredential(ctx context.Context, cred *models.ProviderCredential) error
	DeleteCredential(ctx context.Context, id string) error
	// ListCredentials returns rows owned by userID plus shared rows.
	ListCredentials(ctx context.Context, userID string) ([]models.ProviderCredential, error)
}

// BlacklistAdmin manages blacklist terms.
type BlacklistAdmin interface {
	BlacklistStore
	AddTerm(ctx context.Context, term *models.BlacklistTerm) error
	RemoveTerm(ctx context.Context, id string) error
}

// LedgerReader queries the audit ledger.
type LedgerReader interface {
	QueryLogEntries(ctx context.Context, opts models.LedgerQueryOpts) ([]models.LogEntry, error)
	LedgerStats(ctx context.Context, since time.Time) (*models.LedgerStats, error)
	MarkFalsePositive(ctx context.Context, id string) error
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}

// Store is everything a SQL backend provides.
type Store interface {
	TokenAdmin
	CredentialAdmin
	BlacklistAdmin
	LedgerStore
	LedgerReader
	Close() error
}
