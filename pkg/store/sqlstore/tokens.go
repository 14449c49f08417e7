package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pario-ai/promptgate/pkg/models"
	"github.com/pario-ai/promptgate/pkg/store"
)

const tokenColumns = `id, name, token_hash, user_id, created_at, revoked_at`

// FindTokenByHash returns the token with the given digest.
func (s *Store) FindTokenByHash(ctx context.Context, tokenHash string) (*models.APIToken, error) {
	row := s.queryRow(ctx, `SELECT `+tokenColumns+` FROM api_tokens WHERE token_hash = ?`, tokenHash)
	t, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find token: %w", err)
	}
	return t, nil
}

// CreateToken inserts a token. ID and CreatedAt are filled when empty.
func (s *Store) CreateToken(ctx context.Context, tok *models.APIToken) error {
	if tok.TokenHash == "" || tok.UserID == "" {
		return fmt.Errorf("create token: token hash and user id are required")
	}
	if tok.ID == "" {
		tok.ID = uuid.NewString()
	}
	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = s.timestamp()
	}
	_, err := s.exec(ctx,
		`INSERT INTO api_tokens (id, name, token_hash, user_id, created_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tok.ID, tok.Name, tok.TokenHash, tok.UserID, tok.CreatedAt.UTC(), nullTime(tok.RevokedAt),
	)
	if err != nil {
		return fmt.Errorf("create token: %w", err)
	}
	return nil
}

// RevokeToken stamps revoked_at once; revoking again keeps the first time.
func (s *Store) RevokeToken(ctx context.Context, id string, at time.Time) error {
	res, err := s.exec(ctx,
		`UPDATE api_tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		at.UTC(), id)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}

	var exists int
	err = s.queryRow(ctx, `SELECT COUNT(*) FROM api_tokens WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if exists == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListTokens returns a user's tokens, newest first.
func (s *Store) ListTokens(ctx context.Context, userID string) ([]models.APIToken, error) {
	rows, err := s.query(ctx,
		`SELECT `+tokenColumns+` FROM api_tokens WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var out []models.APIToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanToken(sc scanner) (*models.APIToken, error) {
	var t models.APIToken
	var revoked sql.NullTime
	if err := sc.Scan(&t.ID, &t.Name, &t.TokenHash, &t.UserID, &t.CreatedAt, &revoked); err != nil {
		return nil, err
	}
	if revoked.Valid {
		r := revoked.Time
		t.RevokedAt = &r
	}
	return &t, nil
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: p.UTC(), Valid: true}
}
