package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pario-ai/promptgate/pkg/models"
	"github.com/pario-ai/promptgate/pkg/store"
)

const credentialColumns = `id, provider, key_ciphertext, key_iv, key_auth_tag, user_id, created_at, updated_at`

// FindCredential returns the most recently updated credential for provider
// owned by userID, or the shared credential when userID is nil.
func (s *Store) FindCredential(ctx context.Context, provider string, userID *string) (*models.ProviderCredential, error) {
	q := `SELECT ` + credentialColumns + ` FROM provider_credentials WHERE provider = ?`
	args := []any{provider}
	if userID == nil {
		q += " AND user_id IS NULL"
	} else {
		q += " AND user_id = ?"
		args = append(args, *userID)
	}
	q += " ORDER BY updated_at DESC LIMIT 1"

	c, err := scanCredential(s.queryRow(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return c, nil
}

// UpsertCredential replaces the sealed key of the (provider, user) row or
// inserts a new one. The key must already be sealed.
func (s *Store) UpsertCredential(ctx context.Context, cred *models.ProviderCredential) error {
	if cred.Provider == "" || cred.Key.IsZero() {
		return fmt.Errorf("upsert credential: provider and sealed key are required")
	}
	now := s.timestamp()

	existing, err := s.FindCredential(ctx, cred.Provider, cred.UserID)
	switch {
	case err == nil:
		_, err = s.exec(ctx,
			`UPDATE provider_credentials
			SET key_ciphertext = ?, key_iv = ?, key_auth_tag = ?, updated_at = ?
			WHERE id = ?`,
			cred.Key.Ciphertext, cred.Key.IV, cred.Key.AuthTag, now, existing.ID)
		if err != nil {
			return fmt.Errorf("update credential: %w", err)
		}
		cred.ID = existing.ID
		cred.CreatedAt = existing.CreatedAt
		cred.UpdatedAt = now
		return nil
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("upsert credential: %w", err)
	}

	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	cred.CreatedAt, cred.UpdatedAt = now, now
	_, err = s.exec(ctx,
		`INSERT INTO provider_credentials (`+credentialColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cred.ID, cred.Provider, cred.Key.Ciphertext, cred.Key.IV, cred.Key.AuthTag,
		nullString(cred.UserID), cred.CreatedAt, cred.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// DeleteCredential removes a credential by id.
func (s *Store) DeleteCredential(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM provider_credentials WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return affectedOrNotFound(res)
}

// ListCredentials returns credentials owned by userID and shared ones.
func (s *Store) ListCredentials(ctx context.Context, userID string) ([]models.ProviderCredential, error) {
	rows, err := s.query(ctx,
		`SELECT `+credentialColumns+` FROM provider_credentials
		WHERE user_id = ? OR user_id IS NULL ORDER BY provider, updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []models.ProviderCredential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanCredential(sc scanner) (*models.ProviderCredential, error) {
	var c models.ProviderCredential
	var user sql.NullString
	if err := sc.Scan(&c.ID, &c.Provider, &c.Key.Ciphertext, &c.Key.IV, &c.Key.AuthTag,
		&user, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.UserID = stringPtr(user)
	return &c, nil
}
