package sqlstore

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/promptgate/pkg/models"
	"github.com/pario-ai/promptgate/pkg/store"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, Postgres), mock
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: Postgres}
	assert.Equal(t, "a = $1 AND b = $2 LIMIT $3", pg.rebind("a = ? AND b = ? LIMIT ?"))
	lite := &Store{dialect: SQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestPostgresMigrate(t *testing.T) {
	s, mock := newMock(t)
	for range postgresSchema {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindTokenByHash(t *testing.T) {
	s, mock := newMock(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM api_tokens WHERE token_hash = $1")).
		WithArgs("digest").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "token_hash", "user_id", "created_at", "revoked_at"}).
			AddRow("t1", "ci", "digest", "u1", created, nil))

	tok, err := s.FindTokenByHash(context.Background(), "digest")
	require.NoError(t, err)
	assert.Equal(t, "u1", tok.UserID)
	assert.Nil(t, tok.RevokedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindCredentialShared(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE provider = $1 AND user_id IS NULL ORDER BY updated_at DESC LIMIT 1")).
		WithArgs("openai").
		WillReturnRows(sqlmock.NewRows([]string{"id", "provider", "key_ciphertext", "key_iv", "key_auth_tag", "user_id", "created_at", "updated_at"}))

	_, err := s.FindCredential(context.Background(), "openai", nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueryLogEntriesPlaceholders(t *testing.T) {
	s, mock := newMock(t)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("AND created_at >= $1 AND decision = $2 ORDER BY created_at DESC LIMIT $3")).
		WithArgs(from, "BLOCK", DefaultQueryLimit).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.QueryLogEntries(context.Background(), models.LedgerQueryOpts{From: from, Decision: models.DecisionBlock})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkFalsePositiveNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE log_entries SET is_false_positive = $1 WHERE id = $2")).
		WithArgs(true, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.MarkFalsePositive(context.Background(), "missing"), store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
