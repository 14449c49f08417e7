package sqlstore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/promptgate/pkg/models"
	"github.com/pario-ai/promptgate/pkg/store"
)

func mustOpen(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), SQLite, filepath.Join(t.TempDir(), "promptgate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }
func intP(i int) *int         { return &i }

func sealed(tag string) models.Sealed {
	return models.Sealed{Ciphertext: "ct-" + tag, IV: "iv-" + tag, AuthTag: "tag-" + tag}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Dialect("mysql"), "x")
	assert.Error(t, err)
	_, err = Open(context.Background(), SQLite, "")
	assert.Error(t, err)
}

func TestMigrateIdempotent(t *testing.T) {
	s := mustOpen(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestTokenLifecycle(t *testing.T) {
	s := mustOpen(t)
	ctx := context.Background()

	tok := &models.APIToken{Name: "ci", TokenHash: "abc123", UserID: "u1"}
	require.NoError(t, s.CreateToken(ctx, tok))
	assert.NotEmpty(t, tok.ID)

	got, err := s.FindTokenByHash(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.False(t, got.Revoked())

	_, err = s.FindTokenByHash(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Duplicate digest violates the unique constraint.
	assert.Error(t, s.CreateToken(ctx, &models.APIToken{Name: "dup", TokenHash: "abc123", UserID: "u2"}))

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.RevokeToken(ctx, tok.ID, first))
	require.NoError(t, s.RevokeToken(ctx, tok.ID, first.Add(time.Hour)))

	got, err = s.FindTokenByHash(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, got.RevokedAt)
	assert.True(t, got.RevokedAt.Equal(first))

	assert.ErrorIs(t, s.RevokeToken(ctx, "nope", first), store.ErrNotFound)

	list, err := s.ListTokens(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, err = s.ListTokens(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCredentialOwnedAndShared(t *testing.T) {
	s := mustOpen(t)
	ctx := context.Background()

	shared := &models.ProviderCredential{Provider: "openai", Key: sealed("shared")}
	require.NoError(t, s.UpsertCredential(ctx, shared))
	owned := &models.ProviderCredential{Provider: "openai", Key: sealed("owned"), UserID: strPtr("u1")}
	require.NoError(t, s.UpsertCredential(ctx, owned))

	got, err := s.FindCredential(ctx, "openai", strPtr("u1"))
	require.NoError(t, err)
	assert.Equal(t, sealed("owned"), got.Key)
	assert.False(t, got.Shared())

	got, err = s.FindCredential(ctx, "openai", nil)
	require.NoError(t, err)
	assert.Equal(t, sealed("shared"), got.Key)
	assert.True(t, got.Shared())

	_, err = s.FindCredential(ctx, "openai", strPtr("u2"))
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.FindCredential(ctx, "anthropic", nil)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Upsert replaces the key in place.
	again := &models.ProviderCredential{Provider: "openai", Key: sealed("rotated"), UserID: strPtr("u1")}
	require.NoError(t, s.UpsertCredential(ctx, again))
	assert.Equal(t, owned.ID, again.ID)
	got, err = s.FindCredential(ctx, "openai", strPtr("u1"))
	require.NoError(t, err)
	assert.Equal(t, sealed("rotated"), got.Key)

	list, err := s.ListCredentials(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
	list, err = s.ListCredentials(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteCredential(ctx, owned.ID))
	assert.ErrorIs(t, s.DeleteCredential(ctx, owned.ID), store.ErrNotFound)
}

func TestUpsertCredentialRequiresSealedKey(t *testing.T) {
	s := mustOpen(t)
	err := s.UpsertCredential(context.Background(), &models.ProviderCredential{Provider: "openai"})
	assert.Error(t, err)
}

func TestBlacklistTerms(t *testing.T) {
	s := mustOpen(t)
	ctx := context.Background()

	term := &models.BlacklistTerm{Term: "  project-x ", RiskType: models.RiskOther}
	require.NoError(t, s.AddTerm(ctx, term))
	require.NoError(t, s.AddTerm(ctx, &models.BlacklistTerm{Term: "acme", RiskType: models.RiskToxicity}))
	assert.Error(t, s.AddTerm(ctx, &models.BlacklistTerm{Term: " ", RiskType: models.RiskOther}))
	assert.Error(t, s.AddTerm(ctx, &models.BlacklistTerm{Term: "x", RiskType: "BOGUS"}))

	terms, err := s.ListTerms(ctx)
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, "acme", terms[0].Term)
	assert.Equal(t, "project-x", terms[1].Term)
	assert.Equal(t, models.RiskOther, terms[1].RiskType)

	require.NoError(t, s.RemoveTerm(ctx, term.ID))
	assert.ErrorIs(t, s.RemoveTerm(ctx, term.ID), store.ErrNotFound)
}

func entry(id string, at time.Time, d models.Decision, risks ...models.RiskType) *models.LogEntry {
	return &models.LogEntry{
		ID:                id,
		CreatedAt:         at,
		TriggeredByUserID: "u1",
		Decision:          d,
		RiskTypes:         risks,
		RiskScore:         10 * len(risks),
		Prompt:            sealed(id),
	}
}

func TestLedgerAppendAndQuery(t *testing.T) {
	s := mustOpen(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	allow := entry("a", base, models.DecisionAllow)
	allow.Response = &models.Sealed{Ciphertext: "r", IV: "ri", AuthTag: "rt"}
	allow.Model = strPtr("gpt-4o-mini")
	allow.TotalTokens = intP(5)
	allow.EndUserID = strPtr("end-1")
	allow.Metadata = json.RawMessage(`{"endUserId":"end-1"}`)
	require.NoError(t, s.AppendLogEntry(ctx, allow))

	require.NoError(t, s.AppendLogEntry(ctx, entry("m", base.Add(time.Minute), models.DecisionMask, models.RiskPII)))
	blocked := entry("b", base.Add(2*time.Minute), models.DecisionBlock, models.RiskJailbreak, models.RiskPII)
	blocked.Response = &models.Sealed{Ciphertext: "e", IV: "ei", AuthTag: "et"}
	require.NoError(t, s.AppendLogEntry(ctx, blocked))

	all, err := s.QueryLogEntries(ctx, models.LedgerQueryOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "b", all[0].ID)
	assert.Equal(t, []models.RiskType{models.RiskJailbreak, models.RiskPII}, all[0].RiskTypes)

	got, err := s.QueryLogEntries(ctx, models.LedgerQueryOpts{ID: "a"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	a := got[0]
	assert.Equal(t, models.DecisionAllow, a.Decision)
	assert.Empty(t, a.RiskTypes)
	assert.Equal(t, sealed("a"), a.Prompt)
	require.NotNil(t, a.Response)
	assert.Equal(t, "r", a.Response.Ciphertext)
	assert.Equal(t, "gpt-4o-mini", *a.Model)
	assert.Nil(t, a.PromptTokens)
	assert.Equal(t, 5, *a.TotalTokens)
	assert.Equal(t, "end-1", *a.EndUserID)
	assert.JSONEq(t, `{"endUserId":"end-1"}`, string(a.Metadata))
	assert.True(t, a.CreatedAt.Equal(base))

	got, err = s.QueryLogEntries(ctx, models.LedgerQueryOpts{Decision: models.DecisionMask})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Response)

	got, err = s.QueryLogEntries(ctx, models.LedgerQueryOpts{Risk: models.RiskPII})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.QueryLogEntries(ctx, models.LedgerQueryOpts{Risk: models.RiskPII, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	got, err = s.QueryLogEntries(ctx, models.LedgerQueryOpts{From: base.Add(30 * time.Second), To: base.Add(90 * time.Second)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m", got[0].ID)
}

func TestLedgerStatsFlagAndCleanup(t *testing.T) {
	s := mustOpen(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendLogEntry(ctx, entry("old", base.Add(-48*time.Hour), models.DecisionAllow)))
	require.NoError(t, s.AppendLogEntry(ctx, entry("m", base, models.DecisionMask, models.RiskPII)))
	require.NoError(t, s.AppendLogEntry(ctx, entry("b", base.Add(time.Minute), models.DecisionBlock, models.RiskJailbreak, models.RiskPII)))

	stats, err := s.LedgerStats(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.ByDecision[models.DecisionMask])
	assert.Equal(t, int64(1), stats.ByDecision[models.DecisionBlock])
	assert.Equal(t, int64(2), stats.ByRisk[models.RiskPII])
	assert.Equal(t, int64(1), stats.ByRisk[models.RiskJailbreak])

	require.NoError(t, s.MarkFalsePositive(ctx, "m"))
	assert.ErrorIs(t, s.MarkFalsePositive(ctx, "zzz"), store.ErrNotFound)
	got, err := s.QueryLogEntries(ctx, models.LedgerQueryOpts{ID: "m"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsFalsePositive)

	n, err := s.Cleanup(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
