// Package ledger writes the encrypted audit trail: one immutable row per
// gateway invocation, with the prompt and any response sealed by the vault.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pario-ai/promptgate/pkg/models"
	"github.com/pario-ai/promptgate/pkg/store"
	"github.com/pario-ai/promptgate/pkg/vault"
)

// ErrWriteFailed means the ledger row could not be persisted.
var ErrWriteFailed = errors.New("ledger write failed")

// endUserKey is the metadata field copied into LogEntry.EndUserID.
const endUserKey = "endUserId"

// Fields is the plaintext material of one ledger row.
type Fields struct {
	UserID           string
	Metadata         json.RawMessage
	Decision         models.Decision
	RiskTypes        []models.RiskType
	RiskScore        int
	Prompt           string
	Response         *string
	// Model is the model the request resolved to, the default when the
	// caller named none.
	Model            *string
	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int
	Failure          string
}

// Ledger seals and appends ledger rows.
type Ledger struct {
	vault *vault.Vault
	store store.LedgerStore
	now   func() time.Time
	log   zerolog.Logger
}

// New creates a Ledger.
func New(v *vault.Vault, s store.LedgerStore, log zerolog.Logger) *Ledger {
	return &Ledger{
		vault: v,
		store: s,
		now:   time.Now,
		log:   log.With().Str("component", "ledger").Logger(),
	}
}

// Record seals f and appends it, returning the new row id. Nothing is
// written if sealing fails.
func (l *Ledger) Record(ctx context.Context, f Fields) (string, error) {
	prompt, err := l.vault.SealString(f.Prompt)
	if err != nil {
		return "", fmt.Errorf("seal prompt: %w", err)
	}

	var response *models.Sealed
	if f.Response != nil {
		s, err := l.vault.SealString(*f.Response)
		if err != nil {
			return "", fmt.Errorf("seal response: %w", err)
		}
		response = &s
	}

	risks := make([]models.RiskType, len(f.RiskTypes))
	copy(risks, f.RiskTypes)

	e := &models.LogEntry{
		ID:                uuid.NewString(),
		CreatedAt:         l.now().UTC(),
		TriggeredByUserID: f.UserID,
		Decision:          f.Decision,
		RiskTypes:         risks,
		RiskScore:         f.RiskScore,
		Prompt:            prompt,
		Response:          response,
		Model:             f.Model,
		PromptTokens:      f.PromptTokens,
		CompletionTokens:  f.CompletionTokens,
		TotalTokens:       f.TotalTokens,
		Failure:           f.Failure,
	}
	if meta := bytes.TrimSpace(f.Metadata); len(meta) > 0 && !bytes.Equal(meta, []byte("null")) {
		if !json.Valid(meta) {
			return "", fmt.Errorf("encode metadata: invalid JSON")
		}
		e.Metadata = append(json.RawMessage(nil), meta...)
		e.EndUserID = endUser(meta)
	}

	if err := l.store.AppendLogEntry(ctx, e); err != nil {
		l.log.Error().Err(err).Str("log_id", e.ID).Msg("ledger append failed")
		return "", ErrWriteFailed
	}
	l.log.Debug().
		Str("log_id", e.ID).
		Str("decision", string(e.Decision)).
		Int("risk_score", e.RiskScore).
		Msg("ledger entry recorded")
	return e.ID, nil
}

// endUser returns metadata.endUserId when metadata is an object holding a
// non-empty string there.
func endUser(meta json.RawMessage) *string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(meta, &obj); err != nil {
		return nil
	}
	var v string
	if err := json.Unmarshal(obj[endUserKey], &v); err != nil || v == "" {
		return nil
	}
	return &v
}

// Revealed is a ledger row with its sealed fields opened.
type Revealed struct {
	Entry    models.LogEntry
	Prompt   string
	Response *string
}

// Reveal opens the sealed prompt and response of e.
func (l *Ledger) Reveal(e models.LogEntry) (*Revealed, error) {
	prompt, err := l.vault.OpenString(e.Prompt)
	if err != nil {
		return nil, fmt.Errorf("open prompt: %w", err)
	}
	r := &Revealed{Entry: e, Prompt: prompt}
	if e.Response != nil {
		resp, err := l.vault.OpenString(*e.Response)
		if err != nil {
			return nil, fmt.Errorf("open response: %w", err)
		}
		r.Response = &resp
	}
	return r, nil
}
