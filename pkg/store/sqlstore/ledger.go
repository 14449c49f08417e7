package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pario-ai/promptgate/pkg/models"
)

// DefaultQueryLimit caps ledger queries that set no limit.
const DefaultQueryLimit = 200

const logColumns = `id, created_at, triggered_by_user_id, end_user_id, client_id, metadata,
	decision, risk_types, risk_score,
	prompt_ciphertext, prompt_iv, prompt_auth_tag,
	response_ciphertext, response_iv, response_auth_tag,
	model, prompt_tokens, completion_tokens, total_tokens,
	is_false_positive, failure`

// AppendLogEntry inserts one ledger row.
func (s *Store) AppendLogEntry(ctx context.Context, e *models.LogEntry) error {
	risks := e.RiskTypes
	if risks == nil {
		risks = []models.RiskType{}
	}
	riskJSON, err := json.Marshal(risks)
	if err != nil {
		return fmt.Errorf("encode risk types: %w", err)
	}

	var metadata sql.NullString
	if len(e.Metadata) > 0 {
		metadata = sql.NullString{String: string(e.Metadata), Valid: true}
	}

	var resp models.Sealed
	if e.Response != nil {
		resp = *e.Response
	}
	hasResp := e.Response != nil

	_, err = s.exec(ctx,
		`INSERT INTO log_entries (`+logColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CreatedAt.UTC(), e.TriggeredByUserID, nullString(e.EndUserID), nullString(e.ClientID), metadata,
		string(e.Decision), string(riskJSON), e.RiskScore,
		e.Prompt.Ciphertext, e.Prompt.IV, e.Prompt.AuthTag,
		sql.NullString{String: resp.Ciphertext, Valid: hasResp},
		sql.NullString{String: resp.IV, Valid: hasResp},
		sql.NullString{String: resp.AuthTag, Valid: hasResp},
		nullString(e.Model), nullInt(e.PromptTokens), nullInt(e.CompletionTokens), nullInt(e.TotalTokens),
		e.IsFalsePositive, e.Failure,
	)
	if err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	return nil
}

// QueryLogEntries returns ledger rows newest first. The risk filter is
// applied after decoding each row's risk list.
func (s *Store) QueryLogEntries(ctx context.Context, opts models.LedgerQueryOpts) ([]models.LogEntry, error) {
	q := `SELECT ` + logColumns + ` FROM log_entries WHERE 1=1`
	var args []any

	if opts.ID != "" {
		q += " AND id = ?"
		args = append(args, opts.ID)
	}
	if !opts.From.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.From.UTC())
	}
	if !opts.To.IsZero() {
		q += " AND created_at <= ?"
		args = append(args, opts.To.UTC())
	}
	if opts.Decision != "" {
		q += " AND decision = ?"
		args = append(args, string(opts.Decision))
	}
	if opts.UserID != "" {
		q += " AND triggered_by_user_id = ?"
		args = append(args, opts.UserID)
	}

	q += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if opts.Risk == "" {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var out []models.LogEntry
	for rows.Next() {
		e, err := scanLogEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		if opts.Risk != "" && !e.HasRisk(opts.Risk) {
			continue
		}
		out = append(out, *e)
		if len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

// LedgerStats counts rows since the given time, by decision and risk type.
func (s *Store) LedgerStats(ctx context.Context, since time.Time) (*models.LedgerStats, error) {
	stats := &models.LedgerStats{
		ByDecision: make(map[models.Decision]int64),
		ByRisk:     make(map[models.RiskType]int64),
		Since:      since,
	}

	rows, err := s.query(ctx,
		`SELECT decision, risk_types FROM log_entries WHERE created_at >= ?`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("ledger stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var decision, riskJSON string
		if err := rows.Scan(&decision, &riskJSON); err != nil {
			return nil, fmt.Errorf("scan ledger stat: %w", err)
		}
		stats.Total++
		stats.ByDecision[models.Decision(decision)]++
		risks, err := decodeRisks(riskJSON)
		if err != nil {
			return nil, err
		}
		for _, r := range risks {
			stats.ByRisk[r]++
		}
	}
	return stats, rows.Err()
}

// MarkFalsePositive flags a ledger row. It is the only mutation a row
// accepts after it is written.
func (s *Store) MarkFalsePositive(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `UPDATE log_entries SET is_false_positive = ? WHERE id = ?`, true, id)
	if err != nil {
		return fmt.Errorf("mark false positive: %w", err)
	}
	return affectedOrNotFound(res)
}

// Cleanup deletes ledger rows created before the cutoff.
func (s *Store) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM log_entries WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("ledger cleanup: %w", err)
	}
	return res.RowsAffected()
}

func scanLogEntry(sc scanner) (*models.LogEntry, error) {
	var (
		e                           models.LogEntry
		endUser, client, metadata   sql.NullString
		decision, riskJSON          string
		respCT, respIV, respTag     sql.NullString
		model                       sql.NullString
		promptTok, complTok, totTok sql.NullInt64
	)
	if err := sc.Scan(
		&e.ID, &e.CreatedAt, &e.TriggeredByUserID, &endUser, &client, &metadata,
		&decision, &riskJSON, &e.RiskScore,
		&e.Prompt.Ciphertext, &e.Prompt.IV, &e.Prompt.AuthTag,
		&respCT, &respIV, &respTag,
		&model, &promptTok, &complTok, &totTok,
		&e.IsFalsePositive, &e.Failure,
	); err != nil {
		return nil, err
	}

	risks, err := decodeRisks(riskJSON)
	if err != nil {
		return nil, err
	}
	e.RiskTypes = risks
	e.Decision = models.Decision(decision)
	e.EndUserID = stringPtr(endUser)
	e.ClientID = stringPtr(client)
	if metadata.Valid && metadata.String != "" {
		e.Metadata = json.RawMessage(metadata.String)
	}
	if respCT.Valid {
		e.Response = &models.Sealed{Ciphertext: respCT.String, IV: respIV.String, AuthTag: respTag.String}
	}
	e.Model = stringPtr(model)
	e.PromptTokens = intPtr(promptTok)
	e.CompletionTokens = intPtr(complTok)
	e.TotalTokens = intPtr(totTok)
	return &e, nil
}

func decodeRisks(raw string) ([]models.RiskType, error) {
	var risks []models.RiskType
	if raw == "" {
		return risks, nil
	}
	if err := json.Unmarshal([]byte(raw), &risks); err != nil {
		return nil, fmt.Errorf("decode risk types: %w", err)
	}
	return risks, nil
}
