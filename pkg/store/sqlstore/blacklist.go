package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pario-ai/promptgate/pkg/models"
)

// ListTerms returns every blacklist term.
func (s *Store) ListTerms(ctx context.Context) ([]models.BlacklistTerm, error) {
	rows, err := s.query(ctx, `SELECT id, term, risk_type FROM blacklist_terms ORDER BY term`)
	if err != nil {
		return nil, fmt.Errorf("list blacklist terms: %w", err)
	}
	defer rows.Close()

	var out []models.BlacklistTerm
	for rows.Next() {
		var t models.BlacklistTerm
		if err := rows.Scan(&t.ID, &t.Term, &t.RiskType); err != nil {
			return nil, fmt.Errorf("scan blacklist term: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AddTerm inserts a blacklist term.
func (s *Store) AddTerm(ctx context.Context, term *models.BlacklistTerm) error {
	term.Term = strings.TrimSpace(term.Term)
	if term.Term == "" {
		return fmt.Errorf("add blacklist term: term is empty")
	}
	if !term.RiskType.Valid() {
		return fmt.Errorf("add blacklist term: unknown risk type %q", term.RiskType)
	}
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	_, err := s.exec(ctx, `INSERT INTO blacklist_terms (id, term, risk_type) VALUES (?, ?, ?)`,
		term.ID, term.Term, string(term.RiskType))
	if err != nil {
		return fmt.Errorf("add blacklist term: %w", err)
	}
	return nil
}

// RemoveTerm deletes a blacklist term by id.
func (s *Store) RemoveTerm(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM blacklist_terms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove blacklist term: %w", err)
	}
	return affectedOrNotFound(res)
}
