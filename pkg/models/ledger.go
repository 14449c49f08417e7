package models

import (
	"encoding/json"
	"time"
)

// LogEntry is one immutable audit record per pipeline invocation.
type LogEntry struct {
	ID                string          `json:"id"`
	CreatedAt         time.Time       `json:"created_at"`
	TriggeredByUserID string          `json:"triggered_by_user_id"`
	EndUserID         *string         `json:"end_user_id,omitempty"`
	ClientID          *string         `json:"client_id,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	Decision          Decision        `json:"decision"`
	RiskTypes         []RiskType      `json:"risk_types"`
	RiskScore         int             `json:"risk_score"`
	Prompt            Sealed          `json:"-"`
	Response          *Sealed         `json:"-"`
	Model             *string         `json:"model,omitempty"`
	PromptTokens      *int            `json:"prompt_tokens,omitempty"`
	CompletionTokens  *int            `json:"completion_tokens,omitempty"`
	TotalTokens       *int            `json:"total_tokens,omitempty"`
	IsFalsePositive   bool            `json:"is_false_positive"`
	// Failure holds the error kind when a failed attempt was recorded.
	Failure string `json:"failure,omitempty"`
}

// HasRisk reports whether the entry carries the given tag.
func (e LogEntry) HasRisk(t RiskType) bool {
	for _, r := range e.RiskTypes {
		if r == t {
			return true
		}
	}
	return false
}

// LedgerQueryOpts filters ledger queries.
type LedgerQueryOpts struct {
	ID       string
	From     time.Time
	To       time.Time
	Decision Decision
	Risk     RiskType
	UserID   string
	Limit    int
}

// LedgerStats aggregates ledger rows.
type LedgerStats struct {
	Total      int64              `json:"total"`
	ByDecision map[Decision]int64 `json:"by_decision"`
	ByRisk     map[RiskType]int64 `json:"by_risk"`
	Since      time.Time          `json:"since"`
}
