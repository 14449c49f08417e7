package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pario-ai/promptgate/pkg/ledger"
	"github.com/pario-ai/promptgate/pkg/models"
)

const timeLayout = "2006-01-02 15:04:05"

func formatTokens(toks []models.APIToken) string {
	if len(toks) == 0 {
		return "No tokens found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-20s %-20s %-20s\n", "ID", "NAME", "CREATED", "REVOKED")
	b.WriteString(strings.Repeat("-", 101) + "\n")
	for _, t := range toks {
		revoked := "-"
		if t.RevokedAt != nil {
			revoked = t.RevokedAt.Format(timeLayout)
		}
		fmt.Fprintf(&b, "%-38s %-20s %-20s %-20s\n",
			t.ID, t.Name, t.CreatedAt.Format(timeLayout), revoked)
	}
	return b.String()
}

func formatCredentials(creds []models.ProviderCredential) string {
	if len(creds) == 0 {
		return "No credentials found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-12s %-20s %-20s\n", "ID", "PROVIDER", "SCOPE", "UPDATED")
	b.WriteString(strings.Repeat("-", 93) + "\n")
	for _, c := range creds {
		scope := scopeGlobal
		if c.UserID != nil {
			scope = scopeUser + ":" + *c.UserID
		}
		fmt.Fprintf(&b, "%-38s %-12s %-20s %-20s\n",
			c.ID, c.Provider, scope, c.UpdatedAt.Format(timeLayout))
	}
	return b.String()
}

func formatTerms(terms []models.BlacklistTerm) string {
	if len(terms) == 0 {
		return "No blacklist terms found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-10s %s\n", "ID", "RISK", "TERM")
	b.WriteString(strings.Repeat("-", 70) + "\n")
	for _, t := range terms {
		fmt.Fprintf(&b, "%-38s %-10s %s\n", t.ID, t.RiskType, t.Term)
	}
	return b.String()
}

func joinRisks(risks []models.RiskType) string {
	if len(risks) == 0 {
		return "-"
	}
	parts := make([]string, len(risks))
	for i, r := range risks {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

func formatLogEntries(entries []models.LogEntry) string {
	if len(entries) == 0 {
		return "No ledger entries found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-20s %-8s %5s %-20s %-3s %-20s\n",
		"ID", "USER", "DECISION", "SCORE", "RISKS", "FP", "TIME")
	b.WriteString(strings.Repeat("-", 120) + "\n")
	for _, e := range entries {
		fp := ""
		if e.IsFalsePositive {
			fp = "yes"
		}
		fmt.Fprintf(&b, "%-38s %-20s %-8s %5d %-20s %-3s %-20s\n",
			e.ID, e.TriggeredByUserID, e.Decision, e.RiskScore,
			joinRisks(e.RiskTypes), fp, e.CreatedAt.Format(timeLayout))
	}
	return b.String()
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func formatRevealed(r *ledger.Revealed) string {
	e := r.Entry
	var b strings.Builder
	fmt.Fprintf(&b, "ID:            %s\n", e.ID)
	fmt.Fprintf(&b, "User:          %s\n", e.TriggeredByUserID)
	if e.EndUserID != nil {
		fmt.Fprintf(&b, "End user:      %s\n", *e.EndUserID)
	}
	fmt.Fprintf(&b, "Decision:      %s\n", e.Decision)
	fmt.Fprintf(&b, "Risk:          %s (score %d)\n", joinRisks(e.RiskTypes), e.RiskScore)
	if e.Model != nil {
		fmt.Fprintf(&b, "Model:         %s\n", *e.Model)
	}
	fmt.Fprintf(&b, "Tokens:        %s prompt / %s completion / %s total\n",
		optInt(e.PromptTokens), optInt(e.CompletionTokens), optInt(e.TotalTokens))
	if e.Failure != "" {
		fmt.Fprintf(&b, "Failure:       %s\n", e.Failure)
	}
	if e.IsFalsePositive {
		b.WriteString("False positive: yes\n")
	}
	fmt.Fprintf(&b, "Time:          %s\n", e.CreatedAt.Format(time.RFC3339))
	if len(e.Metadata) > 0 {
		fmt.Fprintf(&b, "Metadata:      %s\n", e.Metadata)
	}
	fmt.Fprintf(&b, "\n--- Prompt ---\n%s\n", r.Prompt)
	if r.Response != nil {
		fmt.Fprintf(&b, "\n--- Response ---\n%s\n", *r.Response)
	}
	return b.String()
}

func formatLedgerStats(s *models.LedgerStats) string {
	if s.Total == 0 {
		return "No ledger entries found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Total: %d\n\n", s.Total)
	fmt.Fprintf(&b, "%-12s %8s\n", "DECISION", "COUNT")
	b.WriteString(strings.Repeat("-", 21) + "\n")
	for _, d := range []models.Decision{models.DecisionAllow, models.DecisionMask, models.DecisionBlock} {
		fmt.Fprintf(&b, "%-12s %8d\n", d, s.ByDecision[d])
	}

	risks := make([]string, 0, len(s.ByRisk))
	for r := range s.ByRisk {
		risks = append(risks, string(r))
	}
	sort.Strings(risks)
	fmt.Fprintf(&b, "\n%-12s %8s\n", "RISK", "COUNT")
	b.WriteString(strings.Repeat("-", 21) + "\n")
	for _, r := range risks {
		fmt.Fprintf(&b, "%-12s %8d\n", r, s.ByRisk[models.RiskType(r)])
	}
	return b.String()
}
