package models

// RiskType tags a category of risk found in a prompt.
type RiskType string

const (
	RiskPII       RiskType = "PII"
	RiskJailbreak RiskType = "JAILBREAK"
	RiskToxicity  RiskType = "TOXICITY"
	RiskOther     RiskType = "OTHER"
)

// Valid reports whether t is one of the known risk types.
func (t RiskType) Valid() bool {
	switch t {
	case RiskPII, RiskJailbreak, RiskToxicity, RiskOther:
		return true
	}
	return false
}

// Decision is the disposition assigned to a prompt.
type Decision string

const (
	DecisionAllow Decision = "ALLOW"
	DecisionMask  Decision = "MASK"
	DecisionBlock Decision = "BLOCK"
)

// Severity orders decisions: ALLOW < MASK < BLOCK. Unknown values sort first.
func (d Decision) Severity() int {
	switch d {
	case DecisionAllow:
		return 1
	case DecisionMask:
		return 2
	case DecisionBlock:
		return 3
	}
	return 0
}

// Valid reports whether d is one of the known decisions.
func (d Decision) Valid() bool {
	return d.Severity() > 0
}

// BlacklistTerm is a dynamic term matched case-insensitively against prompts.
type BlacklistTerm struct {
	ID       string   `json:"id"`
	Term     string   `json:"term"`
	RiskType RiskType `json:"risk_type"`
}
