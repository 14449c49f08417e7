// Package risk scans prompts for sensitive or adversarial content.
//
// Detection is lexical on purpose: a case-insensitive substring scan over a
// built-in term list plus the dynamic blacklist, and a few structural
// patterns for personal data. The result is deterministic for a given
// prompt and term list.
package risk

import (
	"regexp"
	"strings"

	"github.com/pario-ai/promptgate/pkg/models"
)

const (
	// TermWeight is added once per matching term.
	TermWeight = 10
	// PatternWeight is added once per matching pattern.
	PatternWeight = 15
)

// Result is the outcome of a scan.
type Result struct {
	RiskTypes []models.RiskType `json:"risk_types"`
	Score     int               `json:"score"`
}

// Has reports whether the result carries t.
func (r Result) Has(t models.RiskType) bool {
	for _, rt := range r.RiskTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// BuiltinTerms gives the engine coverage even with an empty blacklist.
var BuiltinTerms = []models.BlacklistTerm{
	{Term: "password", RiskType: models.RiskPII},
	{Term: "ssn", RiskType: models.RiskPII},
	{Term: "prompt injection", RiskType: models.RiskJailbreak},
	{Term: "ignore previous instructions", RiskType: models.RiskJailbreak},
}

type pattern struct {
	name string
	re   *regexp.Regexp
}

var piiPatterns = []pattern{
	{name: "national_id", re: regexp.MustCompile(`\b\d{3}[- ]?\d{2}[- ]?\d{4}\b`)},
	{name: "card_number", re: regexp.MustCompile(`\b\d{16}\b`)},
	{name: "email", re: regexp.MustCompile(`\b[\w.-]+@[\w.-]+\.[A-Za-z]{2,}\b`)},
}

// Detect scans prompt against the built-in terms, the given blacklist and
// the PII patterns.
func Detect(prompt string, blacklist []models.BlacklistTerm) Result {
	var res Result
	lower := strings.ToLower(prompt)

	scan := func(terms []models.BlacklistTerm) {
		for _, t := range terms {
			if t.Term == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(t.Term)) {
				res.add(t.RiskType, TermWeight)
			}
		}
	}
	scan(BuiltinTerms)
	scan(blacklist)

	for _, p := range piiPatterns {
		if p.re.MatchString(prompt) {
			res.add(models.RiskPII, PatternWeight)
		}
	}
	return res
}

func (r *Result) add(t models.RiskType, weight int) {
	r.Score += weight
	if !r.Has(t) {
		r.RiskTypes = append(r.RiskTypes, t)
	}
}
