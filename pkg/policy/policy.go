// Package policy maps risk evidence to a disposition.
package policy

import "github.com/pario-ai/promptgate/pkg/models"

const (
	// BlockScore is the score at or above which a prompt is blocked.
	BlockScore = 25
	// MaskScore is the score at or above which a prompt is masked.
	MaskScore = 10
)

// Decide returns BLOCK for score >= 25 or any JAILBREAK tag, MASK for
// score >= 10 or any PII tag, and ALLOW otherwise.
func Decide(score int, riskTypes []models.RiskType) models.Decision {
	if score >= BlockScore || contains(riskTypes, models.RiskJailbreak) {
		return models.DecisionBlock
	}
	if score >= MaskScore || contains(riskTypes, models.RiskPII) {
		return models.DecisionMask
	}
	return models.DecisionAllow
}

func contains(types []models.RiskType, t models.RiskType) bool {
	for _, rt := range types {
		if rt == t {
			return true
		}
	}
	return false
}
