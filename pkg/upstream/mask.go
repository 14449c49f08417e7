package upstream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pario-ai/promptgate/pkg/models"
)

// MaskMarker prefixes every masked prompt.
const MaskMarker = "[MASKED] "

// MaskLength is the number of characters of the original prompt kept.
const MaskLength = 100

// MaskPrompt returns the marker followed by the first MaskLength characters
// of prompt.
func MaskPrompt(prompt string) string {
	r := []rune(prompt)
	if len(r) > MaskLength {
		r = r[:MaskLength]
	}
	return MaskMarker + string(r)
}

const explainSystem = "You are a compliance assistant who explains security policies to users."

// ExplanationMessages builds a request asking the model why a prompt was
// blocked. It carries only the risk tags and score, never the prompt.
func ExplanationMessages(riskTypes []models.RiskType, score int) []models.ChatMessage {
	tags, _ := json.Marshal(riskTypes)
	user := fmt.Sprintf("Explain concisely and empathetically why a user request was blocked given these risks: %s and a risk score of %d. "+
		"Give advice on rephrasing it without sensitive data or jailbreak attempts. Do not include any part of the request.", tags, score)
	return []models.ChatMessage{
		{Role: "system", Content: explainSystem},
		{Role: "user", Content: user},
	}
}

// FallbackExplanation is used when no explanation could be generated.
func FallbackExplanation(riskTypes []models.RiskType) string {
	names := make([]string, 0, len(riskTypes))
	for _, t := range riskTypes {
		names = append(names, string(t))
	}
	reason := strings.Join(names, ", ")
	if reason == "" {
		reason = "risks"
	}
	return fmt.Sprintf("Your request was blocked for security reasons (%s). Avoid including sensitive data or attempts to override instructions, and rephrase your question in general terms.", reason)
}
