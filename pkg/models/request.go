package models

import "encoding/json"

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is an OpenAI-compatible chat completion request.
type ChatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

// ChatCompletionResponse is an OpenAI-compatible chat completion response.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice represents a single completion choice.
type Choice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// Usage represents token usage from an LLM response. Fields the provider
// omits stay nil.
type Usage struct {
	PromptTokens     *int `json:"prompt_tokens,omitempty"`
	CompletionTokens *int `json:"completion_tokens,omitempty"`
	TotalTokens      *int `json:"total_tokens,omitempty"`
}

// PromptRequest is the body accepted by both entry points.
type PromptRequest struct {
	Prompt   string          `json:"prompt"`
	Model    string          `json:"model,omitempty"`
	// Metadata is opaque caller JSON of any shape, stored with the ledger row.
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// PromptResponse is the result returned to callers.
type PromptResponse struct {
	Decision  Decision   `json:"decision"`
	Response  *string    `json:"response"`
	Analysis  *string    `json:"analysis,omitempty"`
	RiskTypes []RiskType `json:"riskTypes"`
	RiskScore int        `json:"riskScore"`
	LogID     string     `json:"logId"`
}
