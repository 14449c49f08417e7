// Package upstream calls the LLM provider's chat-completion endpoint.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pario-ai/promptgate/pkg/models"
)

// DefaultTimeout bounds a single upstream call.
const DefaultTimeout = 20 * time.Second

const (
	completionsPath = "/v1/chat/completions"
	maxErrorBody    = 64 << 10
)

// ErrTimeout means the call did not complete within the gateway timeout.
var ErrTimeout = errors.New("upstream timeout")

// StatusError is a non-success upstream response. Body is for diagnosis
// only and must not be persisted.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Status)
}

// Completion is the parsed result of a call. Usage counters the provider
// did not report stay nil.
type Completion struct {
	Text             string
	Model            string
	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int
}

// Gateway issues single-attempt chat-completion calls.
type Gateway struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// New creates a Gateway for the provider at baseURL.
func New(baseURL string, opts ...Option) (*Gateway, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid provider URL %q", baseURL)
	}
	g := &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
		client:  http.DefaultClient,
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// Timeout returns the per-call timeout.
func (g *Gateway) Timeout() time.Duration {
	return g.timeout
}

// Invoke sends prompt as a single user message.
func (g *Gateway) Invoke(ctx context.Context, prompt, model, apiKey string) (*Completion, error) {
	return g.Complete(ctx, []models.ChatMessage{{Role: "user", Content: prompt}}, model, apiKey)
}

// Complete sends messages to the provider. It performs no retries; a
// timeout cancels the in-flight request and returns ErrTimeout.
func (g *Gateway) Complete(ctx context.Context, messages []models.ChatMessage, model, apiKey string) (*Completion, error) {
	body, err := json.Marshal(models.ChatCompletionRequest{Model: model, Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, g.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, g.classify(ctx, callCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if callCtx.Err() != nil && ctx.Err() == nil {
			return nil, ErrTimeout
		}
		return nil, &StatusError{Status: resp.StatusCode, Body: string(b)}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, g.classify(ctx, callCtx, fmt.Errorf("read response: %w", err))
	}

	var chat models.ChatCompletionResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c := &Completion{Model: chat.Model}
	if len(chat.Choices) > 0 {
		c.Text = chat.Choices[0].Message.Content
	}
	if chat.Usage != nil {
		c.PromptTokens = chat.Usage.PromptTokens
		c.CompletionTokens = chat.Usage.CompletionTokens
		c.TotalTokens = chat.Usage.TotalTokens
	}
	return c, nil
}

// classify maps a transport error to ErrTimeout when the gateway's own
// deadline fired. Cancellation by the caller is passed through.
func (g *Gateway) classify(parent, call context.Context, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("upstream call canceled: %w", parent.Err())
	}
	if errors.Is(call.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return fmt.Errorf("upstream request: %w", err)
}
