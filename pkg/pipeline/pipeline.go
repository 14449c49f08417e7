// Package pipeline composes authentication, risk detection, the decision
// policy, the upstream call and the audit ledger into one request-scoped
// flow. Both entry adapters call Run.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pario-ai/promptgate/pkg/auth"
	"github.com/pario-ai/promptgate/pkg/ledger"
	"github.com/pario-ai/promptgate/pkg/metrics"
	"github.com/pario-ai/promptgate/pkg/models"
	"github.com/pario-ai/promptgate/pkg/policy"
	"github.com/pario-ai/promptgate/pkg/risk"
	"github.com/pario-ai/promptgate/pkg/store"
	"github.com/pario-ai/promptgate/pkg/upstream"
	"github.com/pario-ai/promptgate/pkg/vault"
)

const (
	// DefaultProvider names the credential row looked up when Config.Provider
	// is empty.
	DefaultProvider = "openai"
	// DefaultModel is sent upstream, and recorded, when a request names no
	// model and Config.DefaultModel is empty.
	DefaultModel    = "gpt-4o-mini"
)

// Authenticator resolves caller identity.
type Authenticator interface {
	Resolve(ctx context.Context, c auth.Credentials) (auth.Identity, error)
}

// Upstream is the provider call site.
type Upstream interface {
	Invoke(ctx context.Context, prompt, model, apiKey string) (*upstream.Completion, error)
	Complete(ctx context.Context, messages []models.ChatMessage, model, apiKey string) (*upstream.Completion, error)
}

// Recorder appends ledger rows.
type Recorder interface {
	Record(ctx context.Context, f ledger.Fields) (string, error)
}

// ExplainConfig controls the explanation generated for blocked prompts.
type ExplainConfig struct {
	// Enabled asks the provider for an explanation. When false the fixed
	// fallback text is used.
	Enabled bool
	// SkipOnCredentialFailure falls back to the fixed text when the
	// credential cannot be decrypted. When false, a decryption failure
	// fails the request as it would on the forwarding path.
	SkipOnCredentialFailure bool
}

// Config holds pipeline behaviour switches.
type Config struct {
	Provider     string
	DefaultModel string
	// LogFailedAttempts records a ledger row, without a response, when the
	// request fails after a decision was reached.
	LogFailedAttempts bool
	// SharedCredentialFallback uses the shared credential when the caller
	// has none of their own.
	SharedCredentialFallback bool
	Explain                  ExplainConfig
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		Provider:                 DefaultProvider,
		DefaultModel:             DefaultModel,
		SharedCredentialFallback: true,
		Explain: ExplainConfig{
			Enabled:                 true,
			SkipOnCredentialFailure: true,
		},
	}
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Auth        Authenticator
	Blacklist   store.BlacklistStore
	Credentials store.CredentialStore
	Vault       *vault.Vault
	Upstream    Upstream
	Ledger      Recorder
	Metrics     *metrics.Metrics
	Log         zerolog.Logger
}

// Request is one inbound prompt with whatever credentials the caller sent.
// An empty Model resolves to the configured default, and the ledger row
// records the resolved model. Metadata is stored as given when it is valid
// JSON.
type Request struct {
	Credentials auth.Credentials
	Prompt      string
	Model       string
	Metadata    json.RawMessage
}

// Result is the outcome of a successful run. Response is nil exactly when
// the decision is BLOCK; Analysis is set only then.
type Result struct {
	Decision  models.Decision
	Response  *string
	Analysis  *string
	RiskTypes []models.RiskType
	RiskScore int
	LogID     string
	UserID    string
}

// Pipeline runs requests. It holds no per-request state and is safe for
// concurrent use.
type Pipeline struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger
	now  func() time.Time
}

// New validates deps and creates a Pipeline. A nil vault is a fatal
// configuration error.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Vault == nil {
		return nil, vault.ErrMissingSecret
	}
	if deps.Auth == nil || deps.Blacklist == nil || deps.Credentials == nil || deps.Upstream == nil || deps.Ledger == nil {
		return nil, errors.New("pipeline: missing dependency")
	}
	if cfg.Provider == "" {
		cfg.Provider = DefaultProvider
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModel
	}
	return &Pipeline{
		cfg:  cfg,
		deps: deps,
		log:  deps.Log.With().Str("component", "pipeline").Logger(),
		now:  time.Now,
	}, nil
}

// invocation carries the evidence gathered so far for one request.
type invocation struct {
	req      Request
	identity auth.Identity
	model    string
	detected risk.Result
	decision models.Decision
}

// Run processes one request and writes exactly one ledger row on success.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	start := p.now()
	res, err := p.run(ctx, req)
	p.deps.Metrics.ObserveRequest(p.now().Sub(start))
	if err != nil {
		p.deps.Metrics.ObserveFailure(string(KindOf(err)))
	}
	return res, err
}

func (p *Pipeline) run(ctx context.Context, req Request) (*Result, error) {
	r := &invocation{req: req}

	// Authenticating
	id, err := p.deps.Auth.Resolve(ctx, req.Credentials)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			return nil, fail(KindUnauthorized, StateAuthenticating, err)
		}
		return nil, fail(KindInternal, StateAuthenticating, err)
	}
	r.identity = id
	log := p.log.With().Str("user_id", id.UserID).Str("auth", string(id.Method)).Logger()

	// Scanning
	if req.Prompt == "" {
		return nil, fail(KindValidation, StateScanning, errors.New("invalid prompt"))
	}
	if len(req.Metadata) > 0 && !json.Valid(req.Metadata) {
		return nil, fail(KindValidation, StateScanning, errors.New("invalid metadata"))
	}
	terms, err := p.deps.Blacklist.ListTerms(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("blacklist unavailable, scanning with built-in terms")
		terms = nil
	}
	r.detected = risk.Detect(req.Prompt, terms)

	// Deciding
	r.decision = policy.Decide(r.detected.Score, r.detected.RiskTypes)
	r.model = req.Model
	if r.model == "" {
		r.model = p.cfg.DefaultModel
	}
	p.deps.Metrics.ObserveDecision(r.decision, r.detected.RiskTypes)

	fields := ledger.Fields{
		UserID:    id.UserID,
		Metadata:  req.Metadata,
		Decision:  r.decision,
		RiskTypes: r.detected.RiskTypes,
		RiskScore: r.detected.Score,
		Prompt:    req.Prompt,
		Model:     &r.model,
	}
	result := &Result{
		Decision:  r.decision,
		RiskTypes: r.detected.RiskTypes,
		RiskScore: r.detected.Score,
		UserID:    id.UserID,
	}

	if r.decision == models.DecisionBlock {
		// Explaining
		analysis, err := p.explain(ctx, r, log)
		if err != nil {
			return nil, p.recordFailure(ctx, fields, err, log)
		}
		result.Analysis = &analysis
		fields.Response = &analysis
	} else {
		// Fetching
		c, err := p.fetch(ctx, r)
		if err != nil {
			return nil, p.recordFailure(ctx, fields, err, log)
		}
		text := c.Text
		result.Response = &text
		fields.Response = &text
		fields.PromptTokens = c.PromptTokens
		fields.CompletionTokens = c.CompletionTokens
		fields.TotalTokens = c.TotalTokens
	}

	// Recording
	logID, err := p.deps.Ledger.Record(ctx, fields)
	if err != nil {
		return nil, recordError(err)
	}
	result.LogID = logID

	log.Info().
		Str("decision", string(r.decision)).
		Strs("risk_types", riskStrings(r.detected.RiskTypes)).
		Int("risk_score", r.detected.Score).
		Int("prompt_len", len(req.Prompt)).
		Str("log_id", logID).
		Msg("prompt processed")
	return result, nil
}

// fetch forwards the prompt, masked under MASK, with the caller's key.
func (p *Pipeline) fetch(ctx context.Context, r *invocation) (*upstream.Completion, error) {
	key, err := p.providerKey(ctx, r.identity.UserID, StateFetching)
	if err != nil {
		return nil, err
	}

	text := r.req.Prompt
	if r.decision == models.DecisionMask {
		text = upstream.MaskPrompt(text)
	}

	start := p.now()
	c, err := p.deps.Upstream.Invoke(ctx, text, r.model, key)
	elapsed := p.now().Sub(start)
	if err != nil {
		kind := upstreamKind(err)
		p.deps.Metrics.ObserveUpstream("completion", upstreamStatus(kind), elapsed)
		return nil, fail(kind, StateFetching, err)
	}
	p.deps.Metrics.ObserveUpstream("completion", "ok", elapsed)
	return c, nil
}

// explain produces the user-facing text for a blocked prompt. Provider
// failures fall back to a fixed template; only a credential decryption
// failure can be fatal, and only when configured so.
func (p *Pipeline) explain(ctx context.Context, r *invocation, log zerolog.Logger) (string, error) {
	fallback := upstream.FallbackExplanation(r.detected.RiskTypes)
	if !p.cfg.Explain.Enabled {
		return fallback, nil
	}

	key, err := p.providerKey(ctx, r.identity.UserID, StateExplaining)
	if err != nil {
		kind := KindOf(err)
		if kind == KindDecryptionFailed && !p.cfg.Explain.SkipOnCredentialFailure {
			return "", err
		}
		if kind == KindMissingSecret {
			return "", err
		}
		log.Debug().Str("kind", string(kind)).Msg("explanation skipped, using fallback")
		return fallback, nil
	}

	start := p.now()
	c, err := p.deps.Upstream.Complete(ctx, upstream.ExplanationMessages(r.detected.RiskTypes, r.detected.Score), r.model, key)
	elapsed := p.now().Sub(start)
	if err != nil {
		p.deps.Metrics.ObserveUpstream("explanation", upstreamStatus(upstreamKind(err)), elapsed)
		log.Warn().Err(err).Msg("explanation call failed, using fallback")
		return fallback, nil
	}
	p.deps.Metrics.ObserveUpstream("explanation", "ok", elapsed)
	if c.Text == "" {
		return fallback, nil
	}
	return c.Text, nil
}

// providerKey finds and opens the caller's credential, then the shared one
// when fallback is enabled.
func (p *Pipeline) providerKey(ctx context.Context, userID string, state State) (string, error) {
	cred, err := p.deps.Credentials.FindCredential(ctx, p.cfg.Provider, &userID)
	if errors.Is(err, store.ErrNotFound) && p.cfg.SharedCredentialFallback {
		cred, err = p.deps.Credentials.FindCredential(ctx, p.cfg.Provider, nil)
	}
	if errors.Is(err, store.ErrNotFound) {
		return "", fail(KindCredentialUnavailable, state, fmt.Errorf("no %s key configured for user", p.cfg.Provider))
	}
	if err != nil {
		return "", fail(KindInternal, state, fmt.Errorf("credential lookup: %w", err))
	}

	key, err := p.deps.Vault.OpenString(cred.Key)
	switch {
	case errors.Is(err, vault.ErrMissingSecret):
		return "", fail(KindMissingSecret, state, err)
	case err != nil:
		p.log.Error().Str("credential_id", cred.ID).Msg("provider key decryption failed")
		return "", fail(KindDecryptionFailed, state, vault.ErrDecryptionFailed)
	case key == "":
		return "", fail(KindCredentialUnavailable, state, errors.New("provider key is empty"))
	}
	return key, nil
}

// recordFailure optionally writes a response-less ledger row for a failure
// reached after the decision, then returns the original error.
func (p *Pipeline) recordFailure(ctx context.Context, f ledger.Fields, cause error, log zerolog.Logger) error {
	kind := KindOf(cause)
	log.Warn().Str("kind", string(kind)).Str("decision", string(f.Decision)).Msg("prompt failed")
	if !p.cfg.LogFailedAttempts || kind == KindMissingSecret {
		return cause
	}
	f.Response = nil
	f.Failure = string(kind)
	if _, err := p.deps.Ledger.Record(ctx, f); err != nil {
		log.Error().Err(err).Msg("failed attempt not recorded")
	}
	return cause
}

func recordError(err error) error {
	if errors.Is(err, vault.ErrMissingSecret) {
		return fail(KindMissingSecret, StateRecording, err)
	}
	return fail(KindInternal, StateRecording, err)
}

func upstreamKind(err error) Kind {
	var se *upstream.StatusError
	switch {
	case errors.Is(err, upstream.ErrTimeout):
		return KindUpstreamTimeout
	case errors.As(err, &se):
		return KindUpstreamError
	case errors.Is(err, context.Canceled):
		return KindInternal
	default:
		return KindUpstreamError
	}
}

func upstreamStatus(k Kind) string {
	if k == KindUpstreamTimeout {
		return "timeout"
	}
	return "error"
}

func riskStrings(rs []models.RiskType) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}
