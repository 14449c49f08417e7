package pipeline

import (
	"context"
	"errors"
	"net/http"

	"github.com/pario-ai/promptgate/pkg/auth"
	"github.com/pario-ai/promptgate/pkg/models"
)

// ActionError is the failure surface of the in-process entry point. Code
// follows HTTP status semantics so a host framework can forward it as is.
type ActionError struct {
	Code    int
	Message string
	Kind    Kind
}

func (e *ActionError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Code)
	}
	return e.Message
}

// ProxyPrompt is the in-process entry point for callers that already hold
// a session. Analysis is always returned.
func (p *Pipeline) ProxyPrompt(ctx context.Context, session *auth.Session, req models.PromptRequest) (*models.PromptResponse, error) {
	if session == nil || session.UserID == "" {
		return nil, &ActionError{Code: http.StatusUnauthorized, Kind: KindUnauthorized}
	}
	res, err := p.Run(ctx, Request{
		Credentials: auth.Credentials{Session: session},
		Prompt:      req.Prompt,
		Model:       req.Model,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return nil, ToActionError(err)
	}
	return res.PromptResponse(true), nil
}

// PromptResponse converts r to the caller-facing shape.
func (r *Result) PromptResponse(withAnalysis bool) *models.PromptResponse {
	out := &models.PromptResponse{
		Decision:  r.Decision,
		Response:  r.Response,
		RiskTypes: r.RiskTypes,
		RiskScore: r.RiskScore,
		LogID:     r.LogID,
	}
	if out.RiskTypes == nil {
		out.RiskTypes = []models.RiskType{}
	}
	if withAnalysis {
		out.Analysis = r.Analysis
	}
	return out
}

// ToActionError maps a Run error to an ActionError. Messages are fixed per
// kind and never include the underlying cause.
func ToActionError(err error) *ActionError {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae
	}
	kind := KindOf(err)
	switch kind {
	case KindUnauthorized:
		return &ActionError{Code: http.StatusUnauthorized, Kind: kind}
	case KindValidation:
		return &ActionError{Code: http.StatusBadRequest, Message: "Invalid prompt", Kind: kind}
	case KindCredentialUnavailable:
		return &ActionError{Code: http.StatusBadRequest, Message: "No provider key configured for user", Kind: kind}
	case KindDecryptionFailed:
		return &ActionError{Code: http.StatusInternalServerError, Message: "Provider key decryption failed", Kind: kind}
	case KindUpstreamTimeout:
		return &ActionError{Code: http.StatusBadGateway, Message: "Upstream timeout", Kind: kind}
	case KindUpstreamError:
		return &ActionError{Code: http.StatusBadGateway, Message: "LLM upstream error", Kind: kind}
	case KindMissingSecret:
		return &ActionError{Code: http.StatusInternalServerError, Message: "Server misconfigured", Kind: kind}
	default:
		return &ActionError{Code: http.StatusInternalServerError, Message: "Internal error", Kind: KindInternal}
	}
}
