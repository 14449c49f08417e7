package pipeline

import (
	"errors"
	"fmt"
)

// State is a step of the pipeline.
type State string

const (
	StateAuthenticating State = "authenticating"
	StateScanning       State = "scanning"
	StateDeciding       State = "deciding"
	StateFetching       State = "fetching"
	StateExplaining     State = "explaining"
	StateRecording      State = "recording"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindUnauthorized          Kind = "unauthorized"
	KindValidation            Kind = "validation"
	KindCredentialUnavailable Kind = "credential_unavailable"
	KindDecryptionFailed      Kind = "decryption_failed"
	KindUpstreamTimeout       Kind = "upstream_timeout"
	KindUpstreamError         Kind = "upstream_error"
	KindInternal              Kind = "internal"
	KindMissingSecret         Kind = "missing_secret"
)

// Error is the single error type Run returns. Err never carries prompt,
// response or key material.
type Error struct {
	Kind  Kind
	State State
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s while %s", e.Kind, e.State)
	}
	return fmt.Sprintf("%s while %s: %v", e.Kind, e.State, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a pipeline error, or KindInternal for any
// other non-nil error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

func fail(kind Kind, state State, err error) *Error {
	return &Error{Kind: kind, State: state, Err: err}
}
