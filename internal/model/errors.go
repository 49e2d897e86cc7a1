package model

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a missing or invalid setting. The affected
// feature is disabled; the process keeps running.
type ConfigurationError struct {
	Key     string
	Feature string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s disabled: %s is not configured", e.Feature, e.Key)
}

// ModelErrorKind classifies gateway failures.
type ModelErrorKind string

const (
	ModelNotFound      ModelErrorKind = "model_not_found"
	MissingCredential  ModelErrorKind = "missing_credential"
	MalformedOutput    ModelErrorKind = "malformed_output"
	GatewayUnavailable ModelErrorKind = "unavailable"
)

// ModelError is a failed or non-conforming gateway call. It is always
// retryable by the user.
type ModelError struct {
	Op   string // analyze, simulate, report
	Kind ModelErrorKind
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// AuthError is a failed identity operation.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// StateError is a transition the current state does not allow.
type StateError struct {
	msg string
}

func (e *StateError) Error() string { return e.msg }

var (
	ErrCallPending     = &StateError{"a gateway call is already in flight"}
	ErrWrongPhase      = &StateError{"action not allowed in the current phase"}
	ErrNoStream        = &StateError{"no stream selected"}
	ErrUnknownOption   = &StateError{"option was not offered"}
	ErrInvalidFeedback = &StateError{"feedback must be positive or negative"}
	ErrStaleResponse   = &StateError{"response discarded after reset"}
	ErrUnknownStream   = &StateError{"stream is not recommended or in the catalogue"}
	ErrDashboardClosed = &StateError{"dashboard was closed"}
)

var (
	ErrNotFound     = errors.New("not found")
	ErrNoQuizResult = errors.New("no stored quiz result")
)

// IsStateError reports whether err is a rejected transition.
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

// IsModelError reports whether err came from the gateway.
func IsModelError(err error) bool {
	var me *ModelError
	return errors.As(err, &me)
}
