package model

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies a generation failure for the retry policy.
type ErrorKind string

const (
	// KindTimeout covers per-attempt deadline expiry. Retryable.
	KindTimeout ErrorKind = "timeout"
	// KindRateLimited covers 429-style throttling. Retryable.
	KindRateLimited ErrorKind = "rate_limited"
	// KindOverloaded covers 5xx / provider-overloaded responses. Retryable.
	KindOverloaded ErrorKind = "overloaded"
	// KindNetwork covers transport-level failures. Retryable.
	KindNetwork ErrorKind = "network"
	// KindAuth covers authentication / permission failures. Never retried.
	KindAuth ErrorKind = "auth"
	// KindMalformed covers requests the provider rejects as invalid. Never retried.
	KindMalformed ErrorKind = "malformed"
	// KindParse covers provider output that fails structured extraction
	// after the lenient recovery attempt. Never retried.
	KindParse ErrorKind = "parse"
)

// Error is the typed failure surfaced by providers and the dispatcher.
type Error struct {
	Kind      ErrorKind
	Retryable bool
	Model     string
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("model %s: %s", e.Model, e.Kind)
	}
	return fmt.Sprintf("model %s: %s: %v", e.Model, e.Kind, e.Err)
}

// Unwrap exposes the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// NewError builds a typed error with retryability derived from the kind.
func NewError(kind ErrorKind, modelName string, err error) *Error {
	retryable := false
	switch kind {
	case KindTimeout, KindRateLimited, KindOverloaded, KindNetwork:
		retryable = true
	}
	return &Error{Kind: kind, Retryable: retryable, Model: modelName, Err: err}
}

// IsRetryable reports whether err represents a transient failure the
// dispatcher may retry. Unclassified errors are treated as transient so a
// flaky provider never permanently fails a turn on the first wobble.
func IsRetryable(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// IsFatalRequest reports whether err must never be retried.
func IsFatalRequest(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == KindAuth || te.Kind == KindMalformed
	}
	return false
}

// IsParse reports whether err is a structured-output parse failure.
func IsParse(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == KindParse
	}
	return false
}

// Classify wraps an arbitrary provider error into a typed Error. Already
// typed errors pass through; context and net errors map directly; everything
// else is sniffed from the message the way vendor SDKs surface HTTP status.
func Classify(modelName string, err error) *Error {
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTimeout, modelName, err)
	}
	if errors.Is(err, context.Canceled) {
		// Caller gave up; retrying is pointless.
		return &Error{Kind: KindTimeout, Retryable: false, Model: modelName, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return NewError(KindTimeout, modelName, err)
		}
		return NewError(KindNetwork, modelName, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return NewError(KindTimeout, modelName, err)
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota"):
		return NewError(KindRateLimited, modelName, err)
	case strings.Contains(msg, "overloaded") || strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "500") || strings.Contains(msg, "502") || strings.Contains(msg, "503"):
		return NewError(KindOverloaded, modelName, err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "permission"):
		return NewError(KindAuth, modelName, err)
	case strings.Contains(msg, "400") || strings.Contains(msg, "invalid argument") || strings.Contains(msg, "invalid request"):
		return NewError(KindMalformed, modelName, err)
	case strings.Contains(msg, "connection") || strings.Contains(msg, "network"):
		return NewError(KindNetwork, modelName, err)
	}
	// Unknown provider errors default to overloaded so they stay retryable.
	return NewError(KindOverloaded, modelName, err)
}
