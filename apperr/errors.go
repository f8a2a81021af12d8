// Package apperr implements the engine-wide error classification used to
// convert every lower-layer failure into one of a closed set of kinds before
// it crosses the HTTP boundary. Every Error carries a cockroachdb/errors
// stack trace plus structured attachments so operators can trace a failure
// back through connector, flow and storage layers without re-running it.
package apperr

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind is the closed set of error classifications the flow engine produces.
// The HTTP layer maps each Kind to a merchant-facing error type and status
// code; the flow layer maps each Kind to an AttemptStatus transition (or a
// no-op) per spec.
type Kind string

const (
	KindInvalidRequest      Kind = "invalid_request"
	KindInvalidState        Kind = "invalid_state"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindAuthTokenUnavailable Kind = "auth_token_unavailable"
	KindConnectorTransient  Kind = "connector_transient"
	KindConnectorPermanent  Kind = "connector_permanent"
	KindTimeout             Kind = "timeout"
	KindIntegrity           Kind = "integrity"
	KindWebhookVerification Kind = "webhook_verification_failed"
	KindResourceBusy        Kind = "resource_busy"
	KindInternal            Kind = "internal"
)

// Retryable reports whether the flow layer may retry the operation that
// produced this kind of error without additional merchant input.
func (k Kind) Retryable() bool {
	switch k {
	case KindConflict, KindAuthTokenUnavailable, KindConnectorTransient, KindTimeout, KindResourceBusy:
		return true
	default:
		return false
	}
}

// KV is a single attached (key, value) diagnostic pair.
type KV struct {
	Key   string
	Value string
}

// Error is the engine's structured error type. Cause carries the full
// cockroachdb/errors report (stack trace + wrapped chain); Attached carries
// ordered structured context added by each layer that touched the error.
type Error struct {
	Kind     Kind
	cause    error
	Attached []KV
}

// New creates a fresh Error of the given kind with a stack-annotated cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, cause: errors.WithStack(errors.New(message))}
}

// Wrap annotates err with a kind classification, preserving its cause chain.
func Wrap(kind Kind, err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, cause: errors.Wrap(err, message)}
}

// With attaches a structured (key, value) pair and returns the same Error
// for chaining, e.g. apperr.New(...).With("attempt_id", id).With("connector", name).
func (e *Error) With(key, value string) *Error {
	e.Attached = append(e.Attached, KV{Key: key, Value: value})
	return e
}

func (e *Error) Error() string {
	msg := e.cause.Error()
	for _, kv := range e.Attached {
		msg = fmt.Sprintf("%s [%s=%s]", msg, kv.Key, kv.Value)
	}
	return msg
}

// Unwrap exposes the underlying cause chain for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// CauseChain renders each level of the wrapped cause for audit logging.
func (e *Error) CauseChain() []string {
	var chain []string
	for err := error(e.cause); err != nil; err = errors.Unwrap(err) {
		chain = append(chain, err.Error())
	}
	return chain
}

// Of extracts the Kind of err if it is (or wraps) an *Error, defaulting to
// KindInternal for anything the engine did not classify explicitly.
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err was classified with the given Kind.
func Is(err error, kind Kind) bool {
	return Of(err) == kind
}
