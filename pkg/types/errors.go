package types

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the engine. Callers classify with errors.Is.
var (
	ErrUnsupportedChain   = errors.New("unsupported destination chain")
	ErrNoDustFound        = errors.New("no dust balances found")
	ErrQuoteNotFound      = errors.New("quote not found or expired")
	ErrSignatureMissing   = errors.New("no signatures supplied")
	ErrSweepNotFound      = errors.New("sweep not found")
	ErrTransactionTimeout = errors.New("transaction unconfirmed within wait bound")
)

// ValidationError reports a malformed address, chain, or amount in a
// caller-supplied request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for a request field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ExternalServiceError wraps a failure from a collaborator (chain RPC,
// price oracle, swap or bridge aggregator).
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// PartialExecutionError records a sweep stage where a strict subset of
// chains failed. The run continues on the chains that succeeded; the
// failed subset needs a retry or manual reconciliation by the caller.
type PartialExecutionError struct {
	Stage     string
	Failed    []uint64
	Succeeded []uint64
}

func (e *PartialExecutionError) Error() string {
	return fmt.Sprintf("%s: %d of %d chains failed", e.Stage, len(e.Failed), len(e.Failed)+len(e.Succeeded))
}
