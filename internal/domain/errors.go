package domain

import (
	"errors"
	"fmt"
)

// Taxonomía de errores. Los adapters y servicios los envuelven con %w;
// los callers comparan con errors.Is.
var (
	ErrProviderUnavailable   = errors.New("wallet provider unavailable")
	ErrNotConnected          = errors.New("not connected")
	ErrWrongNetwork          = errors.New("wrong network")
	ErrContractNotConfigured = errors.New("contract not configured")
	ErrNormalization         = errors.New("normalization failure")
	ErrFinalityTimeout       = errors.New("transaction finality timeout")
	ErrRemoteCall            = errors.New("remote call failure")
	ErrValidation            = errors.New("validation failure")

	// ErrWriteInFlight: the same write target already has a transaction being polled.
	ErrWriteInFlight = errors.New("write already in flight")
	// ErrSessionInvalidated: the session ended while an operation was pending.
	ErrSessionInvalidated = errors.New("session invalidated")
)

// ValidationError describe un input rechazado antes de cualquier llamada remota.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// TxFailedError is a transaction that reached a terminal failure status.
type TxFailedError struct {
	Handle TxHandle
	Status TxStatus
	Reason string
}

func (e *TxFailedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("transaction %s failed with status %s", e.Handle, e.Status)
	}
	return fmt.Sprintf("transaction %s failed with status %s: %s", e.Handle, e.Status, e.Reason)
}

func (e *TxFailedError) Unwrap() error { return ErrRemoteCall }
