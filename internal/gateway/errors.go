package gateway

import (
	"errors"
	"fmt"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/models"
)

var (
	// ErrNotFound means the provider has no record of the reference
	ErrNotFound = errors.New("payment reference not found")
	// ErrNotPaid means the provider knows the payment but it has not completed
	ErrNotPaid = errors.New("payment not completed")
	// ErrProviderUnavailable means the provider could not be reached or answered unusably
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	// ErrAlreadyCaptured is returned by wallet capture when the order was captured before
	ErrAlreadyCaptured = errors.New("wallet order already captured")
)

// Error is the typed outcome of a failed normalization
type Error struct {
	Kind      error
	Gateway   models.GatewayKind
	Reference string
	Detail    string
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Gateway, e.Reference, e.Kind)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// ProviderError is a non-2xx answer from a payment provider API
type ProviderError struct {
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider returned %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("provider returned %d: %s", e.Status, e.Message)
}

// StatusCode exposes the HTTP status for retry classification
func (e *ProviderError) StatusCode() int { return e.Status }
