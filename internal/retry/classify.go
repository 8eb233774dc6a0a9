package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// Class is the retry classification of an error
type Class int

const (
	Fatal Class = iota
	Retryable
)

func (c Class) String() string {
	if c == Retryable {
		return "retryable"
	}
	return "fatal"
}

// Classifier decides whether an error is worth another attempt
type Classifier func(error) Class

type statusCoder interface {
	StatusCode() int
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable regardless of its concrete type
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// DefaultClassifier treats network failures, connection resets, timeouts and
// 5xx-class provider errors as retryable. Everything else is fatal.
func DefaultClassifier(err error) Class {
	if err == nil {
		return Fatal
	}

	var te *transientError
	if errors.As(err, &te) {
		return Retryable
	}

	if errors.Is(err, context.Canceled) {
		return Fatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Retryable
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		if sc.StatusCode() >= 500 {
			return Retryable
		}
		return Fatal
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return Retryable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Retryable
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return Retryable
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && (dnsErr.IsTemporary || dnsErr.IsTimeout) {
		return Retryable
	}

	return Fatal
}
