package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/util"

	"go.uber.org/zap"
)

// ErrExhausted matches any error returned after the last attempt failed
var ErrExhausted = errors.New("retry attempts exhausted")

// ExhaustedError wraps the last error seen once every attempt has failed
type ExhaustedError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

// Executor runs operations under a retry policy
type Executor struct {
	policy Policy
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(max time.Duration) time.Duration
}

// Option customises an Executor
type Option func(*Executor)

// WithSleep replaces the function used to wait between attempts
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// WithJitter replaces the jitter source
func WithJitter(jitter func(max time.Duration) time.Duration) Option {
	return func(e *Executor) { e.jitter = jitter }
}

// WithLogger sets the logger used for per-attempt lines
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// NewExecutor creates an executor for the given policy
func NewExecutor(policy Policy, opts ...Option) *Executor {
	e := &Executor{
		policy: policy,
		logger: util.GetLogger(),
		sleep:  sleepContext,
		jitter: randomJitter,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the executor's policy
func (e *Executor) Policy() Policy {
	return e.policy
}

// WithPolicy returns a copy of the executor using a different policy
func (e *Executor) WithPolicy(policy Policy) *Executor {
	cp := *e
	cp.policy = policy
	return &cp
}

// Do runs fn until it succeeds, returns a fatal error, or runs out of attempts.
// A nil classify uses DefaultClassifier.
func Do[T any](ctx context.Context, e *Executor, operation string, classify Classifier, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if classify == nil {
		classify = DefaultClassifier
	}

	attempts := e.policy.attempts()
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			e.logger.Debug("Operation attempt succeeded",
				zap.String("operation", operation),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", attempts))
			return result, nil
		}

		lastErr = err
		class := classify(err)
		util.RetryAttemptsTotal.WithLabelValues(operation, class.String()).Inc()

		if class == Fatal {
			e.logger.Warn("Operation attempt failed with fatal error",
				zap.String("operation", operation),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", attempts),
				zap.String("class", class.String()),
				zap.Error(err))
			return zero, err
		}

		if attempt == attempts-1 {
			e.logger.Error("Operation attempt failed, no attempts left",
				zap.String("operation", operation),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", attempts),
				zap.String("class", class.String()),
				zap.Error(err))
			break
		}

		delay := e.policy.Delay(attempt, e.jitter(e.policy.MaxJitter))
		e.logger.Warn("Operation attempt failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", attempts),
			zap.Duration("delay", delay),
			zap.String("class", class.String()),
			zap.Error(err))

		if err := e.sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("%s: interrupted after %d attempts: %w (last error: %v)", operation, attempt+1, err, lastErr)
		}
	}

	return zero, &ExhaustedError{Operation: operation, Attempts: attempts, Err: lastErr}
}

// Backoff waits the policy delay that follows the 0-indexed attempt n. It
// does not count attempts, so callers that never give up can use it directly.
func (e *Executor) Backoff(ctx context.Context, n int) error {
	return e.sleep(ctx, e.policy.Delay(n, e.jitter(e.policy.MaxJitter)))
}

// Run is Do for operations without a result
func Run(ctx context.Context, e *Executor, operation string, classify Classifier, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, e, operation, classify, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}
