package retry

import (
	"time"
)

// Policy bounds how often and how slowly an operation is retried
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxJitter   time.Duration
}

// DefaultPolicy is 3 attempts, 1s base delay, 10s cap and up to 1s of jitter
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		MaxJitter:   time.Second,
	}
}

// Delay returns the wait before the attempt following the 0-indexed attempt n:
// min(BaseDelay * 2^n + jitter, MaxDelay).
func (p Policy) Delay(n int, jitter time.Duration) time.Duration {
	if n < 0 {
		n = 0
	}
	if n > 30 {
		n = 30
	}
	d := p.BaseDelay*time.Duration(1<<uint(n)) + jitter
	if p.MaxDelay > 0 && (d > p.MaxDelay || d < 0) {
		d = p.MaxDelay
	}
	return d
}

// Ceiling is the worst-case total wait for the policy
func (p Policy) Ceiling() time.Duration {
	return time.Duration(p.attempts()) * p.MaxDelay
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}
