package ai

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/serbisyo-bataan/matcher/internal/utils"
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

type retryingGenerator struct {
	next     Generator
	attempts int
	backoff  time.Duration
	logger   *zap.Logger
}

const maxRetryDelay = 30 * time.Second

// WithRetries wraps next so failed calls are repeated up to attempts times in
// total, waiting backoff, then twice as long, between them.
func WithRetries(next Generator, attempts int, backoff time.Duration, logger *zap.Logger) Generator {
	if next == nil || attempts <= 1 {
		return next
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &retryingGenerator{next: next, attempts: attempts, backoff: backoff, logger: logger}
}

func (r *retryingGenerator) Model() string {
	return r.next.Model()
}

func (r *retryingGenerator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= r.attempts; attempt++ {
		text, err := r.next.GenerateContent(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if isPermanent(err) || attempt == r.attempts {
			break
		}

		delay := utils.Backoff(r.backoff, attempt, maxRetryDelay)
		r.logger.Debug("retrying ai request",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := utils.WaitFor(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", lastErr
}
