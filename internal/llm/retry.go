package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	defaultGenerateTries   = 3
	defaultInitialInterval = time.Second
)

// RetryingGenerator rate limits calls to the wrapped generator and retries
// failed calls with exponential backoff. Exhausted retries are reported as
// *GenerationError.
type RetryingGenerator struct {
	inner           Generator
	limiter         *rate.Limiter
	tries           uint
	initialInterval time.Duration
}

// RetryOption configures a RetryingGenerator.
type RetryOption func(*RetryingGenerator)

// WithTries sets the total number of attempts per image.
func WithTries(n int) RetryOption {
	return func(r *RetryingGenerator) {
		if n > 0 {
			r.tries = uint(n)
		}
	}
}

// WithRequestsPerSecond caps the call rate. Zero or less means unlimited.
func WithRequestsPerSecond(rps float64) RetryOption {
	return func(r *RetryingGenerator) {
		if rps > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			r.limiter = rate.NewLimiter(rate.Inf, 1)
		}
	}
}

// WithInitialInterval sets the first backoff delay.
func WithInitialInterval(d time.Duration) RetryOption {
	return func(r *RetryingGenerator) { r.initialInterval = d }
}

// NewRetryingGenerator wraps inner.
func NewRetryingGenerator(inner Generator, opts ...RetryOption) *RetryingGenerator {
	r := &RetryingGenerator{
		inner:           inner,
		limiter:         rate.NewLimiter(rate.Inf, 1),
		tries:           defaultGenerateTries,
		initialInterval: defaultInitialInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Generate implements the Generator interface.
func (r *RetryingGenerator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	attempt := 0
	op := func() (*GenerateResult, error) {
		attempt++
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		result, err := r.inner.Generate(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			log.Warn().Err(err).Str("file", req.Filename).Int("attempt", attempt).Msg("generation attempt failed")
			return nil, err
		}
		return result, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval

	result, err := backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(r.tries))
	if err != nil {
		return nil, &GenerationError{Filename: req.Filename, Err: err}
	}
	return result, nil
}
