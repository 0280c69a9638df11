package embedding

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TimeoutEmbedder bounds every Embed call of the wrapped embedder. A call that runs past
// the deadline returns an error wrapping ErrTimeout instead of blocking.
type TimeoutEmbedder struct {
	Embedder
	timeout time.Duration
}

// NewTimeoutEmbedder wraps e. A non-positive timeout disables the bound.
func NewTimeoutEmbedder(e Embedder, timeout time.Duration) *TimeoutEmbedder {
	return &TimeoutEmbedder{Embedder: e, timeout: timeout}
}

// Embed calls the wrapped embedder under the configured deadline.
func (t *TimeoutEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if t.timeout <= 0 {
		return t.Embedder.Embed(ctx, text)
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	vec, err := t.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, classifyContextErr(ctx, err)
	}
	return vec, nil
}

// RetryingEmbedder retries retryable provider errors a bounded number of times
// with linear backoff.
type RetryingEmbedder struct {
	Embedder
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// NewRetryingEmbedder wraps e. maxRetries is the number of extra attempts after the first.
func NewRetryingEmbedder(e Embedder, maxRetries int, backoff time.Duration, logger *zap.Logger) *RetryingEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingEmbedder{Embedder: e, maxRetries: maxRetries, backoff: backoff, logger: logger}
}

// Embed calls the wrapped embedder until it succeeds, returns a non-retryable error,
// runs out of attempts, or ctx is done.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	for attempt := 0; ; attempt++ {
		vec, err := r.Embedder.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		if attempt >= r.maxRetries || !IsRetryable(err) {
			return nil, err
		}
		wait := r.backoff * time.Duration(attempt+1)
		r.logger.Debug("retrying embedding request",
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, classifyContextErr(ctx, ctx.Err())
		case <-timer.C:
		}
	}
}
