package manager

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/tradinglab/stockfetch/fetcher"
	"github.com/tradinglab/stockfetch/types"
)

// Default retry tuning: a 200ms initial delay capped at 2s with exponential
// backoff, 10 attempts total, matching the cadence data-source calls are
// expected to tolerate (cheap quote endpoints, not LLM completions).
const (
	defaultInitialDelay = 200 * time.Millisecond
	defaultMaxDelay     = 2 * time.Second
	defaultMultiplier   = 2.0
	defaultMaxRetries   = 10
)

// CallOptions customizes a single Call invocation.
type CallOptions struct {
	// Timeout bounds one attempt against the chosen provider. Zero means no
	// per-attempt timeout beyond ctx's own deadline.
	Timeout time.Duration
	// MaxRetries is the total number of attempts (at least one is always
	// made). It overrides defaultMaxRetries when non-negative.
	MaxRetries int
}

// CallOption mutates CallOptions.
type CallOption func(*CallOptions)

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) CallOption {
	return func(o *CallOptions) { o.Timeout = d }
}

// WithMaxRetries overrides the default retry budget.
func WithMaxRetries(n int) CallOption {
	return func(o *CallOptions) { o.MaxRetries = n }
}

func resolveOptions(opts []CallOption) CallOptions {
	o := CallOptions{MaxRetries: -1}
	for _, apply := range opts {
		apply(&o)
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = defaultMaxRetries
	}
	return o
}

// Call invokes the named method against the best-scoring registered
// implementation, retrying with exponential backoff + jitter on error, and
// feeding the outcome back into that implementation's EMA success rate and
// health flag. The returned result is produced by invoke, which receives the
// chosen provider already type-asserted by the caller's method package.
func Call[T any](ctx context.Context, m *Manager, method string, invoke func(ctx context.Context, p fetcher.Provider) (T, error), opts ...CallOption) (T, error) {
	var zero T

	m.mu.RLock()
	candidates := m.methods[method]
	m.mu.RUnlock()

	b, err := m.chooseImplementation(ctx, candidates)
	if err != nil {
		return zero, err
	}

	options := resolveOptions(opts)

	if err := b.limiter.Wait(ctx); err != nil {
		return zero, types.NewUpstreamUnavailableError("rate limiter wait cancelled").WithSource(string(b.provider.Name())).WithCause(err)
	}
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return zero, types.NewUpstreamUnavailableError("concurrency semaphore acquire cancelled").WithSource(string(b.provider.Name())).WithCause(err)
	}
	defer b.sem.Release(1)

	token := b.acquireToken()
	defer b.releaseToken(token)

	start := time.Now()
	result, callErr := callWithRetry(ctx, m.logger, options, func(attemptCtx context.Context) (T, error) {
		return invoke(attemptCtx, b.provider)
	})
	elapsed := time.Since(start)

	if callErr != nil {
		b.recordError()
		if m.recorder != nil {
			m.recorder.RecordFetchCall(method, string(b.provider.Name()), "error", elapsed)
		}
		return zero, types.NewUpstreamUnavailableError("data source call failed after retries").
			WithSource(string(b.provider.Name())).WithCause(callErr).WithRetryable(true)
	}

	b.recordSuccess()
	if m.recorder != nil {
		m.recorder.RecordFetchCall(method, string(b.provider.Name()), "success", elapsed)
	}
	return result, nil
}

// callWithRetry runs fn with exponential backoff + +/-25% jitter between
// attempts, honoring ctx cancellation and an optional per-attempt timeout.
func callWithRetry[T any](ctx context.Context, logger *zap.Logger, opts CallOptions, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := opts.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			logger.Debug("retrying data source call", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if opts.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		}
		result, err := fn(attemptCtx)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return zero, lastErr
}

func backoffDelay(attempt int) time.Duration {
	delay := float64(defaultInitialDelay) * math.Pow(defaultMultiplier, float64(attempt-1))
	if delay > float64(defaultMaxDelay) {
		delay = float64(defaultMaxDelay)
	}
	jitter := delay * 0.25
	delay += (rand.Float64()*2 - 1) * jitter
	if delay < float64(defaultInitialDelay) {
		delay = float64(defaultInitialDelay)
	}
	return time.Duration(delay)
}
