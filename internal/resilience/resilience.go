// Package resilience guards calls to remote model endpoints with a rate
// limiter, a circuit breaker and exponential-backoff retries.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type Config struct {
	// MaxRetries is the number of extra attempts after the first. 0 disables
	// retries.
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// RequestsPerSecond <= 0 disables rate limiting.
	RequestsPerSecond float64
	Burst             int

	// BreakerFailures consecutive failures open the breaker for
	// BreakerTimeout. 0 disables the breaker.
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	// Retryable reports whether a failed attempt may be repeated. Nil treats
	// every error except context cancellation as retryable.
	Retryable func(error) bool
}

// Guard runs operations under the configured policies. A nil *Guard runs the
// operation once with no policy.
type Guard struct {
	name    string
	cfg     Config
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func New(name string, cfg Config) *Guard {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 10 * time.Second
	}
	if cfg.Retryable == nil {
		cfg.Retryable = defaultRetryable
	}

	g := &Guard{name: name, cfg: cfg}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	if cfg.BreakerFailures > 0 {
		timeout := cfg.BreakerTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerFailures
			},
			// Caller mistakes such as a bad request say nothing about
			// endpoint health.
			IsSuccessful: func(err error) bool {
				return err == nil || !cfg.Retryable(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return g
}

// Do runs op until it succeeds, fails with a non-retryable error, the retry
// budget is spent or ctx ends. The last error from op is returned.
func (g *Guard) Do(ctx context.Context, op func(context.Context) error) error {
	if g == nil {
		return op(ctx)
	}

	attempt := func() error {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		err := g.call(ctx, op)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrCircuitOpen) || !g.cfg.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.cfg.InitialInterval
	b.MaxInterval = g.cfg.MaxInterval
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(g.cfg.MaxRetries, 0))), ctx)
	return backoff.RetryNotify(attempt, policy, func(err error, wait time.Duration) {
		slog.Debug("retrying request", "name", g.name, "error", err, "wait", wait)
	})
}

func (g *Guard) call(ctx context.Context, op func(context.Context) error) error {
	if g.breaker == nil {
		return op(ctx)
	}
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, op(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// Open reports whether the breaker currently rejects calls.
func (g *Guard) Open() bool {
	return g != nil && g.breaker != nil && g.breaker.State() == gobreaker.StateOpen
}

func defaultRetryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// OpenAIRetryable treats rate limiting, server errors and transport failures
// from an OpenAI-compatible endpoint as retryable.
func OpenAIRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return defaultRetryable(err)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
