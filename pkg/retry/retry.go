// Package retry wraps a single transport call with bounded retries and
// exponential backoff with jitter for transient failures.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/shopsync/shopsync/pkg/graphql"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopsync_retries_total",
		Help: "Total number of retry attempts by failure kind",
	}, []string{"kind"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopsync_retry_backoff_seconds",
		Help:    "Backoff duration for retries by failure kind",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"kind"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopsync_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by failure kind",
	}, []string{"kind"})
)

// Failure kinds used as metric labels.
const (
	kindNetwork = "network"
	kindStatus  = "status"
)

// Config holds the retry policy parameters.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the backoff before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff before jitter is added.
	MaxDelay time.Duration

	// JitterMax is the upper bound (exclusive) of the random jitter added
	// to every backoff.
	JitterMax time.Duration
}

// DefaultConfig returns the default retry policy parameters.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 6,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5000 * time.Millisecond,
		JitterMax:   100 * time.Millisecond,
	}
}

// Backoff computes the sleep before retrying the given 0-based attempt:
// min(BaseDelay * 2^attempt, MaxDelay) plus uniform jitter in [0, JitterMax).
func (c Config) Backoff(attempt int) time.Duration {
	backoff := c.MaxDelay
	if attempt < 30 {
		if d := c.BaseDelay << uint(attempt); d < backoff {
			backoff = d
		}
	}
	if c.JitterMax > 0 {
		backoff += time.Duration(rand.Int63n(int64(c.JitterMax)))
	}
	return backoff
}

// RetryableStatus reports whether an HTTP status warrants a retry.
// 429 means the server shed the request; >=500 is a server-side failure.
func RetryableStatus(status int) bool {
	return status == 429 || status >= 500
}

// Policy executes operations with the configured retry behavior.
type Policy struct {
	config Config
	logger zerolog.Logger
}

// NewPolicy creates a retry policy.
func NewPolicy(cfg Config, logger zerolog.Logger) *Policy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	return &Policy{
		config: cfg,
		logger: logger,
	}
}

// Config returns the policy parameters.
func (p *Policy) Config() Config {
	return p.config
}

// Operation is one transport call. Re-issuing it must be side-effect free;
// paginated reads satisfy this.
type Operation func(ctx context.Context) (*graphql.Response, error)

// Do runs op until it yields a usable response or attempts are exhausted.
// It returns the response, the number of retries performed, and a terminal
// error. Transport failures and retryable HTTP statuses (429, >=5xx) are
// retried with backoff; any other status is returned as-is for the caller
// to classify.
func (p *Policy) Do(ctx context.Context, op Operation) (*graphql.Response, int, error) {
	retries := 0
	maxAttempts := p.config.MaxAttempts

	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := op(ctx)

		var kind string
		switch {
		case err != nil:
			kind = kindNetwork
		case RetryableStatus(resp.StatusCode):
			kind = kindStatus
		default:
			if attempt > 0 {
				p.logger.Info().
					Int("attempt", attempt+1).
					Int("status_code", resp.StatusCode).
					Msg("Request succeeded after retry")
			}
			return resp, retries, nil
		}

		retries++
		retriesTotal.WithLabelValues(kind).Inc()

		if attempt == maxAttempts-1 {
			retryExhaustedTotal.WithLabelValues(kind).Inc()
			exhausted := &ExhaustedError{Attempts: maxAttempts}
			if err != nil {
				exhausted.Err = err
			} else {
				exhausted.LastStatus = resp.StatusCode
			}
			p.logger.Error().
				Int("max_attempts", maxAttempts).
				Msg("Retry attempts exhausted")
			return nil, retries, exhausted
		}

		backoff := p.config.Backoff(attempt)
		retryBackoffSeconds.WithLabelValues(kind).Observe(backoff.Seconds())

		event := p.logger.Warn().
			Int("attempt", attempt+1).
			Int("max_attempts", maxAttempts).
			Dur("backoff", backoff)
		if err != nil {
			event.Err(err).Msg("Transport failure - retrying after backoff")
		} else {
			event.Int("status_code", resp.StatusCode).Msg("Retryable status - retrying after backoff")
		}

		select {
		case <-ctx.Done():
			return nil, retries, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(backoff):
		}
	}

	// Unreachable: the last attempt either returns or exhausts above.
	return nil, retries, &ExhaustedError{Attempts: maxAttempts}
}
