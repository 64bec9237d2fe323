package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopsync/shopsync/pkg/graphql"
)

// fastConfig keeps test runtimes negligible while preserving policy shape.
func fastConfig() Config {
	return Config{
		MaxAttempts: 6,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		JitterMax:   time.Millisecond,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 6, cfg.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.BaseDelay)
	assert.Equal(t, 5000*time.Millisecond, cfg.MaxDelay)
	assert.Equal(t, 100*time.Millisecond, cfg.JitterMax)
}

func TestBackoffRanges(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name    string
		attempt int
		min     time.Duration
		max     time.Duration // exclusive
	}{
		{"attempt 0", 0, 200 * time.Millisecond, 300 * time.Millisecond},
		{"attempt 1", 1, 400 * time.Millisecond, 500 * time.Millisecond},
		{"attempt 2", 2, 800 * time.Millisecond, 900 * time.Millisecond},
		{"attempt 4", 4, 3200 * time.Millisecond, 3300 * time.Millisecond},
		{"attempt 5 clamps", 5, 5000 * time.Millisecond, 5100 * time.Millisecond},
		{"large attempt clamps", 40, 5000 * time.Millisecond, 5100 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 50; i++ {
				backoff := cfg.Backoff(tt.attempt)
				assert.GreaterOrEqual(t, backoff, tt.min)
				assert.Less(t, backoff, tt.max)
			}
		})
	}
}

func TestBackoffMinimumIsNonDecreasing(t *testing.T) {
	cfg := Config{
		MaxAttempts: 6,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5000 * time.Millisecond,
		// No jitter so the deterministic lower bound is observable.
	}

	prev := time.Duration(0)
	for attempt := 0; attempt < 12; attempt++ {
		backoff := cfg.Backoff(attempt)
		assert.GreaterOrEqual(t, backoff, prev, "attempt %d", attempt)
		prev = backoff
	}
	assert.Equal(t, 5000*time.Millisecond, prev)
}

func TestRetryableStatus(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{200, false},
		{201, false},
		{304, false},
		{400, false},
		{404, false},
		{429, true},
		{499, false},
		{500, true},
		{502, true},
		{503, true},
		{599, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.retryable, RetryableStatus(tt.status), "status %d", tt.status)
	}
}

func TestDoReturnsImmediatelyOnSuccess(t *testing.T) {
	p := NewPolicy(fastConfig(), zerolog.Nop())

	calls := 0
	resp, retries, err := p.Do(context.Background(), func(ctx context.Context) (*graphql.Response, error) {
		calls++
		return &graphql.Response{StatusCode: 200}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 0, retries)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesRetryableStatusThenSucceeds(t *testing.T) {
	p := NewPolicy(fastConfig(), zerolog.Nop())

	calls := 0
	resp, retries, err := p.Do(context.Background(), func(ctx context.Context) (*graphql.Response, error) {
		calls++
		if calls < 3 {
			return &graphql.Response{StatusCode: 503}, nil
		}
		return &graphql.Response{StatusCode: 200}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 2, retries)
	assert.Equal(t, 3, calls)
}

func TestDoRetriesTransportErrorThenSucceeds(t *testing.T) {
	p := NewPolicy(fastConfig(), zerolog.Nop())

	calls := 0
	resp, retries, err := p.Do(context.Background(), func(ctx context.Context) (*graphql.Response, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("connection reset")
		}
		return &graphql.Response{StatusCode: 200}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1, retries)
}

func TestDoPassesThroughNonRetryableStatus(t *testing.T) {
	p := NewPolicy(fastConfig(), zerolog.Nop())

	calls := 0
	resp, retries, err := p.Do(context.Background(), func(ctx context.Context) (*graphql.Response, error) {
		calls++
		return &graphql.Response{StatusCode: 400}, nil
	})

	// A 400 is not retried; the caller classifies it via GraphQL errors.
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, 0, retries)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsOnPersistentStatus(t *testing.T) {
	p := NewPolicy(fastConfig(), zerolog.Nop())

	calls := 0
	resp, retries, err := p.Do(context.Background(), func(ctx context.Context) (*graphql.Response, error) {
		calls++
		return &graphql.Response{StatusCode: 429}, nil
	})

	assert.Nil(t, resp)
	assert.Equal(t, 6, calls)
	assert.Equal(t, 6, retries)

	require.ErrorIs(t, err, ErrExhausted)
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 6, exhausted.Attempts)
	assert.Equal(t, 429, exhausted.LastStatus)
}

func TestDoExhaustsOnPersistentTransportError(t *testing.T) {
	p := NewPolicy(fastConfig(), zerolog.Nop())

	transportErr := errors.New("dial tcp: connection refused")
	_, retries, err := p.Do(context.Background(), func(ctx context.Context) (*graphql.Response, error) {
		return nil, transportErr
	})

	assert.Equal(t, 6, retries)
	require.ErrorIs(t, err, ErrExhausted)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, transportErr, exhausted.Err)
	assert.ErrorIs(t, err, transportErr)
}

func TestDoStopsOnContextCancellation(t *testing.T) {
	cfg := fastConfig()
	cfg.BaseDelay = time.Second
	cfg.MaxDelay = time.Second
	p := NewPolicy(cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := p.Do(ctx, func(ctx context.Context) (*graphql.Response, error) {
		return &graphql.Response{StatusCode: 503}, nil
	})

	assert.ErrorIs(t, err, ErrContextCancelled)
}
