// Package throttle implements the query-cost budget controller.
// It observes the leaky-bucket cost state reported by the server under
// extensions.cost and sleeps before the next request when the available
// budget would not cover it.
package throttle

import (
	"context"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for throttle decisions.
var (
	budgetAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shopsync_budget_available",
		Help: "Currently available query-cost budget as last reported by the server",
	})

	throttleSleepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopsync_throttle_sleeps_total",
		Help: "Total number of proactive throttle sleeps",
	})

	throttleSleepSecondsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopsync_throttle_sleep_seconds_total",
		Help: "Total seconds slept waiting for budget to restore",
	})
)

// DefaultSafetyMargin is the extra budget headroom required before a request
// is allowed through without sleeping.
const DefaultSafetyMargin = 20.0

// Controller tracks the server-reported cost budget for a single fetch run.
// It never decrements the available budget locally between observations;
// the next response re-anchors the state, avoiding client/server drift.
// A Controller is not safe for concurrent use.
type Controller struct {
	logger       zerolog.Logger
	safetyMargin float64

	lastCost     float64
	maxAvailable float64
	available    float64
	restoreRate  float64

	totalSleep   float64
	totalCost    float64
	observations int
	hasObserved  bool

	sleep func(ctx context.Context, d time.Duration) error
}

// NewController creates a budget controller with the given safety margin.
// Budget state starts at the server defaults (1000 capacity, 50/s restore)
// and is replaced by real data on the first observation.
func NewController(safetyMargin float64, logger zerolog.Logger) *Controller {
	return &Controller{
		logger:       logger,
		safetyMargin: safetyMargin,
		maxAvailable: 1000.0,
		available:    1000.0,
		restoreRate:  50.0,
		sleep:        sleepWithContext,
	}
}

// SetSleepFunc replaces the blocking sleep implementation (for testing).
func (c *Controller) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	c.sleep = fn
}

// Observe updates budget state from one response body. Responses without
// cost-extension data, and malformed extension data, are silently ignored:
// they update nothing and do not count as observations.
func (c *Controller) Observe(body map[string]interface{}) {
	extensions, ok := body["extensions"].(map[string]interface{})
	if !ok {
		return // nothing to observe
	}
	cost, ok := extensions["cost"].(map[string]interface{})
	if !ok {
		return
	}

	// Partial updates are allowed; absent fields keep their previous value.
	if v, ok := toFloat(cost["requestedQueryCost"]); ok {
		c.lastCost = v
	}
	if status, ok := cost["throttleStatus"].(map[string]interface{}); ok {
		if v, ok := toFloat(status["maximumAvailable"]); ok {
			c.maxAvailable = v
		}
		if v, ok := toFloat(status["currentlyAvailable"]); ok {
			c.available = v
		}
		if v, ok := toFloat(status["restoreRate"]); ok {
			c.restoreRate = v
		}
	}

	c.totalCost += c.lastCost
	c.observations++
	c.hasObserved = true

	budgetAvailable.Set(c.available)

	c.logger.Debug().
		Float64("last_cost", c.lastCost).
		Float64("available", c.available).
		Float64("restore_rate", c.restoreRate).
		Msg("Observed cost budget state")
}

// Wait blocks until the budget can cover the next request. It is a no-op
// before the first observation and when the restore rate is non-positive.
// The sleep estimate is a conservative whole-second value; sub-second
// restoration is left to the next observation to correct.
func (c *Controller) Wait(ctx context.Context) error {
	if !c.hasObserved || c.restoreRate <= 0 {
		return nil
	}

	needed := c.lastCost + c.safetyMargin
	if c.available >= needed {
		return nil
	}

	deficit := needed - c.available
	sleepSeconds := math.Ceil(deficit / c.restoreRate)
	if sleepSeconds <= 0 {
		return nil
	}

	c.logger.Warn().
		Float64("available", c.available).
		Float64("needed", needed).
		Float64("restore_rate", c.restoreRate).
		Float64("sleep_seconds", sleepSeconds).
		Msg("Budget low - sleeping before next request")

	throttleSleepsTotal.Inc()
	throttleSleepSecondsTotal.Add(sleepSeconds)
	c.totalSleep += sleepSeconds

	return c.sleep(ctx, time.Duration(sleepSeconds)*time.Second)
}

// AverageCost returns the mean observed request cost, or 0 before any
// observation.
func (c *Controller) AverageCost() float64 {
	if c.observations == 0 {
		return 0
	}
	return c.totalCost / float64(c.observations)
}

// TotalSleep returns the cumulative throttle sleep time in seconds.
func (c *Controller) TotalSleep() float64 {
	return c.totalSleep
}

// Observations returns the number of cost observations made.
func (c *Controller) Observations() int {
	return c.observations
}

// sleepWithContext blocks for d or until the context is done.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// toFloat extracts a numeric JSON value. encoding/json decodes numbers as
// float64, but hand-built test fixtures may carry int values.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
