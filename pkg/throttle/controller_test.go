package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestController returns a controller whose sleeps are recorded instead
// of executed.
func newTestController(safetyMargin float64) (*Controller, *[]time.Duration) {
	c := NewController(safetyMargin, zerolog.Nop())
	slept := &[]time.Duration{}
	c.SetSleepFunc(func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	})
	return c, slept
}

// costResponse builds a response body with full extensions.cost data.
func costResponse(requested, maxAvailable, currentlyAvailable, restoreRate float64) map[string]interface{} {
	return map[string]interface{}{
		"data": map[string]interface{}{"products": map[string]interface{}{}},
		"extensions": map[string]interface{}{
			"cost": map[string]interface{}{
				"requestedQueryCost": requested,
				"throttleStatus": map[string]interface{}{
					"maximumAvailable":   maxAvailable,
					"currentlyAvailable": currentlyAvailable,
					"restoreRate":        restoreRate,
				},
			},
		},
	}
}

func TestFreshControllerHasZeroStats(t *testing.T) {
	c, _ := newTestController(DefaultSafetyMargin)

	assert.Equal(t, 0.0, c.TotalSleep())
	assert.Equal(t, 0.0, c.AverageCost())
	assert.Equal(t, 0, c.Observations())
}

func TestObserveTracksCost(t *testing.T) {
	c, _ := newTestController(DefaultSafetyMargin)
	c.Observe(costResponse(52, 200, 148, 50))

	assert.Equal(t, 1, c.Observations())
	assert.Equal(t, 52.0, c.AverageCost())
}

func TestObserveAveragesCorrectly(t *testing.T) {
	tests := []struct {
		name    string
		costs   []float64
		wantAvg float64
	}{
		{"two observations", []float64{50, 100}, 75.0},
		{"three observations", []float64{10, 20, 30}, 20.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestController(DefaultSafetyMargin)
			for _, cost := range tt.costs {
				c.Observe(costResponse(cost, 200, 150, 50))
			}

			assert.Equal(t, len(tt.costs), c.Observations())
			assert.Equal(t, tt.wantAvg, c.AverageCost())
		})
	}
}

func TestObserveIgnoresResponseWithoutExtensions(t *testing.T) {
	c, slept := newTestController(DefaultSafetyMargin)

	for i := 0; i < 5; i++ {
		c.Observe(map[string]interface{}{
			"data": map[string]interface{}{"products": map[string]interface{}{}},
		})
	}

	assert.Equal(t, 0, c.Observations())
	assert.Equal(t, 0.0, c.AverageCost())

	// No observation means no sleep, ever.
	require.NoError(t, c.Wait(context.Background()))
	assert.Empty(t, *slept)
}

func TestObserveHandlesPartialCostInfo(t *testing.T) {
	c, _ := newTestController(DefaultSafetyMargin)

	c.Observe(map[string]interface{}{
		"data": map[string]interface{}{"products": map[string]interface{}{}},
		"extensions": map[string]interface{}{
			"cost": map[string]interface{}{"requestedQueryCost": 30.0},
		},
	})

	assert.Equal(t, 1, c.Observations())
	assert.Equal(t, 30.0, c.AverageCost())
}

func TestObserveIgnoresMalformedExtensions(t *testing.T) {
	c, _ := newTestController(DefaultSafetyMargin)

	c.Observe(map[string]interface{}{
		"data":       nil,
		"extensions": "not-an-object",
	})
	c.Observe(map[string]interface{}{
		"extensions": map[string]interface{}{"cost": []interface{}{"not", "an", "object"}},
	})

	assert.Equal(t, 0, c.Observations())
}

func TestWaitNoOpBeforeFirstObservation(t *testing.T) {
	c, slept := newTestController(DefaultSafetyMargin)

	require.NoError(t, c.Wait(context.Background()))
	assert.Empty(t, *slept)
	assert.Equal(t, 0.0, c.TotalSleep())
}

func TestWaitNoOpWithNonPositiveRestoreRate(t *testing.T) {
	c, slept := newTestController(DefaultSafetyMargin)
	c.Observe(costResponse(200, 1000, 0, 0))

	require.NoError(t, c.Wait(context.Background()))
	assert.Empty(t, *slept)
}

func TestWaitSleepDurations(t *testing.T) {
	tests := []struct {
		name        string
		cost        float64
		available   float64
		restoreRate float64
		wantSleep   time.Duration
	}{
		{"enough budget", 100, 500, 50, 0},
		{"exactly enough with margin", 100, 120, 50, 0},
		{"two second deficit", 200, 50, 100, 2 * time.Second},
		{"one second deficit", 100, 50, 100, 1 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, slept := newTestController(DefaultSafetyMargin)
			c.Observe(costResponse(tt.cost, 1000, tt.available, tt.restoreRate))

			require.NoError(t, c.Wait(context.Background()))

			if tt.wantSleep == 0 {
				assert.Empty(t, *slept)
				assert.Equal(t, 0.0, c.TotalSleep())
			} else {
				require.Len(t, *slept, 1)
				assert.Equal(t, tt.wantSleep, (*slept)[0])
				assert.Equal(t, tt.wantSleep.Seconds(), c.TotalSleep())
			}
		})
	}
}

func TestWaitAccumulatesSleepTime(t *testing.T) {
	c, _ := newTestController(DefaultSafetyMargin)

	// Deficit of 170 at 100/s restores in ceil(1.7) = 2s each time.
	c.Observe(costResponse(200, 1000, 50, 100))
	require.NoError(t, c.Wait(context.Background()))
	require.NoError(t, c.Wait(context.Background()))

	assert.Equal(t, 4.0, c.TotalSleep())
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	c := NewController(DefaultSafetyMargin, zerolog.Nop())
	c.Observe(costResponse(200, 1000, 50, 100))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestObserveReanchorsAvailableBudget(t *testing.T) {
	c, slept := newTestController(DefaultSafetyMargin)

	// Budget reported low, then restored by the server.
	c.Observe(costResponse(200, 1000, 50, 100))
	require.NoError(t, c.Wait(context.Background()))
	require.Len(t, *slept, 1)

	c.Observe(costResponse(200, 1000, 900, 100))
	require.NoError(t, c.Wait(context.Background()))
	assert.Len(t, *slept, 1, "restored budget should not sleep again")
}
