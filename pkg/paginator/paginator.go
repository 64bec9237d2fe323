// Package paginator walks a cursor-based GraphQL connection to completion,
// orchestrating the budget throttle, the retry policy, and the response
// mapper. Pagination is strictly sequential: each page's cursor depends on
// the previous page's result.
package paginator

import (
	"context"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/shopsync/shopsync/pkg/graphql"
	"github.com/shopsync/shopsync/pkg/mapping"
	"github.com/shopsync/shopsync/pkg/retry"
	"github.com/shopsync/shopsync/pkg/throttle"
)

// Prometheus metrics for pagination runs.
var (
	requestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopsync_requests_total",
		Help: "Total page requests issued",
	})

	itemsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopsync_items_fetched_total",
		Help: "Total product records fetched across all runs",
	})

	runsAbortedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopsync_runs_aborted_total",
		Help: "Pagination runs stopped early by reason",
	}, []string{"reason"})
)

// Stats are the cumulative counters of one fetch run.
type Stats struct {
	TotalFetched      int
	TotalRequests     int
	TotalRetries      int
	TotalSleepSeconds float64
	AvgQueryCost      float64
}

// Driver orchestrates Throttle -> Retry(Transport) -> Mapper in a loop.
// A Driver must not be used from more than one goroutine at a time.
type Driver struct {
	queryer  graphql.Queryer
	throttle *throttle.Controller
	policy   *retry.Policy
	logger   zerolog.Logger
	stats    Stats
}

// New creates a pagination driver. The driver owns the throttle's statistics
// for the duration of a run.
func New(queryer graphql.Queryer, throttle *throttle.Controller, policy *retry.Policy, logger zerolog.Logger) *Driver {
	return &Driver{
		queryer:  queryer,
		throttle: throttle,
		policy:   policy,
		logger:   logger,
	}
}

// Stats returns the counters of the most recent run.
func (d *Driver) Stats() Stats {
	return d.stats
}

// FetchAll fetches up to totalLimit products in pages of pageSize.
//
// Both totalLimit and pageSize must be positive; the driver does not
// validate them. Every failure path resolves to "stop and return what was
// accumulated": a shorter-than-requested result plus the run statistics,
// never an error.
func (d *Driver) FetchAll(ctx context.Context, totalLimit, pageSize int) ([]mapping.Product, Stats) {
	logger := d.logger.With().Str("run_id", uuid.NewString()).Logger()
	d.stats = Stats{}

	logger.Info().
		Int("total_limit", totalLimit).
		Int("page_size", pageSize).
		Msg("Starting paginated fetch")

	var products []mapping.Product
	cursor := ""

	for len(products) < totalLimit {
		if err := d.throttle.Wait(ctx); err != nil {
			logger.Warn().Err(err).Msg("Cancelled while waiting for budget")
			runsAbortedTotal.WithLabelValues("cancelled").Inc()
			break
		}

		remaining := totalLimit - len(products)
		fetchCount := pageSize
		if remaining < fetchCount {
			fetchCount = remaining
		}

		variables := map[string]interface{}{"first": fetchCount}
		if cursor != "" {
			variables["after"] = cursor
		}

		logger.Debug().
			Int("first", fetchCount).
			Str("after", cursor).
			Msg("Fetching page")

		resp, retries, err := d.policy.Do(ctx, func(ctx context.Context) (*graphql.Response, error) {
			return d.queryer.Execute(ctx, graphql.ProductsQuery, variables)
		})
		d.stats.TotalRetries += retries
		if err != nil {
			logger.Error().Err(err).Msg("Unrecoverable transport failure - stopping with partial results")
			runsAbortedTotal.WithLabelValues("transport").Inc()
			break
		}

		d.stats.TotalRequests++
		requestsTotal.Inc()

		// The cost observation decides whether the next request must wait.
		d.throttle.Observe(resp.Body)

		if messages := mapping.ExtractErrors(resp.Body); len(messages) > 0 {
			for _, message := range messages {
				logger.Warn().Str("graphql_error", message).Msg("Server reported GraphQL error")
			}
			if data, ok := resp.Body["data"]; !ok || data == nil {
				logger.Error().Msg("No data returned - stopping with partial results")
				runsAbortedTotal.WithLabelValues("graphql_errors").Inc()
				break
			}
		}

		page, err := mapping.ParsePage(resp.Body)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to parse page - stopping with partial results")
			runsAbortedTotal.WithLabelValues("shape").Inc()
			break
		}

		// An empty page ends the run even if the server claims more pages;
		// trusting hasNextPage here could loop forever on a buggy server.
		if len(page.Products) == 0 {
			logger.Debug().Msg("Empty page received - stopping")
			break
		}

		products = append(products, page.Products...)
		itemsFetchedTotal.Add(float64(len(page.Products)))

		logger.Debug().
			Int("page_products", len(page.Products)).
			Int("accumulated", len(products)).
			Msg("Page appended")

		if !page.HasNextPage {
			logger.Debug().Msg("No more pages")
			break
		}

		cursor = page.LastCursor
	}

	d.stats.TotalFetched = len(products)
	d.stats.TotalSleepSeconds = d.throttle.TotalSleep()
	d.stats.AvgQueryCost = d.throttle.AverageCost()

	logger.Info().
		Int("total_fetched", d.stats.TotalFetched).
		Int("total_requests", d.stats.TotalRequests).
		Int("total_retries", d.stats.TotalRetries).
		Float64("total_sleep_seconds", d.stats.TotalSleepSeconds).
		Float64("avg_query_cost", d.stats.AvgQueryCost).
		Msg("Paginated fetch finished")

	return products, d.stats
}
