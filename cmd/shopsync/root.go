package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shopsync/shopsync/pkg/graphql"
	"github.com/shopsync/shopsync/pkg/logging"
	"github.com/shopsync/shopsync/pkg/mapping"
	"github.com/shopsync/shopsync/pkg/paginator"
	"github.com/shopsync/shopsync/pkg/retry"
	"github.com/shopsync/shopsync/pkg/store"
	"github.com/shopsync/shopsync/pkg/throttle"
)

var flags struct {
	endpoint     string
	token        string
	total        int
	pageSize     int
	timeoutMs    int
	safetyMargin float64
	verbose      bool
	pretty       bool
	redisAddr    string
	metricsAddr  string
}

var rootCmd = &cobra.Command{
	Use:   "shopsync",
	Short: "Fetch large product sets from a cost-throttled GraphQL shop API",
	Long: `shopsync walks a cursor-paginated products connection to completion,
sleeping proactively when the server-enforced query-cost budget runs low
and absorbing transient failures with retries. The result is printed as a
table and can optionally be persisted to Redis.`,
	Version: version,
	RunE:    runSync,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flags.endpoint, "endpoint", envOr("SHOPSYNC_ENDPOINT", "http://localhost:4000/graphql"), "GraphQL endpoint URL")
	f.StringVar(&flags.token, "token", os.Getenv("SHOPSYNC_TOKEN"), "Shopify access token (optional)")
	f.IntVar(&flags.total, "total", 750, "total products to fetch")
	f.IntVar(&flags.pageSize, "page-size", 100, "products per request page")
	f.IntVar(&flags.timeoutMs, "timeout-ms", 5000, "HTTP timeout in milliseconds")
	f.Float64Var(&flags.safetyMargin, "safety-margin", throttle.DefaultSafetyMargin, "extra budget headroom before throttling")
	f.BoolVar(&flags.verbose, "verbose", false, "enable debug logging")
	f.BoolVar(&flags.pretty, "pretty", false, "human-readable log output")
	f.StringVar(&flags.redisAddr, "redis-addr", os.Getenv("REDIS_URL"), "Redis address for persisting products (optional)")
	f.StringVar(&flags.metricsAddr, "metrics-addr", "", "address to serve /metrics and /healthz on (optional)")
}

func runSync(cmd *cobra.Command, args []string) error {
	logCfg := logging.DefaultConfig()
	logCfg.Pretty = flags.pretty
	if flags.verbose {
		logCfg.Level = logging.LevelDebug
	}
	logging.Setup(logCfg)
	logger := logging.NewLogger("shopsync")

	if flags.total <= 0 || flags.pageSize <= 0 {
		return fmt.Errorf("--total and --page-size must be positive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flags.metricsAddr != "" {
		go serveMetrics(flags.metricsAddr, logger)
	}

	transportCfg := graphql.DefaultConfig(flags.endpoint)
	transportCfg.AccessToken = flags.token
	transportCfg.Timeout = time.Duration(flags.timeoutMs) * time.Millisecond

	client, err := graphql.NewClient(transportCfg, logging.NewLogger("transport"))
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}

	controller := throttle.NewController(flags.safetyMargin, logging.NewLogger("throttle"))
	policy := retry.NewPolicy(retry.DefaultConfig(), logging.NewLogger("retry"))
	driver := paginator.New(client, controller, policy, logging.NewLogger("paginator"))

	products, stats := driver.FetchAll(ctx, flags.total, flags.pageSize)

	if flags.redisAddr != "" {
		if err := persist(ctx, flags.redisAddr, products, logger); err != nil {
			logger.Error().Err(err).Msg("Failed to persist products")
		}
	}

	printProducts(products)
	printSummary(stats)

	return nil
}

// persist writes the fetched products to Redis.
func persist(ctx context.Context, addr string, products []mapping.Product, logger zerolog.Logger) error {
	redisClient := redis.NewClient(&redis.Options{Addr: addr})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}

	productStore := store.New(redisClient, logging.NewLogger("store"))
	if err := productStore.SaveProducts(ctx, products); err != nil {
		return err
	}

	logger.Info().
		Int("count", len(products)).
		Str("redis_addr", addr).
		Msg("Persisted products to Redis")

	return nil
}

// serveMetrics exposes Prometheus metrics and a health endpoint.
func serveMetrics(addr string, logger zerolog.Logger) {
	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	logger.Info().Str("addr", addr).Msg("Serving metrics")
	if err := http.ListenAndServe(addr, router); err != nil {
		logger.Error().Err(err).Msg("Metrics server failed")
	}
}

func envOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
