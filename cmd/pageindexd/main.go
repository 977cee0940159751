package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/local-page-index/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	rebuild := flag.Bool("rebuild", false, "rebuild the inverted index from the stored documents and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *rebuild {
		if err := runRebuild(ctx, cfg); err != nil {
			slog.Error("rebuild failed", "error", err)
			os.Exit(1)
		}
		return
	}
	if err := run(ctx, cfg); err != nil {
		slog.Error("page index stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("page index stopped")
}

func runRebuild(ctx context.Context, cfg *config.Config) error {
	engine, err := indexer.NewEngine(cfg.Indexer, indexer.Options{Search: cfg.Search})
	if err != nil {
		return err
	}
	n, err := engine.RebuildIndex(ctx)
	if err != nil {
		return err
	}
	slog.Info("index rebuilt", "documents", n, "path", cfg.Indexer.SnapshotPath())
	return nil
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New(prometheus.DefaultRegisterer)
	agg := analytics.NewAggregator()
	checker := health.NewChecker()

	opts := indexer.Options{
		Search:  cfg.Search,
		Metrics: m,
		Tracker: agg,
		OnCorruption: func(err error) {
			slog.Error("index snapshot is corrupt; serving an empty index until it is rebuilt or overwritten",
				"path", cfg.Indexer.SnapshotPath(),
				"error", err,
			)
		},
	}

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		client, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, query cache disabled", "error", err)
		} else {
			defer client.Close()
			breaker := resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{})
			queryCache = cache.New(cache.NewGuarded(client, breaker, 0), cfg.Redis.CacheTTL, m)
			opts.Cache = queryCache
			checker.Register("redis", health.PingCheck(client.Ping, false))
			slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	engine, err := indexer.NewEngine(cfg.Indexer, opts)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	checker.Register("index", health.IndexCheck(engine.LoadError))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.RunFlushLoop(gctx) })

	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
		} else {
			defer pg.Close()
			store := aggregator.NewStore(pg.DB)
			checker.Register("postgres", health.PingCheck(pg.Ping, false))
			if err := store.EnsureSchema(ctx); err != nil {
				slog.Warn("analytics snapshots disabled", "error", err)
			} else {
				g.Go(func() error { return store.Run(gctx, agg, cfg.Analytics.SnapshotInterval) })
			}
		}
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		kc := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.PageEvents, consumer.HandleMessage(engine, producer, m))
		indexConsumer := consumer.New(kc)
		g.Go(func() error { return indexConsumer.Run(gctx) })
		slog.Info("consuming page events",
			"topic", cfg.Kafka.Topics.PageEvents,
			"group", cfg.Kafka.ConsumerGroup,
		)
	}

	var cacheAdmin handler.CacheAdmin
	if queryCache != nil {
		cacheAdmin = queryCache
	}
	apiMux := http.NewServeMux()
	handler.New(engine, cacheAdmin).Routes(apiMux)
	var api http.Handler = apiMux
	api = middleware.Timeout(cfg.Server.RequestTimeout)(api)
	api = middleware.Metrics(m)(api)
	if cfg.Server.RateLimit > 0 {
		limiter := middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)
		g.Go(func() error { return limiter.RunCleanup(gctx) })
		api = middleware.RateLimit(limiter)(api)
	}
	api = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins))(api)
	api = middleware.RequestID(api)
	apiServer := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port),
		Handler:           api,
		ReadHeaderTimeout: 5 * time.Second,
	}
	serve(gctx, g, apiServer, cfg.Server.ShutdownTimeout)
	slog.Info("api listening", "addr", apiServer.Addr)

	if cfg.Metrics.Enabled {
		analyticsHandler := analytics.NewHandler(agg, func() any { return engine.Stats() })
		opsServer := metrics.NewServer(cfg.Metrics.Port, prometheus.DefaultGatherer, func(mux *http.ServeMux) {
			mux.HandleFunc("/health/live", checker.LiveHandler())
			mux.HandleFunc("/health/ready", checker.ReadyHandler())
			mux.Handle("/api/v1/analytics", analyticsHandler)
		})
		serve(gctx, g, opsServer, cfg.Server.ShutdownTimeout)
		slog.Info("ops server listening", "addr", opsServer.Addr)
	}

	slog.Info("page index ready",
		"documents", engine.IndexCount(ctx),
		"snapshot", cfg.Indexer.SnapshotPath(),
		"flush_policy", cfg.Indexer.FlushPolicy,
	)

	runErr := g.Wait()
	if err := engine.Close(); err != nil {
		slog.Error("closing index", "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// serve runs srv in g and shuts it down gracefully when ctx is done.
func serve(ctx context.Context, g *errgroup.Group, srv *http.Server, shutdownTimeout time.Duration) {
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving %s: %w", srv.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
