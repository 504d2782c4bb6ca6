package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contentmapper/internal/attack"
	"contentmapper/internal/catalog"
	"contentmapper/internal/feed"
	"contentmapper/internal/matcher"
	"contentmapper/internal/metrics"
	"contentmapper/internal/search"
	"contentmapper/internal/server"
	"contentmapper/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("contentmapper failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := server.LoadConfig()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	items, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return err
	}
	metrics.CatalogItems.Set(float64(len(items)))
	logger.Info("catalog loaded", "path", cfg.Catalog, "items", len(items))

	graph, err := loadTaxonomy(ctx, cfg.Bundles, logger)
	if err != nil {
		return err
	}

	overrides, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []matcher.Option{
		matcher.WithOverrides(overrides),
		matcher.WithLogger(logger),
		matcher.WithWorkers(cfg.Tuning.Workers),
	}
	if cfg.Tuning.CacheSize > 0 {
		cache := matcher.NewResultCache(cfg.Tuning.CacheSize, cfg.Tuning.CacheTTL)
		defer cache.Close()
		opts = append(opts, matcher.WithCache(cache))
	}
	m := matcher.New(matcher.BuildExactIndex(items), search.Build(items, cfg.Tuning.FieldWeights), opts...)

	srv := server.New(m, graph, cfg, logger)
	metricsSrv := srv.StartMetrics(cfg.MetricsAddr)

	if cfg.GRPCAddr != "" {
		go func() {
			logger.Info("grpc listening", "addr", cfg.GRPCAddr)
			if err := srv.StartGRPC(cfg.GRPCAddr); err != nil {
				logger.Error("grpc server error", "err", err)
			}
		}()
	}

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Router(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	srv.StopGRPC()
	_ = metricsSrv.Shutdown(shutdownCtx)
	return httpSrv.Shutdown(shutdownCtx)
}

// loadTaxonomy builds the ATT&CK graph from the configured bundles. With no
// bundles the service still classifies, but default entries get no tactics.
func loadTaxonomy(ctx context.Context, bundles []string, logger *slog.Logger) (*attack.Graph, error) {
	if len(bundles) == 0 {
		logger.Warn("no ATT&CK bundle configured, taxonomy lookups are empty")
		return attack.Build(nil), nil
	}
	controller := feed.NewController(logger)
	for _, b := range bundles {
		controller.Register(feed.FetcherFor(b))
	}
	fetchCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	return controller.Run(fetchCtx)
}

func openStore(cfg *server.Config) (store.MappingStore, func(), error) {
	if cfg.RedisURL == "" {
		slog.Warn("CM_REDIS_URL not set, manual mappings are kept in memory")
		return store.NewMemoryStore(), func() {}, nil
	}
	rs, err := store.NewRedisStore(store.RedisOptions{URL: cfg.RedisURL})
	if err != nil {
		return nil, nil, err
	}
	breaker := store.NewBreakerStore(rs, cfg.Tuning.BreakerFailures, cfg.Tuning.BreakerTimeout)
	return breaker, func() { _ = rs.Close() }, nil
}
