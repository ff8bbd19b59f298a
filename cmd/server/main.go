package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"golang.org/x/sync/errgroup"

	"github.com/muandane/special-stack/reslib/internal/config"
	"github.com/muandane/special-stack/reslib/internal/handlers"
	"github.com/muandane/special-stack/reslib/internal/middleware"
	"github.com/muandane/special-stack/reslib/internal/resource"
	"github.com/muandane/special-stack/reslib/internal/router"
	"github.com/muandane/special-stack/reslib/internal/storage"
	"github.com/muandane/special-stack/reslib/internal/watch"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func logLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("RESLIB_LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(logger)
	if err != nil {
		return errors.Annotate(err, "loading configuration")
	}
	logger.Info("starting resource server",
		"stage", cfg.Stage,
		"listen", cfg.ListenAddr,
		"prefix", cfg.ResourcePrefix,
	)

	source, check, localDir, err := openWebapp(cfg, logger)
	if err != nil {
		return err
	}

	classpath, err := resource.OpenClasspath(cfg.Classpath)
	if err != nil {
		return errors.Annotate(err, "opening classpath")
	}
	defer classpath.Close()

	clk := clock.WallClock
	manager := resource.NewManager(cfg, source, classpath, clk, logger)
	resources := resource.NewHandler(cfg, manager, clk, logger)

	stats := handlers.NewStatsHandler(manager.Cache().Stats)
	resourceHandler, err := handlers.NewResourceHandler(resources, stats, cfg, logger)
	if err != nil {
		return err
	}
	var limiter *middleware.RateLimiter
	if cfg.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(ctx, cfg.RateLimit, cfg.RateBurst, clk)
	}

	handler := router.NewRouter(logger).Setup(cfg, router.Handlers{
		Resources:   resourceHandler,
		API:         handlers.NewAPI(resources),
		Stats:       stats,
		Health:      handlers.NewHealthHandler(logger, check),
		RateLimiter: limiter,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Watch && localDir != "" && cfg.Stage != config.Production {
		w, err := watch.New(localDir, manager.Cache().Clear, logger)
		if err != nil {
			logger.Warn("webapp watching disabled", "error", err)
		} else {
			logger.Info("watching webapp for changes", "dir", localDir)
			g.Go(func() error { return w.Run(gctx) })
		}
	}
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Annotate(err, "serving http")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Annotate(err, "shutting down http server")
		}
		return nil
	})
	return g.Wait()
}

// openWebapp selects the webapp root: a bucket when one is configured,
// otherwise the local directory. It also returns the health check and, for
// local roots, the directory to watch.
func openWebapp(cfg *config.Config, logger *slog.Logger) (resource.Source, func(context.Context) error, string, error) {
	if cfg.Storage.Bucket != "" {
		client, err := storage.NewClient(&cfg.Storage)
		if err != nil {
			return nil, nil, "", err
		}
		src := storage.NewBucketSource(client, cfg.Storage.Bucket, cfg.Storage.Prefix)
		logger.Info("serving webapp from bucket",
			"endpoint", cfg.Storage.Endpoint,
			"bucket", cfg.Storage.Bucket,
			"prefix", cfg.Storage.Prefix,
		)
		return src, src.Ping, "", nil
	}

	src, err := resource.DirSource(cfg.WebappDir)
	if err != nil {
		return nil, nil, "", err
	}
	check := func(context.Context) error {
		fi, err := os.Stat(src.Root())
		if err != nil {
			return errors.Annotate(err, "webapp root")
		}
		if !fi.IsDir() {
			return errors.NotValidf("webapp root %s", src.Root())
		}
		return nil
	}
	logger.Info("serving webapp from directory", "dir", src.Root())
	return src, check, src.Root(), nil
}
