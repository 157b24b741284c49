package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sedn/nbn-facade/internal/cache"
	_ "github.com/sedn/nbn-facade/internal/cache/memstore"
	_ "github.com/sedn/nbn-facade/internal/cache/redisstore"
	"github.com/sedn/nbn-facade/internal/core/config"
	"github.com/sedn/nbn-facade/internal/core/gateway"
	"github.com/sedn/nbn-facade/internal/core/health"
	"github.com/sedn/nbn-facade/internal/core/httpclient"
	"github.com/sedn/nbn-facade/internal/core/observability"
	"github.com/sedn/nbn-facade/internal/core/records"
	"github.com/sedn/nbn-facade/internal/core/server"
	"github.com/sedn/nbn-facade/internal/invalidation/kafkaconsumer"
	"github.com/sedn/nbn-facade/internal/logger"
	h3mapper "github.com/sedn/nbn-facade/internal/mapper/h3"
	"github.com/sedn/nbn-facade/internal/metrics"
	"github.com/sedn/nbn-facade/internal/query"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	envFile := flag.String("env", ".env", "dotenv file loaded before reading the environment")
	flag.Parse()

	envErr := godotenv.Load(*envFile)

	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "nbn-facade",
		Component: "facade",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		appLog.Warn("dotenv load failed", "file", *envFile, "err", envErr)
	}

	p := metrics.Init(metrics.Config{
		Enabled: cfg.MetricsEnabled,
		Path:    cfg.MetricsPath,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})
	observability.Init(p.Registerer(), cfg.MetricsEnabled)

	appLog.Info("starting facade",
		"addr", cfg.Addr,
		"version", Version,
		"upstream", cfg.NBNBaseURL,
		"cache_driver", cfg.CacheDriver,
		"cache_ttl", cfg.CacheTTL.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := cache.Open(ctx, cfg, appLog)
	if err != nil {
		appLog.Error("cache setup failed", "driver", cfg.CacheDriver, "err", err)
		return 1
	}
	if c, ok := store.(cache.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	ep := records.Endpoint{
		BaseURL:         cfg.NBNBaseURL,
		DataResourceUID: cfg.NBNDataResourceUID,
		PageSize:        cfg.NBNPageSize,
	}
	gw := gateway.New(appLog, httpclient.NewOutbound(httpclient.DefaultUserAgent+"/"+Version))
	svc := query.New(ep, gw, cache.NewResults(store, cfg.CacheTTL, appLog), appLog,
		query.WithSiteCells(h3mapper.New(), cfg.SiteH3Res))

	deps := server.Deps{Service: svc, Metrics: p}
	if pinger, ok := store.(health.Pinger); ok {
		deps.Store = pinger
	}

	if cfg.Invalidation.Enabled {
		consumer := kafkaconsumer.New(kafkaconsumer.FromConfig(cfg.Invalidation), appLog, store, &zl)
		if err := consumer.Start(ctx); err != nil {
			appLog.Error("invalidation consumer failed to start",
				"brokers", strings.TrimSpace(cfg.Invalidation.Brokers), "err", err)
			return 1
		}
		defer consumer.Stop()
		deps.Consumer = consumer
	}

	if err := server.Run(ctx, cfg, appLog, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
