package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/lexvault/lexvault/internal/aggregate"
	"github.com/lexvault/lexvault/internal/events"
	"github.com/lexvault/lexvault/internal/protocol"
	"github.com/lexvault/lexvault/internal/resolver"
	"github.com/lexvault/lexvault/internal/store"
	"github.com/lexvault/lexvault/internal/vault"
	"github.com/lexvault/lexvault/pkg/config"
	"github.com/lexvault/lexvault/pkg/health"
	"github.com/lexvault/lexvault/pkg/kafka"
	"github.com/lexvault/lexvault/pkg/logger"
	"github.com/lexvault/lexvault/pkg/metrics"
	"github.com/lexvault/lexvault/pkg/postgres"
	pkgredis "github.com/lexvault/lexvault/pkg/redis"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting lexvault", "addr", cfg.Server.Addr, "buckets", cfg.Vault.Buckets)

	m := metrics.New()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("postgres unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := store.New(db, cfg.Vault.Buckets)
	if err := st.InitSchema(ctx); err != nil {
		slog.Error("schema init failed", "error", err)
		os.Exit(1)
	}
	docCount, err := st.CountDocuments(ctx)
	if err != nil {
		slog.Warn("document count unavailable", "error", err)
	}
	slog.Info("positional store ready", "database", cfg.Postgres.Database, "documents", docCount)

	var cache *pkgredis.Client
	if cfg.Cache.Enabled {
		cache, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, read cache disabled", "error", err)
			cache = nil
		} else {
			defer cache.Close()
			slog.Info("read cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Cache.TTL)
		}
	}
	if cache != nil && cfg.Cache.FlushOnStart {
		n, err := cache.FlushByPattern(ctx, cfg.Cache.KeyPrefix+"*")
		if err != nil {
			slog.Warn("cache flush failed", "error", err)
		} else {
			slog.Info("cache flushed", "keys", n)
		}
	}

	res := resolver.New(st, cache, cfg.Cache, cfg.Resilience, m)

	var emitter *events.Emitter
	var consumers errgroup.Group
	if cfg.Kafka.Enabled {
		docProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Documents)
		defer docProducer.Close()
		invProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Invalidate)
		defer invProducer.Close()

		emitter = events.NewEmitter(docProducer, invProducer,
			cfg.Kafka.Topics.Documents, cfg.Kafka.Topics.Invalidate, 1024, m)
		emitter.Start(ctx)
		defer emitter.Close()

		agg := aggregate.New(db, m)
		aggConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Documents, cfg.Kafka.AggregateGroup, agg.HandleEvent)
		consumers.Go(func() error { return aggConsumer.Start(ctx) })

		// Invalidations use a per-node group so every node sees every
		// drop; the aggregate group is shared so each fold happens once.
		invGroup := cfg.Kafka.InvalidateGroup
		if invGroup == "" {
			host, herr := os.Hostname()
			if herr != nil || host == "" {
				host = "lexvault"
			}
			invGroup = "lexvault-invalidate-" + host
		}
		invConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Invalidate, invGroup, res.InvalidateHandler())
		consumers.Go(func() error { return invConsumer.Start(ctx) })
		slog.Info("event pipeline started",
			"documents_topic", cfg.Kafka.Topics.Documents,
			"invalidate_topic", cfg.Kafka.Topics.Invalidate,
			"aggregate_group", cfg.Kafka.AggregateGroup,
			"invalidate_group", invGroup,
		)
	} else {
		slog.Warn("kafka disabled, corpus aggregation and cross-node invalidation are off")
	}

	svc := vault.New(st, res, emitter, cfg.Vault, m)
	srv := protocol.NewServer(cfg.Server, m)
	svc.Register(srv)

	var stopMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		checker := health.NewChecker()
		checker.Register("postgres", health.PingCheck(db.Ping))
		if cache != nil {
			checker.Register("redis", health.PingCheck(cache.Ping))
		}
		stopMetrics = metrics.StartServer(cfg.Metrics.Addr, checker)
	}

	if err := srv.Serve(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		slog.Error("connection drain timed out", "error", err)
	}
	if err := consumers.Wait(); err != nil {
		slog.Error("consumer shutdown error", "error", err)
	}
	if stopMetrics != nil {
		if err := stopMetrics(shutdownCtx); err != nil {
			slog.Error("metrics server stop error", "error", err)
		}
	}
	slog.Info("lexvault stopped")
}
