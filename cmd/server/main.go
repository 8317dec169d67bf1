// Package main is the entry point for the ytsoob API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ytsoob/internal/app"
	"ytsoob/internal/config"
	"ytsoob/internal/core/id"
	"ytsoob/internal/core/mediator"
	"ytsoob/internal/infrastructure/cache"
	v1 "ytsoob/internal/infrastructure/http/v1"
	"ytsoob/internal/infrastructure/http/v1/handlers"
	"ytsoob/internal/infrastructure/http/v1/middleware"
	"ytsoob/internal/infrastructure/storage/postgres"
	"ytsoob/internal/infrastructure/storage/postgres/posts_repo"
	"ytsoob/internal/messaging"
	"ytsoob/internal/modules/posts"
	"ytsoob/internal/supervisor"
	"ytsoob/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Logger(cfg.App.Name + "-server"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	if err := run(ctx, cfg, log); err != nil {
		log.Errorw("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if err := id.ConfigureNode(cfg.App.NodeID); err != nil {
		return fmt.Errorf("configure id node: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.Database.Pool(cfg.App.Name+"-server"))
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Infow("database connection established", "max_conns", cfg.Database.MaxConns)

	txManager := postgres.NewTxManager(pool)
	if cfg.Database.Migrate {
		if err := postgres.Migrate(ctx, txManager, postgres.OutboxSchema, postgres.InboxSchema, posts_repo.Schema); err != nil {
			return err
		}
	}

	codec, err := messaging.NewCodec(cfg.Outbox.CompressThreshold)
	if err != nil {
		return err
	}

	queryCache, err := cache.NewQueryCache(cfg.Cache.QueryCache())
	if err != nil {
		return err
	}
	defer queryCache.Close()

	var invalidator mediator.Invalidator = queryCache
	tree := supervisor.NewTree(cfg.App.Name+"-server", log, supervisor.DefaultTreeConfig())
	if cfg.Cache.Broadcast {
		invalidator = cache.NewBroadcaster(queryCache, pool.Pool)
		tree.AddData(cache.NewListener(pool.Pool, queryCache))
	}

	outboxRepo := postgres.NewOutboxRepository(txManager)
	module := posts.NewModule(posts.ModuleConfig{
		Repo:        posts_repo.New(txManager),
		Scopes:      app.NewScopeFactory(txManager, postgres.NewEntityStore(txManager), outboxRepo, codec),
		Cache:       queryCache,
		Invalidator: invalidator,
		CacheTTL:    cfg.Cache.TTL,
	})

	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		JWTValidator: middleware.NewJWTService(cfg.JWT.Middleware()),
		Posts:        module,
		Outbox:       outboxRepo,
		Health:       map[string]handlers.Checker{"database": pool},
		OperatorRole: cfg.HTTP.OperatorRole,
		Development:  cfg.Log.Development,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	tree.AddAPI(supervisor.NewHTTPService(server, cfg.HTTP.ShutdownTimeout))

	log.Infow("server starting", "addr", server.Addr, "env", cfg.App.Env, "node_id", cfg.App.NodeID)
	err = tree.Serve(ctx)
	postgres.LogPoolStats(ctx, pool)
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
