// Package main is the entry point for the ytsoob background worker: it
// drains the outbox to the buses and runs in-process consumers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/thejerf/suture/v4"

	"ytsoob/internal/config"
	"ytsoob/internal/core/id"
	"ytsoob/internal/core/mediator"
	"ytsoob/internal/infrastructure/bus"
	"ytsoob/internal/infrastructure/cache"
	"ytsoob/internal/infrastructure/storage/postgres"
	"ytsoob/internal/infrastructure/storage/postgres/posts_repo"
	"ytsoob/internal/messaging"
	"ytsoob/internal/messaging/outbox"
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

	log, err := logger.New(cfg.Log.Logger(cfg.App.Name + "-worker"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	if err := run(ctx, cfg, log); err != nil {
		log.Errorw("worker stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("worker stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if err := id.ConfigureNode(cfg.App.NodeID); err != nil {
		return fmt.Errorf("configure id node: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.Database.Pool(cfg.App.Name+"-worker"))
	if err != nil {
		return err
	}
	defer pool.Close()

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
	wmLogger := logger.Watermill(log.WithComponent("bus"))

	internal := bus.NewInProcess(codec, wmLogger)
	defer func() { _ = internal.Close() }()

	routes := messaging.Routes{messaging.DeliveryInternal: internal}
	dispatcherCfg := cfg.Outbox.Dispatcher()
	if cfg.Bus.Enabled {
		nats, err := bus.NewNATS(cfg.Bus.NATS(), codec, wmLogger)
		if err != nil {
			return err
		}
		defer func() { _ = nats.Close() }()
		routes[messaging.DeliveryOutbox] = bus.NewBreaker(nats, cfg.Bus.Breaker(), log)
	} else {
		// unclaimed records keep their retry budget until the bus is back
		dispatcherCfg.DeliveryTypes = []messaging.DeliveryType{messaging.DeliveryInternal}
		log.Warn("external bus disabled; outbox records will stay queued")
	}

	dispatcher, err := outbox.NewDispatcher(
		postgres.NewOutboxRepository(txManager),
		codec,
		routes,
		dispatcherCfg,
		log,
	)
	if err != nil {
		return err
	}

	queryCache, err := cache.NewQueryCache(cfg.Cache.QueryCache())
	if err != nil {
		return err
	}
	defer queryCache.Close()
	var invalidator mediator.Invalidator = queryCache
	if cfg.Cache.Broadcast {
		invalidator = cache.NewBroadcaster(queryCache, pool.Pool)
	}

	consumers := bus.NewConsumers(bus.DefaultConsumerConfig(), internal.Subscriber(), wmLogger)
	posts.NewCommentCounter(txManager, postgres.NewInbox(txManager), posts_repo.New(txManager), invalidator).
		Register(consumers)

	tree := supervisor.NewTree(cfg.App.Name+"-worker", log, supervisor.DefaultTreeConfig())
	tree.AddMessaging(consumers)
	// gochannel drops messages published before a subscriber exists.
	tree.AddMessaging(&afterReady{ready: consumers.Running(), next: dispatcher})

	log.Infow("worker starting",
		"worker_id", dispatcherCfg.WorkerID,
		"external_bus", cfg.Bus.Enabled,
		"poll_interval", cfg.Outbox.PollInterval,
	)
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// afterReady starts next once ready is closed.
type afterReady struct {
	ready <-chan struct{}
	next  suture.Service
}

func (s *afterReady) Serve(ctx context.Context) error {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.next.Serve(ctx)
}

func (s *afterReady) String() string { return "outbox-dispatcher" }
