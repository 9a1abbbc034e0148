package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"autotrader/internal/application/health"
	"autotrader/internal/application/service/account"
	"autotrader/internal/application/service/executor"
	appinstruments "autotrader/internal/application/service/instruments"
	"autotrader/internal/application/service/lifecycle"
	"autotrader/internal/application/service/marketcache"
	"autotrader/internal/config"
	interfaces "autotrader/internal/domain/interfaces"
	"autotrader/internal/infrastructure/broker"
	"autotrader/internal/infrastructure/exchange/binance"
	infrainstruments "autotrader/internal/infrastructure/instruments"
	"autotrader/internal/infrastructure/journal"
	"autotrader/internal/infrastructure/openorders"
	"autotrader/internal/infrastructure/trends"
	infrahttp "autotrader/internal/interfaces/http"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const healthFailureThreshold = 3

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithError(err).Warn("unknown log level, keeping info")
	}

	instrumentRepo, err := infrainstruments.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatalf("failed to init instruments repo: %v", err)
	}
	defer instrumentRepo.Close()

	trendRepo, err := trends.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatalf("failed to init trends repo: %v", err)
	}
	defer trendRepo.Close()

	journalRepo, err := journal.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatalf("failed to init journal repo: %v", err)
	}
	defer journalRepo.Close()

	var redisClient *redis.Client
	var openOrders interfaces.OpenOrderStore = openorders.NewMemoryStore()
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		openOrders = openorders.NewRedisStore(redisClient)
	}

	exchangeClient, err := binance.NewClient(cfg.Exchange, logger)
	if err != nil {
		logger.Fatalf("failed to init exchange client: %v", err)
	}
	defer exchangeClient.Close()

	quoteStream, err := binance.NewStream(cfg.Exchange.StreamURL, logger)
	if err != nil {
		logger.Fatalf("failed to init quote stream: %v", err)
	}

	registry := health.NewRegistry(healthFailureThreshold)

	cache, err := marketcache.New(marketcache.Deps{
		Quotes:       quoteStream,
		Trends:       trendRepo,
		Registry:     instrumentRepo,
		ExchangeInfo: exchangeClient,
		Logger:       logger,
		Health:       registry,
	})
	if err != nil {
		logger.Fatalf("failed to init market cache: %v", err)
	}

	book, err := account.NewBook(exchangeClient, logger, registry, cfg.Trading.BalanceInterval)
	if err != nil {
		logger.Fatalf("failed to init account book: %v", err)
	}

	orderJournal := journal.NewJournal(journal.BatchConfig{
		Size:    cfg.Journal.BatchSize,
		Timeout: cfg.Journal.BatchTimeout,
	}, journalRepo, logger)
	orderJournal.Run(ctx)

	var (
		rabbitConn *amqp.Connection
		publisher  *broker.Publisher
	)
	if cfg.RabbitMQ.URL != "" {
		rabbitConn, err = amqp.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			logger.Fatalf("connect rabbitmq: %v", err)
		}
		defer rabbitConn.Close()

		publisher, err = broker.NewPublisher(rabbitConn, cfg.RabbitMQ.RecommendationsExchange, logger)
		if err != nil {
			logger.Fatalf("init publisher: %v", err)
		}
		defer publisher.Close()
	}

	deps := pairDeps{
		Tunables:   cfg.Trading,
		Market:     cache,
		Balances:   book,
		Orders:     exchangeClient,
		OpenOrders: openOrders,
		Journal:    orderJournal,
		Ledger:     executor.NewLedger(),
		Logger:     logger,
		Health:     registry,
	}
	if publisher != nil {
		deps.Publisher = publisher
	}

	manager, err := lifecycle.NewManager(instrumentRepo, cache, newPairFactory(deps), logger, registry, cfg.Trading.LifecycleInterval)
	if err != nil {
		logger.Fatalf("failed to init lifecycle manager: %v", err)
	}

	var consumer *broker.Consumer
	if cfg.RabbitMQ.URL != "" {
		consumer, err = broker.NewConsumer(cfg.RabbitMQ, manager, cache, logger)
		if err != nil {
			logger.Fatalf("init override consumer: %v", err)
		}
	}

	handler := infrahttp.NewHandler(infrahttp.Deps{
		Market:      cache,
		Workers:     manager,
		Health:      registry,
		Instruments: appinstruments.NewService(instrumentRepo),
		Cache:       redisClient,
		CacheTTL:    time.Duration(cfg.Cache.TTLSeconds) * time.Second,
	})
	server := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return quoteStream.Run(gctx) })
	g.Go(func() error { return cache.Run(gctx) })
	g.Go(func() error { return book.Run(gctx) })
	g.Go(func() error { return manager.Run(gctx) })
	if consumer != nil {
		g.Go(func() error {
			err := consumer.Run(gctx)
			if err != nil && gctx.Err() == nil {
				logger.WithError(err).Error("override consumer stopped")
				registry.Report("broker.overrides", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		logger.Infof("HTTP server listening on %s", cfg.HTTP.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	logger.WithFields(logrus.Fields{
		"env":       cfg.Env,
		"broker":    cfg.RabbitMQ.URL != "",
		"redis":     redisClient != nil,
		"http_addr": cfg.HTTP.Addr(),
	}).Info("trader started")

	runErr := g.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.WithError(runErr).Error("trader stopped with error")
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer flushCancel()
	if err := orderJournal.Stop(flushCtx); err != nil {
		logger.WithError(err).Error("flush order journal")
	}
	logger.Info("trader stopped")
}
