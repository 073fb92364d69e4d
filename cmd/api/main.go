package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/safar/go-order-engine/internal/cartcache"
	"github.com/safar/go-order-engine/internal/config"
	"github.com/safar/go-order-engine/internal/database"
	"github.com/safar/go-order-engine/internal/events"
	"github.com/safar/go-order-engine/internal/httpapi"
	"github.com/safar/go-order-engine/internal/identity"
	"github.com/safar/go-order-engine/internal/lifecycle"
	"github.com/safar/go-order-engine/internal/logging"
	"github.com/safar/go-order-engine/internal/metrics"
	"github.com/safar/go-order-engine/internal/service"
	"github.com/safar/go-order-engine/internal/store"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Configure logging: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("connect to database")
	}
	defer db.Close()
	logger.Info("connected to database")

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, database.MigrateUp); err != nil {
			logger.WithError(err).Fatal("apply migrations")
		}
		logger.Info("migrations applied")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	pg := store.NewPostgres(db, cfg.Orders.PendingTTL)

	var carts cartcache.Cache = cartcache.Noop{}
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		carts = cartcache.NewRedisCache(rdb, cfg.Redis.CartTTL)
		logger.WithField("addr", cfg.Redis.Addr).Info("cart cache enabled")
	}

	var publisher events.Publisher = events.NewLogPublisher(logger)
	if cfg.Kafka.Enabled() {
		kafka := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		publisher = events.NewBreakerPublisher(kafka, events.DefaultBreakerSettings(), logger, m)
		logger.WithFields(logrus.Fields{
			"brokers": cfg.Kafka.Brokers,
			"topic":   cfg.Kafka.Topic,
		}).Info("publishing order events to kafka")
	}
	defer publisher.Close()

	var resolver identity.Resolver = identity.NewHeaderResolver(pg)
	if cfg.Auth.Mode == config.AuthModeRemote {
		resolver = identity.NewRemoteResolver(cfg.Auth.IdentityURL, cfg.Auth.IdentityTimeout)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Carts:          service.NewCartService(pg, carts, logger, m),
		Orders:         service.NewOrderService(pg, carts, cfg.Orders.AllowStatusSkip, logger, m),
		Catalog:        service.NewCatalogService(pg),
		Resolver:       resolver,
		DB:             pg,
		Log:            logger,
		Metrics:        m,
		Gatherer:       reg,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	sweeper := lifecycle.NewSweeper(pg, cfg.Orders.SweepInterval, cfg.Orders.SweepBatch, logger, m)
	relay := events.NewRelay(pg, publisher, cfg.Kafka.RelayInterval, cfg.Kafka.RelayBatch, logger, m)
	wg.Add(2)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		relay.Run(ctx)
	}()

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("forced shutdown")
	}

	wg.Wait()
	logger.Info("server exited")
}
