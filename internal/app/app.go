// Package app wires the reconciliation components from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/config"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/broker"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/gateway"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/notify"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/redisclient"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/retry"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/service"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/store"
	"github.com/vortexpcsltd-afk/vortexpcs.com-sub012/internal/util"

	"go.uber.org/zap"
)

// App holds the constructed components for one process
type App struct {
	Store      *store.Store
	Redis      *redisclient.Client
	Producer   *broker.Producer
	Executor   *retry.Executor
	Reconciler *service.Reconciler
	Dispatcher *notify.Dispatcher
	FrontDoor  *service.FrontDoor

	closers []func() error
}

// Build connects to Postgres, Redis and Kafka and assembles the pipeline.
// Redis is optional: without it order numbers use random suffixes and no
// stashed carts are available.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := util.GetLogger()
	a := &App{}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.Store = db
	a.closers = append(a.closers, db.Close)
	logger.Info("Database connected")

	if cfg.Database.Migrate {
		if err := db.Migrate(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	var (
		sequence service.SequenceSource
		carts    service.CartStash
	)
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, continuing without order sequence and cart stash", zap.Error(err))
	} else {
		a.Redis = redisClient
		a.closers = append(a.closers, redisClient.Close)
		sequence = redisClient
		carts = redisClient
		logger.Info("Redis connected")
	}

	a.Producer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	a.closers = append(a.closers, a.Producer.Close)
	logger.Info("Kafka producer initialized")

	exec := retry.NewExecutor(retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
		MaxJitter:   cfg.Retry.MaxJitter,
	})
	a.Executor = exec

	provider := gateway.NewHTTPClient(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, cfg.Gateway.CaptureTimeout)
	normalizer := gateway.NewNormalizer(provider, provider, db, exec, gateway.Config{
		LookupTimeout:   cfg.Gateway.LookupTimeout,
		CaptureTimeout:  cfg.Gateway.CaptureTimeout,
		DefaultCurrency: cfg.Orders.DefaultCurrency,
	})

	renderer, err := notify.NewRenderer(notify.BankDetails{
		AccountName:   cfg.Mail.BankAccountName,
		SortCode:      cfg.Mail.BankSortCode,
		AccountNumber: cfg.Mail.BankAccountNo,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	mailer := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		FromName: cfg.Mail.FromName,
	})
	a.Dispatcher = notify.NewDispatcher(mailer, renderer, exec, cfg.Mail.BusinessAddress)

	numbers := service.NewOrderNumberGenerator(sequence, cfg.Orders.NumberPrefix)
	a.Reconciler = service.NewReconciler(db, numbers, broker.NewEventPublisher(a.Producer), exec, service.ReconcilerConfig{
		DefaultItemName: cfg.Orders.DefaultItemName,
	})
	a.FrontDoor = service.NewFrontDoor(normalizer, a.Reconciler, a.Dispatcher, carts)

	return a, nil
}

// Close releases connections in reverse order of creation
func (a *App) Close() {
	logger := util.GetLogger()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("Error closing dependency", zap.Error(err))
		}
	}
	a.closers = nil
}
