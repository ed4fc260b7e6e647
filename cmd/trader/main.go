// Команда trader выполняет один торговый цикл для всех настроенных продуктов.
// Запускается планировщиком раз в минуту.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"

	"vcautotrade/internal/bot"
	"vcautotrade/internal/config"
	"vcautotrade/internal/exchange"
	"vcautotrade/internal/models"
	"vcautotrade/internal/repository"
	"vcautotrade/internal/service"
	"vcautotrade/pkg/crypto"
	"vcautotrade/pkg/utils"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger := utils.InitGlobalLogger(utils.LogConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	defer logger.Sync()

	notifier := service.NewNotificationService(cfg.Notification, exchange.SharedHTTPClient(), logger)
	defer exchange.CloseSharedClient()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Bot.InvocationTimeout)
	defer cancel()

	if err := trade(ctx, cfg, logger, notifier); err != nil {
		logger.Error("trader run failed", zap.Error(err))
		notifyCtx, cancelNotify := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelNotify()
		_ = notifier.Notify(notifyCtx, models.Notification{
			Message: fmt.Sprintf("[%s] trader run failed: %v", cfg.Bot.Env, err),
			Urgent:  true,
		})
		pushMetrics(cfg, logger)
		return 1
	}

	pushMetrics(cfg, logger)
	return 0
}

func trade(ctx context.Context, cfg *config.Config, logger *utils.Logger, notifier bot.Notifier) error {
	if err := cfg.ValidateTrader(); err != nil {
		return err
	}
	products, err := cfg.Products()
	if err != nil {
		return err
	}

	secret, err := crypto.DecryptSecret(cfg.Exchange.APISecret, cfg.Security.EncryptionKey)
	if err != nil {
		return fmt.Errorf("decrypt exchange secret: %w", err)
	}

	db, err := repository.OpenDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("connected to database", zap.String("dsn", cfg.Database.DSNWithoutPassword()))

	client, err := exchange.NewExchange(exchange.ExchangeGMO, exchange.GMOConfig{
		PublicURL:      cfg.Exchange.PublicURL,
		PrivateURL:     cfg.Exchange.PrivateURL,
		APIKey:         cfg.Exchange.APIKey,
		APISecret:      secret,
		RateLimit:      cfg.Exchange.RateLimit,
		MaxRetries:     cfg.Exchange.MaxRetries,
		RetryBackoff:   cfg.Exchange.RetryBackoff,
		RequestTimeout: cfg.Exchange.RequestTimeout,
		TradesPageSize: cfg.Exchange.TradesPageSize,
		TradesMaxPages: cfg.Exchange.TradesMaxPages,
	}, logger)
	if err != nil {
		return err
	}

	engine := bot.NewEngine(bot.EngineDeps{
		Exchange: client,
		Products: products,
		Store:    repository.NewPostgresStore(db),
		Notifier: notifier,
		Logger:   logger,
	})

	result, err := engine.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("trader run completed", utils.RunID(result.RunID))
	return nil
}

// pushMetrics отправляет метрики запуска в Pushgateway, если он настроен
func pushMetrics(cfg *config.Config, logger *utils.Logger) {
	if cfg.Metrics.PushgatewayURL == "" {
		return
	}
	err := push.New(cfg.Metrics.PushgatewayURL, cfg.Metrics.JobName).
		Gatherer(prometheus.DefaultGatherer).
		Grouping("env", cfg.Bot.Env).
		Push()
	if err != nil {
		logger.Warn("failed to push metrics", zap.Error(err))
	}
}
