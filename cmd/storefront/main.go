package main

import (
	"context"
	"log"
	"os"

	router "github.com/Renal37/go-shop-payments/internal/app"
	"github.com/Renal37/go-shop-payments/internal/database"
	"github.com/Renal37/go-shop-payments/internal/events"
	"github.com/Renal37/go-shop-payments/internal/gateway"
	"github.com/Renal37/go-shop-payments/internal/logger"
	"github.com/Renal37/go-shop-payments/internal/services"
	"github.com/Renal37/go-shop-payments/internal/tracing"
	"github.com/Renal37/go-shop-payments/internal/utils"
	"go.uber.org/zap"
)

func main() {
	config, err := NewConfig(os.Args[1:], environment())
	if err != nil {
		log.Fatalf("Config wasn't parsed due to %s", err)
	}

	if err := logger.Initialize(config.LogLevel, config.Env); err != nil {
		log.Fatalf("Logger wasn't initialized due to %s", err)
	}
	defer logger.Log.Sync()

	for _, warning := range config.warnings {
		logger.Log.Warn(warning)
	}

	ctx, stop := utils.HandleTerminationProcess(context.Background())
	defer stop()

	if config.OtelExporterURL != "" {
		shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
			ExporterURL: config.OtelExporterURL,
			ServiceName: config.ServiceName,
			Environment: config.Env,
		})
		if err != nil {
			logger.Log.Fatal("tracer wasn't initialized", zap.Error(err))
		}
		defer func() {
			if err := shutdownTracer(context.WithoutCancel(ctx)); err != nil {
				logger.Log.Error("tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	db, err := database.New(ctx, config.DSN)
	if err != nil {
		logger.Log.Fatal("database wasn't initialized", zap.Error(err))
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Log.Fatal("migrations weren't run", zap.Error(err))
	}

	var publisher services.StatusPublisher = events.LogPublisher{}
	if len(config.KafkaBrokers) > 0 {
		kafkaPublisher, err := events.NewKafkaPublisher(config.KafkaBrokers, config.KafkaTopic, config.ServiceName)
		if err != nil {
			logger.Log.Fatal("kafka publisher wasn't initialized", zap.Error(err))
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	// Очередь не привязана к сигналу: Shutdown дорабатывает принятые уведомления до закрытия издателя
	jobQueueService := services.NewJobQueueService(context.WithoutCancel(ctx), config.NotifyQueueSize, config.NotifyWorkers)
	defer jobQueueService.Shutdown()

	notifier := services.NewStatusNotifier(publisher, jobQueueService)
	reconciler := services.NewReconciler(db, notifier)

	stripeGateway := gateway.NewStripe(gateway.Config{
		SecretKey:     config.StripeSecretKey,
		WebhookSecret: config.WebhookSecret,
		Currency:      config.Currency,
		SuccessURL:    config.SuccessURL,
		CancelURL:     config.CancelURL,
		Timeout:       config.GatewayTimeout,
	})

	logger.Log.Info("running server", zap.String("endpoint", config.Endpoint), zap.String("env", config.Env))

	err = router.New(
		router.Config{Endpoint: config.Endpoint, PaymentRateLimit: config.PaymentRateLimit},
		services.NewAuthService(db, config.AdminLogins),
		services.NewJWTService(config.AuthSecretKey),
		services.NewOrderService(db, config.Currency),
		services.NewPaymentService(db, stripeGateway, reconciler, !config.IsProduction()),
	).Run(ctx)
	if err != nil {
		logger.Log.Error("server stopped with error", zap.Error(err))
	}
}
