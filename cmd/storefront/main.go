// Command storefront runs the store API with its notification pipeline:
// every catalog and order mutation fans out to the audit log and the
// billing trigger inline, and to the confirmation emailer through the
// durable queue.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/awsomestore/storefront/pkg/storefront/config"
	"github.com/awsomestore/storefront/pkg/storefront/event"
	"github.com/awsomestore/storefront/pkg/storefront/eventlog"
	"github.com/awsomestore/storefront/pkg/storefront/httpapi"
	"github.com/awsomestore/storefront/pkg/storefront/notify"
	"github.com/awsomestore/storefront/pkg/storefront/observability"
	"github.com/awsomestore/storefront/pkg/storefront/orders"
	"github.com/awsomestore/storefront/pkg/storefront/products"
	"github.com/awsomestore/storefront/pkg/storefront/queue"
	"github.com/awsomestore/storefront/pkg/storefront/records"
)

func main() {
	configPath := flag.String("config", "storefront.yaml", "path to the config file")
	flag.Parse()

	// .env is optional local tooling, absence is not an error.
	_ = godotenv.Load()

	settings, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(settings.LogLevel)
	slog.SetDefault(logger)

	if err := run(settings, logger); err != nil {
		logger.Error("storefront exited", "error", err)
		os.Exit(1)
	}
}

func run(settings config.Settings, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetricsRecorder()
	spans := observability.NewSpanManager()

	productStore, err := records.NewSQLiteProductStore(settings.RecordsPath)
	if err != nil {
		return err
	}
	defer productStore.Close()

	orderStore, err := records.NewSQLiteOrderStore(settings.RecordsPath)
	if err != nil {
		return err
	}
	defer orderStore.Close()

	logStore, err := eventlog.NewSQLiteStore(settings.EventLogPath)
	if err != nil {
		return err
	}
	defer logStore.Close()

	orderQueue, err := queue.NewSQLiteQueue(settings.QueuePath, queue.Options{
		MaxReceiveCount:   settings.MaxReceiveCount,
		VisibilityTimeout: settings.VisibilityTimeout,
		Retention:         settings.DeadLetterRetention,
	})
	if err != nil {
		return err
	}
	defer orderQueue.Close()

	registry := event.NewStoreRegistry()

	bus := event.NewBus(event.BusConfig{
		OnPublish: func(env event.Envelope, receipt event.Receipt) {
			metrics.RecordPublish(ctx, string(env.EventType), receipt.PushDispatched, receipt.QueueEnqueued)
			observability.LogPublish(logger, string(env.EventType), receipt.MessageID,
				receipt.PushDispatched, receipt.QueueEnqueued)
		},
		OnPushError: func(env event.Envelope, id event.SubscriptionID, err error) {
			observability.LogPushError(logger, string(env.EventType), string(id), err)
		},
		OnEnqueueError: func(env event.Envelope, id event.SubscriptionID, err error) {
			observability.LogEnqueueError(logger, string(env.EventType), string(id), err)
		},
		Spans: spans,
	})
	defer bus.Close()

	bus.SubscribePush(event.Filter{}, notify.NewAuditLogger(registry, logStore, logger))
	bus.SubscribePush(event.NewFilter(event.OrderCreated),
		notify.NewBillingNotifier(registry, notify.LogGateway{Logger: logger}, logger))
	bus.SubscribeQueue(event.NewFilter(event.OrderCreated), orderQueue)

	emailer := notify.NewOrderEmailer(registry, notify.LogMailer{Logger: logger}, logger)
	consumer := queue.NewConsumer(orderQueue, emailer, queue.ConsumerConfig{
		BatchSize:         settings.BatchSize,
		MaxBatchingWindow: settings.MaxBatchingWindow,
		OnAck: func(msg queue.Message) {
			metrics.RecordDelivery(ctx, string(msg.Envelope.EventType), "ack", msg.DeliveryCount)
			observability.LogDelivery(logger, msg.ID, string(msg.Envelope.EventType), msg.DeliveryCount, "ack")
		},
		OnRetry: func(msg queue.Message, err error) {
			metrics.RecordDelivery(ctx, string(msg.Envelope.EventType), "retry", msg.DeliveryCount)
			observability.LogDelivery(logger, msg.ID, string(msg.Envelope.EventType), msg.DeliveryCount, "retry")
		},
		OnDeadLetter: func(msg queue.Message, err error) {
			metrics.RecordDeadLetter(ctx, string(msg.Envelope.EventType))
			observability.LogDeadLetter(logger, msg.ID, string(msg.Envelope.EventType), msg.DeliveryCount, err)
		},
		Spans: spans,
	})
	consumer.Start(ctx)
	defer consumer.Stop()

	reaper := eventlog.NewReaper(logStore, eventlog.ReaperConfig{
		Interval: settings.ReaperInterval,
		OnPurge:  func(removed int) { observability.LogReaperSweep(logger, removed) },
		OnError:  func(err error) { logger.Error("audit purge failed", "error", err) },
	})
	reaper.Start(ctx)
	defer reaper.Stop()

	productSvc := products.NewService(productStore, registry, bus, logger)
	orderSvc := orders.NewService(orderStore, productStore, registry, bus, logger)

	server := &http.Server{
		Addr:    settings.ListenAddr,
		Handler: httpapi.NewRouter(productSvc, orderSvc, logStore, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("storefront listening", "addr", settings.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
