package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"example.com/shareactivities/internal/config"
	"example.com/shareactivities/internal/consumer"
	"example.com/shareactivities/internal/logging"
	"example.com/shareactivities/internal/notify"
	"example.com/shareactivities/internal/persistence"
	"example.com/shareactivities/internal/push"
)

func main() {
	cfg := config.Load()
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile, Prefix: "consumer"})
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}
	texts, err := consumer.TextsFor(cfg.Locale)
	if err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := persistence.Open(ctx, persistence.BackendPostgres, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to open store", "err", err)
	}
	defer stores.Close()

	transport := push.NewExpoClient(cfg.PushEndpoint, cfg.PushTimeout, push.WithLogger(logger.WithPrefix("push")))
	sink := notify.NewSink(stores.Users, transport,
		notify.WithLogger(logger.WithPrefix("notify")),
		notify.WithTimeout(cfg.PushTimeout),
		notify.WithParallelism(cfg.NotifyParallelism),
	)
	notifications := consumer.NewNotificationHandler(stores.Families, notify.NewResolver(stores.Families, stores.Users), sink,
		consumer.WithNotificationLogger(logger),
		consumer.WithTexts(texts),
	)
	handler := consumer.NewEventLog(stores.Pool, notifications)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}

	go func() {
		logger.Info("consumer metrics listening", "addr", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "err", err)
		}
	}()

	var wg sync.WaitGroup
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	for _, topic := range cfg.ConsumerTopics {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.KafkaBrokers,
			GroupID:         cfg.ConsumerGroupID,
			Topic:           topic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			CommitInterval:  time.Second,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})

		proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(logger.With("topic", topic)))

		wg.Add(1)
		go func(topic string, r *kafka.Reader) {
			defer wg.Done()
			defer r.Close()

			logger.Info("consumer started", "topic", topic, "group", cfg.ConsumerGroupID)
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("consumer stopped", "topic", topic, "err", err)
			}
		}(topic, reader)
	}

	<-stop
	logger.Info("consumer shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown error", "err", err)
	}

	wg.Wait()
}
