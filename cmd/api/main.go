package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/shareactivities/internal/api"
	"example.com/shareactivities/internal/auth"
	"example.com/shareactivities/internal/chat"
	"example.com/shareactivities/internal/config"
	"example.com/shareactivities/internal/domain"
	"example.com/shareactivities/internal/logging"
	"example.com/shareactivities/internal/notify"
	"example.com/shareactivities/internal/outbox"
	"example.com/shareactivities/internal/persistence"
	"example.com/shareactivities/internal/push"
	httptransport "example.com/shareactivities/internal/transport/http"
	"example.com/shareactivities/internal/transport/ws"
)

func main() {
	cfg := config.Load()
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile, Prefix: "api"})
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := persistence.Open(ctx, cfg.StoreBackend, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to open store", "backend", cfg.StoreBackend, "err", err)
	}
	defer stores.Close()

	var dispatcher *outbox.Dispatcher
	if stores.Pool != nil {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL, nil)
		dispatcher = outbox.NewDispatcher(stores.Pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
			outbox.WithLogger(logger.WithPrefix("outbox")))
		go dispatcher.Start(ctx)
	}

	transport := push.NewExpoClient(cfg.PushEndpoint, cfg.PushTimeout, push.WithLogger(logger.WithPrefix("push")))
	sink := notify.NewSink(stores.Users, transport,
		notify.WithLogger(logger.WithPrefix("notify")),
		notify.WithTimeout(cfg.PushTimeout),
		notify.WithParallelism(cfg.NotifyParallelism),
	)
	resolver := notify.NewResolver(stores.Families, stores.Users)

	chatService := chat.NewService(
		chat.NewRegistry(chat.WithRegistryLogger(logger.WithPrefix("rooms"))),
		stores.Chat, stores.Users, stores.Families, resolver, sink,
		chat.WithLogger(logger.WithPrefix("chat")),
		chat.WithNotifyTimeout(cfg.ChatNotifyTimeout),
	)
	wsHandler := ws.NewHandler(chatService, ws.WithLogger(logger.WithPrefix("ws")), ws.WithSendBuffer(cfg.ChatSendBuffer))

	handler := api.NewHandler(domain.NewService(stores.Activities), chatService,
		api.WithLogger(logger),
		api.WithWebsocket(wsHandler),
	)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	requestLogger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("request", "method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:     cfg.HTTPAddress,
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 60 * time.Second,
		Logger:      logger.WithPrefix("http"),
	}, authMiddleware.Wrap(requestLogger(mux)))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("shareactivities api listening", "addr", cfg.HTTPAddress, "store", cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", "err", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "err", err)
	}

	chatService.Wait()
	if dispatcher != nil {
		dispatcher.Wait()
	}
}
