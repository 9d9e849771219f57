package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/chat-service/config"
	"github.com/cwrk-planet/chat-service/internal/events"
	"github.com/cwrk-planet/chat-service/internal/metrics"
	"github.com/cwrk-planet/chat-service/internal/notify"
	"github.com/cwrk-planet/chat-service/internal/repository"
	"github.com/cwrk-planet/chat-service/internal/repository/memory"
	"github.com/cwrk-planet/chat-service/internal/repository/postgres"
	redisstore "github.com/cwrk-planet/chat-service/internal/repository/redis"
	"github.com/cwrk-planet/chat-service/internal/service"
	"github.com/cwrk-planet/chat-service/internal/translate"
	httpx "github.com/cwrk-planet/chat-service/internal/transport/http"
	"github.com/cwrk-planet/chat-service/internal/transport/ws"
	"github.com/cwrk-planet/chat-service/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg := logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		Level:     logger.ParseLevel(cfg.Logging.Level),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	defer func() { _ = logger.Sync() }()
	lg.Info("starting chat-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version, "store", cfg.Store.Backend)

	// --- metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// --- store ---
	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	// --- translation ---
	var tr translate.Translator
	if cfg.Translate.APIKey != "" {
		var opts []translate.GoogleOption
		if cfg.Translate.Endpoint != "" {
			opts = append(opts, translate.WithEndpoint(cfg.Translate.Endpoint))
		}
		tr = translate.NewGoogleClient(cfg.Translate.APIKey, opts...)
	} else {
		lg.Warn("translate.apiKey is empty, messages are shown untranslated")
	}
	resolver := translate.NewResolver(tr, store.Messages(),
		translate.WithLogger(lg.With("component", "resolver")),
		translate.WithMetrics(m),
		translate.WithTimeout(cfg.TranslateTimeout()),
		translate.WithMaxInFlight(cfg.Translate.MaxInFlight),
	)

	// --- push & events ---
	var dispatcher *notify.Dispatcher
	if cfg.Push.Enabled {
		dispatcher = notify.NewDispatcher(
			notify.NewExpoClient(cfg.Push.Endpoint, nil),
			store.Users(),
			lg.With("component", "push"),
			m,
		)
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic,
			events.WithLogger(lg.With("component", "events")),
			events.WithMetrics(m),
		)
		lg.Info("kafka publisher", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	// --- services ---
	chatOpts := []service.ChatOption{
		service.WithPublisher(publisher),
		service.WithLogger(lg.With("component", "chat")),
		service.WithMetrics(m),
		service.WithMaxMessageLen(cfg.Chat.MaxMessageLen),
	}
	if dispatcher != nil {
		chatOpts = append(chatOpts, service.WithNotifier(dispatcher))
	}
	chatSvc := service.NewChatService(store, chatOpts...)
	userSvc := service.NewUserService(store.Users())

	// --- WS Hub & Server ---
	hub := ws.NewHub()
	wsServer := ws.NewServer(ws.Deps{
		Hub:      hub,
		Feed:     store,
		Resolver: resolver,
		Chat:     chatSvc,
		Users:    userSvc,
		Logger:   lg.With("component", "ws"),
		Metrics:  m,
	})
	wsServer.SetPingEvery(cfg.PingEvery())

	// --- HTTP ---
	router := httpx.NewRouter(httpx.RouterDeps{
		Handler:        httpx.NewHandler(chatSvc, userSvc),
		WS:             wsServer.HandleWS,
		Metrics:        m.Handler(),
		Logger:         lg,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		// WriteTimeout не ставим: ws-соединения долгоживущие
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		lg.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		lg.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(ctxShutdown)
	hub.CloseAll()
	dispatcher.Wait()
	if err := publisher.Close(); err != nil {
		lg.Warn("close publisher", "err", err)
	}
	if err := store.Close(); err != nil {
		lg.Warn("close store", "err", err)
	}
	slog.Info("stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Store.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			ApplicationName: cfg.Logging.Service,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if cfg.Postgres.Migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("postgres migrate: %w", err)
			}
		}
		return postgres.New(pool), nil
	case "redis":
		rdb, err := redisstore.NewClient(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		return redisstore.New(rdb), nil
	default:
		return memory.New(), nil
	}
}
