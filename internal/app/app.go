package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/serviceflow/internal/health"
	"github.com/vladislavdragonenkov/serviceflow/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/serviceflow/internal/metrics"
	"github.com/vladislavdragonenkov/serviceflow/internal/service/auth"
	"github.com/vladislavdragonenkov/serviceflow/internal/service/orders"
	"github.com/vladislavdragonenkov/serviceflow/internal/service/outbox"
	"github.com/vladislavdragonenkov/serviceflow/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/serviceflow/internal/version"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// App: собранный API-сервер со всеми зависимостями.
type App struct {
	cfg      Config
	logger   *log.Entry
	storage  *Storage
	producer *kafka.Producer
	worker   *outbox.Worker
	cleanup  *auth.CleanupWorker
	api      http.Handler
	ops      http.Handler
}

// New собирает приложение: хранилище, сервисы, HTTP-обработчики и outbox worker.
// ctx ограничивает фоновые задачи (очистку rate limiter).
func New(ctx context.Context, cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := log.WithField("component", "app")

	storage, err := openStorage(ctx, cfg, logger.WithField("layer", "storage"))
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	orderMetrics := metrics.NewOrderMetrics(registry)

	a := &App{cfg: cfg, logger: logger, storage: storage}

	orderOpts := []orders.Option{
		orders.WithTimeline(storage.Timeline),
		orders.WithMetrics(orderMetrics),
		orders.WithLogger(logger.WithField("layer", "orders")),
	}

	producer, err := initKafkaProducer(cfg.KafkaBrokers, logger.WithField("layer", "kafka"))
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
	}
	if producer != nil {
		a.producer = producer
		outboxMetrics := metrics.NewOutboxMetrics(registry)
		a.worker = outbox.NewWorker(storage.Outbox, kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
			outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, cfg.KafkaDLQTopic)),
			outbox.WithMetrics(outboxMetrics),
			outbox.WithLogger(logger.WithField("layer", "outbox")),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		// Outbox пишется только когда есть кому его вычитывать.
		orderOpts = append(orderOpts, orders.WithOutbox(storage.Outbox))
		if storage.Tx != nil {
			orderOpts = append(orderOpts, orders.WithTransactor(storage.Tx))
		}
	}

	authService, err := auth.NewService(storage.Users, storage.Revoked,
		auth.Config{Secret: cfg.JWTSecret, TokenTTL: cfg.TokenTTL},
		auth.WithMetrics(orderMetrics),
		auth.WithLogger(logger.WithField("layer", "auth")),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init auth: %w", err)
	}

	handler := httpapi.NewHandler(orders.NewService(storage.Orders, orderOpts...), authService,
		httpapi.WithRateLimiter(httpapi.NewRateLimiter(ctx, cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst)),
		httpapi.WithMetrics(orderMetrics),
		httpapi.WithHTTPMetrics(metrics.NewHTTPMetrics(registry)),
		httpapi.WithLogger(logger.WithField("layer", "http")),
	)
	a.cleanup = auth.NewCleanupWorker(storage.Revoked,
		auth.WithCleanupInterval(cfg.RevocationCleanupInterval),
		auth.WithCleanupMetrics(metrics.NewCleanupMetrics(registry)),
		auth.WithCleanupLogger(logger.WithField("layer", "revocation-cleanup")),
	)
	a.api = handler.Router()
	a.ops = a.opsHandler(registry)
	return a, nil
}

func (a *App) opsHandler(registry *prometheus.Registry) http.Handler {
	healthHandler := health.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", health.NewSimpleChecker("storage", a.storage.Ping))
	if a.worker != nil {
		healthHandler.RegisterChecker("outbox", health.NewBacklogChecker("outbox",
			health.BacklogFunc(func(ctx context.Context) (int, error) {
				stats, err := a.storage.Outbox.Stats(ctx)
				return stats.PendingCount, err
			}), a.cfg.OutboxMaxPending))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", health.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	return mux
}

// APIHandler возвращает REST API.
func (a *App) APIHandler() http.Handler { return a.api }

// OpsHandler возвращает /metrics, /healthz, /livez и /readyz.
func (a *App) OpsHandler() http.Handler { return a.ops }

// Close закрывает Kafka producer и хранилище.
func (a *App) Close() {
	closeKafka(a.producer, a.logger)
	if err := a.storage.Close(); err != nil {
		a.logger.WithError(err).Warn("failed to close storage")
	}
}

// Run запускает API и ops-серверы и блокируется до отмены ctx или ошибки сервера.
// При отмене ctx возвращает ctx.Err().
func Run(ctx context.Context, cfg Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		if a.worker != nil {
			a.worker.Run(ctx)
		}
	}()
	go func() {
		defer workers.Done()
		a.cleanup.Run(ctx)
	}()
	workersDone := make(chan struct{})
	go func() {
		workers.Wait()
		close(workersDone)
	}()

	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: a.api, ReadHeaderTimeout: readHeaderTimeout}
	opsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: a.ops, ReadHeaderTimeout: readHeaderTimeout}

	errCh := make(chan error, 2)
	serve := func(srv *http.Server, name string) {
		a.logger.WithField("addr", srv.Addr).Infof("%s server listening", name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s server: %w", name, err)
		}
	}
	go serve(apiSrv, "api")
	if cfg.MetricsAddr != "" {
		go serve(opsSrv, "ops")
	}

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
		a.logger.Info("shutdown signal received, stopping servers")
	case runErr = <-errCh:
		a.logger.WithError(runErr).Error("server failed, shutting down")
	}

	cancel()
	shutdownHTTP(apiSrv, a.logger)
	shutdownHTTP(opsSrv, a.logger)

	select {
	case <-workersDone:
	case <-time.After(shutdownTimeout):
		a.logger.Warn("background workers did not stop in time")
	}
	return runErr
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).WithField("addr", srv.Addr).Warn("http shutdown with error")
	}
}
