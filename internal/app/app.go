// Package app собирает сервис из конфигурации: хранилища, движок, HTTP API,
// gRPC health, сервер метрик и фоновые воркеры.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/orderapi/internal/auth"
	healthcheck "github.com/vladislavdragonenkov/orderapi/internal/health"
	"github.com/vladislavdragonenkov/orderapi/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderapi/internal/metrics"
	"github.com/vladislavdragonenkov/orderapi/internal/service/idempotency"
	"github.com/vladislavdragonenkov/orderapi/internal/service/orders"
	"github.com/vladislavdragonenkov/orderapi/internal/service/outbox"
	"github.com/vladislavdragonenkov/orderapi/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/orderapi/internal/version"
)

const (
	grpcServiceName   = "orderapi"
	readHeaderTimeout = 5 * time.Second
)

// Run поднимает сервис и блокируется до отмены ctx или падения одного из серверов.
// Отмена ctx — штатное завершение, Run возвращает nil.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	logger.WithField("build", version.String()).Info("starting orderapi")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init dependencies: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.WithError(err).Warn("failed to close dependencies")
		}
	}()

	engine := orders.NewEngine(deps.store,
		orders.WithLogger(log.WithField("component", "orders-engine")),
		orders.WithMetrics(metrics.NewEngineMetricsWithRegisterer(registry)),
		orders.WithPaidOrderLock(cfg.LockPaidOrders),
	)

	var authenticator *auth.Authenticator
	if cfg.AuthEnabled {
		authenticator, err = auth.New(auth.Config{
			Secret:     cfg.JWTSecret,
			Issuer:     cfg.JWTIssuer,
			Audience:   cfg.JWTAudience,
			Expiration: cfg.JWTExpiration,
			Username:   cfg.AuthUsername,
			Password:   cfg.AuthPassword,
		})
		if err != nil {
			return fmt.Errorf("init auth: %w", err)
		}
	} else {
		logger.Warn("authentication is disabled")
	}

	producer, err := initKafkaProducer(cfg, logger)
	if err != nil {
		logger.WithError(err).Warn("kafka is unavailable, events stay in outbox")
	}
	defer closeKafka(producer, logger)

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	startWorkers(workersCtx, &workers, cfg, deps, producer, registry)
	defer func() {
		stopWorkers()
		workers.Wait()
	}()

	healthHandler := newHealthHandler(cfg, deps)

	apiListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	apiServer := &http.Server{
		Handler: httpapi.NewRouter(httpapi.Config{
			Engine:         engine,
			Auth:           authenticator,
			Idempotency:    deps.idempotencyRepo,
			IdempotencyTTL: cfg.IdempotencyTTL,
			Metrics:        metrics.NewHTTPMetrics(registry),
			Logger:         log.WithField("component", "http"),
			RequestTimeout: cfg.RequestTimeout,
			CORS: httpapi.CORSConfig{
				AllowedOrigins:   cfg.CORSAllowedOrigins,
				AllowCredentials: cfg.CORSAllowCredentials,
				MaxAge:           cfg.CORSMaxAge,
			},
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	metricsListener, err := net.Listen("tcp", cfg.MetricsAddr)
	if err != nil {
		_ = apiListener.Close()
		return fmt.Errorf("listen metrics: %w", err)
	}
	metricsServer := &http.Server{
		Handler:           newMetricsMux(registry, healthHandler),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = apiListener.Close()
		_ = metricsListener.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}
	grpcServer, healthServer := newGRPCServer(registry)

	errCh := make(chan error, 3)
	serve := func(name string, fn func() error) {
		go func() {
			if err := fn(); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("%s server: %w", name, err)
			}
		}()
	}
	serve("http", func() error { return apiServer.Serve(apiListener) })
	serve("metrics", func() error { return metricsServer.Serve(metricsListener) })
	serve("grpc", func() error { return grpcServer.Serve(grpcListener) })

	logger.WithFields(log.Fields{
		"http":    apiListener.Addr().String(),
		"grpc":    grpcListener.Addr().String(),
		"metrics": metricsListener.Addr().String(),
	}).Info("servers started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
		logger.WithError(runErr).Error("server failed, shutting down")
	}

	shutdown(cfg.ShutdownBudget, logger, apiServer, metricsServer, grpcServer, healthServer)
	return runErr
}

// startWorkers запускает outbox-воркер (или только наблюдение за backlog без брокера)
// и очистку ключей идемпотентности, если backend её требует.
func startWorkers(ctx context.Context, wg *sync.WaitGroup, cfg Config, deps *runtimeDependencies, producer *kafka.Producer, registry prometheus.Registerer) {
	outboxOptions := []outbox.Option{
		outbox.WithLogger(log.WithField("component", "outbox-worker")),
		outbox.WithMetrics(metrics.NewOutboxMetrics(registry)),
	}
	var publisher *kafka.OutboxTopicPublisher
	if producer != nil {
		publisher = kafka.NewOutboxPublisher(producer, cfg.KafkaTopic)
		outboxOptions = append(outboxOptions, outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, cfg.KafkaDLQTopic)))
	}

	outboxCfg := outbox.Config{
		PollInterval:   cfg.OutboxPollInterval,
		BatchSize:      cfg.OutboxBatchSize,
		MaxAttempts:    cfg.OutboxMaxAttempts,
		RetryBaseDelay: cfg.OutboxRetryBaseDelay,
	}

	wg.Add(1)
	if publisher != nil {
		worker := outbox.NewWorker(deps.store.Outbox(), publisher, outboxCfg, outboxOptions...)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
	} else {
		worker := outbox.NewWorker(deps.store.Outbox(), nil, outboxCfg, outboxOptions...)
		go func() {
			defer wg.Done()
			worker.WatchBacklog(ctx)
		}()
	}

	if deps.idempotencyNeedsCleanup {
		cleanup := idempotency.NewCleanupWorker(deps.idempotencyRepo,
			idempotency.WithLogger(log.WithField("component", "idempotency-cleanup-worker")),
			idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
			idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
			idempotency.WithMetrics(metrics.NewCleanupMetrics(registry)),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			cleanup.Run(ctx)
		}()
	}
}

func newHealthHandler(cfg Config, deps *runtimeDependencies) *healthcheck.Handler {
	handler := healthcheck.NewHandler(version.GetVersion())
	handler.RegisterChecker("storage", healthcheck.NewPingChecker("storage", deps.store.Ping))
	if deps.idempotencyPing != nil {
		handler.RegisterChecker("idempotency", healthcheck.NewPingChecker("idempotency", deps.idempotencyPing))
	}
	handler.RegisterChecker("outbox", healthcheck.NewBacklogChecker("outbox", cfg.OutboxBacklogLimit,
		func(ctx context.Context) (time.Time, error) {
			stats, err := deps.store.Outbox().Stats(ctx)
			return stats.OldestPendingAt, err
		}))
	return handler
}

// newMetricsMux обслуживает /metrics и пробы оркестратора.
func newMetricsMux(registry *prometheus.Registry, healthHandler *healthcheck.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	return mux
}

func newGRPCServer(registry prometheus.Registerer) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := registry.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		}
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	// reflection для grpcurl
	reflection.Register(server)
	grpcMetrics.InitializeMetrics(server)
	return server, healthServer
}

// shutdown останавливает серверы в пределах budget; gRPC по истечении останавливается принудительно.
func shutdown(budget time.Duration, logger *log.Entry, api, metricsSrv *http.Server, grpcServer *grpc.Server, healthServer *health.Server) {
	if budget <= 0 {
		budget = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	healthServer.Shutdown()

	if err := api.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		logger.Warn("graceful stop timed out, forcing grpc stop")
		grpcServer.Stop()
	}

	if err := metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
	logger.Info("servers stopped")
}
