package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nsridhar76/go-orderflow/internal/eventbus/broker"
	bushealth "github.com/nsridhar76/go-orderflow/internal/eventbus/health"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/idempotency"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/resilience"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/store"
	"github.com/nsridhar76/go-orderflow/internal/orderservice/app"
	"github.com/nsridhar76/go-orderflow/internal/orderservice/consumers"
	"github.com/nsridhar76/go-orderflow/internal/orderservice/httpapi"
)

// Runtime owns every long-lived dependency and goroutine of a running
// Order service process: the HTTP listener, the two inventory-event
// consumer loops, and the operational gRPC health sidecar.
type Runtime struct {
	cfg             Config
	logger          *slog.Logger
	httpServer      *http.Server
	grpcServer      *grpc.Server
	grpcLis         net.Listener
	amqpConn        *amqp.Connection
	channel         *amqp.Channel
	pgPool          *pgxpool.Pool
	redisClient     *redis.Client
	service         *app.Service
	approvedRuntime *broker.Runtime
	rejectedRuntime *broker.Runtime
}

// NewRuntime loads configuration, connects every dependency with
// exponential-backoff reconnection, declares the broker topology, and
// wires the application service and HTTP router.
func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)

	pgPool, err := resilience.Reconnect(ctx, 250*time.Millisecond, func(ctx context.Context) (*pgxpool.Pool, error) {
		return pgxpool.New(ctx, cfg.DatabaseURL)
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := app.MigrateOrders(ctx, pgPool); err != nil {
		return nil, fmt.Errorf("migrate orders table: %w", err)
	}
	if err := store.Migrate(ctx, pgPool); err != nil {
		return nil, fmt.Errorf("migrate events table: %w", err)
	}

	amqpConn, err := resilience.Reconnect(ctx, 250*time.Millisecond, func(ctx context.Context) (*amqp.Connection, error) {
		return amqp.DialConfig(cfg.AMQPURL, amqp.Config{Dial: amqp.DefaultDial(5 * time.Second)})
	})
	if err != nil {
		return nil, fmt.Errorf("connect amqp: %w", err)
	}
	ch, err := amqpConn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := broker.DeclareTopology(ctx, ch); err != nil {
		return nil, fmt.Errorf("declare topology: %w", err)
	}

	var idemStore idempotency.Store
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		idemStore = idempotency.NewRedisStore(redisClient, "idempotency:")
	} else {
		idemStore = idempotency.NewMemoryStore()
	}

	publishBreaker := resilience.New(resilience.BreakerSettings{
		Name:              "order-publisher",
		Enabled:           cfg.BreakerEnabled,
		FailurePercentage: cfg.BreakerFailurePercentage,
		VolumeThreshold:   uint32(cfg.BreakerVolumeThreshold),
		Timeout:           3 * time.Second,
		ResetTimeout:      cfg.BreakerResetSeconds,
	})
	dbBreaker := resilience.New(resilience.BreakerSettings{
		Name:              "order-db",
		Enabled:           cfg.BreakerEnabled,
		FailurePercentage: cfg.BreakerFailurePercentage,
		VolumeThreshold:   uint32(cfg.BreakerVolumeThreshold),
		Timeout:           3 * time.Second,
		ResetTimeout:      cfg.BreakerResetSeconds,
	})

	publisher := broker.NewPublisher(ch, publishBreaker, logger)
	repo := app.NewPostgresRepository(pgPool, dbBreaker)
	eventStore := store.NewPostgresStore(pgPool, dbBreaker)
	service := app.NewService(repo, eventStore, idemStore, publisher, logger)
	service.IDTTL = cfg.IdempotencyTTL

	checker := &bushealth.Checker{
		DB:        pgPool,
		Broker:    broker.ChannelInspector{Channel: ch},
		QueueName: "inventory.reserve.approved.q",
	}

	handler := httpapi.NewHandler(service, checker, logger)
	router := httpapi.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return nil, fmt.Errorf("listen grpc: %w", err)
	}

	approvedRuntime := &broker.Runtime{Queue: "inventory.reserve.approved.q", Prefetch: cfg.Prefetch, MaxRetries: cfg.MaxRetries, Publisher: publisher, Logger: logger}
	rejectedRuntime := &broker.Runtime{Queue: "inventory.reserve.rejected.q", Prefetch: cfg.Prefetch, MaxRetries: cfg.MaxRetries, Publisher: publisher, Logger: logger}

	r := &Runtime{
		cfg:         cfg,
		logger:      logger,
		httpServer:  httpServer,
		grpcServer:  grpcServer,
		grpcLis:     lis,
		amqpConn:    amqpConn,
		pgPool:      pgPool,
		redisClient: redisClient,
		service:     service,
	}
	r.approvedRuntime = approvedRuntime
	r.rejectedRuntime = rejectedRuntime
	r.channel = ch
	return r, nil
}

// Run starts the HTTP listener, the gRPC health sidecar, and both
// inventory-event consumer loops, blocking until ctx is cancelled or any
// of them fails.
func (r *Runtime) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 4)

	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- err
		}
	}()
	go func() {
		approved := consumers.NewInventoryApprovedHandler(r.service, r.logger)
		if err := r.approvedRuntime.Run(ctx, r.channel, approved); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	go func() {
		rejected := consumers.NewInventoryRejectedHandler(r.service, r.logger)
		if err := r.rejectedRuntime.Run(ctx, r.channel, rejected); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "module", "orderservice.bootstrap", "layer", "adapter", "operation", "run", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	_ = r.amqpConn.Close()
	if r.redisClient != nil {
		_ = r.redisClient.Close()
	}
	r.pgPool.Close()
	return nil
}
