package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nsridhar76/go-orderflow/internal/eventbus/broker"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/resilience"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/store"
	"github.com/nsridhar76/go-orderflow/internal/inventoryservice/app"
	"github.com/nsridhar76/go-orderflow/internal/inventoryservice/consumers"
)

// Runtime owns every long-lived dependency and goroutine of a running
// Inventory service process: the two order-event consumer loops and the
// operational gRPC health sidecar. The Inventory service has no HTTP
// surface per spec §5/§6.
type Runtime struct {
	cfg              Config
	logger           *slog.Logger
	grpcServer       *grpc.Server
	grpcLis          net.Listener
	amqpConn         *amqp.Connection
	channel          *amqp.Channel
	pgPool           *pgxpool.Pool
	service          *app.Service
	createdRuntime   *broker.Runtime
	cancelledRuntime *broker.Runtime
}

// NewRuntime loads configuration, connects dependencies with
// exponential-backoff reconnection, declares the broker topology, and
// wires the application service.
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

	dbBreaker := resilience.New(resilience.BreakerSettings{
		Name:              "inventory-db",
		Enabled:           cfg.BreakerEnabled,
		FailurePercentage: cfg.BreakerFailurePercentage,
		VolumeThreshold:   uint32(cfg.BreakerVolumeThreshold),
		Timeout:           3 * time.Second,
		ResetTimeout:      cfg.BreakerResetSeconds,
	})
	publishBreaker := resilience.New(resilience.BreakerSettings{
		Name:              "inventory-publisher",
		Enabled:           cfg.BreakerEnabled,
		FailurePercentage: cfg.BreakerFailurePercentage,
		VolumeThreshold:   uint32(cfg.BreakerVolumeThreshold),
		Timeout:           3 * time.Second,
		ResetTimeout:      cfg.BreakerResetSeconds,
	})

	eventStore := store.NewPostgresStore(pgPool, dbBreaker)
	publisher := broker.NewPublisher(ch, publishBreaker, logger)
	service := app.NewService(eventStore, publisher, logger)

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return nil, fmt.Errorf("listen grpc: %w", err)
	}

	return &Runtime{
		cfg:              cfg,
		logger:           logger,
		grpcServer:       grpcServer,
		grpcLis:          lis,
		amqpConn:         amqpConn,
		channel:          ch,
		pgPool:           pgPool,
		service:          service,
		createdRuntime:   &broker.Runtime{Queue: "order.created.q", Prefetch: cfg.Prefetch, MaxRetries: cfg.MaxRetries, Publisher: publisher, Logger: logger},
		cancelledRuntime: &broker.Runtime{Queue: "orders.cancelled.q", Prefetch: cfg.Prefetch, MaxRetries: cfg.MaxRetries, Publisher: publisher, Logger: logger},
	}, nil
}

// Run starts the gRPC health sidecar and both consumer loops, blocking
// until ctx is cancelled or any of them fails.
func (r *Runtime) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 3)

	go func() {
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- err
		}
	}()
	go func() {
		handler := consumers.NewOrdersCreatedHandler(r.service, r.logger)
		if err := r.createdRuntime.Run(ctx, r.channel, handler); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	go func() {
		handler := consumers.NewOrdersCancelledHandler(r.service, r.logger)
		if err := r.cancelledRuntime.Run(ctx, r.channel, handler); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "module", "inventoryservice.bootstrap", "layer", "adapter", "operation", "run", "error", err)
	}

	r.grpcServer.GracefulStop()
	_ = r.amqpConn.Close()
	r.pgPool.Close()
	return nil
}
