package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/auction-ledger/internal/adapter/handler"
	"github.com/rl1809/auction-ledger/internal/adapter/publisher"
	"github.com/rl1809/auction-ledger/internal/adapter/scheduler"
	"github.com/rl1809/auction-ledger/internal/adapter/storage"
	"github.com/rl1809/auction-ledger/internal/config"
	"github.com/rl1809/auction-ledger/internal/core/domain"
	"github.com/rl1809/auction-ledger/internal/core/service"
	"github.com/rl1809/auction-ledger/internal/logging"
	"github.com/rl1809/auction-ledger/internal/port"
)

const publishTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		logger.Info("connections closed")
	}()

	// Initialize Redis
	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, rdb.Close)
		logger.Info("connected to redis", slog.String("addr", cfg.Redis.Addr))
	}

	repo, closeRepo, err := openRepository(ctx, cfg, rdb, logger)
	if err != nil {
		return err
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	// Initialize event publishers
	publishers := publisher.Multi{publisher.NewLogPublisher(logger)}
	if cfg.NATS.Enabled {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("auction-ledger"))
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		closers = append(closers, func() error { nc.Close(); return nil })
		publishers = append(publishers, publisher.NewNATSPublisher(nc))
		logger.Info("connected to nats", slog.String("url", cfg.NATS.URL))
	}
	if cfg.Events.RedisPubSub {
		publishers = append(publishers, publisher.NewRedisPublisher(rdb))
	}

	// Initialize service
	timers := scheduler.NewTimerScheduler()
	auctionService := service.NewAuctionService(repo, timers, cfg.Events.QueueSize,
		service.WithLogger(logger),
		service.WithSystemPrincipal(domain.Principal(cfg.Auction.SystemPrincipal)),
	)

	armed, err := auctionService.Resume(ctx)
	if err != nil {
		return err
	}
	logger.Info("resumed active auctions", slog.Int("armed", armed))

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < cfg.Events.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLoop(id, auctionService.EventQueue(), publishers, logger)
		}(i)
	}
	logger.Info("started event workers", slog.Int("count", cfg.Events.Workers))

	// Initialize gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryLoggingInterceptor(logger)))
	handler.NewGRPCHandler(auctionService).Register(grpcServer)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	go func() {
		logger.Info("gRPC server listening", slog.String("addr", cfg.Server.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", slog.String("error", err.Error()))
		}
	}()

	// Initialize HTTP server
	router := mux.NewRouter()
	handler.NewHTTPHandler(auctionService).Routes(router)
	router.Use(handler.RequestLogger(logger))

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler.CORS(cfg.Server.AllowedOrigins)(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", slog.String("addr", cfg.Server.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Pending timers are re-armed by Resume on the next start.
	timers.Stop()

	auctionService.Shutdown()
	wg.Wait()
	logger.Info("workers stopped")

	return nil
}

func openRepository(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (port.AuctionRepository, func() error, error) {
	maxSize := cfg.Storage.MaxRecordSize

	switch cfg.Storage.Driver {
	case config.DriverMySQL:
		db, err := sql.Open("mysql", cfg.Storage.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping mysql: %w", err)
		}
		adapter := storage.NewMySQLAdapter(db, maxSize)
		if err := adapter.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("connected to mysql")
		return adapter, db.Close, nil

	case config.DriverSQLite:
		adapter, err := storage.OpenSQLite(ctx, cfg.Storage.SQLitePath, maxSize)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("opened sqlite store", slog.String("path", cfg.Storage.SQLitePath))
		return adapter, adapter.Close, nil

	case config.DriverRedis:
		logger.Info("using redis store")
		return storage.NewRedisAdapter(rdb, maxSize), nil, nil

	default:
		logger.Warn("using in-memory store, auctions are lost on restart")
		return storage.NewMemoryAdapter(maxSize), nil, nil
	}
}

func workerLoop(id int, queue <-chan domain.AuctionEvent, pub port.EventPublisher, logger *slog.Logger) {
	for event := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)

		if err := pub.Publish(ctx, event); err != nil {
			logger.Error("failed to publish event",
				slog.Int("worker", id),
				slog.String("event_id", event.ID),
				slog.String("type", string(event.Type)),
				slog.String("error", err.Error()),
			)
		}

		cancel()
	}
}
