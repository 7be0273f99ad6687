package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/vending-machine/internal/adapter/handler"
	"github.com/rl1809/vending-machine/internal/adapter/storage"
	"github.com/rl1809/vending-machine/internal/catalog"
	"github.com/rl1809/vending-machine/internal/config"
	"github.com/rl1809/vending-machine/internal/core/domain"
	"github.com/rl1809/vending-machine/internal/core/service"
	"github.com/rl1809/vending-machine/internal/port"
	"github.com/rl1809/vending-machine/internal/scheduler"
	"github.com/rl1809/vending-machine/pkg/logger"
)

func main() {
	envFile := flag.String("env", ".env", "optional env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		panic(err)
	}

	log := logger.Must(logger.New(cfg.LogLevel))
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Machine
	items, err := catalog.Load(cfg.Machine.CatalogFile)
	if err != nil {
		log.Fatal("failed to load catalog", zap.Error(err))
	}
	inventory, err := domain.NewInventory(items...)
	if err != nil {
		log.Fatal("invalid catalog", zap.Error(err))
	}
	denominations, err := cfg.AcceptedDenominations()
	if err != nil {
		log.Fatal("invalid denominations", zap.Error(err))
	}

	// Archive
	var archive port.TransactionArchive
	var closers []func()

	switch cfg.Archive.Driver {
	case config.ArchiveMySQL:
		db, err := sql.Open("mysql", cfg.Archive.MySQLDSN)
		if err != nil {
			log.Fatal("failed to connect mysql", zap.Error(err))
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			log.Fatal("failed to ping mysql", zap.Error(err))
		}
		mysqlAdapter := storage.NewMySQLAdapter(db)
		if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
			log.Fatal("failed to create mysql schema", zap.Error(err))
		}
		archive = mysqlAdapter
		closers = append(closers, func() { db.Close() })
		log.Info("connected to mysql")

	case config.ArchiveMongo:
		mongoAdapter, err := storage.NewMongoAdapter(ctx, cfg.Archive.MongoURI, cfg.Archive.MongoDB)
		if err != nil {
			log.Fatal("failed to init mongodb archive", zap.Error(err))
		}
		if err := mongoAdapter.EnsureIndexes(ctx); err != nil {
			log.Warn("failed to create mongodb indexes", zap.Error(err))
		}
		archive = mongoAdapter
		closers = append(closers, func() {
			if err := mongoAdapter.Close(context.Background()); err != nil {
				log.Error("failed to close mongodb connection", zap.Error(err))
			}
		})
		log.Info("connected to mongodb")
	}

	// Stock mirror and idempotency
	var mirror port.CacheRepository
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
		mirror = storage.NewRedisAdapter(rdb, cfg.Machine.ID)
		closers = append(closers, func() { rdb.Close() })
		log.Info("connected to redis")
	}

	opts := []service.Option{service.WithLogger(logger.Named(log, "machine"))}
	if mirror != nil {
		opts = append(opts, service.WithIdempotencyCache(mirror))
	}
	vendingService := service.NewVendingService(inventory, domain.NewLedger(denominations...), cfg.Archive.QueueSize, opts...)

	var sched *scheduler.Scheduler
	var archiverOpts []service.ArchiverOption
	if mirror != nil {
		sched, err = scheduler.New(cfg.Scheduler.StockSyncSchedule, vendingService, mirror, logger.Named(log, "scheduler"))
		if err != nil {
			log.Fatal("failed to create scheduler", zap.Error(err))
		}
		archiverOpts = append(archiverOpts, service.WithSyncWatermark(sched.LastSync))
	}

	// Start worker pool
	archiver := service.NewArchiver(archive, mirror, logger.Named(log, "archiver"), archiverOpts...)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Archive.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			archiver.Run(id, vendingService.Settlements())
		}(i)
	}
	log.Info("started archive workers", zap.Int("workers", cfg.Archive.Workers), zap.String("driver", cfg.Archive.Driver))

	if sched != nil {
		sched.Start()
	}

	// gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterVendingMachineServer(grpcServer, handler.NewGRPCHandler(vendingService, archive, logger.Named(log, "grpc")))

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.Fatal("failed to listen", zap.String("addr", cfg.Server.GRPCAddr), zap.Error(err))
	}

	go func() {
		log.Info("gRPC server listening", zap.String("addr", cfg.Server.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("gRPC server error", zap.Error(err))
		}
	}()

	// HTTP server
	httpHandler := handler.NewHTTPHandler(vendingService, archive, logger.Named(log, "http"))
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler.NewRouter(httpHandler, logger.Named(log, "http")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	log.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	log.Info("gRPC server stopped")

	if sched != nil {
		sched.Stop(shutdownCtx)
	}

	// Close settlement queue and wait for workers
	vendingService.Close()
	wg.Wait()
	log.Info("workers stopped")

	for _, closeFn := range closers {
		closeFn()
	}
	log.Info("connections closed")
}
