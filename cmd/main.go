package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"comanda/internal/api"
	"comanda/internal/config"
	"comanda/internal/database"
	"comanda/internal/events"
	"comanda/internal/importer"
	"comanda/internal/kitchen"
	"comanda/internal/monitoring"
	"comanda/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	port        = flag.Int("port", 0, "API server port (overrides config)")
	metricsPort = flag.Int("metrics-port", 0, "Metrics server port (overrides config)")
	configFile  = flag.String("config", "configs/config.yaml", "Path to configuration file")
	importFile  = flag.String("import", "", "CSV file of ingredient stock to import on start")
)

func main() {
	flag.Parse()

	// Initialize context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *metricsPort != 0 {
		cfg.Metrics.Port = *metricsPort
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.Tracing.ServiceName)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	tp, shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Endpoint:    cfg.Tracing.Endpoint,
		URLPath:     cfg.Tracing.URLPath,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	// Initialize database
	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN, cfg.Database.LogMode)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	monitor := monitoring.NewMonitor()
	hub := events.NewHub(logger.Named("hub"))
	publishers := []events.Publisher{hub}

	var kafkaPublisher *events.KafkaPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher, err = newKafkaPublisher(cfg, tp)
		if err != nil {
			logger.Fatal("Failed to initialize kafka publisher", zap.Error(err))
		}
		publishers = append(publishers, kafkaPublisher)
		logger.Info("Publishing order events to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}
	dispatcher := events.NewDispatcher(logger.Named("events"), 5*time.Second, publishers...)

	k := kitchen.New(db,
		kitchen.WithLogger(logger),
		kitchen.WithObserver(monitor),
		kitchen.WithObserver(dispatcher),
	)

	if cfg.Seed {
		seeded, err := k.Seed(ctx)
		if err != nil {
			logger.Fatal("Failed to seed database", zap.Error(err))
		}
		monitor.RecordMetric("seeded", seeded)
	}
	if *importFile != "" {
		if err := importStock(ctx, k, *importFile, logger, monitor); err != nil {
			logger.Fatal("Failed to import stock", zap.String("file", *importFile), zap.Error(err))
		}
	}

	// Background workers
	var workers sync.WaitGroup
	workerCtx, stopWorkers := context.WithCancel(ctx)
	workers.Add(2)
	go func() {
		defer workers.Done()
		hub.Run(workerCtx)
	}()
	go func() {
		defer workers.Done()
		dispatcher.Run(workerCtx)
	}()

	// Initialize API server
	gin.SetMode(gin.ReleaseMode)
	taxRate := decimal.NewFromFloat(cfg.Receipt.TaxRate)
	kitchenAPI := api.NewKitchenAPI(k, api.Options{
		Hub:       hub,
		Monitor:   monitor,
		Logger:    logger,
		JWTSecret: cfg.Auth.JWTSecret,
		TaxRate:   &taxRate,
	})

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = startMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, monitor.Handler(), logger)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: kitchenAPI.Router,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down servers...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("API server shutdown error", zap.Error(err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("Metrics server shutdown error", zap.Error(err))
			}
		}
	}()

	// Start server
	logger.Info("Starting API server", zap.Int("port", cfg.Port))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("API server error", zap.Error(err))
	}

	// Drain queued events before closing their destinations
	stopWorkers()
	workers.Wait()
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("Failed to close kafka writer", zap.Error(err))
		}
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Error("Failed to flush traces", zap.Error(err))
	}
}

func newKafkaPublisher(cfg *config.Config, tp trace.TracerProvider) (*events.KafkaPublisher, error) {
	writer, err := events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Tracing.ServiceName, tp)
	if err != nil {
		return nil, err
	}
	return events.NewKafkaPublisher(writer), nil
}

func importStock(ctx context.Context, k *kitchen.Kitchen, path string, logger *zap.Logger, monitor *monitoring.Monitor) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	result, err := importer.Import(ctx, f, k.Ledger, logger.Named("importer"))
	if err != nil {
		return err
	}
	monitor.RecordImport(result.Imported, len(result.Skipped))
	return nil
}

func startMetricsServer(port int, path string, handler http.Handler, logger *zap.Logger) *http.Server {
	metricsRouter := gin.New()
	metricsRouter.Use(gin.Recovery())
	metricsRouter.GET(path, gin.WrapH(handler))

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: metricsRouter,
	}

	go func() {
		logger.Info("Starting metrics server", zap.Int("port", port), zap.String("path", path))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()
	return metricsServer
}
