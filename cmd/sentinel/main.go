package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sentinelops/anomaly-sentinel/internal/api/rest"
	"github.com/sentinelops/anomaly-sentinel/internal/api/websocket"
	"github.com/sentinelops/anomaly-sentinel/internal/infrastructure/cache"
	"github.com/sentinelops/anomaly-sentinel/internal/infrastructure/config"
	"github.com/sentinelops/anomaly-sentinel/internal/infrastructure/database"
	"github.com/sentinelops/anomaly-sentinel/internal/infrastructure/ledgerstore"
	"github.com/sentinelops/anomaly-sentinel/internal/infrastructure/mail"
	"github.com/sentinelops/anomaly-sentinel/internal/infrastructure/telemetry"
	auditsvc "github.com/sentinelops/anomaly-sentinel/internal/service/audit"
	"github.com/sentinelops/anomaly-sentinel/internal/service/detection"
	"github.com/sentinelops/anomaly-sentinel/internal/service/notification"
)

func main() {
	var runOnce = flag.Bool("once", false, "Run a single detection cycle and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to set up infrastructure logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx := context.Background()

	provider, err := telemetry.InitializeOpenTelemetry(ctx, &telemetry.Config{
		ServiceName:    "anomaly-sentinel",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SamplingRate:   cfg.Telemetry.SampleRate,
		ExportTimeout:  30 * time.Second,
		BatchTimeout:   5 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	pool, err := database.NewConnectionPool(ctx, &cfg.Database, zapLogger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	source := database.NewMetricSource(pool.Pool(), zapLogger)
	sink := database.NewAnomalyStore(pool.Pool(), zapLogger)

	var fingerprints detection.FingerprintStore
	if cfg.Detection.DedupEnabled && cfg.Redis.URL != "" {
		redisClient, err := cache.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		fingerprints = cache.NewFingerprintStore(redisClient)
	}

	var ledger *auditsvc.Service
	if cfg.Ledger.Enabled {
		store, err := ledgerstore.NewFileStore(cfg.Ledger.Path)
		if err != nil {
			log.Fatalf("Failed to open ledger storage: %v", err)
		}
		ledger, err = auditsvc.NewService(ctx, store, logger)
		if err != nil {
			log.Fatalf("Failed to load audit ledger: %v", err)
		}
	}

	var dispatcher detection.Dispatcher
	if len(cfg.Notifier.AdminRecipients) > 0 {
		transport := mail.NewSMTPTransport(mail.Config{
			Host:     cfg.Notifier.SMTPHost,
			Port:     cfg.Notifier.SMTPPort,
			Username: cfg.Notifier.SMTPUsername,
			Password: cfg.Notifier.SMTPPassword,
			From:     cfg.Notifier.FromAddress,
		}, zapLogger)
		dispatcher, err = notification.NewService(transport, notification.Config{
			AdminRecipients:    cfg.Notifier.AdminRecipients,
			CustomerRecipients: cfg.Notifier.CustomerRecipients,
			SendsPerSecond:     cfg.Notifier.SendsPerSecond,
			SendBurst:          cfg.Notifier.SendBurst,
			SendTimeout:        cfg.Notifier.SendTimeout,
		}, logger)
		if err != nil {
			log.Fatalf("Failed to set up notifier: %v", err)
		}
	}

	hub := websocket.NewEventHub(zapLogger)
	hubStop := make(chan struct{})
	go hub.Run(hubStop)
	defer close(hubStop)

	var ledgerForDetection detection.CycleLedger
	if ledger != nil {
		ledgerForDetection = ledger
	}

	detector, err := detection.NewService(source, sink, fingerprints, dispatcher,
		ledgerForDetection, hub, detectionConfig(&cfg.Detection), logger)
	if err != nil {
		log.Fatalf("Failed to set up detection service: %v", err)
	}
	instrumented := &instrumentedDetector{inner: detector}

	if *runOnce {
		result, err := instrumented.RunCycle(ctx)
		if err != nil {
			log.Fatalf("Detection cycle failed: %v", err)
		}
		logger.Info("detection cycle finished", "anomalies", len(result.Events))
		return
	}

	server := rest.NewServer(&cfg.Server, instrumented, ledger, hub, pool.HealthCheck, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	stopTicker := make(chan struct{})
	go runOnTimer(ctx, instrumented, cfg.Detection.Interval, stopTicker, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	close(stopTicker)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
}

// runOnTimer triggers a detection cycle on the configured interval until stop
// is closed.
func runOnTimer(ctx context.Context, detector detection.Service, interval time.Duration,
	stop <-chan struct{}, logger *slog.Logger) {

	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := detector.RunCycle(ctx); err != nil {
				logger.Error("scheduled detection cycle failed", "error", err)
			}
		case <-stop:
			return
		}
	}
}

func detectionConfig(cfg *config.DetectionConfig) detection.Config {
	return detection.Config{
		IsolationTrees:          cfg.IsolationTrees,
		IsolationSampleSize:     cfg.IsolationSampleSize,
		IsolationScoreThreshold: cfg.IsolationScoreThreshold,
		IsolationSeed:           cfg.IsolationSeed,
		ModifiedZScoreThreshold: cfg.ModifiedZScoreThreshold,
		PriceChangeThreshold:    cfg.PriceChangeThreshold,
		SentimentWindow:         cfg.SentimentWindow,
		SentimentMinSamples:     cfg.SentimentMinSamples,
		SentimentDriftThreshold: cfg.SentimentDriftThreshold,
		FactorySigma:            cfg.FactorySigma,
		FactoryFlatLowFactor:    cfg.FactoryFlatLowFactor,
		FactoryFlatHighFactor:   cfg.FactoryFlatHighFactor,
		TukeyMultiplier:         cfg.TukeyMultiplier,
		MarketShareSigma:        cfg.MarketShareSigma,
		FetchTimeout:            cfg.FetchTimeout,
		CycleBudget:             cfg.CycleBudget,
		DedupEnabled:            cfg.DedupEnabled,
		DedupCooldown:           cfg.DedupCooldown,
	}
}
