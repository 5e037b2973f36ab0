package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"loan-intake/internal/analytics"
	"loan-intake/internal/common/aws"
	"loan-intake/internal/common/config"
	"loan-intake/internal/common/database"
	"loan-intake/internal/common/hubspot"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/observability"
	"loan-intake/internal/intake"
	"loan-intake/internal/iplookup"
	"loan-intake/internal/leads"
	"loan-intake/internal/schedule"
	"loan-intake/internal/server"
	"loan-intake/internal/storage"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service":     cfg.App.Name,
		"environment": cfg.App.Environment,
	})

	zapLog.Info("Starting intake server...",
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("mockServices", cfg.Leads.MockServices),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()
	readiness := map[string]server.Pinger{}

	// --- Storage ---
	var sessionKV, durableKV storage.KV
	switch cfg.Storage.Driver {
	case config.StorageDriverExternal:
		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Storage.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		zapLog.Info("Redis connected successfully")

		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Storage.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("postgres schema setup failed", zap.Error(err))
		}
		zapLog.Info("PostgreSQL connected successfully")

		sessionKV = storage.NewRedisKV(rdb.GetClient(), config.GetDuration(cfg.Storage.SessionTTL))
		durableKV = storage.NewPostgresKV(pg.GetDB())
		readiness["redis"] = rdb
		readiness["postgres"] = pg
	default:
		zapLog.Warn("Using in-memory storage; state is lost on restart")
		sessionKV = storage.NewMemoryKV()
		durableKV = storage.NewMemoryKV()
	}

	// --- Analytics ---
	sink := analytics.Multi{analytics.NewLogSink(log)}
	if cfg.Analytics.AWS.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Analytics.AWS.Region, cfg.Analytics.AWS.SNS.TopicARN)
		if err != nil {
			zapLog.Fatal("failed to create SNS client", zap.Error(err))
		}
		sink = append(sink, analytics.NewSNSSink(snsClient))
		zapLog.Info("SNS analytics sink enabled", zap.String("topic", cfg.Analytics.AWS.SNS.TopicARN))
	}

	var forms intake.FormSubmitter
	if hs := cfg.Analytics.HubSpot; hs.Enabled {
		client, err := hubspot.NewFormsClient(hubspot.Config{
			BaseURL:  hs.BaseURL,
			PortalID: hs.PortalID,
			Forms: hubspot.FormIDs{
				Email:         hs.Forms.Email,
				BirthDate:     hs.Forms.BirthDate,
				Phone:         hs.Forms.Phone,
				ScheduledCall: hs.Forms.ScheduledCall,
			},
			Timeout: config.GetDuration(hs.Timeout),
		})
		if err != nil {
			zapLog.Fatal("failed to create HubSpot client", zap.Error(err))
		}
		forms = client
	}

	var resolver iplookup.Resolver
	if cfg.IPLookup.Enabled {
		resolver = iplookup.NewClient(cfg.IPLookup.URL, config.GetDuration(cfg.IPLookup.Timeout))
	}

	calendar, err := schedule.NewCalendar(cfg.Intake.ScheduleTimezone)
	if err != nil {
		zapLog.Fatal("invalid schedule timezone", zap.Error(err))
	}

	factory := leads.NewFactory(leads.Dependencies{Logger: log, Observer: obs}, cfg.Leads)

	srv := server.New(server.Dependencies{
		SessionKV:  sessionKV,
		DurableKV:  durableKV,
		Leads:      factory,
		Sink:       sink,
		Forms:      forms,
		IPResolver: resolver,
		Calendar:   calendar,
		Logger:     log,
		Readiness:  readiness,
	}, server.Options{
		Intake: intake.Options{
			MaxAttempts:         cfg.Intake.MaxContactAttempts,
			OffersRedirectURL:   cfg.Intake.OffersRedirectURL,
			OffersRedirectDelay: config.GetDuration(cfg.Intake.OffersRedirectDelay),
		},
		BlockWindow:    time.Duration(cfg.Intake.BlockDays) * 24 * time.Hour,
		SessionIdleTTL: config.GetDuration(cfg.Server.SessionIdleTTL),
	})

	stopEviction := make(chan struct{})
	go srv.Registry().RunEviction(time.Minute, stopEviction)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srv.Routes(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("Intake API listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("Intake API server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	close(stopEviction)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down intake API", zap.Error(err))
	}

	zapLog.Info("Intake server stopped gracefully")
}
