package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/quickserve/pos-device-access/internal/app"
	"github.com/quickserve/pos-device-access/internal/config"
	"github.com/quickserve/pos-device-access/internal/domain"
	"github.com/quickserve/pos-device-access/internal/http/handler"
	"github.com/quickserve/pos-device-access/internal/http/middleware"
	"github.com/quickserve/pos-device-access/internal/http/router"
	"github.com/quickserve/pos-device-access/internal/observability"
	"github.com/quickserve/pos-device-access/internal/repository"
	"github.com/quickserve/pos-device-access/internal/security"
	"github.com/quickserve/pos-device-access/internal/service"
	"github.com/quickserve/pos-device-access/internal/tools/common"
	"github.com/quickserve/pos-device-access/internal/tools/loadgen"
)

func main() {
	root := &cobra.Command{
		Use:   "pos-device-access",
		Short: "Device-bound session authentication for POS fleets",
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newLoadgenCommand())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServeCommand() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the device access service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := common.LoadEnvFile(envFile); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "optional env file")
	return cmd
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, loggerProvider, err := observability.InitLogging(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	runtime, err := observability.InitRuntime(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	runtime.LoggerProvider = loggerProvider

	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&domain.Device{}, &domain.Session{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	var redisClient *redis.Client
	lookupCache := service.NegativeLookupCache(service.NewInMemoryNegativeLookupCache())
	var globalLimiter, authLimiter func(http.Handler) http.Handler
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		lookupCache = service.NewRedisNegativeLookupCache(redisClient, "")
		limiter := middleware.NewRedisFixedWindowLimiter(redisClient, "")
		globalLimiter = middleware.NewRateLimiterWith(limiter, cfg.APIRateLimitRPM, time.Minute,
			middleware.FailOpen, "api", nil).Middleware()
		authLimiter = middleware.NewRateLimiterWith(limiter, cfg.AuthRateLimitRPM, time.Minute,
			middleware.FailOpen, "device_auth", middleware.FingerprintOrIPKey).Middleware()
	}

	devices := repository.NewDeviceRepository(db)
	sessions := repository.NewSessionRepository(db)
	authorizer := service.NewAuthorizer()
	sessSvc := service.NewSessionService(sessions, devices, authorizer, cfg.SessionDuration, cfg.IdleThreshold)
	devSvc := service.NewDeviceService(devices, sessSvc, authorizer, lookupCache, logger)
	sweeper := service.NewExpirySweeper(sessions, cfg.SweepInterval, logger)
	tokens := security.NewSessionTokenManager("pos-device-access", "pos-clients", cfg.SessionTokenSecret)

	mux := router.NewRouter(router.Dependencies{
		DeviceHandler:    handler.NewDeviceHandler(devSvc, tokens),
		SessionHandler:   handler.NewSessionHandler(sessSvc),
		AdminHandler:     handler.NewAdminHandler(devSvc),
		TokenManager:     tokens,
		CORSOrigins:      cfg.CORSOrigins,
		APIRateLimitRPM:  cfg.APIRateLimitRPM,
		AuthRateLimitRPM: cfg.AuthRateLimitRPM,
		GlobalLimiter:    globalLimiter,
		AuthLimiter:      authLimiter,
		Readiness: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			if err := sqlDB.PingContext(ctx); err != nil {
				return err
			}
			if redisClient != nil {
				return redisClient.Ping(ctx).Err()
			}
			return nil
		},
		EnableOTelHTTP: cfg.OTELTracesEnabled,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	a := app.New(cfg, logger, server, runtime, sweeper)
	err = a.Run(ctx)
	if redisClient != nil {
		_ = redisClient.Close()
	}
	return err
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	}
	if cfg.DatabaseURL != "" {
		return gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
	}
	// Dev profile runs on a local sqlite file.
	return gorm.Open(sqlite.Open("pos-device-access.db"), gormCfg)
}

func newLoadgenCommand() *cobra.Command {
	cfg := loadgen.Config{}
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Generate synthetic device traffic",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := loadgen.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			fmt.Printf("total=%d failures=%d classes=%v\n",
				result.TotalRequests, result.Failures, result.StatusClasses)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVar(&cfg.Profile, "profile", "mixed", "traffic profile: auth, heartbeat, mixed")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 10*time.Second, "run duration")
	cmd.Flags().IntVar(&cfg.RPS, "rps", 10, "requests per second")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 4, "worker count")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", 42, "rng seed")
	return cmd
}
