// Package server implements the `broker server` command: the HTTP API plus
// the background scheduler in one process.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	ledgerUsecases "github.com/worldvpn/broker/internal/application/ledger/usecases"
	nodeUsecases "github.com/worldvpn/broker/internal/application/node/usecases"
	sessionUsecases "github.com/worldvpn/broker/internal/application/session/usecases"
	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/infrastructure/config"
	"github.com/worldvpn/broker/internal/infrastructure/database"
	"github.com/worldvpn/broker/internal/infrastructure/email"
	"github.com/worldvpn/broker/internal/infrastructure/migration"
	"github.com/worldvpn/broker/internal/infrastructure/repository"
	"github.com/worldvpn/broker/internal/infrastructure/scheduler"
	"github.com/worldvpn/broker/internal/infrastructure/vpngate"
	httpRouter "github.com/worldvpn/broker/internal/interfaces/http"
	"github.com/worldvpn/broker/internal/shared/constants"
	"github.com/worldvpn/broker/internal/shared/db"
	"github.com/worldvpn/broker/internal/shared/goroutine"
	"github.com/worldvpn/broker/internal/shared/logger"
)

var (
	env                string
	autoMigrate        bool
	skipMigrationCheck bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the broker HTTP server",
		Long:  `Start the broker HTTP API together with the liveness, quota, import, and ledger schedulers.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Automatically run database migrations on startup (not recommended for production)")
	cmd.Flags().BoolVar(&skipMigrationCheck, "skip-migration-check", false, "Skip migration status check on startup")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Server.Mode = mapEnvToGinMode(env)

	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	log := logger.NewLogger()
	log.Infow("starting broker", "environment", env, "auto_migrate", autoMigrate)

	gin.SetMode(cfg.Server.Mode)
	gin.DefaultWriter = io.Discard
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, nuHandlers int) {}

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	if err := handleMigrations(env, log); err != nil {
		return fmt.Errorf("migration handling failed: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	router, err := httpRouter.NewRouter(database.Get(), redisClient, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}
	router.SetupRoutes(cfg, log)

	schedulerManager, err := setupScheduler(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to set up scheduler: %w", err)
	}
	schedulerManager.Start()
	defer func() {
		if err := schedulerManager.Stop(); err != nil {
			log.Errorw("failed to stop scheduler", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      router.GetEngine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	goroutine.SafeGo(log, "http-server", func() {
		log.Infow("server starting", "address", cfg.Server.GetAddr(), "mode", cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("failed to start server", "error", err)
		}
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
		return err
	}

	log.Infow("server exited gracefully")
	return nil
}

// setupScheduler wires the background jobs: node liveness, session grace
// sweeps, daily quota reset, the public gateway import, and the daily ledger
// verification.
func setupScheduler(cfg *config.Config, log logger.Interface) (*scheduler.SchedulerManager, error) {
	gormDB := database.Get()
	nodeRepo := repository.NewNodeRepository(gormDB, log)
	sessionRepo := repository.NewSessionRepository(gormDB, log)
	ledgerRepo := repository.NewLedgerRepository(gormDB, log)
	txManager := db.NewTransactionManager(gormDB)

	policy, err := ledger.LoadPolicy(cfg.Broker.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load settlement policy: %w", err)
	}

	closer := sessionUsecases.NewCloseSessionService(
		sessionRepo, nodeRepo, ledgerRepo, policy, txManager, nil, log)

	livenessSweep := nodeUsecases.NewSweepLivenessUseCase(
		nodeRepo, closer, cfg.Broker.LivenessWindow, nil, log)
	sessionSweep := sessionUsecases.NewSweepSessionsUseCase(
		sessionRepo, closer, cfg.Broker.GracePeriod, nil, log)
	quotaReset := nodeUsecases.NewResetDailyQuotaUseCase(nodeRepo, log)

	mailer := email.NewSMTPAlertMailer(cfg.Email, log)
	ledgerVerify := ledgerUsecases.NewVerifyLedgerUseCase(ledgerRepo, mailer, log)

	manager, err := scheduler.NewSchedulerManager(log)
	if err != nil {
		return nil, err
	}

	if err := manager.RegisterLivenessJobs(cfg.Broker.SweepInterval, livenessSweep, sessionSweep); err != nil {
		return nil, err
	}
	if err := manager.RegisterQuotaResetJob(quotaReset); err != nil {
		return nil, err
	}
	if err := manager.RegisterLedgerJobs(ledgerVerify); err != nil {
		return nil, err
	}
	if cfg.VPNGate.Enabled {
		importer := vpngate.NewImporter(cfg.VPNGate, nodeRepo, log)
		if err := manager.RegisterImportJobs(cfg.VPNGate.Interval, importer); err != nil {
			return nil, err
		}
	}

	return manager, nil
}

func handleMigrations(environment string, log logger.Interface) error {
	if skipMigrationCheck {
		log.Infow("skipping migration check")
		return nil
	}

	if !autoMigrate {
		return nil
	}
	if environment == constants.EnvProduction {
		return fmt.Errorf("auto-migrate is not allowed in production, run `broker migrate up` instead")
	}

	manager := migration.NewManager(environment)
	if err := manager.Migrate(database.Get(), migration.AutoMigrateModels()...); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	log.Infow("auto-migration completed", "strategy", manager.GetStrategy().GetName())
	return nil
}

func mapEnvToGinMode(environment string) string {
	switch environment {
	case constants.EnvProduction:
		return gin.ReleaseMode
	case constants.EnvTest:
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}
