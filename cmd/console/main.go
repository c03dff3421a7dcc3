package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"adminconsole/internal/console/adapters/api"
	consolehttp "adminconsole/internal/console/adapters/http"
	"adminconsole/internal/console/adapters/http/middleware"
	"adminconsole/internal/console/adapters/storage"
	"adminconsole/internal/console/app/instance"
	"adminconsole/internal/console/config"
	storagePorts "adminconsole/internal/console/ports/storage"
	"adminconsole/internal/console/resilience"
	"adminconsole/pkg/logger"
	"adminconsole/pkg/metrics"
	"adminconsole/pkg/shutdown"
)

// Константы для переменных окружения.
const (
	EnvLoggerMode  = "CONSOLE_LOGGER_MODE"
	EnvLoggerLevel = "CONSOLE_LOGGER_LEVEL"
)

// Константы для сообщений об ошибках.
const (
	ErrInitLogger           = "failed to initialize logger"
	ErrSyncLogger           = "failed to sync logger"
	ErrLoadConfig           = "failed to load configuration"
	ErrInitLoggerWithConfig = "failed to initialize logger with configuration settings"
	ErrCreateAPIClient      = "failed to create api client"
	ErrConnectRedis         = "failed to connect to Redis"
	ErrStartHTTPServer      = "failed to start HTTP server"
	ErrShutdown             = "graceful shutdown finished with errors"
)

// Константы для игнорируемых ошибок.
const (
	ErrSyncStderr = "sync /dev/stderr: invalid argument"
	ErrSyncStdout = "sync /dev/stdout: invalid argument"
)

// Константы для сообщений сервиса.
const (
	LogServiceStarted      = "admin console started"
	LogServiceShutdownDone = "admin console shutdown complete"
	LogStoppingHTTP        = "stopping HTTP server"
	LogInitStorage         = "initializing storage"
	LogInitAPIClient       = "initializing api client"
	LogInitHTTPServer      = "initializing HTTP server"
	LogStartingHTTP        = "starting HTTP server"
)

func main() {
	env := logger.Development
	if strings.ToLower(os.Getenv(EnvLoggerMode)) == "production" {
		env = logger.Production
	}

	log, err := logger.NewLogger(env, os.Getenv(EnvLoggerLevel))
	if err != nil {
		panic(ErrInitLogger + ": " + err.Error())
	}

	logger.SetGlobalLogger(log)

	ctx := logger.NewRequestIDContext(context.Background(), "")

	var exitCode int

	func() {
		defer func() {
			if err := log.Sync(); err != nil {
				errMsg := err.Error()
				if strings.Contains(errMsg, ErrSyncStderr) || strings.Contains(errMsg, ErrSyncStdout) {
					return
				}
				if _, writeErr := fmt.Fprintf(os.Stderr, "%s: %v\n", ErrSyncLogger, err); writeErr != nil {
					panic(writeErr)
				}
			}
		}()

		cfg, err := config.Load(ctx)
		if err != nil {
			log.Error(ctx, ErrLoadConfig, zap.Error(err))
			exitCode = 1
			return
		}

		finalLogger, err := logger.NewLogger(cfg.Logging.GetEnvironment(), cfg.Logging.Level)
		if err != nil {
			log.Error(ctx, ErrInitLoggerWithConfig, zap.Error(err))
			exitCode = 1
			return
		}
		logger.SetGlobalLogger(finalLogger)
		log = finalLogger

		log.Info(ctx, LogServiceStarted,
			zap.String("environment", string(cfg.Logging.GetEnvironment())),
			zap.String("log_level", cfg.Logging.Level),
			zap.String("startup_time", time.Now().Format(time.RFC3339)))

		var hooks []shutdown.Hook

		log.Info(ctx, LogInitStorage, zap.String("driver", cfg.Storage.Driver))
		store, closeStorage, err := newStorage(ctx, cfg)
		if err != nil {
			log.Error(ctx, ErrConnectRedis, zap.Error(err))
			exitCode = 1
			return
		}
		if closeStorage != nil {
			hooks = append(hooks, func(ctx context.Context) error {
				log.Info(ctx, "Closing Redis connection")
				return closeStorage()
			})
		}

		log.Info(ctx, LogInitAPIClient, zap.String("base_url", cfg.API.BaseURL))
		client, err := api.New(&cfg.API)
		if err != nil {
			log.Error(ctx, ErrCreateAPIClient, zap.Error(err))
			exitCode = 1
			return
		}

		registry := instance.NewRegistry(store, client, instance.SettingsFromConfig(&cfg.UI), cfg.Instances.IdleTimeout)
		sweepCtx, stopSweep := context.WithCancel(ctx)
		go registry.Run(sweepCtx, cfg.Instances.SweepInterval)

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics.RegisterCollectors(reg)

		log.Info(ctx, LogInitHTTPServer)
		app := fiber.New(fiber.Config{
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		})

		consolehttp.SetupRouter(app, consolehttp.Dependencies{
			Registry:     registry,
			Gateway:      client,
			LoginLimiter: middleware.NewRateLimiter("login", cfg.Limits.LoginRPS, cfg.Limits.LoginBurst),
			Cookie: middleware.SessionCookie{
				Name:   cfg.HTTP.SessionCookie,
				Secure: cfg.HTTP.CookieSecure,
			},
			LoginPath: cfg.UI.LoginPath,
			Gatherer:  reg,
		})

		log.Info(ctx, LogStartingHTTP, zap.String("address", cfg.HTTP.GetAddress()))
		go func() {
			if err := app.Listen(cfg.HTTP.GetAddress()); err != nil {
				log.Error(ctx, ErrStartHTTPServer, zap.Error(err))
			}
		}()

		hooks = append(hooks,
			// Остановка HTTP сервера.
			func(ctx context.Context) error {
				log.Info(ctx, LogStoppingHTTP)
				return app.Shutdown()
			},
			// Остановка вытеснения и закрытие экземпляров.
			func(ctx context.Context) error {
				stopSweep()
				return registry.Close(ctx)
			},
		)

		if err := shutdown.Wait(ctx, cfg.Shutdown.GetTimeout(), hooks...); err != nil {
			log.Error(ctx, ErrShutdown, zap.Error(err))
		}

		log.Info(ctx, LogServiceShutdownDone)
	}()

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// newStorage создает хранилище по драйверу. Соединение с Redis проверяется с повторами.
func newStorage(ctx context.Context, cfg *config.Config) (storagePorts.Namespacer, func() error, error) {
	if cfg.Storage.Driver != config.StorageRedis {
		return storage.NewMemoryStorage(), nil, nil
	}

	redisStorage := storage.NewRedisStorage(&cfg.Redis, &cfg.Storage)
	retry := resilience.NewRetry("redis-ping", resilience.DefaultRetryConfig())
	if err := retry.Execute(ctx, redisStorage.Ping); err != nil {
		_ = redisStorage.Close()
		return nil, nil, err
	}
	return redisStorage, redisStorage.Close, nil
}
