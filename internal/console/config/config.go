// Package config содержит конфигурацию консоли администратора.
package config

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	pkgconfig "adminconsole/pkg/config"
	"adminconsole/pkg/logger"
)

// Константы ошибок и сообщений для конфигурации.
const (
	ServiceName         = "admin-console"
	EnvConfigFile       = "CONSOLE_CONFIG_FILE"
	LogConfigLoaded     = "console configuration"
	ErrFailedLoadConfig = "failed to load configuration"
)

// Config представляет полную конфигурацию консоли.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
	Shutdown  ShutdownConfig  `yaml:"shutdown"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	UI        UIConfig        `yaml:"ui"`
	Limits    LimitsConfig    `yaml:"limits"`
	Instances InstancesConfig `yaml:"instances"`
}

// Load загружает конфигурацию из файла CONSOLE_CONFIG_FILE (если задан) и окружения.
func Load(ctx context.Context) (*Config, error) {
	log := logger.Log(ctx)

	cfg, err := pkgconfig.Load[Config](ctx, ServiceName, os.Getenv(EnvConfigFile))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrFailedLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		log.Error(ctx, ErrFailedLoadConfig, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", ErrFailedLoadConfig, err)
	}

	log.Info(ctx, LogConfigLoaded,
		zap.String("http_address", cfg.HTTP.GetAddress()),
		zap.String("api_base_url", cfg.API.BaseURL),
		zap.String("rpc_path", cfg.API.RPCPath),
		zap.String("log_level", cfg.Logging.Level),
		zap.String("log_mode", cfg.Logging.Mode),
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.String("redis_address", cfg.Redis.GetAddress()),
		zap.Duration("notification_ttl", cfg.UI.NotificationTTL),
		zap.Int("shutdown_timeout_seconds", cfg.Shutdown.Timeout))

	return cfg, nil
}

// Validate проверяет согласованность значений.
func (c *Config) Validate() error {
	if err := c.API.Validate(); err != nil {
		return err
	}
	return c.Storage.Validate()
}

// GetEnvironment возвращает режим работы логгера.
func (c *LoggingConfig) GetEnvironment() logger.Environment {
	if c.Mode == string(logger.Development) {
		return logger.Development
	}
	return logger.Production
}
