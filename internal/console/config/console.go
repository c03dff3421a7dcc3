package config

import (
	"errors"
	"fmt"
	"time"
)

// Драйверы хранилища состояния клиента.
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// ErrUnknownStorageDriver возвращается для неизвестного драйвера хранилища.
var ErrUnknownStorageDriver = errors.New("unknown storage driver")

// StorageConfig описывает хранилище сохраняемого состояния клиента.
type StorageConfig struct {
	Driver    string `yaml:"driver" env:"CONSOLE_STORAGE_DRIVER" env-default:"memory"`
	KeyPrefix string `yaml:"key_prefix" env:"CONSOLE_STORAGE_KEY_PREFIX" env-default:"console:"`
	// TTL 0 хранит ключи без срока жизни.
	TTL time.Duration `yaml:"ttl" env:"CONSOLE_STORAGE_TTL" env-default:"168h"`
}

// Validate проверяет драйвер.
func (c *StorageConfig) Validate() error {
	switch c.Driver {
	case StorageMemory, StorageRedis:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorageDriver, c.Driver)
	}
}

// UIConfig описывает поведение клиентского состояния интерфейса.
type UIConfig struct {
	NotificationTTL    time.Duration `yaml:"notification_ttl" env:"CONSOLE_NOTIFICATION_TTL" env-default:"5s"`
	SidebarDefaultOpen bool          `yaml:"sidebar_default_open" env:"CONSOLE_SIDEBAR_DEFAULT_OPEN" env-default:"true"`
	LoginPath          string        `yaml:"login_path" env:"CONSOLE_LOGIN_PATH" env-default:"/login"`
	ValidateOnStart    bool          `yaml:"validate_on_start" env:"CONSOLE_VALIDATE_ON_START" env-default:"false"`
	SingleFlight       bool          `yaml:"single_flight_refresh" env:"CONSOLE_SINGLE_FLIGHT_REFRESH" env-default:"false"`
}

// LimitsConfig описывает ограничение частоты попыток входа.
type LimitsConfig struct {
	LoginRPS   float64 `yaml:"login_rps" env:"CONSOLE_LOGIN_RPS" env-default:"1"`
	LoginBurst int     `yaml:"login_burst" env:"CONSOLE_LOGIN_BURST" env-default:"5"`
}

// InstancesConfig описывает жизненный цикл клиентских экземпляров.
type InstancesConfig struct {
	IdleTimeout   time.Duration `yaml:"idle_timeout" env:"CONSOLE_INSTANCE_IDLE_TIMEOUT" env-default:"30m"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"CONSOLE_INSTANCE_SWEEP_INTERVAL" env-default:"1m"`
}
