package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultAPIURL - адрес API для локальной разработки.
const DefaultAPIURL = "http://localhost:3000"

// ErrInvalidAPIURL возвращается, если базовый адрес API не является абсолютным URL.
var ErrInvalidAPIURL = errors.New("invalid api base url")

// APIConfig представляет конфигурацию клиента удаленного API.
type APIConfig struct {
	BaseURL string `yaml:"base_url" env:"PUBLIC_API_URL" env-default:"http://localhost:3000"`
	RPCPath string `yaml:"rpc_path" env:"CONSOLE_API_RPC_PATH" env-default:"/trpc"`
	// RequestTimeout 0 оставляет таймаут транспорта по умолчанию.
	RequestTimeout   time.Duration `yaml:"request_timeout" env:"CONSOLE_API_REQUEST_TIMEOUT" env-default:"0s"`
	BreakerThreshold int           `yaml:"breaker_threshold" env:"CONSOLE_API_BREAKER_THRESHOLD" env-default:"5"`
	BreakerTimeout   time.Duration `yaml:"breaker_timeout" env:"CONSOLE_API_BREAKER_TIMEOUT" env-default:"10s"`
}

// Validate проверяет базовый адрес.
func (c *APIConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAPIURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidAPIURL, c.BaseURL)
	}
	return nil
}

// Endpoint склеивает базовый адрес и путь.
func (c *APIConfig) Endpoint(path string) string {
	base := c.BaseURL
	if base == "" {
		base = DefaultAPIURL
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
