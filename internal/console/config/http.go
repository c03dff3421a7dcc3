package config

import (
	"fmt"
	"time"
)

// HTTPConfig представляет конфигурацию HTTP сервера консоли.
type HTTPConfig struct {
	Host          string        `yaml:"host" env:"CONSOLE_HTTP_HOST" env-default:"0.0.0.0"`
	Port          int           `yaml:"port" env:"CONSOLE_HTTP_PORT" env-default:"4321"`
	ReadTimeout   time.Duration `yaml:"read_timeout" env:"CONSOLE_HTTP_READ_TIMEOUT" env-default:"5s"`
	WriteTimeout  time.Duration `yaml:"write_timeout" env:"CONSOLE_HTTP_WRITE_TIMEOUT" env-default:"10s"`
	CookieSecure  bool          `yaml:"cookie_secure" env:"CONSOLE_HTTP_COOKIE_SECURE" env-default:"false"`
	SessionCookie string        `yaml:"session_cookie" env:"CONSOLE_HTTP_SESSION_COOKIE" env-default:"console_sid"`
}

// GetAddress возвращает адрес HTTP сервера.
func (c *HTTPConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
