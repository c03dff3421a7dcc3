package middleware

import (
	"sync"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"adminconsole/pkg/logger"
	"adminconsole/pkg/metrics"
)

// ErrorTooManyRequests - ответ при превышении лимита.
const ErrorTooManyRequests = "too many requests"

// RateLimiter хранит по ограничителю на IP.
type RateLimiter struct {
	name  string
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiter создает ограничитель rps запросов в секунду с запасом burst.
func NewRateLimiter(name string, rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		name:     name,
		limit:    rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow сообщает, можно ли обслужить запрос с адреса key.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// Handler возвращает промежуточное ПО, отвечающее 429 при превышении лимита.
func (l *RateLimiter) Handler() fiber.Handler {
	return func(ctx fiber.Ctx) error {
		if l.Allow(ctx.IP()) {
			return ctx.Next()
		}

		requestCtx := RequestContext(ctx)
		logger.Log(requestCtx).Warn(requestCtx, ErrorTooManyRequests,
			zap.String("limiter", l.name), zap.String("ip", ctx.IP()))
		metrics.RateLimitRejected.WithLabelValues(l.name).Inc()

		return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": ErrorTooManyRequests,
		})
	}
}
