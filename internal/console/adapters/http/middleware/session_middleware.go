package middleware

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"adminconsole/internal/console/app/instance"
	"adminconsole/pkg/logger"
)

// ErrorSessionUnavailable - ответ, когда реестр экземпляров уже закрыт.
const ErrorSessionUnavailable = "console session unavailable"

// SessionCookie описывает cookie сессии консоли.
type SessionCookie struct {
	Name   string
	Secure bool
}

// NewSessionMiddleware связывает запрос с экземпляром клиента по cookie.
// Отсутствующий или некорректный идентификатор заменяется новым.
func NewSessionMiddleware(registry *instance.Registry, cookie SessionCookie) fiber.Handler {
	return func(ctx fiber.Ctx) error {
		requestCtx := RequestContext(ctx)

		id := ctx.Cookies(cookie.Name)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			ctx.Cookie(&fiber.Cookie{
				Name:     cookie.Name,
				Value:    id,
				Path:     "/",
				HTTPOnly: true,
				Secure:   cookie.Secure,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
			logger.Log(requestCtx).Debug(requestCtx, "console session issued", zap.String("instance_id", id))
		}

		inst, err := registry.Get(requestCtx, id)
		if err != nil {
			logger.Log(requestCtx).Warn(requestCtx, ErrorSessionUnavailable, zap.Error(err))
			return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": ErrorSessionUnavailable,
			})
		}

		ctx.Locals(LocalsInstance, inst)
		return ctx.Next()
	}
}

// Instance возвращает экземпляр клиента текущего запроса.
func Instance(ctx fiber.Ctx) *instance.Instance {
	inst, _ := ctx.Locals(LocalsInstance).(*instance.Instance)
	return inst
}
