// Package http содержит HTTP-интерфейс консоли.
package http

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"adminconsole/internal/console/adapters/http/middleware"
	"adminconsole/internal/console/app/instance"
	apiPorts "adminconsole/internal/console/ports/api"
)

// Dependencies - зависимости маршрутизатора.
type Dependencies struct {
	Registry     *instance.Registry
	Gateway      apiPorts.Gateway
	LoginLimiter *middleware.RateLimiter
	Cookie       middleware.SessionCookie
	LoginPath    string
	Gatherer     prometheus.Gatherer
}

// SetupRouter настраивает маршрутизацию для HTTP сервера.
func SetupRouter(app *fiber.App, deps Dependencies) {
	handler := NewHandler(deps.Gateway, deps.LoginPath)

	// Middleware для всех запросов.
	app.Use(middleware.NewLoggerMiddleware())
	app.Use(middleware.NewRecoveryMiddleware())

	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	sessionMiddleware := middleware.NewSessionMiddleware(deps.Registry, deps.Cookie)

	sessionRoutes := app.Group("/session", sessionMiddleware)
	if deps.LoginLimiter != nil {
		sessionRoutes.Post("/login", handler.Login, deps.LoginLimiter.Handler())
	} else {
		sessionRoutes.Post("/login", handler.Login)
	}
	sessionRoutes.Post("/logout", handler.Logout)
	sessionRoutes.Post("/refresh", handler.Refresh)
	sessionRoutes.Get("/validate", handler.Validate)
	sessionRoutes.Get("/", handler.Session)

	notificationRoutes := app.Group("/notifications", sessionMiddleware)
	notificationRoutes.Get("/", handler.ListNotifications)
	notificationRoutes.Post("/", handler.AddNotification)
	notificationRoutes.Delete("/:id", handler.RemoveNotification)

	sidebarRoutes := app.Group("/sidebar", sessionMiddleware)
	sidebarRoutes.Get("/", handler.Sidebar)
	sidebarRoutes.Post("/toggle", handler.ToggleSidebar)

	app.Post("/rpc/:procedure", handler.RPC, sessionMiddleware)

	// Обработчик для несуществующих маршрутов.
	app.Use(func(c fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Route not found",
		})
	})
}
