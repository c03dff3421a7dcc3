package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"adminconsole/internal/console/adapters/http/middleware"
	"adminconsole/internal/console/domain/entities"
	"adminconsole/internal/console/domain/failures"
	apiPorts "adminconsole/internal/console/ports/api"
	"adminconsole/pkg/logger"
)

// Константы для логирования.
const (
	LogHandlerLogin   = "console handler: login"
	LogHandlerLogout  = "console handler: logout"
	LogHandlerRefresh = "console handler: refresh"
	LogHandlerRPC     = "console handler: rpc"

	ErrorInvalidRequest = "invalid request"
	ErrorUpstream       = "admin api unavailable"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type notificationRequest struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type rpcRequest struct {
	Input    json.RawMessage `json:"input"`
	Mutation bool            `json:"mutation"`
}

// Handler содержит HTTP обработчики консоли.
type Handler struct {
	gateway   apiPorts.Gateway
	loginPath string
}

// NewHandler создает новый экземпляр обработчика.
func NewHandler(gateway apiPorts.Gateway, loginPath string) *Handler {
	if loginPath == "" {
		loginPath = "/login"
	}
	return &Handler{gateway: gateway, loginPath: loginPath}
}

// Login обрабатывает вход администратора.
func (h *Handler) Login(ctx fiber.Ctx) error {
	requestCtx := middleware.RequestContext(ctx)
	log := logger.Log(requestCtx)
	log.Info(requestCtx, LogHandlerLogin)

	var req loginRequest
	if err := ctx.Bind().JSON(&req); err != nil {
		log.Debug(requestCtx, ErrorInvalidRequest, zap.Error(err))
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": ErrorInvalidRequest})
	}

	identity, err := middleware.Instance(ctx).Service.Login(requestCtx, req.Email, req.Password)
	if err != nil {
		return h.writeError(ctx, err)
	}

	return ctx.Status(http.StatusOK).JSON(fiber.Map{"identity": identity})
}

// Logout сбрасывает сессию и возвращает адрес страницы входа.
// Удаленный выход выполняется в фоне.
func (h *Handler) Logout(ctx fiber.Ctx) error {
	requestCtx := middleware.RequestContext(ctx)
	logger.Log(requestCtx).Info(requestCtx, LogHandlerLogout)

	inst := middleware.Instance(ctx)
	inst.Service.Logout(requestCtx)

	return ctx.Status(http.StatusOK).JSON(fiber.Map{"redirect": h.redirect(ctx)})
}

// Refresh обновляет токен доступа.
func (h *Handler) Refresh(ctx fiber.Ctx) error {
	requestCtx := middleware.RequestContext(ctx)
	logger.Log(requestCtx).Info(requestCtx, LogHandlerRefresh)

	if err := middleware.Instance(ctx).Service.Refresh(requestCtx); err != nil {
		return h.writeError(ctx, err)
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"authenticated": true})
}

// Session возвращает текущее состояние сессии.
func (h *Handler) Session(ctx fiber.Ctx) error {
	inst := middleware.Instance(ctx)
	snap := inst.Session.Snapshot()

	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"authenticated": inst.Session.IsAuthenticated(),
		"state":         inst.Service.State(),
		"identity":      snap.Identity,
	})
}

// Validate проверяет токен на сервере.
func (h *Handler) Validate(ctx fiber.Ctx) error {
	requestCtx := middleware.RequestContext(ctx)
	valid := h.gateway.ValidateSession(requestCtx, middleware.Instance(ctx).Service.Tokens())
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"valid": valid})
}

// ListNotifications возвращает текущие уведомления.
func (h *Handler) ListNotifications(ctx fiber.Ctx) error {
	return ctx.Status(http.StatusOK).JSON(fiber.Map{
		"items": middleware.Instance(ctx).Notifications.Items(),
	})
}

// AddNotification добавляет уведомление.
func (h *Handler) AddNotification(ctx fiber.Ctx) error {
	var req notificationRequest
	if err := ctx.Bind().JSON(&req); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": ErrorInvalidRequest})
	}

	kind, err := entities.ParseNotificationKind(req.Kind)
	if err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	n, err := middleware.Instance(ctx).Notifications.Add(kind, req.Message)
	if err != nil {
		return ctx.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(http.StatusCreated).JSON(n)
}

// RemoveNotification удаляет уведомление.
func (h *Handler) RemoveNotification(ctx fiber.Ctx) error {
	if !middleware.Instance(ctx).Notifications.Remove(ctx.Params("id")) {
		return ctx.Status(http.StatusNotFound).JSON(fiber.Map{"error": "notification not found"})
	}
	return ctx.SendStatus(http.StatusNoContent)
}

// Sidebar возвращает состояние боковой панели.
func (h *Handler) Sidebar(ctx fiber.Ctx) error {
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"open": middleware.Instance(ctx).Sidebar.Open()})
}

// ToggleSidebar переключает боковую панель.
func (h *Handler) ToggleSidebar(ctx fiber.Ctx) error {
	requestCtx := middleware.RequestContext(ctx)

	open, err := middleware.Instance(ctx).Sidebar.Toggle(requestCtx)
	if err != nil {
		logger.Log(requestCtx).Warn(requestCtx, "failed to persist sidebar state", zap.Error(err))
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"open": open})
}

// RPC выполняет вызов процедуры от имени сессии, обновляя токен при отказе.
func (h *Handler) RPC(ctx fiber.Ctx) error {
	requestCtx := middleware.RequestContext(ctx)
	procedure := ctx.Params("procedure")
	logger.Log(requestCtx).Debug(requestCtx, LogHandlerRPC, zap.String("procedure", procedure))

	var req rpcRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.Bind().JSON(&req); err != nil {
			return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": ErrorInvalidRequest})
		}
	}

	var input any
	if len(req.Input) > 0 {
		input = req.Input
	}

	service := middleware.Instance(ctx).Service
	var out json.RawMessage
	err := service.Do(requestCtx, func(callCtx context.Context) error {
		if req.Mutation {
			return h.gateway.Mutate(callCtx, service.Tokens(), procedure, input, &out)
		}
		return h.gateway.Call(callCtx, service.Tokens(), procedure, input, &out)
	})
	if err != nil {
		return h.writeError(ctx, err)
	}

	return ctx.Status(http.StatusOK).JSON(fiber.Map{"data": out})
}

// writeError переводит ошибку в HTTP-ответ.
func (h *Handler) writeError(ctx fiber.Ctx, err error) error {
	requestCtx := middleware.RequestContext(ctx)
	log := logger.Log(requestCtx)

	var (
		authErr *failures.AuthenticationError
		expired *failures.SessionExpiredError
		remote  *failures.RemoteError
	)

	switch {
	case errors.As(err, &authErr):
		return ctx.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": authErr.Message})
	case errors.As(err, &expired):
		return ctx.Status(http.StatusUnauthorized).JSON(fiber.Map{
			"error":    expired.Message,
			"redirect": h.redirect(ctx),
		})
	case errors.As(err, &remote):
		status := remote.Status
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		return ctx.Status(status).JSON(fiber.Map{"error": remote.Message, "code": remote.Code})
	case errors.Is(err, failures.ErrTransport):
		log.Warn(requestCtx, ErrorUpstream, zap.Error(err))
		return ctx.Status(http.StatusBadGateway).JSON(fiber.Map{"error": ErrorUpstream})
	default:
		log.Error(requestCtx, "unexpected error", zap.Error(err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error"})
	}
}

func (h *Handler) redirect(ctx fiber.Ctx) string {
	if location, ok := middleware.Instance(ctx).Redirects.Take(); ok {
		return location
	}
	return h.loginPath
}
