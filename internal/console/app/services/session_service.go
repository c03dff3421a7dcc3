// Package services содержит сценарии жизненного цикла сессии консоли.
package services

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"adminconsole/internal/console/app/notifications"
	"adminconsole/internal/console/app/session"
	"adminconsole/internal/console/domain/entities"
	"adminconsole/internal/console/domain/failures"
	apiPorts "adminconsole/internal/console/ports/api"
	"adminconsole/pkg/logger"
	"adminconsole/pkg/metrics"
)

// Константы для логирования.
const (
	LogServiceStart         = "session service: start"
	LogServiceLogin         = "session service: login"
	LogServiceLogout        = "session service: logout"
	LogServiceRefresh       = "session service: refresh"
	LogServiceStateChange   = "session service: state change"
	LogServiceRetryAfterRef = "session service: retrying after refresh"

	ErrorLoginFailed   = "failed to login"
	ErrorRefreshFailed = "failed to refresh session"
	ErrorPersistFailed = "failed to persist session"
)

// Тексты уведомлений.
const (
	MessageSignedIn       = "Signed in"
	MessageSessionExpired = "Session expired"
)

const refreshKey = "refresh"

// Option настраивает SessionService.
type Option func(*SessionService)

// WithNotifications подключает очередь уведомлений.
func WithNotifications(q *notifications.Queue) Option {
	return func(s *SessionService) {
		s.queue = q
	}
}

// WithSingleFlightRefresh объединяет одновременные обновления токена в один запрос.
// По умолчанию каждый вызывающий обновляет токен независимо.
func WithSingleFlightRefresh() Option {
	return func(s *SessionService) {
		s.singleFlight = true
	}
}

// SessionService управляет переходами Anonymous, Authenticating, Authenticated и Refreshing.
// Refresh-токен хранится только в памяти сервиса.
type SessionService struct {
	gateway apiPorts.Gateway
	store   *session.Store
	queue   *notifications.Queue

	singleFlight bool
	group        singleflight.Group

	mu           sync.Mutex
	state        session.State
	refreshToken string
}

// NewSessionService создает новый экземпляр сервиса сессии.
func NewSessionService(gateway apiPorts.Gateway, store *session.Store, opts ...Option) *SessionService {
	s := &SessionService{
		gateway: gateway,
		store:   store,
		state:   session.StateAnonymous,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start восстанавливает сохраненную сессию. С validate токен проверяется на сервере,
// и невалидная сессия сбрасывается.
func (s *SessionService) Start(ctx context.Context, validate bool) session.State {
	log := logger.Log(ctx)
	log.Debug(ctx, LogServiceStart, zap.Bool("validate", validate))

	snap := s.store.Restore(ctx)
	if !session.IsAuthenticated(snap) {
		s.setState(ctx, session.StateAnonymous)
		return session.StateAnonymous
	}

	if validate && !s.gateway.ValidateSession(ctx, s.store) {
		if err := s.store.Logout(ctx); err != nil {
			log.Warn(ctx, ErrorPersistFailed, zap.Error(err))
		}
		s.setState(ctx, session.StateAnonymous)
		return session.StateAnonymous
	}

	s.setState(ctx, session.StateAuthenticated)
	return session.StateAuthenticated
}

// Login выполняет вход и заполняет хранилище сессии.
func (s *SessionService) Login(ctx context.Context, email, password string) (entities.Identity, error) {
	log := logger.Log(ctx)
	log.Info(ctx, LogServiceLogin)

	previous := s.State()
	s.setState(ctx, session.StateAuthenticating)

	result, err := s.gateway.Login(ctx, email, password)
	if err != nil {
		log.Info(ctx, ErrorLoginFailed, zap.Error(err))
		if previous == session.StateAuthenticated && s.store.IsAuthenticated() {
			s.setState(ctx, previous)
		} else {
			s.setState(ctx, session.StateAnonymous)
		}
		return entities.Identity{}, err
	}

	if err := s.store.SetAuth(ctx, result.AccessToken, result.Admin); err != nil {
		log.Warn(ctx, ErrorPersistFailed, zap.Error(err))
	}

	s.mu.Lock()
	s.refreshToken = result.RefreshToken
	s.mu.Unlock()

	s.setState(ctx, session.StateAuthenticated)
	s.notify(entities.NotificationSuccess, MessageSignedIn)

	return result.Admin, nil
}

// Logout уведомляет сервер в фоне и сразу очищает локальную сессию.
// Возвращаемый канал закрывается, когда завершится удаленный вызов.
func (s *SessionService) Logout(ctx context.Context) <-chan struct{} {
	log := logger.Log(ctx)
	log.Info(ctx, LogServiceLogout)

	done := s.gateway.Logout(ctx, s.store)

	s.mu.Lock()
	s.refreshToken = ""
	s.mu.Unlock()

	if err := s.store.Logout(ctx); err != nil {
		log.Warn(ctx, ErrorPersistFailed, zap.Error(err))
	}
	s.setState(ctx, session.StateAnonymous)

	return done
}

// Refresh обменивает refresh-токен на новый токен доступа. Отказ сервера
// сбрасывает сессию и возвращает SessionExpiredError. Сетевой сбой сессию
// не сбрасывает и возвращается как есть.
func (s *SessionService) Refresh(ctx context.Context) error {
	if !s.singleFlight {
		return s.refresh(ctx)
	}
	_, err, _ := s.group.Do(refreshKey, func() (any, error) {
		return nil, s.refresh(ctx)
	})
	return err
}

func (s *SessionService) refresh(ctx context.Context) error {
	log := logger.Log(ctx)
	log.Info(ctx, LogServiceRefresh)

	s.mu.Lock()
	refreshToken := s.refreshToken
	s.mu.Unlock()

	s.setState(ctx, session.StateRefreshing)

	if refreshToken == "" {
		return s.expire(ctx, &failures.SessionExpiredError{Message: failures.DefaultRefreshMessage})
	}

	token, err := s.gateway.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, failures.ErrTransport) {
			log.Warn(ctx, ErrorRefreshFailed, zap.Error(err))
			s.setState(ctx, session.StateAuthenticated)
			return err
		}
		var expired *failures.SessionExpiredError
		if !errors.As(err, &expired) {
			expired = &failures.SessionExpiredError{Message: failures.DefaultRefreshMessage}
		}
		return s.expire(ctx, expired)
	}

	if err := s.store.ReplaceAccessToken(ctx, token); err != nil {
		log.Warn(ctx, ErrorPersistFailed, zap.Error(err))
	}
	s.setState(ctx, session.StateAuthenticated)
	return nil
}

func (s *SessionService) expire(ctx context.Context, cause *failures.SessionExpiredError) error {
	logger.Log(ctx).Info(ctx, ErrorRefreshFailed, zap.String("reason", cause.Message))

	s.mu.Lock()
	s.refreshToken = ""
	s.mu.Unlock()

	if err := s.store.Logout(ctx); err != nil {
		logger.Log(ctx).Warn(ctx, ErrorPersistFailed, zap.Error(err))
	}
	s.setState(ctx, session.StateAnonymous)
	s.notify(entities.NotificationError, MessageSessionExpired)

	return cause
}

// Do выполняет авторизованную операцию. Если сервер отклонил токен,
// сессия обновляется и операция повторяется один раз.
func (s *SessionService) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if !failures.IsUnauthorized(err) {
		return err
	}

	if refreshErr := s.Refresh(ctx); refreshErr != nil {
		return refreshErr
	}

	logger.Log(ctx).Debug(ctx, LogServiceRetryAfterRef)
	return fn(ctx)
}

// Tokens возвращает источник токена для вызовов API.
func (s *SessionService) Tokens() apiPorts.TokenSource {
	return s.store
}

// Store возвращает хранилище сессии.
func (s *SessionService) Store() *session.Store {
	return s.store
}

// State возвращает текущее состояние жизненного цикла.
func (s *SessionService) State() session.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CanRefresh сообщает, есть ли в памяти refresh-токен.
func (s *SessionService) CanRefresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken != ""
}

func (s *SessionService) setState(ctx context.Context, next session.State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	if prev == next {
		return
	}
	metrics.SessionTransitions.WithLabelValues(string(next)).Inc()
	logger.Log(ctx).Debug(ctx, LogServiceStateChange,
		zap.String("from", string(prev)), zap.String("to", string(next)))
}

func (s *SessionService) notify(kind entities.NotificationKind, message string) {
	if s.queue != nil {
		// Закрытая очередь означает вытесненный экземпляр, уведомление некому показать.
		_, _ = s.queue.Add(kind, message)
	}
}
