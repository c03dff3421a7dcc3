package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"adminconsole/internal/console/domain/entities"
	"adminconsole/internal/console/domain/failures"
	"adminconsole/internal/console/ports/storage"
	"adminconsole/pkg/logger"
)

// Константы для логирования.
const (
	LogSessionRestored    = "session restored"
	LogSessionSet         = "session credentials set"
	LogSessionCleared     = "session cleared"
	LogTokenReplaced      = "access token replaced"
	LogPersistedMalformed = "persisted session value is malformed"

	ErrorReadFailed    = "failed to read persisted session"
	ErrorPersistFailed = "failed to persist session"
	ErrorClearFailed   = "failed to clear persisted session"
)

// ErrEmptyToken возвращается при попытке сохранить пустой токен.
var ErrEmptyToken = errors.New("access token must not be empty")

// Option настраивает Store.
type Option func(*Store)

// WithNavigator задает обработчик перехода после выхода.
func WithNavigator(n Navigator) Option {
	return func(s *Store) {
		if n != nil {
			s.navigator = n
		}
	}
}

// WithEntryPoint задает адрес страницы входа.
func WithEntryPoint(path string) Option {
	return func(s *Store) {
		if path != "" {
			s.entryPoint = path
		}
	}
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

// Store - единственный источник правды о текущей сессии клиента.
// Каждая мутация сразу сохраняется в хранилище.
type Store struct {
	storage    storage.Storage
	navigator  Navigator
	entryPoint string

	mu    sync.RWMutex
	state Snapshot

	subsMu      sync.Mutex
	subscribers []subscriber
	nextSubID   int
}

// New создает пустое хранилище сессии поверх storage.
func New(st storage.Storage, opts ...Option) *Store {
	s := &Store{
		storage:    st,
		navigator:  noopNavigator{},
		entryPoint: DefaultEntryPoint,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore загружает сохраненное состояние. Ключи читаются независимо,
// поврежденные значения считаются отсутствующими.
func (s *Store) Restore(ctx context.Context) Snapshot {
	var restored Snapshot
	if token, ok := s.ReadToken(ctx); ok {
		restored.Token = token
	}
	if identity, ok := s.readIdentity(ctx); ok {
		restored.Identity = &identity
	}

	s.mu.Lock()
	s.state = restored
	s.mu.Unlock()

	logger.Log(ctx).Debug(ctx, LogSessionRestored,
		zap.Bool("has_token", restored.Token != ""),
		zap.Bool("has_identity", restored.Identity != nil))

	s.notify(restored)
	return cloneSnapshot(restored)
}

// SetAuth заменяет токен и личность и сохраняет оба значения.
func (s *Store) SetAuth(ctx context.Context, token string, identity entities.Identity) error {
	if token == "" {
		return ErrEmptyToken
	}

	s.mu.Lock()
	s.state = Snapshot{Token: token, Identity: &identity}
	snap := cloneSnapshot(s.state)
	s.mu.Unlock()

	err := errors.Join(
		s.persist(ctx, KeyToken, token),
		s.persist(ctx, KeyUser, identity),
	)

	logger.Log(ctx).Info(ctx, LogSessionSet, zap.String("admin_id", identity.ID))
	s.notify(snap)

	if err != nil {
		return fmt.Errorf("%s: %w", ErrorPersistFailed, err)
	}
	return nil
}

// ReplaceAccessToken заменяет только токен доступа, личность не меняется.
func (s *Store) ReplaceAccessToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}

	s.mu.Lock()
	s.state.Token = token
	snap := cloneSnapshot(s.state)
	s.mu.Unlock()

	err := s.persist(ctx, KeyToken, token)

	logger.Log(ctx).Debug(ctx, LogTokenReplaced)
	s.notify(snap)

	if err != nil {
		return fmt.Errorf("%s: %w", ErrorPersistFailed, err)
	}
	return nil
}

// Logout очищает токен и личность, удаляет оба ключа и переводит интерфейс
// на страницу входа. Переход выполняется даже при ошибке хранилища.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.state = Snapshot{}
	s.mu.Unlock()

	err := errors.Join(
		s.storage.Delete(ctx, KeyToken),
		s.storage.Delete(ctx, KeyUser),
	)
	if err != nil {
		logger.Log(ctx).Warn(ctx, ErrorClearFailed, zap.Error(err))
	}

	logger.Log(ctx).Info(ctx, LogSessionCleared)
	s.notify(Snapshot{})
	s.navigator.Navigate(ctx, s.entryPoint)

	if err != nil {
		return fmt.Errorf("%s: %w", ErrorClearFailed, err)
	}
	return nil
}

// ReadToken возвращает сохраненный токен доступа. Отсутствующее,
// поврежденное или нечитаемое значение дает ok=false, а не ошибку.
func (s *Store) ReadToken(ctx context.Context) (string, bool) {
	raw, ok := s.read(ctx, KeyToken)
	if !ok {
		return "", false
	}

	var token *string
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		s.malformed(ctx, KeyToken, err)
		return "", false
	}
	if token == nil || *token == "" {
		return "", false
	}
	return *token, true
}

// IsAuthenticated пересчитывается из текущего снимка при каждом вызове.
func (s *Store) IsAuthenticated() bool {
	return IsAuthenticated(s.Snapshot())
}

// Snapshot возвращает копию текущего состояния.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSnapshot(s.state)
}

// Token возвращает токен из памяти.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// Identity возвращает личность администратора, если она известна.
func (s *Store) Identity() (entities.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Identity == nil {
		return entities.Identity{}, false
	}
	return *s.state.Identity, true
}

// Subscribe регистрирует наблюдателя, вызываемого после каждой мутации.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})

	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) notify(snap Snapshot) {
	s.subsMu.Lock()
	subs := make([]subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.subsMu.Unlock()

	for _, sub := range subs {
		sub.fn(cloneSnapshot(snap))
	}
}

func (s *Store) readIdentity(ctx context.Context) (entities.Identity, bool) {
	raw, ok := s.read(ctx, KeyUser)
	if !ok {
		return entities.Identity{}, false
	}

	var identity *entities.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		s.malformed(ctx, KeyUser, err)
		return entities.Identity{}, false
	}
	if identity == nil {
		return entities.Identity{}, false
	}
	return *identity, true
}

func (s *Store) read(ctx context.Context, key string) (string, bool) {
	raw, ok, err := s.storage.Get(ctx, key)
	if err != nil {
		logger.Log(ctx).Warn(ctx, ErrorReadFailed, zap.String("key", key), zap.Error(err))
		return "", false
	}
	return raw, ok
}

func (s *Store) persist(ctx context.Context, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.storage.Set(ctx, key, string(encoded))
}

func (s *Store) malformed(ctx context.Context, key string, err error) {
	logger.Log(ctx).Debug(ctx, LogPersistedMalformed,
		zap.Error(&failures.ValidationFailure{Key: key, Err: err}))
}

func cloneSnapshot(s Snapshot) Snapshot {
	if s.Identity != nil {
		identity := *s.Identity
		s.Identity = &identity
	}
	return s
}
