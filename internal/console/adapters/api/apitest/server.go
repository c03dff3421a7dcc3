// Package apitest содержит тестовый сервер API администратора.
package apitest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"adminconsole/internal/console/domain/entities"
)

// Учетные данные администратора тестового сервера.
const (
	AdminEmail    = "admin@example.com"
	AdminPassword = "AdminPassword123!"
)

// Коды ошибок процедур.
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeNotFound     = "NOT_FOUND"
	CodeBadRequest   = "BAD_REQUEST"
)

// Admin - личность, которую сервер возвращает при входе.
var Admin = entities.Identity{ID: "1", Email: AdminEmail, Name: "Admin", Role: "admin"}

var errInvalidToken = errors.New("invalid token")

// Procedure обрабатывает вызов процедуры. Для ошибки с кодом верните *ProcedureError.
type Procedure func(input json.RawMessage) (any, error)

// ProcedureError - ошибка процедуры в формате сервера.
type ProcedureError struct {
	Status  int
	Code    string
	Message string
}

func (e *ProcedureError) Error() string { return e.Message }

// Request - запись о принятом запросе.
type Request struct {
	Method        string
	Path          string
	RawQuery      string
	Authorization string
	Body          string
}

// Server - тестовый сервер API с JWT-токенами.
type Server struct {
	*httptest.Server

	secret       []byte
	passwordHash []byte
	accessTTL    time.Duration

	mu            sync.Mutex
	epoch         int
	refreshTokens map[string]struct{}
	revoked       map[string]struct{}
	procedures    map[string]Procedure
	publicProcs   map[string]struct{}
	requests      []Request
	failRefresh   bool
}

// NewServer запускает сервер и останавливает его по завершении теста.
func NewServer(t testing.TB) *Server {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(AdminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash admin password: %v", err)
	}

	s := &Server{
		secret:        []byte(uuid.NewString()),
		passwordHash:  hash,
		accessTTL:     time.Hour,
		refreshTokens: make(map[string]struct{}),
		revoked:       make(map[string]struct{}),
		procedures:    make(map[string]Procedure),
		publicProcs:   make(map[string]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/auth/login", s.handleLogin)
	mux.HandleFunc("POST /admin/auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /admin/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /admin/auth/me", s.handleMe)
	mux.HandleFunc("/trpc/{procedures}", s.handleBatch)

	s.Server = httptest.NewServer(s.record(mux))
	t.Cleanup(s.Close)

	return s
}

// Handle регистрирует процедуру, требующую авторизации.
func (s *Server) Handle(procedure string, fn Procedure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procedures[procedure] = fn
}

// HandlePublic регистрирует процедуру, доступную без токена.
func (s *Server) HandlePublic(procedure string, fn Procedure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procedures[procedure] = fn
	s.publicProcs[procedure] = struct{}{}
}

// ExpireAccessTokens делает недействительными все выданные токены доступа.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
}

// FailRefresh заставляет эндпоинт обновления отвечать 401.
func (s *Server) FailRefresh(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = fail
}

// IssueAccessToken выдает действующий токен доступа.
func (s *Server) IssueAccessToken() string {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	token, err := s.sign(epoch)
	if err != nil {
		panic(err)
	}
	return token
}

// IssueRefreshToken выдает действующий refresh-токен.
func (s *Server) IssueRefreshToken() string {
	token := uuid.NewString()
	s.mu.Lock()
	s.refreshTokens[token] = struct{}{}
	s.mu.Unlock()
	return token
}

// Requests возвращает копию журнала запросов.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count возвращает число запросов, путь которых начинается с prefix.
func (s *Server) Count(prefix string) int {
	n := 0
	for _, r := range s.Requests() {
		if strings.HasPrefix(r.Path, prefix) {
			n++
		}
	}
	return n
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			RawQuery:      r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			Body:          string(body),
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

// accessClaims - claims токена доступа. Epoch сбрасывается ExpireAccessTokens.
type accessClaims struct {
	Role  string `json:"role"`
	Epoch int    `json:"ep"`
	jwt.RegisteredClaims
}

func (s *Server) sign(epoch int) (string, error) {
	now := time.Now()
	claims := accessClaims{
		Role:  Admin.Role,
		Epoch: epoch,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   Admin.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return token, nil
}

// authorize проверяет bearer-токен запроса.
func (s *Server) authorize(r *http.Request) error {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return errInvalidToken
	}

	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return errInvalidToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if claims.Epoch != s.epoch {
		return errInvalidToken
	}
	if _, revoked := s.revoked[raw]; revoked {
		return errInvalidToken
	}
	return nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
		return
	}

	if req.Email != AdminEmail || bcrypt.CompareHashAndPassword(s.passwordHash, []byte(req.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
		return
	}

	access := s.IssueAccessToken()
	refresh := s.IssueRefreshToken()
	writeJSON(w, http.StatusOK, entities.LoginResult{
		Credential: entities.Credential{AccessToken: access, RefreshToken: refresh},
		Admin:      Admin,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	_, known := s.refreshTokens[req.RefreshToken]
	fail := s.failRefresh
	s.mu.Unlock()

	if fail || !known {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid refresh token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": s.IssueAccessToken()})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.authorize(r); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return
	}
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	s.mu.Lock()
	s.revoked[raw] = struct{}{}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if err := s.authorize(r); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, Admin)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	names := strings.Split(r.PathValue("procedures"), ",")

	var inputs map[string]json.RawMessage
	switch r.Method {
	case http.MethodGet:
		if raw := r.URL.Query().Get("input"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &inputs); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]string{"message": "Invalid input"}})
				return
			}
		}
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]string{"message": "Invalid input"}})
			return
		}
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "Method not allowed"})
		return
	}

	authErr := s.authorize(r)
	results := make([]any, len(names))
	status := 0
	for i, name := range names {
		value, err := s.invoke(name, inputs[fmt.Sprint(i)], authErr)
		if err != nil {
			var perr *ProcedureError
			if !errors.As(err, &perr) {
				perr = &ProcedureError{Status: http.StatusInternalServerError, Code: "INTERNAL_SERVER_ERROR", Message: err.Error()}
			}
			results[i] = errorItem(name, perr)
			status = mergeStatus(status, perr.Status)
			continue
		}
		results[i] = map[string]any{"result": map[string]any{"data": map[string]any{"json": value}}}
		status = mergeStatus(status, http.StatusOK)
	}

	writeJSON(w, status, results)
}

func (s *Server) invoke(name string, input json.RawMessage, authErr error) (any, error) {
	s.mu.Lock()
	fn, found := s.procedures[name]
	_, public := s.publicProcs[name]
	s.mu.Unlock()

	if !found {
		return nil, &ProcedureError{Status: http.StatusNotFound, Code: CodeNotFound, Message: fmt.Sprintf("No procedure found on path %q", name)}
	}
	if !public && authErr != nil {
		return nil, &ProcedureError{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: "Unauthorized"}
	}

	var envelope struct {
		JSON json.RawMessage `json:"json"`
	}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &envelope); err != nil {
			return nil, &ProcedureError{Status: http.StatusBadRequest, Code: CodeBadRequest, Message: "Invalid input"}
		}
	}
	return fn(envelope.JSON)
}

func errorItem(path string, perr *ProcedureError) map[string]any {
	return map[string]any{
		"error": map[string]any{
			"json": map[string]any{
				"message": perr.Message,
				"code":    -32000,
				"data": map[string]any{
					"code":       perr.Code,
					"httpStatus": perr.Status,
					"path":       path,
				},
			},
		},
	}
}

// mergeStatus дает общий статус пакета: одинаковые статусы сохраняются, разные дают 207.
func mergeStatus(current, next int) int {
	if current == 0 || current == next {
		return next
	}
	return http.StatusMultiStatus
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
