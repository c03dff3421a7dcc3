// Package session содержит хранилище учетных данных текущего клиента.
package session

import "adminconsole/internal/console/domain/entities"

// Ключи сохраняемого состояния.
const (
	KeyToken = "admin_token"
	KeyUser  = "admin_user"
)

// DefaultEntryPoint - адрес страницы входа, куда ведет выход из системы.
const DefaultEntryPoint = "/login"

// Snapshot - неизменяемый снимок состояния сессии.
type Snapshot struct {
	Token    string
	Identity *entities.Identity
}

// IsAuthenticated истинно тогда и только тогда, когда есть токен доступа.
func IsAuthenticated(s Snapshot) bool {
	return s.Token != ""
}

// State - состояние жизненного цикла сессии.
type State string

// Состояния жизненного цикла.
const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StateRefreshing     State = "refreshing"
)
