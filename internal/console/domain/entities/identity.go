// Package entities содержит модели предметной области консоли.
package entities

// Identity - снимок аутентифицированного администратора.
// Используется только для отображения, не для авторизации.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Credential - пара токенов, выданная при входе.
type Credential struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResult - ответ эндпоинта входа.
type LoginResult struct {
	Credential
	Admin Identity `json:"admin"`
}
