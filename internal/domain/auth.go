package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Permissions, которыми закрыты разделы консоли
const (
	PermissionManageUsers    = "users:manage"
	PermissionManageSettings = "settings:manage"
	PermissionDeployAgents   = "agents:deploy"
)

// CustomClaims: то, что консоль читает из bearer-токена бэкенда.
type CustomClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse: ответ /auth/login, /auth/register и /auth/refresh.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

func (u User) HasPermission(p string) bool {
	for _, have := range u.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// Merge накладывает непустые поля update поверх текущего пользователя.
func (u User) Merge(update User) User {
	out := u
	if update.ID != "" {
		out.ID = update.ID
	}
	if update.Username != "" {
		out.Username = update.Username
	}
	if update.Email != "" {
		out.Email = update.Email
	}
	if update.Role != "" {
		out.Role = update.Role
	}
	if update.Permissions != nil {
		out.Permissions = append([]string(nil), update.Permissions...)
	}
	if !update.UpdatedAt.IsZero() {
		out.UpdatedAt = update.UpdatedAt
	}
	return out
}

// UserInput: тело создания/редактирования пользователя в админке.
type UserInput struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
	Role     string `json:"role,omitempty"`
}

// InferenceModels: ответ /inference/models.
type InferenceModels struct {
	Primary  []string `json:"primary"`
	Fallback []string `json:"fallback"`
}

// APIKeyInput: ключ внешнего провайдера инференса.
type APIKeyInput struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
}
