package auth

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Decision: итог проверки маршрута.
type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	RedirectUnauthorized
)

// Публичные маршруты: доступны без сессии
const (
	RouteLogin        = "/login"
	RouteUnauthorized = "/unauthorized"
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	}
	return "unknown"
}

// SessionCookie: cookie с токеном сессии для браузерных клиентов Console API.
const SessionCookie = "console_session"

// Guardian решает, пускать ли запрос с предъявленным токеном на маршрут (реализует session.Store).
type Guardian interface {
	Authorize(token, route, permission string) Decision
}

// Credential достает токен запроса: заголовок Authorization, затем cookie сессии.
func Credential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return stripBearer(h)
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// NewMiddleware закрывает группу маршрутов сессией и, если задано, правом permission.
// Каждый запрос предъявляет токен сессии. Отказ отдается JSON с адресом перенаправления.
func NewMiddleware(g Guardian, permission string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch d := g.Authorize(Credential(r), r.URL.Path, permission); d {
			case Allow:
				next.ServeHTTP(w, r)
			case RedirectUnauthorized:
				logger.Warn("permission denied", zap.String("path", r.URL.Path), zap.String("permission", permission))
				deny(w, http.StatusForbidden, "permission denied", RouteUnauthorized)
			default:
				logger.Debug("session required", zap.String("path", r.URL.Path))
				deny(w, http.StatusUnauthorized, "authentication required", RouteLogin)
			}
		})
	}
}

func deny(w http.ResponseWriter, code int, msg, redirect string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "redirect": redirect})
}
