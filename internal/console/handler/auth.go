package handler

import (
	"context"
	"net/http"

	"github.com/xela07ax/nft-agents-console/internal/domain"
	"github.com/xela07ax/nft-agents-console/internal/infra/auth"
	"go.uber.org/zap"
)

// AuthService: вход, регистрация и профиль (service.AuthService).
type AuthService interface {
	Login(ctx context.Context, req domain.LoginRequest) (domain.User, error)
	Register(ctx context.Context, req domain.RegisterRequest) (domain.User, error)
	Refresh(ctx context.Context) (domain.User, error)
	Logout(ctx context.Context) error
	CurrentUser() (domain.User, bool)
	UpdateProfile(ctx context.Context, update domain.User) (domain.User, error)
	// Token: токен текущей сессии, его клиент предъявляет в каждом запросе
	Token() string
}

type AuthHandler struct {
	service AuthService
	logger  *zap.Logger

	// onLogout: сброс состояния выбора пользователя
	onLogout func()
}

func NewAuthHandler(s AuthService, logger *zap.Logger, onLogout func()) *AuthHandler {
	return &AuthHandler{service: s, logger: logger.Named("auth-handler"), onLogout: onLogout}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	u, err := h.service.Login(r.Context(), req)
	if err != nil {
		// не уточняем, что именно неверно (логин или пароль)
		writeError(w, h.logger, err)
		return
	}
	h.issue(w, http.StatusOK, u)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	u, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.issue(w, http.StatusCreated, u)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Refresh(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.issue(w, http.StatusOK, u)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.onLogout != nil {
		h.onLogout()
	}
	http.SetCookie(w, &http.Cookie{Name: auth.SessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true, SameSite: http.SameSiteStrictMode})
	if err := h.service.Logout(r.Context()); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// issue отдает пользователя и токен сессии: в теле для API-клиентов и в HttpOnly cookie для браузера.
func (h *AuthHandler) issue(w http.ResponseWriter, code int, u domain.User) {
	tok := h.service.Token()
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    tok,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, code, map[string]any{"user": u, "token": tok})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := h.service.CurrentUser()
	if !ok {
		writeError(w, h.logger, &domain.AuthError{Reason: "not authenticated"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var update domain.User
	if err := decode(r, &update); err != nil {
		writeError(w, h.logger, err)
		return
	}
	u, err := h.service.UpdateProfile(r.Context(), update)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}
