package service

import (
	"context"
	"strings"

	"github.com/xela07ax/nft-agents-console/internal/domain"
	"go.uber.org/zap"
)

// AuthBackend: эндпоинты /auth бэкенда. Токены выпускает только бэкенд.
type AuthBackend interface {
	Login(ctx context.Context, req domain.LoginRequest) (domain.AuthResponse, error)
	Register(ctx context.Context, req domain.RegisterRequest) (domain.AuthResponse, error)
	Refresh(ctx context.Context) (domain.AuthResponse, error)
	Logout(ctx context.Context) error
}

// SessionStore: хранилище сессии со стороны AuthService.
type SessionStore interface {
	Session
	Login(ctx context.Context, resp domain.AuthResponse) error
	Logout(ctx context.Context) error
	UpdateUser(ctx context.Context, update domain.User) (domain.User, error)
	IsAuthenticated() bool
	Token() string
}

type AuthService struct {
	backend AuthBackend
	session SessionStore
	logger  *zap.Logger
}

func NewAuthService(backend AuthBackend, session SessionStore, logger *zap.Logger) *AuthService {
	return &AuthService{
		backend: backend,
		session: session,
		logger:  logger.Named("auth-service"),
	}
}

func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (domain.User, error) {
	if strings.TrimSpace(req.Username) == "" {
		return domain.User{}, &domain.ValidationError{Field: "username", Message: "username is required"}
	}
	if req.Password == "" {
		return domain.User{}, &domain.ValidationError{Field: "password", Message: "password is required"}
	}

	resp, err := s.backend.Login(ctx, req)
	if err != nil {
		return domain.User{}, err
	}
	return s.start(ctx, resp)
}

func (s *AuthService) Register(ctx context.Context, req domain.RegisterRequest) (domain.User, error) {
	switch {
	case strings.TrimSpace(req.Username) == "":
		return domain.User{}, &domain.ValidationError{Field: "username", Message: "username is required"}
	case !strings.Contains(req.Email, "@"):
		return domain.User{}, &domain.ValidationError{Field: "email", Message: "valid email is required"}
	case len(req.Password) < 6:
		return domain.User{}, &domain.ValidationError{Field: "password", Message: "password must be at least 6 characters"}
	}

	resp, err := s.backend.Register(ctx, req)
	if err != nil {
		return domain.User{}, err
	}
	return s.start(ctx, resp)
}

// Refresh меняет токен. Отказ бэкенда с 401 завершает сессию.
func (s *AuthService) Refresh(ctx context.Context) (domain.User, error) {
	if !s.session.IsAuthenticated() {
		return domain.User{}, &domain.AuthError{Reason: "not authenticated"}
	}
	resp, err := s.backend.Refresh(ctx)
	if err != nil {
		expireOnAuth(ctx, s.session, s.logger, err)
		return domain.User{}, err
	}
	return s.start(ctx, resp)
}

// Logout чистит локальную сессию независимо от ответа бэкенда.
func (s *AuthService) Logout(ctx context.Context) error {
	if err := s.backend.Logout(ctx); err != nil {
		s.logger.Warn("backend logout failed, clearing local session anyway", zap.Error(err))
	}
	return s.session.Logout(ctx)
}

// Token: токен сессии, который клиенты Console API предъявляют в запросах.
func (s *AuthService) Token() string {
	return s.session.Token()
}

func (s *AuthService) CurrentUser() (domain.User, bool) {
	if !s.session.IsAuthenticated() {
		return domain.User{}, false
	}
	return s.session.User()
}

// UpdateProfile сливает изменения в пользователя текущей сессии.
func (s *AuthService) UpdateProfile(ctx context.Context, update domain.User) (domain.User, error) {
	// Права и роль меняет только администратор через бэкенд
	update.Permissions = nil
	update.Role = ""
	update.ID = ""
	return s.session.UpdateUser(ctx, update)
}

func (s *AuthService) start(ctx context.Context, resp domain.AuthResponse) (domain.User, error) {
	if resp.Token == "" {
		return domain.User{}, &domain.AuthError{Reason: "backend returned no token"}
	}
	if err := s.session.Login(ctx, resp); err != nil {
		return domain.User{}, err
	}
	u, _ := s.session.User()
	return u, nil
}
