package service

import (
	"context"
	"strings"

	"github.com/xela07ax/nft-agents-console/internal/domain"
	"go.uber.org/zap"
)

// AdminBackend: пользователи и настройки инференса (только для администратора).
type AdminBackend interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
	CreateUser(ctx context.Context, in domain.UserInput) (domain.User, error)
	UpdateUser(ctx context.Context, id string, in domain.UserInput) (domain.User, error)
	DeleteUser(ctx context.Context, id string) error

	InferenceModels(ctx context.Context) (domain.InferenceModels, error)
	SetMOAModel(ctx context.Context, kind, model string) error
	SaveAPIKey(ctx context.Context, in domain.APIKeyInput) error
}

type AdminService struct {
	backend AdminBackend
	session Session
	logger  *zap.Logger
}

func NewAdminService(backend AdminBackend, session Session, logger *zap.Logger) *AdminService {
	return &AdminService{backend: backend, session: session, logger: logger.Named("admin-service")}
}

func (s *AdminService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.backend.ListUsers(ctx)
	return users, s.check(ctx, err)
}

func (s *AdminService) GetUser(ctx context.Context, id string) (domain.User, error) {
	u, err := s.backend.GetUser(ctx, id)
	return u, s.check(ctx, err)
}

func (s *AdminService) CreateUser(ctx context.Context, in domain.UserInput) (domain.User, error) {
	switch {
	case strings.TrimSpace(in.Username) == "":
		return domain.User{}, &domain.ValidationError{Field: "username", Message: "username is required"}
	case !strings.Contains(in.Email, "@"):
		return domain.User{}, &domain.ValidationError{Field: "email", Message: "valid email is required"}
	case in.Password == "":
		return domain.User{}, &domain.ValidationError{Field: "password", Message: "password is required"}
	}
	u, err := s.backend.CreateUser(ctx, in)
	if err == nil {
		s.logger.Info("user created", zap.String("user_id", u.ID), zap.String("username", u.Username))
	}
	return u, s.check(ctx, err)
}

func (s *AdminService) UpdateUser(ctx context.Context, id string, in domain.UserInput) (domain.User, error) {
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		return domain.User{}, &domain.ValidationError{Field: "email", Message: "valid email is required"}
	}
	u, err := s.backend.UpdateUser(ctx, id, in)
	return u, s.check(ctx, err)
}

func (s *AdminService) DeleteUser(ctx context.Context, id string) error {
	if me, ok := s.session.User(); ok && me.ID == id {
		return &domain.ConflictError{Op: "delete user", Reason: "cannot delete the signed-in user"}
	}
	err := s.backend.DeleteUser(ctx, id)
	if err == nil {
		s.logger.Info("user deleted", zap.String("user_id", id))
	}
	return s.check(ctx, err)
}

func (s *AdminService) InferenceModels(ctx context.Context) (domain.InferenceModels, error) {
	m, err := s.backend.InferenceModels(ctx)
	return m, s.check(ctx, err)
}

// SetMOAModel выбирает модель для слоя primary или fallback.
func (s *AdminService) SetMOAModel(ctx context.Context, kind, model string) error {
	if kind != "primary" && kind != "fallback" {
		return &domain.ValidationError{Field: "type", Message: "type must be primary or fallback"}
	}
	if strings.TrimSpace(model) == "" {
		return &domain.ValidationError{Field: "model", Message: "model is required"}
	}
	return s.check(ctx, s.backend.SetMOAModel(ctx, kind, model))
}

func (s *AdminService) SaveAPIKey(ctx context.Context, in domain.APIKeyInput) error {
	if strings.TrimSpace(in.Provider) == "" {
		return &domain.ValidationError{Field: "provider", Message: "provider is required"}
	}
	if strings.TrimSpace(in.APIKey) == "" {
		return &domain.ValidationError{Field: "apiKey", Message: "api key is required"}
	}
	err := s.backend.SaveAPIKey(ctx, in)
	if err == nil {
		// Сам ключ в лог не пишем
		s.logger.Info("api key saved", zap.String("provider", in.Provider))
	}
	return s.check(ctx, err)
}

func (s *AdminService) check(ctx context.Context, err error) error {
	expireOnAuth(ctx, s.session, s.logger, err)
	return err
}
