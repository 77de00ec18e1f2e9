package service

import (
	"context"
	"errors"

	"github.com/xela07ax/nft-agents-console/internal/domain"
	"go.uber.org/zap"
)

// expireOnAuth: 401 от бэкенда означает, что сессия больше не действительна.
func expireOnAuth(ctx context.Context, s Session, logger *zap.Logger, err error) {
	var authErr *domain.AuthError
	if s == nil || !errors.As(err, &authErr) {
		return
	}
	if expErr := s.Expire(ctx, authErr.Reason); expErr != nil {
		logger.Error("failed to expire session", zap.Error(expErr))
	}
}

func actorID(s Session) string {
	if s == nil {
		return ""
	}
	u, ok := s.User()
	if !ok {
		return ""
	}
	return u.ID
}
