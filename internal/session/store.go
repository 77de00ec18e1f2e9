package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xela07ax/nft-agents-console/internal/audit"
	"github.com/xela07ax/nft-agents-console/internal/domain"
	"github.com/xela07ax/nft-agents-console/internal/infra/auth"
	"go.uber.org/zap"
)

// Store: единственный владелец токена и пользователя. Передается в сервисы явно.
type Store struct {
	mu   sync.RWMutex
	data *Data

	backend   Backend
	validator auth.TokenValidator
	auditor   audit.Auditor
	logger    *zap.Logger

	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

func NewStore(backend Backend, validator auth.TokenValidator, auditor audit.Auditor, logger *zap.Logger) *Store {
	if validator == nil {
		validator = auth.NewExpiryValidator(nil)
	}
	return &Store{
		backend:   backend,
		validator: validator,
		auditor:   auditor,
		logger:    logger.Named("session"),
	}
}

// Init поднимает сохраненную сессию. Нечитаемые данные и просроченный токен удаляются.
func (s *Store) Init(ctx context.Context) error {
	if err := s.reload(ctx); err != nil {
		return err
	}

	// Общий бэкенд: следим за отзывом сессии другими консолями
	if w, ok := s.backend.(Watcher); ok {
		watchCtx, cancel := context.WithCancel(context.Background())
		s.watchCancel = cancel
		s.watchDone = make(chan struct{})
		go func() {
			defer close(s.watchDone)
			w.Watch(watchCtx, func() {
				if err := s.reload(watchCtx); err != nil && watchCtx.Err() == nil {
					s.logger.Warn("session resync failed", zap.Error(err))
				}
			})
		}()
	}
	return nil
}

// Teardown останавливает наблюдение. Сохраненная сессия остается в бэкенде.
func (s *Store) Teardown(ctx context.Context) error {
	if s.watchCancel == nil {
		return nil
	}
	s.watchCancel()
	select {
	case <-s.watchDone:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("session teardown: %w", ctx.Err())
	}
}

func (s *Store) reload(ctx context.Context) error {
	d, ok, err := s.backend.Load(ctx)
	switch {
	case errors.Is(err, ErrCorrupt):
		s.logger.Warn("dropping unreadable session", zap.Error(err))
		s.setLocal(nil)
		return s.backend.Clear(ctx)
	case err != nil:
		return fmt.Errorf("load session: %w", err)
	case !ok:
		s.setLocal(nil)
		return nil
	}

	if _, err := s.validator.VerifyToken(d.Token); err != nil {
		s.logger.Info("dropping stored session", zap.Error(err))
		s.setLocal(nil)
		return s.backend.Clear(ctx)
	}
	s.setLocal(&d)
	return nil
}

func (s *Store) setLocal(d *Data) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = d
}

// Login сохраняет токен и пользователя из ответа /auth/login (/register, /refresh).
func (s *Store) Login(ctx context.Context, resp domain.AuthResponse) error {
	claims, err := s.validator.VerifyToken(resp.Token)
	if err != nil {
		return err
	}
	d := Data{Token: resp.Token, User: resp.User}
	if claims.ExpiresAt != nil {
		d.ExpiresAt = claims.ExpiresAt.Time
	}
	if d.User.ID == "" {
		d.User.ID = claims.UserID
	}
	if d.User.Username == "" {
		d.User.Username = claims.Username
	}

	if err := s.backend.Save(ctx, d); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.setLocal(&d)
	s.record("session.login", d.User.ID, "")
	s.logger.Info("session started", zap.String("user_id", d.User.ID))
	return nil
}

// Logout сбрасывает локальное состояние всегда; ошибка бэкенда только возвращается.
func (s *Store) Logout(ctx context.Context) error {
	return s.drop(ctx, "session.logout", "")
}

// Expire вызывается на 401 от бэкенда: сессия больше не действительна.
func (s *Store) Expire(ctx context.Context, reason string) error {
	if !s.hasData() {
		return nil
	}
	s.logger.Warn("session expired", zap.String("reason", reason))
	return s.drop(ctx, "session.expired", reason)
}

func (s *Store) drop(ctx context.Context, action, reason string) error {
	s.mu.Lock()
	var userID string
	if s.data != nil {
		userID = s.data.User.ID
	}
	s.data = nil
	s.mu.Unlock()

	s.record(action, userID, reason)
	if err := s.backend.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// UpdateUser накладывает изменения профиля поверх текущего пользователя.
func (s *Store) UpdateUser(ctx context.Context, update domain.User) (domain.User, error) {
	s.mu.Lock()
	if s.data == nil {
		s.mu.Unlock()
		return domain.User{}, &domain.AuthError{Reason: "not authenticated"}
	}
	next := *s.data
	next.User = next.User.Merge(update)
	s.mu.Unlock()

	if err := s.backend.Save(ctx, next); err != nil {
		return domain.User{}, fmt.Errorf("save session: %w", err)
	}
	s.setLocal(&next)
	return next.User, nil
}

// Token: текущий bearer-токен или пустая строка.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return ""
	}
	return s.data.Token
}

func (s *Store) User() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return domain.User{}, false
	}
	return s.data.User, true
}

// IsAuthenticated: сессия есть и токен не просрочен.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	d := s.data
	s.mu.RUnlock()
	if d == nil {
		return false
	}
	if !d.ExpiresAt.IsZero() && !time.Now().Before(d.ExpiresAt) {
		return false
	}
	return true
}

func (s *Store) HasPermission(p string) bool {
	u, ok := s.User()
	return ok && u.HasPermission(p)
}

// Guard проверяет маршрут. /login и /unauthorized открыты всем.
func (s *Store) Guard(route, permission string) auth.Decision {
	if route == auth.RouteLogin || route == auth.RouteUnauthorized {
		return auth.Allow
	}
	if !s.IsAuthenticated() {
		return auth.RedirectLogin
	}
	if permission != "" && !s.HasPermission(permission) {
		return auth.RedirectUnauthorized
	}
	return auth.Allow
}

// Authorize: Guard для запроса Console API. Кроме открытых маршрутов, запрос
// должен предъявить токен текущей сессии.
func (s *Store) Authorize(token, route, permission string) auth.Decision {
	if route == auth.RouteLogin || route == auth.RouteUnauthorized {
		return auth.Allow
	}
	current := s.Token()
	if token == "" || current == "" || subtle.ConstantTimeCompare([]byte(token), []byte(current)) != 1 {
		return auth.RedirectLogin
	}
	return s.Guard(route, permission)
}

func (s *Store) hasData() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data != nil
}

func (s *Store) record(action, userID, reason string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Log(audit.Event{
		Kind:     audit.KindSession,
		Action:   action,
		EntityID: userID,
		ActorID:  userID,
		Status:   audit.StatusSuccess,
		Error:    reason,
	})
}
