package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/nft-agents-console/internal/domain"
	"github.com/xela07ax/nft-agents-console/internal/engine"
	"github.com/xela07ax/nft-agents-console/internal/infra"
	"go.uber.org/zap"
)

// Data хранит то, что переживает перезапуск консоли: токен и пользователь.
type Data struct {
	Token     string      `json:"token"`
	User      domain.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at,omitempty"`
}

// ErrCorrupt: сохраненные данные не читаются; Init их удаляет.
var ErrCorrupt = errors.New("stored session is corrupt")

// Backend: хранилище сессии. Load возвращает ok=false, если сессии нет.
type Backend interface {
	Load(ctx context.Context) (Data, bool, error)
	Save(ctx context.Context, d Data) error
	Clear(ctx context.Context) error
}

// Watcher: бэкенд, общий для нескольких консолей, сообщает о чужих изменениях.
type Watcher interface {
	Watch(ctx context.Context, onChange func())
}

func decode(raw []byte) (Data, error) {
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return Data{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if d.Token == "" {
		return Data{}, fmt.Errorf("%w: empty token", ErrCorrupt)
	}
	return d, nil
}

// MemoryBackend: сессия только на время жизни процесса.
type MemoryBackend struct {
	mu   sync.Mutex
	data *Data
}

func NewMemoryBackend() *MemoryBackend { return &MemoryBackend{} }

func (m *MemoryBackend) Load(context.Context) (Data, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return Data{}, false, nil
	}
	return *m.data, true, nil
}

func (m *MemoryBackend) Save(_ context.Context, d Data) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = &d
	return nil
}

func (m *MemoryBackend) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}

// FileBackend хранит сессию JSON-файлом с правами 0600.
type FileBackend struct {
	path string
}

func NewFileBackend(path string) *FileBackend { return &FileBackend{path: path} }

func (f *FileBackend) Load(context.Context) (Data, bool, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Data{}, false, nil
	}
	if err != nil {
		return Data{}, false, fmt.Errorf("read session file: %w", err)
	}
	d, err := decode(raw)
	if err != nil {
		return Data{}, false, err
	}
	return d, true, nil
}

// Save пишет во временный файл и переименовывает: оборванная запись не портит сессию.
func (f *FileBackend) Save(_ context.Context, d Data) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func (f *FileBackend) Clear(context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// RedisBackend: сессия, общая для нескольких консолей. Logout в одной
// публикует сигнал отзыва, остальные сбрасывают свою копию.
type RedisBackend struct {
	rdb    redis.UniversalClient
	key    string
	logger *zap.Logger
}

func NewRedisBackend(rdb redis.UniversalClient, key string, logger *zap.Logger) *RedisBackend {
	if key == "" {
		key = "default"
	}
	return &RedisBackend{rdb: rdb, key: key, logger: logger.Named("session_redis")}
}

func (r *RedisBackend) Load(ctx context.Context) (Data, bool, error) {
	raw, err := r.rdb.Get(ctx, infra.SessionKey(r.key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Data{}, false, nil
	}
	if err != nil {
		return Data{}, false, fmt.Errorf("redis get session: %w", err)
	}
	d, err := decode(raw)
	if err != nil {
		return Data{}, false, err
	}
	return d, true, nil
}

// Save ставит TTL по сроку токена, чтобы Redis сам убрал просроченную сессию.
func (r *RedisBackend) Save(ctx context.Context, d Data) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	var ttl time.Duration
	if !d.ExpiresAt.IsZero() {
		if ttl = time.Until(d.ExpiresAt); ttl <= 0 {
			return &domain.AuthError{Reason: "token expired"}
		}
	}
	if err := r.rdb.Set(ctx, infra.SessionKey(r.key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (r *RedisBackend) Clear(ctx context.Context) error {
	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, infra.SessionKey(r.key))
	pipe.Publish(ctx, infra.RedisChanSessionRevoked, r.key+":true")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis clear session: %w", err)
	}
	return nil
}

// Watch блокирует до отмены ctx; onChange вызывается при отзыве и после переподключения.
func (r *RedisBackend) Watch(ctx context.Context, onChange func()) {
	engine.ListenStateResilient(ctx, r.rdb, r.logger, infra.RedisChanSessionRevoked,
		func() error {
			onChange()
			return nil
		},
		func(id string, revoked bool) {
			if id == r.key && revoked {
				r.logger.Info("session revoked by another console")
				onChange()
			}
		},
	)
}
