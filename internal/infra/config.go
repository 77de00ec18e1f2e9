package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config: корневая структура конфигурации консоли.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Backend     BackendConfig     `mapstructure:"backend"`
	Session     SessionConfig     `mapstructure:"session"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Reliability ReliabilityConfig `mapstructure:"reliability"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Logger      LoggerConfig      `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера Console API.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BackendConfig: REST-бэкенд, система учета агентов и пользователей.
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"` // например http://localhost:8000/api/v1
	Timeout time.Duration `mapstructure:"timeout"`
	OwnerID string        `mapstructure:"owner_id"` // Фильтр GET /agents?owner=
}

// SessionConfig: где хранится токен и пользователь.
type SessionConfig struct {
	Backend string `mapstructure:"backend"` // file, redis, memory
	Path    string `mapstructure:"path"`    // Для file
	Key     string `mapstructure:"key"`     // Для redis
}

// RedisConfig описывает подключение к Redis (общая сессия и Pub/Sub отзыва).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig описывает подключение к PostgreSQL для журнала аудита.
// Пустой URL: журнал пишется только в лог.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// AuthConfig: публичный ключ бэкенда для проверки RS256-токенов.
// Без ключа консоль читает только срок действия токена, не проверяя подпись.
type AuthConfig struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
	PublicKey     []byte
}

// EngineConfig: запуски и журнал.
type EngineConfig struct {
	ExclusiveAgents    bool          `mapstructure:"exclusive_agents"` // Не больше одного running-запуска на агента
	Executor           string        `mapstructure:"executor"`         // backend, sandbox
	PartialMatching    bool          `mapstructure:"partial_matching"` // Совместимость по подстроке
	AuditBufferSize    int           `mapstructure:"audit_buffer_size"`
	AuditFlushInterval time.Duration `mapstructure:"audit_flush_interval"`
	AuditRecentSize    int           `mapstructure:"audit_recent_size"`
}

// ReliabilityConfig: защита вызовов бэкенда.
type ReliabilityConfig struct {
	Name               string        `mapstructure:"name"`
	RateLimit          float64       `mapstructure:"rate_limit"` // Запросов в секунду, 0, без лимита
	Burst              int           `mapstructure:"burst"`
	MaxAttempts        uint          `mapstructure:"max_attempts"`
	CallTimeout        time.Duration `mapstructure:"call_timeout"`
	CBMaxRequests      uint32        `mapstructure:"cb_max_requests"`
	CBInterval         time.Duration `mapstructure:"cb_interval"`
	CBTimeout          time.Duration `mapstructure:"cb_timeout"`
	CBFailureThreshold uint32        `mapstructure:"cb_failure_threshold"`
}

type CatalogConfig struct {
	SeedPath string `mapstructure:"seed_path"` // Пусто, встроенный справочник
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom("")
}

// LoadConfigFrom читает конкретный файл; пустой путь, поиск config.yaml в . и ./configs.
func LoadConfigFrom(path string) (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// 2. Переменные окружения: BACKEND_BASE_URL перекроет backend.base_url
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Дефолты
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Файла нет: работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Ключ из ENV (Docker/K8s) или из файла
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return errors.New("config: backend.base_url is required")
	}
	switch c.Session.Backend {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("config: unknown session.backend %q", c.Session.Backend)
	}
	switch c.Engine.Executor {
	case "backend", "sandbox":
	default:
		return fmt.Errorf("config: unknown engine.executor %q", c.Engine.Executor)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1") // Наружу только явно: host: 0.0.0.0
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("backend.base_url", "http://localhost:8000/api/v1")
	v.SetDefault("backend.timeout", 10*time.Second)

	v.SetDefault("session.backend", "file")
	v.SetDefault("session.path", ".nft-console/session.json")
	v.SetDefault("session.key", "default")

	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)

	v.SetDefault("engine.executor", "backend")
	v.SetDefault("engine.exclusive_agents", false)
	v.SetDefault("engine.partial_matching", false)
	v.SetDefault("engine.audit_buffer_size", 10000)
	v.SetDefault("engine.audit_flush_interval", 500*time.Millisecond)
	v.SetDefault("engine.audit_recent_size", 500)

	v.SetDefault("reliability.name", "backend")
	v.SetDefault("reliability.rate_limit", 100)
	v.SetDefault("reliability.burst", 20)
	v.SetDefault("reliability.max_attempts", 3)
	v.SetDefault("reliability.call_timeout", 10*time.Second)
	v.SetDefault("reliability.cb_max_requests", 3)
	v.SetDefault("reliability.cb_interval", 5*time.Second)
	v.SetDefault("reliability.cb_timeout", 30*time.Second)
	v.SetDefault("reliability.cb_failure_threshold", 5)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// loadKeyResource: PEM прямо из ENV, иначе из файла по пути из конфига
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
