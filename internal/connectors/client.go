package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Guard оборачивает каждый вызов бэкенда (rate limit, circuit breaker, retry).
type Guard interface {
	Do(ctx context.Context, op string, fn func(ctx context.Context) error) error
}

// TokenSource отдает текущий bearer-токен сессии. Пустая строка, без авторизации.
type TokenSource interface {
	Token() string
}

type Option func(*Client)

func WithGuard(g Guard) Option {
	return func(c *Client) { c.guard = g }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// Client: REST-клиент бэкенда NFT-агентов. Безопасен для конкурентного использования.
type Client struct {
	baseURL string
	http    *http.Client
	guard   Guard
	tokens  TokenSource
	logger  *zap.Logger
}

// NewClient: baseURL включает префикс API, например http://localhost:8000/api/v1.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("backend"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL нужен исполнителю для websocket-потока.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

type noRetryKey struct{}

// WithoutRetry помечает вызов как неидемпотентный: Guard делает одну попытку.
func WithoutRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRetryKey{}, true)
}

// RetryAllowed: false для вызовов, помеченных WithoutRetry.
func RetryAllowed(ctx context.Context) bool {
	off, _ := ctx.Value(noRetryKey{}).(bool)
	return !off
}

// call выполняет запрос под Guard. op, имя операции для ошибок и метрик.
// POST и PATCH не повторяются: потерянный ответ не значит, что сервер не выполнил запрос.
func (c *Client) call(ctx context.Context, op, method, path string, body, out any) error {
	if method == http.MethodPost || method == http.MethodPatch {
		ctx = WithoutRetry(ctx)
	}
	fn := func(ctx context.Context) error {
		return c.doJSON(ctx, op, method, path, body, out)
	}
	if c.guard == nil {
		return fn(ctx)
	}
	return c.guard.Do(ctx, op, fn)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return c.http.Do(req)
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		c.logger.Warn("backend unreachable", zap.String("op", op), zap.Error(err))
		return transportError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := classify(op, resp)
		c.logger.Debug("backend rejected request",
			zap.String("op", op),
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Error(err))
		return err
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
		return nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
