package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/nft-agents-console/internal/connectors"
	"github.com/xela07ax/nft-agents-console/internal/domain"
	"github.com/xela07ax/nft-agents-console/internal/infra"
	"golang.org/x/time/rate"
)

// ReliabilityWrapper защищает вызовы бэкенда: rate limiter -> circuit breaker -> retry.
// Повторяются и считаются отказом только NetworkError; валидация, конфликт и 401
// возвращаются сразу и предохранитель не выбивают.
type ReliabilityWrapper struct {
	cb          *gobreaker.CircuitBreaker
	limiter     *rate.Limiter
	attempts    uint
	callTimeout time.Duration
	metrics     *Metrics
}

func NewReliabilityWrapper(cfg infra.ReliabilityConfig, metrics *Metrics) *ReliabilityWrapper {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	name := cfg.Name
	if name == "" {
		name = "backend"
	}
	threshold := cfg.CBFailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	// Настройка предохранителя
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // Через сколько CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !domain.IsNetwork(err)
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	attempts := cfg.MaxAttempts
	if attempts == 0 {
		attempts = 3
	}

	return &ReliabilityWrapper{
		cb:          cb,
		limiter:     rate.NewLimiter(limit, burst),
		attempts:    attempts,
		callTimeout: cfg.CallTimeout,
		metrics:     metrics,
	}
}

// Do выполняет fn под защитой. op попадает в NetworkError и метрики.
func (w *ReliabilityWrapper) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := w.do(ctx, op, fn)
	w.metrics.BackendDuration.WithLabelValues(op, Outcome(err)).Observe(time.Since(start).Seconds())
	return err
}

func (w *ReliabilityWrapper) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		return &domain.NetworkError{Op: op, Err: fmt.Errorf("rate limit: %w", err)}
	}

	// 2. Circuit Breaker
	_, err := w.cb.Execute(func() (interface{}, error) {
		var lastErr error

		// 3. Retry только для сетевых ошибок и идемпотентных вызовов
		attempts := w.attempts
		if !connectors.RetryAllowed(ctx) {
			attempts = 1
		}
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(attempts),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Бэкенд вернул 429/503 с Retry-After
				var tErr *connectors.ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := r.Do(func() error {
			callCtx := ctx
			if w.callTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, w.callTimeout)
				defer cancel()
			}

			lastErr = fn(callCtx)
			if lastErr != nil && !domain.IsNetwork(lastErr) {
				return retry.Unrecoverable(lastErr)
			}
			return lastErr
		})

		if retryErr == nil {
			return nil, nil
		}
		if lastErr != nil {
			return nil, lastErr
		}
		// Контекст отменен до первой попытки
		return nil, &domain.NetworkError{Op: op, Err: retryErr}
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.NetworkError{Op: op, Err: fmt.Errorf("backend unavailable: %w", err)}
	}
	return err
}

// State: текущее состояние предохранителя.
func (w *ReliabilityWrapper) State() gobreaker.State {
	return w.cb.State()
}

// Outcome: метка результата для метрик.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case domain.IsValidation(err):
		return "validation"
	case domain.IsConflict(err):
		return "conflict"
	case domain.IsAuth(err):
		return "auth"
	case domain.IsNetwork(err):
		return "network"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	}
	return "error"
}
