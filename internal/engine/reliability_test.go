package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/nft-agents-console/internal/connectors"
	"github.com/xela07ax/nft-agents-console/internal/domain"
	"github.com/xela07ax/nft-agents-console/internal/infra"
)

func testReliability() *ReliabilityWrapper {
	return NewReliabilityWrapper(infra.ReliabilityConfig{
		Name:               "test",
		MaxAttempts:        3,
		CBMaxRequests:      1,
		CBTimeout:          time.Minute,
		CBFailureThreshold: 2,
	}, nil)
}

func networkErr() error {
	return &domain.NetworkError{Op: "call", Err: &connectors.ThrottleError{RetryAfter: time.Millisecond, Cause: errors.New("503")}}
}

func TestDo_RetriesNetworkErrors(t *testing.T) {
	w := testReliability()
	var calls int32
	err := w.Do(context.Background(), "list", func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return networkErr()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls)
}

func TestDo_SingleAttemptWithoutRetry(t *testing.T) {
	w := testReliability()
	var calls int32
	fail := func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return &domain.NetworkError{Op: "deploy", Err: errors.New("connection reset")}
	}

	err := w.Do(connectors.WithoutRetry(context.Background()), "deploy", fail)
	assert.True(t, domain.IsNetwork(err))
	assert.Equal(t, int32(1), calls, "non-idempotent call is sent once")
}

func TestDo_DoesNotRetryDomainErrors(t *testing.T) {
	w := testReliability()
	for _, want := range []error{
		&domain.ValidationError{Field: "name", Message: "required"},
		&domain.ConflictError{Op: "deploy", Reason: "busy"},
		&domain.AuthError{Reason: "expired"},
	} {
		var calls int32
		err := w.Do(context.Background(), "op", func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			return want
		})
		assert.Same(t, want, err)
		assert.Equal(t, int32(1), calls)
	}
	assert.Equal(t, gobreaker.StateClosed, w.State())
}

func TestDo_BreakerOpensOnNetworkFailures(t *testing.T) {
	w := testReliability()
	fail := func(ctx context.Context) error { return networkErr() }

	for i := 0; i < 2; i++ {
		assert.True(t, domain.IsNetwork(w.Do(context.Background(), "op", fail)))
	}
	assert.Equal(t, gobreaker.StateOpen, w.State())

	var called bool
	err := w.Do(context.Background(), "op", func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.True(t, domain.IsNetwork(err))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, called)
}

func TestDo_CancelledContext(t *testing.T) {
	w := testReliability()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Do(ctx, "op", func(ctx context.Context) error { return nil })
	assert.True(t, domain.IsNetwork(err))
}
