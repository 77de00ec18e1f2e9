package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/nft-agents-console/internal/domain"
	"github.com/xela07ax/nft-agents-console/internal/infra"
	"go.uber.org/zap"
)

func sandboxConfig() *infra.Config {
	return &infra.Config{
		Backend: infra.BackendConfig{BaseURL: "http://127.0.0.1:1/api/v1", Timeout: time.Second},
		Session: infra.SessionConfig{Backend: "memory"},
		Engine:  infra.EngineConfig{Executor: "sandbox"},
		Reliability: infra.ReliabilityConfig{
			MaxAttempts: 1,
		},
	}
}

func TestNew_SandboxAssembly(t *testing.T) {
	a, err := New(context.Background(), sandboxConfig(), zap.NewNop())
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close(context.Background())) }()

	assert.Len(t, a.Catalog.Agents(), 6)
	assert.False(t, a.Session.IsAuthenticated())

	h := a.Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestSandboxRunEndToEnd(t *testing.T) {
	a, err := New(context.Background(), sandboxConfig(), zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = a.Close(context.Background()) }()

	_, err = a.Runs.SelectAgent("4")
	require.NoError(t, err)
	_, err = a.Runs.SelectTarget("vscode")
	require.NoError(t, err)
	_, err = a.Runs.SelectCapability("code_analysis")
	require.NoError(t, err)
	_, err = a.Runs.SetInput("review handler.go")
	require.NoError(t, err)

	run, err := a.Runs.Submit(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		r, err := a.Runs.Run(run.ID)
		return err == nil && r.Status.IsTerminal()
	}, 10*time.Second, 20*time.Millisecond)

	final, err := a.Runs.Run(run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, final.Status)
	assert.NotEmpty(t, final.Output)
}

func TestNew_BadSeedPath(t *testing.T) {
	cfg := sandboxConfig()
	cfg.Catalog.SeedPath = "/nonexistent/seed.yaml"
	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
