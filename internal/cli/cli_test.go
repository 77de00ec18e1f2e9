package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/nft-agents-console/internal/domain"
)

// writeConfig кладет config.yaml во временный каталог: sandbox-исполнитель и файловая сессия.
func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`backend:
  base_url: %s
  timeout: 1s
session:
  backend: file
  path: %s
engine:
  executor: sandbox
reliability:
  max_attempts: 1
logger:
  level: error
`, baseURL, filepath.Join(dir, "session.json"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func execute(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test")
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{"--config", configPath}, args...))
	err := root.Execute()
	return buf.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd("1.2.3")
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"login", "logout", "whoami", "agents", "targets", "capabilities", "compat", "run", "dashboard", "audit"} {
		assert.True(t, names[want], "missing command %s", want)
	}
	assert.Equal(t, "1.2.3", root.Version)
}

func TestHelpDoesNotBuildConsole(t *testing.T) {
	// Несуществующий конфиг упал бы при сборке консоли
	root := NewRootCmd("")
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"--config", "/nonexistent/config.yaml", "help"})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "agentctl")
}

func TestCompat(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1/api/v1")

	out, err := execute(t, cfg, "compat", "4", "vscode")
	require.NoError(t, err)
	assert.Contains(t, out, "code_analysis")
	assert.Contains(t, out, "bug_detection")

	_, err = execute(t, cfg, "compat", "404", "vscode")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTargetsForAgent(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1/api/v1")

	out, err := execute(t, cfg, "-o", "json", "targets", "--agent", "4")
	require.NoError(t, err)

	var targets []domain.Target
	require.NoError(t, json.Unmarshal([]byte(out), &targets))
	ids := make([]string, 0, len(targets))
	for _, tg := range targets {
		ids = append(ids, tg.ID)
	}
	assert.Equal(t, []string{"vscode", "photoshop"}, ids)
}

func TestDashboardJSON(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1/api/v1")

	out, err := execute(t, cfg, "--output", "json", "dashboard")
	require.NoError(t, err)

	var d domain.Dashboard
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, 6, d.Agents.Total)
	assert.Equal(t, 7, d.Targets.Total)
}

func TestCapabilitiesInstall(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1/api/v1")

	out, err := execute(t, cfg, "capabilities", "install", "Code Analysis")
	require.NoError(t, err)
	assert.Contains(t, out, "installed")

	_, err = execute(t, cfg, "capabilities", "install", "teleport")
	assert.Error(t, err)
}

func TestRun_Sandbox(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1/api/v1")

	out, err := execute(t, cfg, "run", "4", "vscode", "code_analysis", "--input", "review handler.go", "--poll", "20ms")
	require.NoError(t, err)
	assert.Contains(t, out, "started")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "review handler.go")
}

func TestRun_Validation(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1/api/v1")

	_, err := execute(t, cfg, "run", "4", "vscode", "code_analysis")
	assert.EqualError(t, err, "--input is required")

	// У iphone нет разрешений, цель не выбирается
	_, err = execute(t, cfg, "run", "4", "iphone", "code_analysis", "--input", "x")
	assert.True(t, domain.IsValidation(err), "got %v", err)
}

func TestRun_TimeoutCancels(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1/api/v1")

	out, err := execute(t, cfg, "run", "4", "vscode", "code_analysis", "-i", "slow", "--timeout", "30ms", "--poll", "10ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
	assert.Contains(t, out, "started")
}

func TestDeploy_RequiresFlags(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1/api/v1")

	_, err := execute(t, cfg, "agents", "deploy", "4")
	assert.EqualError(t, err, "--target is required")
}

func TestLoginPersistsSession(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, domain.CustomClaims{
		UserID:           "7",
		Username:         "operator",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("backend-secret"))
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req domain.LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "operator", req.Username)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(domain.AuthResponse{
			Token: token,
			User:  domain.User{ID: "7", Username: "operator", Role: "admin", Permissions: []string{domain.PermissionManageUsers}},
		})
	})
	mux.HandleFunc("/api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := writeConfig(t, srv.URL+"/api/v1")

	_, err = execute(t, cfg, "whoami")
	assert.Error(t, err)

	t.Setenv("AGENTCTL_PASSWORD", "secret")
	out, err := execute(t, cfg, "login", "-u", "operator")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as operator")

	// Новый процесс поднимает сессию из файла
	out, err = execute(t, cfg, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "operator (id 7, role admin)")
	assert.Contains(t, out, domain.PermissionManageUsers)

	_, err = execute(t, cfg, "logout")
	require.NoError(t, err)
	_, err = execute(t, cfg, "whoami")
	assert.Error(t, err)
}
