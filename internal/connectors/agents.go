package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xela07ax/nft-agents-console/internal/domain"
)

// flexID принимает и число, и строку: бэкенд отдает owner_id как int64.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// wireAgent: агент в формате бэкенда. Все поля дашборда лежат в config (JSON-строка).
type wireAgent struct {
	ID        flexID    `json:"id"`
	OwnerID   flexID    `json:"owner_id,omitempty"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Config    string    `json:"config"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type agentConfig struct {
	Collection       string   `json:"collection,omitempty"`
	ImageURL         string   `json:"image_url,omitempty"`
	Capabilities     []string `json:"capabilities"`
	TargetTypes      []string `json:"target_types"`
	Status           string   `json:"status,omitempty"`
	CurrentTarget    *string  `json:"current_target,omitempty"`
	ActiveCapability *string  `json:"active_capability,omitempty"`
	TotalInferences  int64    `json:"total_inferences,omitempty"`
	SuccessRate      float64  `json:"success_rate,omitempty"`
}

// agentRequest: тело POST /agents и PUT /agents/{id}.
type agentRequest struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Config string `json:"config"`
}

// EncodeConfig собирает config-строку из полей агента.
func EncodeConfig(a domain.Agent) (string, error) {
	cfg := agentConfig{
		Collection:      a.Collection,
		ImageURL:        a.ImageURL,
		Capabilities:    domain.CapabilityStrings(a.Capabilities),
		TargetTypes:     a.TargetTypes,
		Status:          string(a.Status),
		CurrentTarget:   a.CurrentTarget,
		TotalInferences: a.TotalInferences,
		SuccessRate:     a.SuccessRate,
	}
	if cfg.TargetTypes == nil {
		cfg.TargetTypes = []string{}
	}
	if a.ActiveCapability != nil {
		s := a.ActiveCapability.String()
		cfg.ActiveCapability = &s
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode agent config: %w", err)
	}
	return string(b), nil
}

// decodeAgent разворачивает config. Пустой или битый config, агент без способностей, idle.
func decodeAgent(w wireAgent) (domain.Agent, error) {
	a := domain.Agent{
		ID:        string(w.ID),
		OwnerID:   string(w.OwnerID),
		Name:      w.Name,
		Type:      w.Type,
		Status:    domain.AgentIdle,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
	if strings.TrimSpace(w.Config) == "" {
		return a, nil
	}

	var cfg agentConfig
	if err := json.Unmarshal([]byte(w.Config), &cfg); err != nil {
		return a, fmt.Errorf("agent %s: decode config: %w", a.ID, err)
	}
	a.Collection = cfg.Collection
	a.ImageURL = cfg.ImageURL
	a.Capabilities = domain.NewCapabilitySet(cfg.Capabilities)
	a.TargetTypes = cfg.TargetTypes
	if cfg.Status != "" {
		a.Status = domain.AgentStatus(strings.ToLower(cfg.Status))
	}
	a.CurrentTarget = cfg.CurrentTarget
	if cfg.ActiveCapability != nil {
		id := domain.NewCapabilityID(*cfg.ActiveCapability)
		a.ActiveCapability = &id
	}
	a.TotalInferences = cfg.TotalInferences
	a.SuccessRate = cfg.SuccessRate
	return a, nil
}

func newAgentRequest(a domain.Agent) (agentRequest, error) {
	cfg, err := EncodeConfig(a)
	if err != nil {
		return agentRequest{}, err
	}
	return agentRequest{Name: a.Name, Type: a.Type, Config: cfg}, nil
}

type agentEnvelope struct {
	Agent *wireAgent `json:"agent"`
}

func (e agentEnvelope) decode(op string) (domain.Agent, error) {
	if e.Agent == nil {
		return domain.Agent{}, fmt.Errorf("%s: response carries no agent", op)
	}
	return decodeAgent(*e.Agent)
}

// ListAgents: GET /agents. owner пустой, агенты текущего пользователя.
// Агенты с нечитаемым config пропускаются, их ID возвращаются в skipped.
func (c *Client) ListAgents(ctx context.Context, owner string) (agents []domain.Agent, skipped []string, err error) {
	path := "/agents"
	if owner != "" {
		path += "?owner=" + url.QueryEscape(owner)
	}
	var out struct {
		Agents []wireAgent `json:"agents"`
	}
	if err := c.call(ctx, "list agents", http.MethodGet, path, nil, &out); err != nil {
		return nil, nil, err
	}
	agents = make([]domain.Agent, 0, len(out.Agents))
	for _, w := range out.Agents {
		a, err := decodeAgent(w)
		if err != nil {
			skipped = append(skipped, string(w.ID))
			continue
		}
		agents = append(agents, a)
	}
	return agents, skipped, nil
}

func (c *Client) GetAgent(ctx context.Context, id string) (domain.Agent, error) {
	var out agentEnvelope
	if err := c.call(ctx, "get agent", http.MethodGet, "/agents/"+url.PathEscape(id), nil, &out); err != nil {
		return domain.Agent{}, err
	}
	return out.decode("get agent")
}

// CreateAgent: POST /agents; бэкенд присваивает ID и временные метки.
func (c *Client) CreateAgent(ctx context.Context, a domain.Agent) (domain.Agent, error) {
	body, err := newAgentRequest(a)
	if err != nil {
		return domain.Agent{}, err
	}
	var out agentEnvelope
	if err := c.call(ctx, "create agent", http.MethodPost, "/agents", body, &out); err != nil {
		return domain.Agent{}, err
	}
	return out.decode("create agent")
}

// UpdateAgent: PUT /agents/{id} с полностью собранным config.
func (c *Client) UpdateAgent(ctx context.Context, a domain.Agent) (domain.Agent, error) {
	body, err := newAgentRequest(a)
	if err != nil {
		return domain.Agent{}, err
	}
	var out agentEnvelope
	if err := c.call(ctx, "update agent", http.MethodPut, "/agents/"+url.PathEscape(a.ID), body, &out); err != nil {
		return domain.Agent{}, err
	}
	return out.decode("update agent")
}

func (c *Client) DeleteAgent(ctx context.Context, id string) error {
	return c.call(ctx, "delete agent", http.MethodDelete, "/agents/"+url.PathEscape(id), nil, nil)
}

// DeployAgent: POST /agents/{id}/deploy {target_id, capability_id}.
func (c *Client) DeployAgent(ctx context.Context, agentID, targetID string, capID domain.CapabilityID) (domain.Agent, error) {
	body := map[string]string{
		"target_id":     targetID,
		"capability_id": capID.String(),
	}
	var out agentEnvelope
	if err := c.call(ctx, "deploy agent", http.MethodPost, "/agents/"+url.PathEscape(agentID)+"/deploy", body, &out); err != nil {
		return domain.Agent{}, err
	}
	return out.decode("deploy agent")
}

// StopAgent: POST /agents/{id}/stop.
func (c *Client) StopAgent(ctx context.Context, agentID string) (domain.Agent, error) {
	var out agentEnvelope
	if err := c.call(ctx, "stop agent", http.MethodPost, "/agents/"+url.PathEscape(agentID)+"/stop", nil, &out); err != nil {
		return domain.Agent{}, err
	}
	return out.decode("stop agent")
}
