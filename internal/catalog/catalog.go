package catalog

import (
	"fmt"
	"sync"

	"github.com/xela07ax/nft-agents-console/internal/domain"
	"go.uber.org/zap"
)

// Catalog: потокобезопасный in-memory справочник агентов, целей и способностей.
// Читают все; пишет только сервисный слой консоли (по подтвержденным ответам бэкенда).
type Catalog struct {
	mu sync.RWMutex

	agents     map[string]domain.Agent
	agentOrder []string

	targets     []domain.Target
	targetIndex map[string]int

	capabilities []domain.Capability
	capIndex     map[domain.CapabilityID]int

	logger *zap.Logger
}

func New(logger *zap.Logger) *Catalog {
	return &Catalog{
		agents:      make(map[string]domain.Agent),
		targetIndex: make(map[string]int),
		capIndex:    make(map[domain.CapabilityID]int),
		logger:      logger.Named("catalog"),
	}
}

// Load полностью заменяет справочник содержимым seed.
func (c *Catalog) Load(seed Seed) error {
	targets := make([]domain.Target, 0, len(seed.Targets))
	targetIndex := make(map[string]int, len(seed.Targets))
	for _, t := range seed.Targets {
		if _, dup := targetIndex[t.ID]; dup {
			return fmt.Errorf("catalog: duplicate target %q", t.ID)
		}
		targetIndex[t.ID] = len(targets)
		targets = append(targets, t.Clone())
	}

	caps := make([]domain.Capability, 0, len(seed.Capabilities))
	capIndex := make(map[domain.CapabilityID]int, len(seed.Capabilities))
	for _, cp := range seed.Capabilities {
		if _, dup := capIndex[cp.ID]; dup {
			return fmt.Errorf("catalog: duplicate capability %q", cp.ID)
		}
		capIndex[cp.ID] = len(caps)
		caps = append(caps, cp)
	}

	c.mu.Lock()
	c.targets, c.targetIndex = targets, targetIndex
	c.capabilities, c.capIndex = caps, capIndex
	c.mu.Unlock()

	c.ReplaceAgents(seed.DomainAgents())

	c.logger.Info("catalog loaded",
		zap.Int("targets", len(targets)),
		zap.Int("capabilities", len(caps)),
		zap.Int("agents", len(seed.Agents)))
	return nil
}

// --- Агенты ---

func (c *Catalog) Agents() []domain.Agent {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Agent, 0, len(c.agentOrder))
	for _, id := range c.agentOrder {
		out = append(out, c.agents[id].Clone())
	}
	return out
}

func (c *Catalog) Agent(id string) (domain.Agent, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	a, ok := c.agents[id]
	if !ok {
		return domain.Agent{}, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	return a.Clone(), nil
}

// PutAgent вставляет или заменяет агента. Нарушение инварианта, ошибка, каталог не меняется.
func (c *Catalog) PutAgent(a domain.Agent) error {
	if a.ID == "" {
		return &domain.ValidationError{Field: "id", Message: "agent id is required"}
	}
	if err := a.Validate(); err != nil {
		return err
	}
	a.Capabilities = domain.Canonicalize(a.Capabilities)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.agents[a.ID]; !ok {
		c.agentOrder = append(c.agentOrder, a.ID)
	}
	c.agents[a.ID] = a.Clone()
	return nil
}

// ReplaceAgents заменяет весь список. Записи с нарушенным инвариантом пропускаются.
func (c *Catalog) ReplaceAgents(agents []domain.Agent) {
	next := make(map[string]domain.Agent, len(agents))
	order := make([]string, 0, len(agents))
	for _, a := range agents {
		if err := a.Validate(); err != nil {
			c.logger.Warn("agent skipped", zap.String("agent_id", a.ID), zap.Error(err))
			continue
		}
		if _, dup := next[a.ID]; !dup {
			order = append(order, a.ID)
		}
		a.Capabilities = domain.Canonicalize(a.Capabilities)
		next[a.ID] = a.Clone()
	}

	c.mu.Lock()
	c.agents, c.agentOrder = next, order
	c.mu.Unlock()
}

func (c *Catalog) RemoveAgent(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.agents[id]; !ok {
		return
	}
	delete(c.agents, id)
	for i, have := range c.agentOrder {
		if have == id {
			c.agentOrder = append(c.agentOrder[:i], c.agentOrder[i+1:]...)
			break
		}
	}
}

// --- Цели ---

func (c *Catalog) Targets() []domain.Target {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Target, len(c.targets))
	for i, t := range c.targets {
		out[i] = t.Clone()
	}
	return out
}

func (c *Catalog) Target(id string) (domain.Target, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.targetIndex[id]
	if !ok {
		return domain.Target{}, fmt.Errorf("target %s: %w", id, domain.ErrNotFound)
	}
	return c.targets[i].Clone(), nil
}

// --- Способности ---

func (c *Catalog) Capabilities() []domain.Capability {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Capability(nil), c.capabilities...)
}

func (c *Catalog) Capability(id domain.CapabilityID) (domain.Capability, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.capIndex[domain.NewCapabilityID(string(id))]
	if !ok {
		return domain.Capability{}, fmt.Errorf("capability %s: %w", id, domain.ErrNotFound)
	}
	return c.capabilities[i], nil
}

func (c *Catalog) InstalledCapabilities() []domain.Capability {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Capability, 0, len(c.capabilities))
	for _, cp := range c.capabilities {
		if cp.Installed {
			out = append(out, cp)
		}
	}
	return out
}

// SetInstalled: единственная мутация справочника способностей.
func (c *Catalog) SetInstalled(id domain.CapabilityID, installed bool) (domain.Capability, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.capIndex[domain.NewCapabilityID(string(id))]
	if !ok {
		return domain.Capability{}, fmt.Errorf("capability %s: %w", id, domain.ErrNotFound)
	}
	c.capabilities[i].Installed = installed
	return c.capabilities[i], nil
}

// InstallAll ставит все способности, возвращает число новых.
func (c *Catalog) InstallAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for i := range c.capabilities {
		if !c.capabilities[i].Installed {
			c.capabilities[i].Installed = true
			n++
		}
	}
	return n
}
