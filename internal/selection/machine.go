// Package selection ведет пошаговый выбор агент -> цель -> способность -> ввод.
// Смена более раннего шага сбрасывает все последующие.
package selection

import (
	"strings"
	"sync"

	"github.com/xela07ax/nft-agents-console/internal/domain"
	"github.com/xela07ax/nft-agents-console/internal/matcher"
)

type State int

const (
	Empty State = iota
	AgentSelected
	AgentTargetSelected
	FullySelected
)

func (s State) String() string {
	switch s {
	case AgentSelected:
		return "agent_selected"
	case AgentTargetSelected:
		return "agent_target_selected"
	case FullySelected:
		return "fully_selected"
	}
	return "empty"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// CapabilitySource: полный справочник способностей для матчера.
type CapabilitySource interface {
	Capabilities() []domain.Capability
}

type Machine struct {
	mu   sync.Mutex
	caps CapabilitySource
	opts matcher.Options

	agent      *domain.Agent
	target     *domain.Target
	capability *domain.Capability
	input      string
}

func New(caps CapabilitySource, opts matcher.Options) *Machine {
	return &Machine{caps: caps, opts: opts}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state()
}

func (m *Machine) state() State {
	switch {
	case m.agent == nil:
		return Empty
	case m.target == nil:
		return AgentSelected
	case m.capability == nil:
		return AgentTargetSelected
	}
	return FullySelected
}

// SelectAgent из любого состояния ведет в AgentSelected, очищая цель, способность и ввод.
func (m *Machine) SelectAgent(a domain.Agent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := a.Clone()
	m.agent = &c
	m.target, m.capability, m.input = nil, nil, ""
}

// DeselectAgent: полный сброс.
func (m *Machine) DeselectAgent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agent, m.target, m.capability, m.input = nil, nil, nil, ""
}

// SelectTarget требует выбранного агента и цель с разрешениями.
// Ранее выбранная способность всегда сбрасывается: совместимость задается парой.
func (m *Machine) SelectTarget(t domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.agent == nil {
		return &domain.ValidationError{Field: "target", Message: "select an agent first"}
	}
	if !t.Deployable() {
		return &domain.ValidationError{Field: "target", Message: "target " + t.Name + " has no permissions and cannot be selected"}
	}

	c := t.Clone()
	m.target = &c
	m.capability, m.input = nil, ""
	return nil
}

// SelectCapability принимает только способность из списка совместимых. При отказе состояние не меняется.
func (m *Machine) SelectCapability(id domain.CapabilityID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.agent == nil || m.target == nil {
		return &domain.ValidationError{Field: "capability", Message: "select an agent and a target first"}
	}

	id = domain.NewCapabilityID(string(id))
	for _, c := range matcher.CompatibleWith(m.agent, m.target, m.caps.Capabilities(), m.opts) {
		if domain.NewCapabilityID(string(c.ID)) != id {
			continue
		}
		if m.capability == nil || m.capability.ID != c.ID {
			m.input = ""
		}
		picked := c
		m.capability = &picked
		return nil
	}
	return &domain.ValidationError{Field: "capability", Message: "capability " + string(id) + " is not compatible with the selected agent and target"}
}

// SetInput доступен только в FullySelected.
func (m *Machine) SetInput(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state() != FullySelected {
		return &domain.ValidationError{Field: "input", Message: "select an agent, a target and a capability first"}
	}
	m.input = text
	return nil
}

// Submit возвращает готовый к запуску выбор. Выбор после отправки сохраняется.
func (m *Machine) Submit() (domain.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state() != FullySelected {
		return domain.Submission{}, &domain.ValidationError{Field: "selection", Message: "agent, target and capability must be selected"}
	}
	if strings.TrimSpace(m.input) == "" {
		return domain.Submission{}, &domain.ValidationError{Field: "input", Message: "input is required"}
	}

	a, t, c := m.agent.Clone(), m.target.Clone(), *m.capability
	return domain.Submission{Agent: &a, Target: &t, Capability: &c, Input: m.input}, nil
}

// Option: пункт списка способностей. Несовместимые видны, но неактивны.
type Option struct {
	Capability domain.Capability `json:"capability"`
	Enabled    bool              `json:"enabled"`
	Selected   bool              `json:"selected"`
}

func (m *Machine) Options() []Option {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.caps.Capabilities()
	enabled := make(map[domain.CapabilityID]struct{})
	for _, c := range matcher.CompatibleWith(m.agent, m.target, all, m.opts) {
		enabled[c.ID] = struct{}{}
	}

	out := make([]Option, 0, len(all))
	for _, c := range all {
		_, ok := enabled[c.ID]
		out = append(out, Option{
			Capability: c,
			Enabled:    ok,
			Selected:   m.capability != nil && m.capability.ID == c.ID,
		})
	}
	return out
}

// Snapshot: неизменяемый срез состояния для отображения.
type Snapshot struct {
	State         State               `json:"state"`
	AgentID       string              `json:"agent_id,omitempty"`
	TargetID      string              `json:"target_id,omitempty"`
	CapabilityID  domain.CapabilityID `json:"capability_id,omitempty"`
	Input         string              `json:"input"`
	Compatibility matcher.Result      `json:"compatibility"`
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		State:         m.state(),
		Input:         m.input,
		Compatibility: matcher.ExplainWith(m.agent, m.target, m.caps.Capabilities(), m.opts),
	}
	if m.agent != nil {
		s.AgentID = m.agent.ID
	}
	if m.target != nil {
		s.TargetID = m.target.ID
	}
	if m.capability != nil {
		s.CapabilityID = m.capability.ID
	}
	return s
}
