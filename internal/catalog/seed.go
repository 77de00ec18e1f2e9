package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/xela07ax/nft-agents-console/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

// Seed: справочные данные каталога, загружаемые из YAML.
type Seed struct {
	Capabilities []domain.Capability `yaml:"capabilities"`
	Targets      []domain.Target     `yaml:"targets"`
	Agents       []seedAgent         `yaml:"agents"`
}

type seedAgent struct {
	ID               string   `yaml:"id"`
	Name             string   `yaml:"name"`
	Collection       string   `yaml:"collection"`
	Type             string   `yaml:"type"`
	ImageURL         string   `yaml:"image_url"`
	Status           string   `yaml:"status"`
	CurrentTarget    string   `yaml:"current_target"`
	ActiveCapability string   `yaml:"active_capability"`
	TotalInferences  int64    `yaml:"total_inferences"`
	SuccessRate      float64  `yaml:"success_rate"`
	Capabilities     []string `yaml:"capabilities"`
	TargetTypes      []string `yaml:"target_types"`
}

func (s seedAgent) toDomain() domain.Agent {
	a := domain.Agent{
		ID:              s.ID,
		Name:            s.Name,
		Collection:      s.Collection,
		Type:            s.Type,
		ImageURL:        s.ImageURL,
		Status:          domain.AgentStatus(s.Status),
		TotalInferences: s.TotalInferences,
		SuccessRate:     s.SuccessRate,
		Capabilities:    domain.NewCapabilitySet(s.Capabilities),
		TargetTypes:     s.TargetTypes,
	}
	if a.Status == "" {
		a.Status = domain.AgentIdle
	}
	if s.CurrentTarget != "" {
		t := s.CurrentTarget
		a.CurrentTarget = &t
	}
	if s.ActiveCapability != "" {
		c := domain.NewCapabilityID(s.ActiveCapability)
		a.ActiveCapability = &c
	}
	return a
}

// DefaultSeed возвращает встроенный справочник.
func DefaultSeed() (Seed, error) {
	return ParseSeed(defaultSeed)
}

// LoadSeed читает справочник из файла. Пустой путь, встроенный справочник.
func LoadSeed(path string) (Seed, error) {
	if path == "" {
		return DefaultSeed()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read catalog seed: %w", err)
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) (Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Seed{}, fmt.Errorf("decode catalog seed: %w", err)
	}

	// Канонизация при загрузке: дальше по коду сравниваются только CapabilityID
	for i := range s.Capabilities {
		c := &s.Capabilities[i]
		c.ID = domain.NewCapabilityID(string(c.ID))
		c.RequiredTargetCapability = domain.NewCapabilityID(string(c.RequiredTargetCapability))
		if c.ID == "" {
			return Seed{}, fmt.Errorf("catalog seed: capability #%d has empty id", i)
		}
	}
	for i := range s.Targets {
		t := &s.Targets[i]
		t.Capabilities = domain.Canonicalize(t.Capabilities)
		if t.ID == "" {
			return Seed{}, fmt.Errorf("catalog seed: target #%d has empty id", i)
		}
	}
	return s, nil
}

func (s Seed) DomainAgents() []domain.Agent {
	out := make([]domain.Agent, 0, len(s.Agents))
	for _, a := range s.Agents {
		out = append(out, a.toDomain())
	}
	return out
}
