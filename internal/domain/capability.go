package domain

import "strings"

// CapabilityID: канонический токен способности ("web_analysis").
// Все наборы способностей приводятся к нему при загрузке данных.
type CapabilityID string

// NewCapabilityID: trim, lowercase, пробелы/дефисы/подчеркивания схлопываются в один "_".
func NewCapabilityID(raw string) CapabilityID {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		switch r {
		case ' ', '\t', '\n', '-', '_':
			pendingSep = true
			continue
		}
		if pendingSep && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingSep = false
		b.WriteRune(r)
	}
	return CapabilityID(b.String())
}

// UnmarshalText канонизирует ID при декодировании JSON/YAML.
func (c *CapabilityID) UnmarshalText(text []byte) error {
	*c = NewCapabilityID(string(text))
	return nil
}

func (c CapabilityID) String() string { return string(c) }

// NewCapabilitySet канонизирует набор, убирает пустые и дубли, сохраняя порядок.
func NewCapabilitySet(raw []string) []CapabilityID {
	out := make([]CapabilityID, 0, len(raw))
	seen := make(map[CapabilityID]struct{}, len(raw))
	for _, r := range raw {
		id := NewCapabilityID(r)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Canonicalize повторно нормализует уже типизированный набор.
func Canonicalize(ids []CapabilityID) []CapabilityID {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	return NewCapabilitySet(raw)
}

// CapabilityStrings: обратное преобразование для wire-формата.
func CapabilityStrings(ids []CapabilityID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// Capability: справочные данные. Пользователь меняет только флаг Installed.
type Capability struct {
	ID            CapabilityID `json:"id" yaml:"id"`
	Name          string       `json:"name" yaml:"name"`
	Provider      string       `json:"provider" yaml:"provider"`
	EstimatedTime string       `json:"estimated_time" yaml:"estimated_time"`
	Description   string       `json:"description,omitempty" yaml:"description"`
	Category      string       `json:"category,omitempty" yaml:"category"`

	// Способность цели, без которой эта способность не запускается
	RequiredTargetCapability CapabilityID `json:"required_target_capability" yaml:"required_target_capability"`

	Installed bool `json:"installed" yaml:"installed"`
}
