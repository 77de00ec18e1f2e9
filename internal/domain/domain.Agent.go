package domain

import (
	"fmt"
	"strings"
	"time"
)

type AgentStatus string

const (
	AgentIdle        AgentStatus = "idle"        // Свободен, не привязан к цели
	AgentActive      AgentStatus = "active"      // Выполняет способность на цели
	AgentDeployed    AgentStatus = "deployed"    // Развернут на цели
	AgentMonitoring  AgentStatus = "monitoring"  // Наблюдает за целью
	AgentMaintenance AgentStatus = "maintenance" // Выведен на обслуживание
)

// IsEngaged: агент привязан к цели и способности.
func (s AgentStatus) IsEngaged() bool {
	switch s {
	case AgentActive, AgentDeployed, AgentMonitoring:
		return true
	}
	return false
}

func (s AgentStatus) Valid() bool {
	switch s {
	case AgentIdle, AgentActive, AgentDeployed, AgentMonitoring, AgentMaintenance:
		return true
	}
	return false
}

type Agent struct {
	ID         string      `json:"id"`
	OwnerID    string      `json:"owner_id,omitempty"`
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Collection string      `json:"collection"`
	ImageURL   string      `json:"image_url,omitempty"`
	Status     AgentStatus `json:"status"`

	Capabilities []CapabilityID `json:"capabilities"`
	TargetTypes  []string       `json:"target_types"`

	// Заполнены только в состояниях active/deployed/monitoring
	CurrentTarget    *string       `json:"current_target"`
	ActiveCapability *CapabilityID `json:"active_capability"`

	TotalInferences int64   `json:"total_inferences"`
	SuccessRate     float64 `json:"success_rate"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate проверяет инвариант привязки: engaged <=> цель и способность заданы.
func (a Agent) Validate() error {
	if !a.Status.Valid() {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("unknown agent status %q", a.Status)}
	}
	bound := a.CurrentTarget != nil && a.ActiveCapability != nil
	unbound := a.CurrentTarget == nil && a.ActiveCapability == nil
	switch {
	case a.Status.IsEngaged() && !bound:
		return &ValidationError{Field: "status", Message: fmt.Sprintf("agent in %s must have target and capability", a.Status)}
	case !a.Status.IsEngaged() && !unbound:
		return &ValidationError{Field: "status", Message: fmt.Sprintf("agent in %s must not have target or capability", a.Status)}
	}
	if a.TotalInferences < 0 {
		return &ValidationError{Field: "total_inferences", Message: "must be non-negative"}
	}
	if a.SuccessRate < 0 || a.SuccessRate > 100 {
		return &ValidationError{Field: "success_rate", Message: "must be within [0, 100]"}
	}
	return nil
}

// HasCapability сравнивает по каноническому ID.
func (a Agent) HasCapability(id CapabilityID) bool {
	for _, c := range a.Capabilities {
		if c == id {
			return true
		}
	}
	return false
}

// SupportsTargetType сравнивает типы без учета регистра и разделителей.
func (a Agent) SupportsTargetType(targetType string) bool {
	want := alnum(targetType)
	for _, t := range a.TargetTypes {
		if alnum(t) == want {
			return true
		}
	}
	return false
}

// Clone возвращает глубокую копию (снапшот для отката).
func (a Agent) Clone() Agent {
	c := a
	c.Capabilities = append([]CapabilityID(nil), a.Capabilities...)
	c.TargetTypes = append([]string(nil), a.TargetTypes...)
	if a.CurrentTarget != nil {
		t := *a.CurrentTarget
		c.CurrentTarget = &t
	}
	if a.ActiveCapability != nil {
		ac := *a.ActiveCapability
		c.ActiveCapability = &ac
	}
	return c
}

// Engage переводит агента в active с привязкой к цели.
func (a *Agent) Engage(targetID string, capID CapabilityID) {
	a.Status = AgentActive
	a.CurrentTarget = &targetID
	a.ActiveCapability = &capID
}

// Release возвращает агента в idle.
func (a *Agent) Release() {
	a.Status = AgentIdle
	a.CurrentTarget = nil
	a.ActiveCapability = nil
}

// AgentDraft: данные формы создания агента.
type AgentDraft struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Collection   string   `json:"collection"`
	ImageURL     string   `json:"image_url"`
	Capabilities []string `json:"capabilities"`
	TargetTypes  []string `json:"target_types"`
}

// Validate: локальная проверка, до сети не доходит.
func (d AgentDraft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return &ValidationError{Field: "name", Message: "agent name is required"}
	}
	if strings.TrimSpace(d.Collection) == "" {
		return &ValidationError{Field: "collection", Message: "collection is required"}
	}
	if strings.TrimSpace(d.ImageURL) == "" {
		return &ValidationError{Field: "image_url", Message: "agent image is required"}
	}
	if len(NewCapabilitySet(d.Capabilities)) == 0 {
		return &ValidationError{Field: "capabilities", Message: "at least one capability is required"}
	}
	if len(nonBlank(d.TargetTypes)) == 0 {
		return &ValidationError{Field: "target_types", Message: "at least one target type is required"}
	}
	return nil
}

// Agent собирает нового агента из формы: idle, без привязки, способности канонические.
func (d AgentDraft) Agent() Agent {
	typ := strings.TrimSpace(d.Type)
	if typ == "" {
		typ = "nft"
	}
	return Agent{
		Name:         strings.TrimSpace(d.Name),
		Type:         typ,
		Collection:   strings.TrimSpace(d.Collection),
		ImageURL:     strings.TrimSpace(d.ImageURL),
		Status:       AgentIdle,
		Capabilities: NewCapabilitySet(d.Capabilities),
		TargetTypes:  nonBlank(d.TargetTypes),
	}
}

// AgentPatch: частичное обновление конфигурации. nil означает "не менять".
type AgentPatch struct {
	Name         *string   `json:"name,omitempty"`
	Collection   *string   `json:"collection,omitempty"`
	ImageURL     *string   `json:"image_url,omitempty"`
	Capabilities *[]string `json:"capabilities,omitempty"`
	TargetTypes  *[]string `json:"target_types,omitempty"`
}

func (p AgentPatch) IsEmpty() bool {
	return p.Name == nil && p.Collection == nil && p.ImageURL == nil && p.Capabilities == nil && p.TargetTypes == nil
}

func (p AgentPatch) Validate() error {
	if p.IsEmpty() {
		return &ValidationError{Field: "patch", Message: "nothing to update"}
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return &ValidationError{Field: "name", Message: "agent name is required"}
	}
	if p.Collection != nil && strings.TrimSpace(*p.Collection) == "" {
		return &ValidationError{Field: "collection", Message: "collection is required"}
	}
	if p.Capabilities != nil && len(NewCapabilitySet(*p.Capabilities)) == 0 {
		return &ValidationError{Field: "capabilities", Message: "at least one capability is required"}
	}
	if p.TargetTypes != nil && len(nonBlank(*p.TargetTypes)) == 0 {
		return &ValidationError{Field: "target_types", Message: "at least one target type is required"}
	}
	return nil
}

// Apply накладывает патч на копию агента.
func (p AgentPatch) Apply(a Agent) Agent {
	out := a.Clone()
	if p.Name != nil {
		out.Name = strings.TrimSpace(*p.Name)
	}
	if p.Collection != nil {
		out.Collection = strings.TrimSpace(*p.Collection)
	}
	if p.ImageURL != nil {
		out.ImageURL = *p.ImageURL
	}
	if p.Capabilities != nil {
		out.Capabilities = NewCapabilitySet(*p.Capabilities)
	}
	if p.TargetTypes != nil {
		out.TargetTypes = nonBlank(*p.TargetTypes)
	}
	return out
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func alnum(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
