// Package matcher вычисляет, какие способности можно запустить для пары агент/цель.
// Все функции чистые и детерминированные.
package matcher

import (
	"strings"

	"github.com/xela07ax/nft-agents-console/internal/domain"
)

// Options управляет режимом сопоставления.
type Options struct {
	// Partial включает совместимость по вхождению подстроки ("data_extraction" ~ "data_extraction_basic").
	// Точные совпадения всегда идут раньше частичных.
	Partial bool
}

type Reason string

const (
	ReasonOK              Reason = "ok"
	ReasonNothingSelected Reason = "nothing_selected"
	ReasonNoAgent         Reason = "no_agent"
	ReasonNoTarget        Reason = "no_target"
	ReasonIncompatible    Reason = "incompatible"
)

func (r Reason) Message() string {
	switch r {
	case ReasonNothingSelected:
		return "Select an agent and a target to see available capabilities"
	case ReasonNoAgent:
		return "Select an agent to see available capabilities"
	case ReasonNoTarget:
		return "Select a target to see available capabilities"
	case ReasonIncompatible:
		return "The selected agent and target have no compatible capabilities"
	}
	return ""
}

// Result: список совместимых способностей и причина, если он пуст.
type Result struct {
	Capabilities []domain.Capability `json:"capabilities"`
	Reason       Reason              `json:"reason"`
	Message      string              `json:"message,omitempty"`
}

// Compatible возвращает способности из all, доступные агенту на цели (каноническое сравнение).
func Compatible(agent *domain.Agent, target *domain.Target, all []domain.Capability) []domain.Capability {
	return CompatibleWith(agent, target, all, Options{})
}

func CompatibleWith(agent *domain.Agent, target *domain.Target, all []domain.Capability, opts Options) []domain.Capability {
	if agent == nil || target == nil {
		return []domain.Capability{}
	}
	shared := Shared(*agent, *target)
	if len(shared) == 0 {
		return []domain.Capability{}
	}

	sharedSet := make(map[domain.CapabilityID]struct{}, len(shared))
	for _, id := range shared {
		sharedSet[id] = struct{}{}
	}

	exact := make([]domain.Capability, 0, len(all))
	var partial []domain.Capability
	seen := make(map[domain.CapabilityID]struct{}, len(all))

	// 1. Точные совпадения по каноническому ID или требуемой способности цели
	for _, c := range all {
		id := domain.NewCapabilityID(string(c.ID))
		if _, dup := seen[id]; dup {
			continue
		}
		if inSet(sharedSet, id) || inSet(sharedSet, domain.NewCapabilityID(string(c.RequiredTargetCapability))) {
			seen[id] = struct{}{}
			exact = append(exact, c)
		}
	}
	if !opts.Partial {
		return exact
	}

	// 2. Частичные совпадения, только для тех, что не попали в точные
	for _, c := range all {
		id := domain.NewCapabilityID(string(c.ID))
		if _, dup := seen[id]; dup {
			continue
		}
		req := domain.NewCapabilityID(string(c.RequiredTargetCapability))
		for _, s := range shared {
			if overlaps(s, id) || (req != "" && overlaps(s, req)) {
				seen[id] = struct{}{}
				partial = append(partial, c)
				break
			}
		}
	}
	return append(exact, partial...)
}

// Explain дополняет результат причиной пустого списка.
func Explain(agent *domain.Agent, target *domain.Target, all []domain.Capability) Result {
	return ExplainWith(agent, target, all, Options{})
}

func ExplainWith(agent *domain.Agent, target *domain.Target, all []domain.Capability, opts Options) Result {
	var reason Reason
	switch {
	case agent == nil && target == nil:
		reason = ReasonNothingSelected
	case agent == nil:
		reason = ReasonNoAgent
	case target == nil:
		reason = ReasonNoTarget
	}
	if reason != "" {
		return Result{Capabilities: []domain.Capability{}, Reason: reason, Message: reason.Message()}
	}

	caps := CompatibleWith(agent, target, all, opts)
	if len(caps) == 0 {
		return Result{Capabilities: caps, Reason: ReasonIncompatible, Message: ReasonIncompatible.Message()}
	}
	return Result{Capabilities: caps, Reason: ReasonOK}
}

// IsCompatible проверяет конкретную способность.
func IsCompatible(agent *domain.Agent, target *domain.Target, all []domain.Capability, id domain.CapabilityID) bool {
	id = domain.NewCapabilityID(string(id))
	for _, c := range Compatible(agent, target, all) {
		if domain.NewCapabilityID(string(c.ID)) == id {
			return true
		}
	}
	return false
}

// Shared: пересечение канонических наборов агента и цели в порядке агента.
func Shared(agent domain.Agent, target domain.Target) []domain.CapabilityID {
	targetSet := make(map[domain.CapabilityID]struct{}, len(target.Capabilities))
	for _, id := range domain.Canonicalize(target.Capabilities) {
		targetSet[id] = struct{}{}
	}

	out := make([]domain.CapabilityID, 0, len(agent.Capabilities))
	for _, id := range domain.Canonicalize(agent.Capabilities) {
		if inSet(targetSet, id) {
			out = append(out, id)
		}
	}
	return out
}

// EligibleTargets отбирает цели, тип которых агент объявил в TargetTypes.
func EligibleTargets(agent domain.Agent, targets []domain.Target) []domain.Target {
	out := make([]domain.Target, 0, len(targets))
	for _, t := range targets {
		if agent.SupportsTargetType(string(t.Type)) {
			out = append(out, t)
		}
	}
	return out
}

func inSet(set map[domain.CapabilityID]struct{}, id domain.CapabilityID) bool {
	if id == "" {
		return false
	}
	_, ok := set[id]
	return ok
}

func overlaps(a, b domain.CapabilityID) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(string(a), string(b)) || strings.Contains(string(b), string(a))
}
