package selection

import (
	"sync"

	"github.com/xela07ax/nft-agents-console/internal/matcher"
)

// Registry хранит по одной машине выбора на пользователя консоли.
type Registry struct {
	mu       sync.Mutex
	machines map[string]*Machine
	caps     CapabilitySource
	opts     matcher.Options
}

func NewRegistry(caps CapabilitySource, opts matcher.Options) *Registry {
	return &Registry{machines: make(map[string]*Machine), caps: caps, opts: opts}
}

func (r *Registry) For(key string) *Machine {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.machines[key]
	if !ok {
		m = New(r.caps, r.opts)
		r.machines[key] = m
	}
	return m
}

// Drop забывает выбор пользователя (logout).
func (r *Registry) Drop(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.machines, key)
}
