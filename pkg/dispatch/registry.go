package dispatch

import (
	"strings"
	"sync"
)

// Registry holds the functions an agent may call: built-ins plus any
// agent-defined HTTP functions.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Function)}
}

func (r *Registry) Register(fn Function) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[normalize(fn.Name)] = fn
}

func (r *Registry) Lookup(name string) (Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[normalize(name)]
	return fn, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for _, fn := range r.funcs {
		names = append(names, fn.Name)
	}
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
