package pipeline

import (
	"strings"
	"sync"
)

// AgentConfig is the static configuration of one assistant persona.
// PolicyWindows maps a policy name (return, warranty, refund) to the number
// of days the window stays open.
type AgentConfig struct {
	ID              string         `mapstructure:"id"`
	Name            string         `mapstructure:"name"`
	BasePrompt      string         `mapstructure:"base_prompt"`
	Language        string         `mapstructure:"language"`
	HasCatalog      bool           `mapstructure:"has_catalog"`
	HasCommerce     bool           `mapstructure:"has_commerce"`
	KnowledgeBaseID string         `mapstructure:"knowledge_base_id"`
	ClosingLine     string         `mapstructure:"closing_line"`
	PolicyWindows   map[string]int `mapstructure:"policy_windows"`
}

// AgentRegistry holds the configured agents by ID.
type AgentRegistry struct {
	mu     sync.RWMutex
	agents map[string]AgentConfig
}

func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{agents: make(map[string]AgentConfig)}
}

func (r *AgentRegistry) Register(a AgentConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[strings.ToLower(a.ID)] = a
}

func (r *AgentRegistry) Lookup(id string) (AgentConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[strings.ToLower(id)]
	return a, ok
}
