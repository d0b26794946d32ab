package niaga

import (
	"fmt"
	"strings"

	"github.com/harunnryd/niaga/pkg/configutil"
	"github.com/harunnryd/niaga/pkg/llm"
	"github.com/harunnryd/niaga/pkg/providers/mock"
	"github.com/harunnryd/niaga/pkg/providers/openai"
)

type LLMFactory func(cfg Config) (llm.Adapter, error)

type ProviderRegistry struct {
	llm map[string]LLMFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{llm: make(map[string]LLMFactory)}
}

func (r *ProviderRegistry) RegisterLLM(name string, factory LLMFactory) {
	r.llm[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) BuildLLM(provider string, cfg Config) (llm.Adapter, error) {
	fn := r.llm[strings.ToLower(strings.TrimSpace(provider))]
	if fn == nil {
		return nil, fmt.Errorf("llm provider not registered: %s", provider)
	}
	return fn(cfg)
}

// DefaultProviders returns a registry with the built-in LLM providers.
func DefaultProviders() *ProviderRegistry {
	r := NewProviderRegistry()
	r.RegisterLLM("openai", buildOpenAI)
	r.RegisterLLM("mock", func(Config) (llm.Adapter, error) {
		return mock.NewAdapter(), nil
	})
	return r
}

type openAISettings struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

func buildOpenAI(cfg Config) (llm.Adapter, error) {
	schema := configutil.Schema{
		Required: []string{"api_key"},
		Optional: []string{"model", "base_url"},
	}
	if err := configutil.ValidateSettings(cfg.Vendors.LLM.Settings, schema); err != nil {
		return nil, fmt.Errorf("vendors.llm.settings: %w", err)
	}
	var settings openAISettings
	if err := configutil.DecodeSettings(cfg.Vendors.LLM.Settings, &settings); err != nil {
		return nil, err
	}
	if err := configutil.RequireString(settings.APIKey, "vendors.llm.settings.api_key"); err != nil {
		return nil, err
	}
	if settings.Model == "" {
		settings.Model = "gpt-4o-mini"
	}
	adapter := openai.NewAdapter(settings.APIKey, settings.Model)
	if settings.BaseURL != "" {
		adapter.BaseURL = settings.BaseURL
	}
	return adapter, nil
}
