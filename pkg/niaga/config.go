package niaga

import (
	"fmt"

	"github.com/harunnryd/niaga/pkg/dispatch"
	"github.com/harunnryd/niaga/pkg/pipeline"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`

	Vendors    VendorsConfig    `mapstructure:"vendors"`
	Transports TransportsConfig `mapstructure:"transports"`

	Agents []pipeline.AgentConfig `mapstructure:"agents"`

	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Commerce  CommerceConfig  `mapstructure:"commerce"`

	Tools      ToolsConfig      `mapstructure:"tools"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Pricing    PricingConfig    `mapstructure:"pricing"`
	Privacy    PrivacyConfig    `mapstructure:"privacy"`

	Observability ObservabilityConfig `mapstructure:"observability"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	LLM VendorConfig `mapstructure:"llm"`
}

type TransportsConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type RetrievalConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
}

type CommerceConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
}

type ToolsConfig struct {
	TimeoutMS      int                           `mapstructure:"timeout_ms"`
	Retries        int                           `mapstructure:"retries"`
	RetryBackoffMS int                           `mapstructure:"retry_backoff_ms"`
	Functions      []dispatch.HTTPFunctionConfig `mapstructure:"functions"`
}

type EnrichmentConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	Buffer    int  `mapstructure:"buffer"`
	Workers   int  `mapstructure:"workers"`
	TimeoutMS int  `mapstructure:"timeout_ms"`
}

type PricingConfig struct {
	PromptPer1K     float64 `mapstructure:"prompt_per_1k"`
	CompletionPer1K float64 `mapstructure:"completion_per_1k"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

type ObservabilityConfig struct {
	ArtifactsDir string `mapstructure:"artifacts_dir"`
	AsyncBuffer  int    `mapstructure:"async_buffer"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("tools.timeout_ms", 20000)
	v.SetDefault("tools.retries", 1)
	v.SetDefault("tools.retry_backoff_ms", 200)
	v.SetDefault("enrichment.enabled", true)
	v.SetDefault("enrichment.buffer", 128)
	v.SetDefault("enrichment.workers", 1)
	v.SetDefault("enrichment.timeout_ms", 10000)
	v.SetDefault("pricing.prompt_per_1k", 0.005)
	v.SetDefault("pricing.completion_per_1k", 0.015)
	v.SetDefault("privacy.redact_pii", true)
	v.SetDefault("observability.artifacts_dir", "")
	v.SetDefault("observability.async_buffer", 256)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	return cfg, nil
}
