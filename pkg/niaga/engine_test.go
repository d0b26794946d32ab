package niaga

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harunnryd/niaga/pkg/pipeline"
	"github.com/harunnryd/niaga/pkg/transports"
	transportmock "github.com/harunnryd/niaga/pkg/transports/mock"
)

func testConfig() Config {
	return Config{
		LogLevel:  "error",
		LogFormat: "text",
		Vendors:   VendorsConfig{LLM: VendorConfig{Provider: "mock"}},
		Agents: []pipeline.AgentConfig{{
			ID:       "shopbot",
			Name:     "ShopBot",
			Language: "en",
		}},
	}
}

func TestEngineRoundTrip(t *testing.T) {
	tr := transportmock.New()
	engine, err := NewEngine(EngineOptions{Config: testConfig(), Transport: tr})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer engine.Stop()

	tr.Inject(transports.InboundMessage{
		SessionID: "s1",
		AgentID:   "shopbot",
		From:      "user-1",
		Text:      "hello there",
		Channel:   "mock",
	})

	select {
	case out := <-tr.Sent():
		if out.SessionID != "s1" || out.Text == "" {
			t.Fatalf("unexpected outbound: %+v", out)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no reply sent")
	}
}

func TestEngineUnknownAgentDropsTurn(t *testing.T) {
	tr := transportmock.New()
	engine, err := NewEngine(EngineOptions{Config: testConfig(), Transport: tr})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := engine.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer engine.Stop()

	tr.Inject(transports.InboundMessage{SessionID: "s1", AgentID: "ghost", Text: "hi", Channel: "mock"})
	select {
	case out := <-tr.Sent():
		t.Fatalf("unexpected outbound for unknown agent: %+v", out)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestBuildLLMUnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Vendors.LLM.Provider = "nonexistent"
	if _, err := NewEngine(EngineOptions{Config: cfg, Transport: transportmock.New()}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
vendors:
  llm:
    provider: mock
agents:
  - id: shopbot
    name: ShopBot
    language: id
    has_catalog: true
    policy_windows:
      return: 2
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Tools.TimeoutMS != 20000 || cfg.Enrichment.Buffer != 128 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if len(cfg.Agents) != 1 || cfg.Agents[0].PolicyWindows["return"] != 2 {
		t.Fatalf("agent not decoded: %+v", cfg.Agents)
	}
	if !cfg.Privacy.RedactPII {
		t.Fatalf("redaction should default on")
	}
}
