package intent

import (
	"context"
	"testing"

	"github.com/harunnryd/niaga/pkg/llm"
	"github.com/harunnryd/niaga/pkg/providers/mock"
)

func baseInput() Input {
	return Input{HasImage: true, HasCatalog: true, HasCommerce: true}
}

func TestCapabilityGate(t *testing.T) {
	c := NewClassifier(nil, nil)
	in := Input{Message: "harga berapa?", HasImage: true}
	res, _ := c.Classify(context.Background(), in)
	if res.Intent != LLMAnalysis || res.Source != SourceCapability {
		t.Fatalf("expected llm_analysis via capability gate, got %+v", res)
	}
}

func TestSessionTierShortCircuits(t *testing.T) {
	c := NewClassifier(nil, nil)
	in := baseInput()
	in.ComplaintActive = true
	in.AwaitingImages = true
	// Message text is product-flavored; tier 2 must still win.
	in.Message = "how much is this? price please"
	res, _ := c.Classify(context.Background(), in)
	if res.Intent != ComplaintEvidence || res.Source != SourceSession {
		t.Fatalf("expected complaint_evidence via session tier, got %+v", res)
	}
	if res.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0, got %f", res.Confidence)
	}
}

func TestBotInitiativeTier(t *testing.T) {
	c := NewClassifier(nil, nil)
	in := baseInput()
	in.RecentTurns = []Turn{
		{Role: llm.RoleUser, Content: "barang saya bermasalah"},
		{Role: llm.RoleAssistant, Content: "Mohon kirim foto barang yang Anda terima ya."},
	}
	res, _ := c.Classify(context.Background(), in)
	if res.Intent != ComplaintEvidence || res.Source != SourceBotPrompt {
		t.Fatalf("expected complaint_evidence via bot prompt, got %+v", res)
	}
}

func TestKeywordTier(t *testing.T) {
	c := NewClassifier(nil, nil)

	in := baseInput()
	in.Message = "the item arrived damaged and broken"
	res, _ := c.Classify(context.Background(), in)
	if res.Intent != ComplaintEvidence || res.Source != SourceKeywords {
		t.Fatalf("expected complaint via keywords, got %+v", res)
	}

	in = baseInput()
	in.Message = "berapa harga dan stok warna merah?"
	res, _ = c.Classify(context.Background(), in)
	if res.Intent != ProductSearch || res.Source != SourceKeywords {
		t.Fatalf("expected product via keywords, got %+v", res)
	}
}

func TestGenericPhraseReturnsUnknown(t *testing.T) {
	c := NewClassifier(nil, nil)
	for _, msg := range []string{"", "what is this?", "apa ini", "look at this"} {
		in := baseInput()
		in.Message = msg
		res, _ := c.Classify(context.Background(), in)
		if res.Intent != Unknown {
			t.Fatalf("expected unknown for %q, got %+v", msg, res)
		}
	}
}

func TestLLMTier(t *testing.T) {
	adapter := mock.NewTextAdapter(`{"intent": "complaint_evidence", "confidence": 0.8}`)
	c := NewClassifier(adapter, nil)
	in := baseInput()
	in.Message = "remember what we talked about earlier, here it is"
	res, usage := c.Classify(context.Background(), in)
	if res.Intent != ComplaintEvidence || res.Source != SourceLLM {
		t.Fatalf("expected complaint via llm tier, got %+v", res)
	}
	if usage.TotalTokens == 0 {
		t.Fatalf("expected usage reported for llm tier")
	}
	if adapter.Calls() != 1 {
		t.Fatalf("expected one model call, got %d", adapter.Calls())
	}
}

func TestLLMTierParseFailureFallsBack(t *testing.T) {
	adapter := mock.NewTextAdapter("no json here at all")
	c := NewClassifier(adapter, nil)
	in := baseInput()
	in.Message = "remember what we talked about earlier, here it is"
	res, _ := c.Classify(context.Background(), in)
	if res.Intent != ProductSearch || res.Source != SourceFallback {
		t.Fatalf("expected product_search fallback, got %+v", res)
	}
	if res.Confidence != 0.3 {
		t.Fatalf("expected low confidence, got %f", res.Confidence)
	}
}

func TestDetectTrivial(t *testing.T) {
	cases := map[string]TrivialKind{
		"hi":            TrivialGreeting,
		"Selamat pagi":  TrivialGreeting,
		"thank you!":    TrivialThanks,
		"terima kasih":  TrivialThanks,
		"bye":           TrivialGoodbye,
		"sampai jumpa":  TrivialGoodbye,
		"order CZ-1234": TrivialNone,
	}
	for msg, want := range cases {
		if got := DetectTrivial(msg); got != want {
			t.Fatalf("DetectTrivial(%q) = %q, want %q", msg, got, want)
		}
	}
}

func TestDetectOrderIdentifier(t *testing.T) {
	cases := map[string]string{
		"my order CZ-100045 please":  "CZ-100045",
		"pesanan #INV9283745 hilang": "INV9283745",
		"1234567890":                 "1234567890",
		"no order here":              "",
	}
	for msg, want := range cases {
		if got := DetectOrderIdentifier(msg); got != want {
			t.Fatalf("DetectOrderIdentifier(%q) = %q, want %q", msg, got, want)
		}
	}
}
