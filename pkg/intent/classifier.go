package intent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/harunnryd/niaga/pkg/llm"
)

// Turn is one prior conversation entry supplied as classification context.
type Turn struct {
	Role    string
	Content string
}

// Input carries everything a classification needs; the classifier holds no
// session state of its own.
type Input struct {
	Message         string
	HasImage        bool
	RecentTurns     []Turn
	ComplaintActive bool
	AwaitingImages  bool
	HasCatalog      bool
	HasCommerce     bool
}

// Classifier resolves ambiguous image submissions through a cost-ascending
// cascade; the model is consulted only when the cheap tiers are inconclusive.
type Classifier struct {
	adapter llm.Adapter
	log     *slog.Logger
}

func NewClassifier(adapter llm.Adapter, log *slog.Logger) *Classifier {
	if log == nil {
		log = slog.Default()
	}
	return &Classifier{adapter: adapter, log: log}
}

// Classify runs the cascade, short-circuiting at the first confident tier.
// The returned usage is non-zero only when the minimal-LLM tier ran.
func (c *Classifier) Classify(ctx context.Context, in Input) (Result, llm.Usage) {
	// Tier 1: without a catalog or commerce integration there is nothing to
	// search; everything goes to plain analysis.
	if !in.HasCatalog && !in.HasCommerce {
		return Result{Intent: LLMAnalysis, Confidence: 1.0, Source: SourceCapability}, llm.Usage{}
	}

	// Tier 2: active complaint flow awaiting images wins unconditionally.
	if in.ComplaintActive && in.AwaitingImages {
		return Result{Intent: ComplaintEvidence, Confidence: 1.0, Source: SourceSession}, llm.Usage{}
	}

	// Tier 3: the bot just asked for a photo.
	if c.botAskedForImage(in.RecentTurns) {
		return Result{Intent: ComplaintEvidence, Confidence: 0.9, Source: SourceBotPrompt}, llm.Usage{}
	}

	// Tier 4: keyword scoring over the message plus recent context.
	contextText := in.Message
	for _, t := range in.RecentTurns {
		contextText += " " + t.Content
	}
	complaintScore := scoreKeywords(contextText, complaintKeywords)
	productScore := scoreKeywords(contextText, productKeywords)
	switch {
	case complaintScore >= 2 && productScore == 0:
		return Result{Intent: ComplaintEvidence, Confidence: 0.75, Source: SourceKeywords}, llm.Usage{}
	case productScore >= 2 && complaintScore == 0:
		return Result{Intent: ProductSearch, Confidence: 0.75, Source: SourceKeywords}, llm.Usage{}
	case complaintScore >= 1 && productScore == 0:
		return Result{Intent: ComplaintEvidence, Confidence: 0.6, Source: SourceKeywords}, llm.Usage{}
	case productScore >= 1 && complaintScore == 0:
		return Result{Intent: ProductSearch, Confidence: 0.6, Source: SourceKeywords}, llm.Usage{}
	}
	if complaintScore == 0 && productScore == 0 && IsGenericPhrase(in.Message) {
		// Nothing to go on; the caller must ask the user.
		return Result{Intent: Unknown, Confidence: 0.0, Source: SourceKeywords}, llm.Usage{}
	}

	// Tier 5: minimal model call over the last turns.
	return c.classifyWithModel(ctx, in)
}

func (c *Classifier) botAskedForImage(turns []Turn) bool {
	seen := 0
	for i := len(turns) - 1; i >= 0 && seen < 2; i-- {
		if turns[i].Role != llm.RoleAssistant {
			continue
		}
		seen++
		if mentionsImageRequest(turns[i].Content) {
			return true
		}
	}
	return false
}

const classifyPrompt = `You classify the intent behind a customer image submission in a shopping conversation.
Reply with only a JSON object: {"intent": "complaint_evidence"|"product_search"|"llm_analysis", "confidence": 0.0-1.0}.`

func (c *Classifier) classifyWithModel(ctx context.Context, in Input) (Result, llm.Usage) {
	if c.adapter == nil {
		return Result{Intent: ProductSearch, Confidence: 0.3, Source: SourceFallback}, llm.Usage{}
	}
	messages := []llm.Message{{Role: llm.RoleSystem, Content: classifyPrompt}}
	turns := in.RecentTurns
	if len(turns) > 3 {
		turns = turns[len(turns)-3:]
	}
	for _, t := range turns {
		messages = append(messages, llm.Message{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: in.Message})

	resp, err := c.adapter.Generate(ctx, llm.Request{
		Messages:    messages,
		JSONMode:    true,
		Temperature: 0,
		MaxTokens:   64,
	})
	if err != nil {
		c.log.Warn("intent_classify_failed", "error", err)
		return Result{Intent: ProductSearch, Confidence: 0.3, Source: SourceFallback}, llm.Usage{}
	}
	var out struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	cleaned := strings.TrimSpace(resp.Text)
	if i := strings.Index(cleaned, "{"); i >= 0 {
		if j := strings.LastIndex(cleaned, "}"); j > i {
			cleaned = cleaned[i : j+1]
		}
	}
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		c.log.Warn("intent_classify_unparseable", "raw", resp.Text)
		return Result{Intent: ProductSearch, Confidence: 0.3, Source: SourceFallback}, resp.Usage
	}
	intent := Intent(out.Intent)
	switch intent {
	case ComplaintEvidence, ProductSearch, LLMAnalysis:
	default:
		intent = ProductSearch
		out.Confidence = 0.3
	}
	return Result{Intent: intent, Confidence: out.Confidence, Source: SourceLLM}, resp.Usage
}
