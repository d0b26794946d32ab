package decision

import (
	"encoding/json"
	"strings"

	"github.com/harunnryd/niaga/pkg/errorsx"
)

// Parse extracts a Decision from raw model output. Providers wrap JSON in
// code fences or prose often enough that parsing must be tolerant: the input
// is fence-stripped and trimmed to the outermost object before unmarshal.
// On failure a safe fallback decision is returned together with a
// reason-coded error for logging; callers never propagate the error to the
// end user.
func Parse(raw string) (Decision, error) {
	cleaned := cleanJSON(raw)
	if cleaned == "" {
		return SafeFallback(raw), errorsx.New(errorsx.ReasonLLMParse, "no json object in model output")
	}
	var d Decision
	if err := json.Unmarshal([]byte(cleaned), &d); err != nil {
		return SafeFallback(raw), errorsx.Wrap(err, errorsx.ReasonLLMParse)
	}
	return d, nil
}

// SafeFallback builds a minimal decision from unparseable output. Raw text
// that looks like prose (no braces) is kept as the response; anything that
// looks like a broken JSON fragment is discarded so the user never sees it.
func SafeFallback(raw string) Decision {
	text := strings.TrimSpace(raw)
	if strings.ContainsAny(text, "{}") {
		text = ""
	}
	return Decision{Response: text}
}

func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return ""
}
