package intent

import (
	"regexp"
	"strings"
)

// Declarative pattern tables. Kept as data rather than inline conditionals
// so each table is independently testable and extensible per locale.

// genericPhrases are image captions that carry no intent signal at all.
var genericPhrases = []string{
	// en
	"what is this", "what's this", "look at this", "check this", "see this",
	"this one", "here", "look",
	// id
	"apa ini", "ini apa", "lihat ini", "coba lihat", "cek ini", "yang ini",
	"ini", "nih",
}

// TrivialKind classifies messages answerable without the model.
type TrivialKind string

const (
	TrivialNone     TrivialKind = ""
	TrivialGreeting TrivialKind = "greeting"
	TrivialThanks   TrivialKind = "thanks"
	TrivialGoodbye  TrivialKind = "goodbye"
)

type trivialPattern struct {
	kind TrivialKind
	re   *regexp.Regexp
}

var trivialPatterns = []trivialPattern{
	{TrivialGreeting, regexp.MustCompile(`(?i)^(hi|hello|hey|good (morning|afternoon|evening)|halo|hai|selamat (pagi|siang|sore|malam))[.!\s]*$`)},
	{TrivialThanks, regexp.MustCompile(`(?i)^(thanks|thank you|thx|makasih|terima kasih|terimakasih)[.!\s]*$`)},
	{TrivialGoodbye, regexp.MustCompile(`(?i)^(bye|goodbye|see you|sampai jumpa|dadah|selamat tinggal)[.!\s]*$`)},
}

// orderIDPatterns match common order-identifier shapes in free text.
var orderIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b([A-Z]{1,4}-\d{4,12})\b`),
	regexp.MustCompile(`(?i)\b(?:order|pesanan|invoice|inv|no\.|#)\s*[:#]?\s*([A-Z]{0,6}-?\d[\dA-Z\-]{3,17})\b`),
	regexp.MustCompile(`\b(\d{8,14})\b`),
}

// IsGenericPhrase reports whether text is one of the fixed ambiguous
// phrasings that must not be guessed at.
func IsGenericPhrase(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.Trim(normalized, "?!. ")
	if len(normalized) <= 2 {
		return true
	}
	for _, p := range genericPhrases {
		if normalized == p {
			return true
		}
	}
	return false
}

// DetectTrivial classifies greetings, thanks and goodbyes.
func DetectTrivial(text string) TrivialKind {
	trimmed := strings.TrimSpace(text)
	for _, p := range trivialPatterns {
		if p.re.MatchString(trimmed) {
			return p.kind
		}
	}
	return TrivialNone
}

// DetectOrderIdentifier extracts an order-number-looking token from text.
func DetectOrderIdentifier(text string) string {
	for _, re := range orderIDPatterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			return strings.ToUpper(m[1])
		}
	}
	return ""
}
