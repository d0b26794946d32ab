// Package redact strips PII from text before it reaches logs or the
// message store. Redaction is a process-wide toggle set from config.
package redact

import (
	"regexp"
	"strings"
	"sync/atomic"
)

var enabled atomic.Bool

type rule struct {
	re          *regexp.Regexp
	replacement string
}

// Order matters: card numbers would otherwise match the phone pattern.
var rules = []rule{
	{regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\b(?:\d[ \-]?){13,19}\b`), "[REDACTED_CARD]"},
	{regexp.MustCompile(`\b\+?\d[\d\s\-]{7,}\d\b`), "[REDACTED_PHONE]"},
}

// SetEnabled toggles PII redaction.
func SetEnabled(v bool) {
	enabled.Store(v)
}

// Enabled returns true when redaction is active.
func Enabled() bool {
	return enabled.Load()
}

// Text redacts emails, payment card numbers and phone numbers when
// enabled. Disabled or blank input passes through untouched.
func Text(in string) string {
	if !enabled.Load() || strings.TrimSpace(in) == "" {
		return in
	}
	out := in
	for _, r := range rules {
		out = r.re.ReplaceAllString(out, r.replacement)
	}
	return out
}
