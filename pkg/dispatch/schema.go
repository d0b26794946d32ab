package dispatch

import (
	"github.com/harunnryd/niaga/pkg/configutil"
)

// Schema declares argument requirements for a function. Required lists
// fields that must all be present and non-empty; OneOf lists fields of
// which at least one must be present and non-empty.
type Schema struct {
	Required []string `mapstructure:"required"`
	OneOf    []string `mapstructure:"one_of"`
}

// GuardResult reports whether a call should be skipped and why.
type GuardResult struct {
	Skip    bool
	Missing []string
}

// Guard checks a candidate argument map against the schema. When the check
// fails the caller keeps the model's existing response unchanged: the model
// is assumed to have already asked for the missing value.
func Guard(schema Schema, args map[string]any) GuardResult {
	var missing []string
	for _, field := range schema.Required {
		if configutil.IsEmptyValue(args[field]) {
			missing = append(missing, field)
		}
	}
	if len(schema.OneOf) > 0 {
		any := false
		for _, field := range schema.OneOf {
			if !configutil.IsEmptyValue(args[field]) {
				any = true
				break
			}
		}
		if !any {
			missing = append(missing, schema.OneOf...)
		}
	}
	return GuardResult{Skip: len(missing) > 0, Missing: missing}
}
