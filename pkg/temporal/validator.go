package temporal

// DateValidation is the model's claimed date arithmetic for a time-boxed
// policy. The validator recomputes it from the dates alone and overrides the
// model when they disagree.
type DateValidation struct {
	Required         bool   `json:"required"`
	PolicyType       string `json:"policy_type,omitempty"`
	CurrentDate      string `json:"current_date,omitempty"`
	ComparisonDate   string `json:"comparison_date,omitempty"`
	DaysElapsed      int    `json:"days_elapsed"`
	ThresholdDays    int    `json:"threshold_days"`
	ValidationPassed bool   `json:"validation_passed"`
	CalculationShown string `json:"calculation_shown,omitempty"`
}

// Error classes distinguished by the validator.
const (
	ErrorCalculation = "calculation_error"
	ErrorDecision    = "decision_error"
)

// CheckResult reports the ground-truth verdict for a DateValidation block.
// Checked is false when the dates could not be parsed; validation is then
// skipped, not failed.
type CheckResult struct {
	Checked   bool
	Valid     bool
	ErrorType string
	Corrected DateValidation
}

// Validator recomputes day-elapsed arithmetic independently of the model.
type Validator struct {
	// Tolerance is the allowed skew, in days, between the model's claimed
	// days_elapsed and the recomputed value. Covers timezone drift between
	// the model's notion of "today" and ours.
	Tolerance int
}

func NewValidator() *Validator {
	return &Validator{Tolerance: 1}
}

// Check recomputes days elapsed and the pass verdict from the dates in dv.
// Two independent error classes are reported: calculation_error when the
// model's arithmetic is off beyond tolerance, decision_error when the
// verdict contradicts the correct arithmetic even if the arithmetic matches.
func (v *Validator) Check(dv DateValidation) CheckResult {
	if !dv.Required {
		return CheckResult{Checked: false, Valid: true, Corrected: dv}
	}
	current, err := ParseDate(dv.CurrentDate)
	if err != nil {
		return CheckResult{Checked: false, Valid: true, Corrected: dv}
	}
	comparison, err := ParseDate(dv.ComparisonDate)
	if err != nil {
		return CheckResult{Checked: false, Valid: true, Corrected: dv}
	}

	days := DaysBetween(comparison, current)
	if days < 0 {
		days = -days
	}
	shouldPass := days <= dv.ThresholdDays

	corrected := dv
	corrected.DaysElapsed = days
	corrected.ValidationPassed = shouldPass

	diff := dv.DaysElapsed - days
	if diff < 0 {
		diff = -diff
	}
	if diff > v.Tolerance {
		return CheckResult{Checked: true, Valid: false, ErrorType: ErrorCalculation, Corrected: corrected}
	}
	if dv.ValidationPassed != shouldPass {
		return CheckResult{Checked: true, Valid: false, ErrorType: ErrorDecision, Corrected: corrected}
	}
	return CheckResult{Checked: true, Valid: true, Corrected: corrected}
}
