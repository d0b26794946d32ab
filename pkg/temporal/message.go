package temporal

import (
	"fmt"
	"strings"
)

// RejectionMessage builds the deterministic policy-rejection text used when
// the validator overrides the model. The model is never asked to rephrase
// this: the failure mode being corrected is exactly "model asserts a false
// pass", so the replacement must not come from the model.
func RejectionMessage(policyType string, daysElapsed, thresholdDays int, lang string) string {
	policy := humanizePolicy(policyType, lang)
	if strings.HasPrefix(strings.ToLower(lang), "id") {
		return fmt.Sprintf(
			"Mohon maaf, %s sudah tidak dapat diproses. Pesanan Anda diterima %d hari yang lalu, sedangkan batas waktu kebijakan kami adalah %d hari.",
			policy, daysElapsed, thresholdDays,
		)
	}
	return fmt.Sprintf(
		"We're sorry, but your %s can no longer be processed. Your order was delivered %d days ago and our policy window is %d days.",
		policy, daysElapsed, thresholdDays,
	)
}

func humanizePolicy(policyType, lang string) string {
	indonesian := strings.HasPrefix(strings.ToLower(lang), "id")
	switch strings.ToLower(strings.TrimSpace(policyType)) {
	case "complaint", "complaint_window":
		if indonesian {
			return "komplain ini"
		}
		return "complaint"
	case "return", "return_window":
		if indonesian {
			return "pengembalian barang ini"
		}
		return "return request"
	case "refund", "refund_window":
		if indonesian {
			return "pengajuan refund ini"
		}
		return "refund request"
	default:
		if indonesian {
			return "permintaan ini"
		}
		return "request"
	}
}
