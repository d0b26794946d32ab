package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/harunnryd/niaga/pkg/complaint"
	"github.com/harunnryd/niaga/pkg/retrieval"
)

// decisionContract is the JSON schema the model must satisfy on every pass.
const decisionContract = `You must reply with only a JSON object of this exact shape:
{
  "response": "<your reply to the customer, in their language>",
  "knowledge_search_needed": false,
  "product_search_needed": false,
  "function_call_needed": false,
  "conversation_complete": false,
  "user_wants_to_end": false,
  "agent_transfer": false,
  "search_query": "",
  "function_name": "",
  "function_args": {},
  "date_validation": null,
  "complaint_context": null
}
When a policy has a time window and the customer mentions dates, fill date_validation:
{"required": true, "policy_type": "<return|warranty|refund>", "current_date": "YYYY-MM-DD", "comparison_date": "YYYY-MM-DD", "days_elapsed": 0, "threshold_days": 0, "validation_passed": false, "calculation_shown": "<your arithmetic>"}
When the customer is complaining about an order, fill complaint_context:
{"is_complaint": true, "complaint_type": "<damaged|wrong_item|missing_item|late_delivery|refund>", "order_number": "", "delivery_date": "", "awaiting_images": false, "ready_for_ticket": false}
Never wrap the JSON in code fences. Never add text outside the object.`

// promptContext carries everything the system prompt needs for one pass.
// It is built fresh per turn; no shared mutable agent state.
type promptContext struct {
	Agent     AgentConfig
	Now       time.Time
	Complaint *complaint.Record
	Search    retrieval.SearchResult
	Functions []string
	ImageNote string
}

func buildSystemPrompt(pc promptContext) string {
	var b strings.Builder
	if pc.Agent.BasePrompt != "" {
		b.WriteString(pc.Agent.BasePrompt)
	} else {
		fmt.Fprintf(&b, "You are %s, a helpful shopping assistant.", nonEmpty(pc.Agent.Name, "an assistant"))
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Today's date is %s.\n", pc.Now.UTC().Format("2006-01-02"))
	if pc.Agent.Language != "" {
		fmt.Fprintf(&b, "Default customer language: %s.\n", pc.Agent.Language)
	}
	if len(pc.Agent.PolicyWindows) > 0 {
		b.WriteString("Policy windows (calendar days from delivery):\n")
		for name, days := range pc.Agent.PolicyWindows {
			fmt.Fprintf(&b, "- %s: %d days\n", name, days)
		}
	}
	if len(pc.Functions) > 0 {
		fmt.Fprintf(&b, "Available functions: %s.\n", strings.Join(pc.Functions, ", "))
	}
	if pc.Complaint != nil && pc.Complaint.Active() {
		fmt.Fprintf(&b, "Active complaint: state=%s type=%s order=%q images_collected=%d.\n",
			pc.Complaint.State, pc.Complaint.Type, pc.Complaint.OrderNumber, len(pc.Complaint.Images))
	}
	if pc.ImageNote != "" {
		b.WriteString(pc.ImageNote)
		b.WriteString("\n")
	}
	if !pc.Search.Empty() {
		b.WriteString("\nRetrieved context:\n")
		for _, t := range pc.Search.Texts {
			fmt.Fprintf(&b, "- %s\n", t)
		}
		for _, p := range pc.Search.Products {
			fmt.Fprintf(&b, "- product: %s (%.2f %s) %s\n", p.Title, p.Price, p.Currency, p.URL)
		}
	}
	b.WriteString("\n")
	b.WriteString(decisionContract)
	return b.String()
}

// buildEvidence renders pass-2 evidence (function output, search results)
// as a user-visible instruction block.
func buildEvidence(functionName, functionOutput string, search retrieval.SearchResult) string {
	var b strings.Builder
	b.WriteString("New information gathered for you:\n")
	if functionOutput != "" {
		fmt.Fprintf(&b, "Result of %s: %s\n", functionName, functionOutput)
	}
	for _, t := range search.Texts {
		fmt.Fprintf(&b, "- %s\n", t)
	}
	for _, p := range search.Products {
		fmt.Fprintf(&b, "- product: %s (%.2f %s) %s\n", p.Title, p.Price, p.Currency, p.URL)
	}
	b.WriteString("Answer the customer using this information. Reply with the same JSON object shape.")
	return b.String()
}

func nonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
