package decision

import (
	"github.com/harunnryd/niaga/pkg/temporal"
)

// Decision is the structured output the model must produce each pass.
// It exists only within one pipeline execution; only derived fields are
// ever persisted.
type Decision struct {
	Response              string                   `json:"response"`
	KnowledgeSearchNeeded bool                     `json:"knowledge_search_needed"`
	ProductSearchNeeded   bool                     `json:"product_search_needed"`
	FunctionCallNeeded    bool                     `json:"function_call_needed"`
	ConversationComplete  bool                     `json:"conversation_complete"`
	UserWantsToEnd        bool                     `json:"user_wants_to_end"`
	AgentTransfer         bool                     `json:"agent_transfer"`
	SearchQuery           string                   `json:"search_query,omitempty"`
	FunctionName          string                   `json:"function_name,omitempty"`
	FunctionArgs          map[string]any           `json:"function_args,omitempty"`
	DateValidation        *temporal.DateValidation `json:"date_validation,omitempty"`
	ComplaintContext      *ComplaintContext        `json:"complaint_context,omitempty"`
}

// ComplaintContext is the model's view of an in-flight complaint sub-flow.
type ComplaintContext struct {
	IsComplaint    bool   `json:"is_complaint"`
	ComplaintType  string `json:"complaint_type,omitempty"`
	OrderNumber    string `json:"order_number,omitempty"`
	DeliveryDate   string `json:"delivery_date,omitempty"`
	AwaitingImages bool   `json:"awaiting_images"`
	ReadyForTicket bool   `json:"ready_for_ticket"`
}

// WantsSecondPass reports whether the decision requested external evidence
// that would trigger a second model pass once gathered.
func (d Decision) WantsSecondPass() bool {
	return d.KnowledgeSearchNeeded || d.ProductSearchNeeded || d.FunctionCallNeeded
}
