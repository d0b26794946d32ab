package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/niaga/pkg/commerce"
)

// Built-in function names.
const (
	FuncOrderStatus  = "order_status"
	FuncCreateTicket = "create_ticket"
)

// Ticket is a filed complaint ticket.
type Ticket struct {
	ID        string    `json:"id"`
	OrderNo   string    `json:"order_no"`
	Type      string    `json:"type"`
	Summary   string    `json:"summary,omitempty"`
	ImageURLs []string  `json:"image_urls,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketSink receives complaint tickets (helpdesk, queue, etc.).
type TicketSink interface {
	CreateTicket(ctx context.Context, t Ticket) (string, error)
}

// OrderStatusFunction looks up an order through the commerce integration.
// Any one of order_number, email or phone identifies the order.
func OrderStatusFunction(integration commerce.Integration) Function {
	return Function{
		Name:        FuncOrderStatus,
		Description: "Look up the status of a customer order",
		Schema:      Schema{OneOf: []string{"order_number", "email", "phone"}},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			result, err := integration.LookupOrder(ctx, commerce.LookupQuery{
				OrderNumber: stringArg(args, "order_number"),
				Email:       stringArg(args, "email"),
				Phone:       stringArg(args, "phone"),
			})
			if err != nil {
				return "", err
			}
			b, err := json.Marshal(result)
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	}
}

// CreateTicketFunction files a complaint ticket. The pipeline injects
// image_urls and order_no from complaint state before dispatch.
func CreateTicketFunction(sink TicketSink) Function {
	return Function{
		Name:        FuncCreateTicket,
		Description: "File a complaint ticket with collected evidence",
		Schema:      Schema{Required: []string{"order_no"}},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			ticket := Ticket{
				ID:        uuid.NewString(),
				OrderNo:   stringArg(args, "order_no"),
				Type:      stringArg(args, "complaint_type"),
				Summary:   stringArg(args, "summary"),
				ImageURLs: stringSliceArg(args, "image_urls"),
				CreatedAt: time.Now(),
			}
			id, err := sink.CreateTicket(ctx, ticket)
			if err != nil {
				return "", err
			}
			b, _ := json.Marshal(map[string]string{"ticket_id": id, "status": "created"})
			return string(b), nil
		},
	}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func stringSliceArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
