package commerce

import (
	"context"
	"time"
)

// LookupQuery identifies an order by any one of its keys.
type LookupQuery struct {
	OrderNumber string
	Email       string
	Phone       string
}

// LineItem is one ordered product.
type LineItem struct {
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Order is the subset of commerce order data the assistant needs.
type Order struct {
	Number      string     `json:"number"`
	Status      string     `json:"status"`
	Items       []LineItem `json:"items,omitempty"`
	Total       float64    `json:"total"`
	Currency    string     `json:"currency"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// LookupResult reports an order lookup. Found=false with a nil error means
// no matching order, which is a normal outcome, not a failure.
type LookupResult struct {
	Found bool   `json:"found"`
	Order *Order `json:"order,omitempty"`
}

// Integration abstracts the commerce platform (e.g. a Shopify store).
type Integration interface {
	LookupOrder(ctx context.Context, q LookupQuery) (LookupResult, error)
	Name() string
}
