package commerce

import (
	"context"
	"strings"
)

// StaticIntegration serves orders from memory; used by tests and examples.
type StaticIntegration struct {
	Orders []Order
	Err    error
}

func (s *StaticIntegration) Name() string { return "commerce_static" }

func (s *StaticIntegration) LookupOrder(ctx context.Context, q LookupQuery) (LookupResult, error) {
	if s.Err != nil {
		return LookupResult{}, s.Err
	}
	for i := range s.Orders {
		if q.OrderNumber != "" && strings.EqualFold(s.Orders[i].Number, q.OrderNumber) {
			return LookupResult{Found: true, Order: &s.Orders[i]}, nil
		}
	}
	return LookupResult{Found: false}, nil
}
