package retrieval

import (
	"context"
	"strings"
)

// StaticService answers searches from fixed data; used by tests and examples.
type StaticService struct {
	Knowledge []string
	Products  []ProductHit
	CostPer   float64
	Err       error
}

func (s *StaticService) Name() string { return "retrieval_static" }

func (s *StaticService) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	if s.Err != nil {
		return SearchResult{}, s.Err
	}
	out := SearchResult{Cost: s.CostPer}
	query := strings.ToLower(req.Query)
	switch req.Kind {
	case KindProduct:
		for _, p := range s.Products {
			if query == "" || strings.Contains(strings.ToLower(p.Title), query) {
				out.Products = append(out.Products, p)
			}
		}
	default:
		for _, text := range s.Knowledge {
			if query == "" || strings.Contains(strings.ToLower(text), query) {
				out.Texts = append(out.Texts, text)
				out.Sources = append(out.Sources, req.KnowledgeBaseID)
			}
		}
	}
	return out, nil
}
