package retrieval

import "context"

// Kind selects which index a search runs against.
type Kind string

const (
	KindKnowledge Kind = "knowledge"
	KindProduct   Kind = "product"
)

type SearchRequest struct {
	KnowledgeBaseID string
	Query           string
	TopK            int
	Kind            Kind
	Filters         map[string]string
}

// ProductHit is one catalog match.
type ProductHit struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	URL      string  `json:"url,omitempty"`
	ImageURL string  `json:"image_url,omitempty"`
}

// SearchResult carries retrieved evidence plus the billed cost.
type SearchResult struct {
	Texts    []string     `json:"texts,omitempty"`
	Images   []string     `json:"images,omitempty"`
	Products []ProductHit `json:"products,omitempty"`
	Sources  []string     `json:"sources,omitempty"`
	Cost     float64      `json:"cost"`
}

// Empty reports whether the search produced nothing usable.
func (r SearchResult) Empty() bool {
	return len(r.Texts) == 0 && len(r.Images) == 0 && len(r.Products) == 0
}

// Service abstracts the knowledge/product retrieval backend.
type Service interface {
	Search(ctx context.Context, req SearchRequest) (SearchResult, error)
	Name() string
}
