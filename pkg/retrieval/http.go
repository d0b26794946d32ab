package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/harunnryd/niaga/pkg/errorsx"
)

// HTTPService queries a retrieval backend over JSON.
type HTTPService struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewHTTPService(baseURL, apiKey string) *HTTPService {
	return &HTTPService{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (h *HTTPService) Name() string { return "retrieval_http" }

func (h *HTTPService) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	if req.TopK <= 0 {
		req.TopK = 5
	}
	body, err := json.Marshal(map[string]any{
		"kb_id":   req.KnowledgeBaseID,
		"query":   req.Query,
		"top_k":   req.TopK,
		"kind":    string(req.Kind),
		"filters": req.Filters,
	})
	if err != nil {
		return SearchResult{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return SearchResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.APIKey)
	}
	resp, err := h.client().Do(httpReq)
	if err != nil {
		return SearchResult{}, errorsx.Wrap(err, errorsx.ReasonRetrievalSearch)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return SearchResult{}, errorsx.Newf(errorsx.ReasonRetrievalSearch, "search %d: %s", resp.StatusCode, string(raw))
	}
	var out SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return SearchResult{}, errorsx.Wrap(err, errorsx.ReasonRetrievalSearch)
	}
	return out, nil
}

func (h *HTTPService) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return http.DefaultClient
}
