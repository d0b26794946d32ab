package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/harunnryd/niaga/pkg/errorsx"
)

// HTTPIntegration talks to a commerce sync service over JSON.
type HTTPIntegration struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewHTTPIntegration(baseURL, apiKey string) *HTTPIntegration {
	return &HTTPIntegration{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (h *HTTPIntegration) Name() string { return "commerce_http" }

func (h *HTTPIntegration) LookupOrder(ctx context.Context, q LookupQuery) (LookupResult, error) {
	body, err := json.Marshal(map[string]string{
		"order_number": q.OrderNumber,
		"email":        q.Email,
		"phone":        q.Phone,
	})
	if err != nil {
		return LookupResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/orders/lookup", bytes.NewReader(body))
	if err != nil {
		return LookupResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.APIKey)
	}
	resp, err := h.client().Do(req)
	if err != nil {
		return LookupResult{}, errorsx.Wrap(err, errorsx.ReasonCommerceLookup)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return LookupResult{Found: false}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return LookupResult{}, errorsx.Newf(errorsx.ReasonCommerceLookup, "order lookup %d: %s", resp.StatusCode, string(raw))
	}
	var out LookupResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return LookupResult{}, errorsx.Wrap(err, errorsx.ReasonCommerceLookup)
	}
	return out, nil
}

func (h *HTTPIntegration) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return http.DefaultClient
}
