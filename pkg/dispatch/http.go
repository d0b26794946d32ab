package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// HTTPFunctionConfig describes an agent-defined HTTP function. URL segments
// of the form {param} are substituted from call arguments; remaining
// arguments become the JSON body for non-GET methods or query parameters
// for GET.
type HTTPFunctionConfig struct {
	Name        string            `mapstructure:"name"`
	Description string            `mapstructure:"description"`
	Method      string            `mapstructure:"method"`
	URL         string            `mapstructure:"url"`
	Headers     map[string]string `mapstructure:"headers"`
	Schema      Schema            `mapstructure:"schema"`
}

// NewHTTPFunction builds a Function from configuration.
func NewHTTPFunction(cfg HTTPFunctionConfig, client *http.Client) Function {
	if client == nil {
		client = http.DefaultClient
	}
	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodPost
	}
	return Function{
		Name:        cfg.Name,
		Description: cfg.Description,
		Schema:      cfg.Schema,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			endpoint, remaining := substitutePath(cfg.URL, args)
			var body io.Reader
			if method == http.MethodGet {
				endpoint = appendQuery(endpoint, remaining)
			} else {
				b, err := json.Marshal(remaining)
				if err != nil {
					return "", err
				}
				body = bytes.NewReader(b)
			}
			req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
			if err != nil {
				return "", err
			}
			if body != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			for k, v := range cfg.Headers {
				req.Header.Set(k, v)
			}
			resp, err := client.Do(req)
			if err != nil {
				return "", err
			}
			defer resp.Body.Close()
			raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if err != nil {
				return "", err
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return "", fmt.Errorf("http function %s: status %d: %s", cfg.Name, resp.StatusCode, string(raw))
			}
			return string(raw), nil
		},
	}
}

// substitutePath replaces {param} segments and returns unused arguments.
func substitutePath(rawURL string, args map[string]any) (string, map[string]any) {
	remaining := make(map[string]any, len(args))
	for k, v := range args {
		remaining[k] = v
	}
	out := rawURL
	for k, v := range args {
		placeholder := "{" + k + "}"
		if strings.Contains(out, placeholder) {
			out = strings.ReplaceAll(out, placeholder, url.PathEscape(fmt.Sprintf("%v", v)))
			delete(remaining, k)
		}
	}
	return out, remaining
}

func appendQuery(endpoint string, args map[string]any) string {
	if len(args) == 0 {
		return endpoint
	}
	values := url.Values{}
	for k, v := range args {
		values.Set(k, fmt.Sprintf("%v", v))
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + values.Encode()
}
