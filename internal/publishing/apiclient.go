package publishing

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

// maxErrorBody caps how much of an error response body is kept in messages.
const maxErrorBody = 1024

// apiClient performs JSON calls against one platform API base URL.
type apiClient struct {
	baseURL   string
	client    *http.Client
	authorize func(*http.Request)
}

type apiResponse struct {
	StatusCode int
	Body       []byte
}

// decode unmarshals the body into v.
func (r *apiResponse) decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (r *apiResponse) apiError() *APIError {
	body := strings.TrimSpace(string(r.Body))
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	return &APIError{StatusCode: r.StatusCode, Body: body}
}

// do sends a request. Transport failures are returned as errors; any HTTP
// status is returned as a response for the caller to judge.
func (c *apiClient) do(ctx context.Context, method, path string, query url.Values, body io.Reader, header http.Header) (*apiResponse, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if c.authorize != nil {
		c.authorize(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &apiResponse{StatusCode: resp.StatusCode, Body: data}, nil
}

// doJSON sends v as a JSON body.
func (c *apiClient) doJSON(ctx context.Context, method, path string, v any) (*apiResponse, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return c.do(ctx, method, path, nil, bytes.NewReader(payload), header)
}

// doForm sends form-encoded values.
func (c *apiClient) doForm(ctx context.Context, method, path string, form url.Values) (*apiResponse, error) {
	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(ctx, method, path, nil, strings.NewReader(form.Encode()), header)
}
