package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const DefaultBaseURL = "http://localhost:3000/api"

var ErrServiceUnavailable = errors.New("quiz service unavailable")

type APIError struct {
	StatusCode int
	Message    string
	Errors     []string
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	accessToken string
	log         *slog.Logger
}

type ClientOption func(*HTTPClient)

// WithAccessToken sends token as a bearer credential on every request.
func WithAccessToken(token string) ClientOption {
	return func(c *HTTPClient) {
		c.accessToken = strings.TrimSpace(token)
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *HTTPClient) {
		if logger != nil {
			c.log = logger
		}
	}
}

func NewHTTPClient(baseURL string, httpClient *http.Client, opts ...ClientOption) *HTTPClient {
	baseURL = strings.TrimSpace(baseURL)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	client := &HTTPClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// PageParams are the query parameters shared by the paginated endpoints.
// Zero values are left out of the query.
type PageParams struct {
	Page    int
	Limit   int
	Keyword string
}

func (p PageParams) encode() string {
	query := url.Values{}
	if p.Page > 0 {
		query.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		query.Set("limit", strconv.Itoa(p.Limit))
	}
	if keyword := strings.TrimSpace(p.Keyword); keyword != "" {
		query.Set("keyword", keyword)
	}
	if len(query) == 0 {
		return ""
	}
	return "?" + query.Encode()
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, requestBody any) (any, error) {
	fullURL := c.baseURL + path

	var body io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Accept", "application/json")
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		request.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		apiErr := decodeAPIError(response)
		c.log.Error("API error",
			"method", method,
			"path", path,
			"status", apiErr.StatusCode,
			"message", apiErr.Message,
		)
		return nil, apiErr
	}

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return unwrap(payload), nil
}

// unwrap strips one {data, message, status} layer. Paginated envelopes keep
// their shape because meta lives next to data.
func unwrap(payload any) any {
	obj, ok := payload.(map[string]any)
	if !ok {
		return payload
	}
	data, hasData := obj["data"]
	if !hasData {
		return payload
	}
	if _, hasMeta := obj["meta"]; hasMeta {
		return payload
	}
	return data
}

func decodeAPIError(response *http.Response) *APIError {
	apiErr := &APIError{StatusCode: response.StatusCode}

	var payload map[string]any
	if err := json.NewDecoder(response.Body).Decode(&payload); err == nil {
		for _, field := range []string{"message", "error"} {
			if message, ok := payload[field].(string); ok && strings.TrimSpace(message) != "" {
				apiErr.Message = message
				break
			}
		}
		apiErr.Errors = flattenErrors(payload["errors"])
	}
	if apiErr.Message == "" {
		apiErr.Message = response.Status
	}
	return apiErr
}

func flattenErrors(raw any) []string {
	switch errs := raw.(type) {
	case []any:
		out := make([]string, 0, len(errs))
		for _, entry := range errs {
			out = append(out, fmt.Sprint(entry))
		}
		return out
	case map[string]any:
		fields := make([]string, 0, len(errs))
		for field := range errs {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		out := make([]string, 0, len(fields))
		for _, field := range fields {
			out = append(out, fmt.Sprintf("%s: %v", field, errs[field]))
		}
		return out
	default:
		return nil
	}
}
