package timeseries

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hansduf/WA-Integrasi-sub000/internal/backend"
)

// Sample is one historian data point.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     any       `json:"value"`
	Tag       string    `json:"tag"`
}

// clientConfig configures the historian REST client.
type clientConfig struct {
	// BaseURL is the historian API root, e.g. https://hist.example.com/api.
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Username and Password enable basic auth when APIKey is empty.
	Username string
	Password string

	RequestTimeout time.Duration
}

func (c clientConfig) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("timeseries: apiUrl is required")
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("timeseries: invalid apiUrl: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("timeseries: apiUrl must be http or https")
	}
	return nil
}

// client talks to the historian's REST endpoints:
//
//	GET {base}/points                          list points
//	GET {base}/points/{tag}/value              current value
//	GET {base}/points/{tag}/recorded?start&end historical range
type client struct {
	config     clientConfig
	httpClient *http.Client
}

func newClient(config clientConfig) (*client, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 15 * time.Second
	}
	return &client{
		config:     config,
		httpClient: &http.Client{Timeout: config.RequestTimeout},
	}, nil
}

// get fetches one resource, retrying transient failures (timeouts,
// refused connections, 502/503/504) with backoff.
func (c *client) get(ctx context.Context, rawURL string, out any) error {
	result := backend.ExecuteWithRetry(ctx, backend.DefaultRetryConfig(), func() error {
		return c.getOnce(ctx, rawURL, out)
	})
	if !result.Success {
		return result.LastError
	}
	return nil
}

func (c *client) getOnce(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("timeseries: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	switch {
	case c.config.APIKey != "":
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	case c.config.Username != "":
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("timeseries: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		statusErr := fmt.Errorf("timeseries: %s returned %d: %s",
			req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
		switch resp.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return backend.MarkTransient(statusErr)
		}
		return statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("timeseries: decode response: %w", err)
	}
	return nil
}

// Ping verifies the historian is reachable by listing points.
func (c *client) Ping(ctx context.Context) error {
	_, err := c.ListPoints(ctx)
	return err
}

type pointItem struct {
	Name string `json:"name"`
}

type pointList struct {
	Items []pointItem `json:"items"`
}

// ListPoints returns the historian's tag names.
func (c *client) ListPoints(ctx context.Context) ([]string, error) {
	var list pointList
	if err := c.get(ctx, c.endpoint("points"), &list); err != nil {
		return nil, err
	}
	tags := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		tags = append(tags, item.Name)
	}
	return tags, nil
}

type sampleItem struct {
	Timestamp time.Time `json:"timestamp"`
	Value     any       `json:"value"`
}

// CurrentValue fetches the latest sample for tag.
func (c *client) CurrentValue(ctx context.Context, tag string) (Sample, error) {
	var item sampleItem
	if err := c.get(ctx, c.endpoint("points", tag, "value"), &item); err != nil {
		return Sample{}, err
	}
	return Sample{Timestamp: item.Timestamp, Value: item.Value, Tag: tag}, nil
}

type sampleList struct {
	Items []sampleItem `json:"items"`
}

// RecordedRange fetches historical samples for tag between start and end.
func (c *client) RecordedRange(ctx context.Context, tag string, start, end time.Time) ([]Sample, error) {
	u := c.endpoint("points", tag, "recorded") + "?" + url.Values{
		"startTime": {start.UTC().Format(time.RFC3339)},
		"endTime":   {end.UTC().Format(time.RFC3339)},
	}.Encode()

	var list sampleList
	if err := c.get(ctx, u, &list); err != nil {
		return nil, err
	}
	samples := make([]Sample, 0, len(list.Items))
	for _, item := range list.Items {
		samples = append(samples, Sample{Timestamp: item.Timestamp, Value: item.Value, Tag: tag})
	}
	return samples, nil
}

// FetchURL retrieves an opaque URL as-is and maps whatever comes back into
// samples where the shape allows it.
func (c *client) FetchURL(ctx context.Context, rawURL string) ([]Sample, error) {
	var raw json.RawMessage
	if err := c.get(ctx, rawURL, &raw); err != nil {
		return nil, err
	}

	// Try the known shapes in order: wrapped list, bare list, single sample.
	var list sampleList
	if err := json.Unmarshal(raw, &list); err == nil && len(list.Items) > 0 {
		return samplesFromItems(list.Items), nil
	}
	var items []sampleItem
	if err := json.Unmarshal(raw, &items); err == nil && len(items) > 0 {
		return samplesFromItems(items), nil
	}
	var item sampleItem
	if err := json.Unmarshal(raw, &item); err == nil && !item.Timestamp.IsZero() {
		return []Sample{{Timestamp: item.Timestamp, Value: item.Value}}, nil
	}
	return nil, fmt.Errorf("timeseries: response from %s has no recognizable sample shape", rawURL)
}

func samplesFromItems(items []sampleItem) []Sample {
	samples := make([]Sample, 0, len(items))
	for _, item := range items {
		samples = append(samples, Sample{Timestamp: item.Timestamp, Value: item.Value})
	}
	return samples
}

func (c *client) endpoint(parts ...string) string {
	base := strings.TrimRight(c.config.BaseURL, "/")
	escaped := make([]string, len(parts))
	for i, part := range parts {
		escaped[i] = url.PathEscape(part)
	}
	return base + "/" + strings.Join(escaped, "/")
}
