// Package timeseries provides the backend adapter for industrial historian
// HTTP APIs. Queries are either opaque URLs fetched as-is or a restricted
// pseudo-SQL over a flat point namespace; both produce uniform
// {timestamp, value, tag} rows.
package timeseries

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hansduf/WA-Integrasi-sub000/internal/backend"
	"github.com/hansduf/WA-Integrasi-sub000/internal/errors"
)

// resultColumns is the uniform tabular shape of every time-series result.
var resultColumns = []string{"timestamp", "value", "tag"}

// Adapter executes point queries against one historian instance.
type Adapter struct {
	mu         sync.RWMutex
	client     *client
	defaultTag string
}

// New creates an unconnected time-series adapter.
func New() backend.Adapter {
	return &Adapter{}
}

func configFromMap(config backend.Config) clientConfig {
	timeout := 15 * time.Second
	if raw := config["timeoutSeconds"]; raw != "" {
		if d, err := time.ParseDuration(raw + "s"); err == nil && d > 0 {
			timeout = d
		}
	}
	return clientConfig{
		BaseURL:        config["apiUrl"],
		APIKey:         config["apiKey"],
		Username:       config["username"],
		Password:       config["password"],
		RequestTimeout: timeout,
	}
}

// Connect builds the REST client and verifies the historian is reachable.
func (a *Adapter) Connect(ctx context.Context, config backend.Config) error {
	c, err := newClient(configFromMap(config))
	if err != nil {
		return err
	}
	if err := c.Ping(ctx); err != nil {
		return err
	}

	a.mu.Lock()
	a.client = c
	a.defaultTag = config["defaultTag"]
	a.mu.Unlock()
	return nil
}

// Disconnect drops the client. Idempotent; the underlying HTTP transport
// needs no explicit teardown.
func (a *Adapter) Disconnect() error {
	a.mu.Lock()
	a.client = nil
	a.mu.Unlock()
	return nil
}

// TestConnection probes the historian with a fresh client.
func (a *Adapter) TestConnection(ctx context.Context, config backend.Config) backend.TestResult {
	c, err := newClient(configFromMap(config))
	if err != nil {
		return backend.TestResult{OK: false, Message: err.Error()}
	}
	if err := c.Ping(ctx); err != nil {
		return backend.TestResult{OK: false, Message: err.Error()}
	}
	return backend.TestResult{OK: true, Message: "historian reachable"}
}

func (a *Adapter) live() (*client, string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.client == nil {
		return nil, "", errors.NewValidationMsg("timeseries adapter is not connected")
	}
	return a.client, a.defaultTag, nil
}

// DiscoverSchema reports the single logical POINT table with its uniform
// fields. The tag namespace itself is listed through AvailableTags.
func (a *Adapter) DiscoverSchema(ctx context.Context) (*backend.Schema, error) {
	if _, _, err := a.live(); err != nil {
		return nil, err
	}
	return &backend.Schema{
		Tables: []string{"POINT"},
		Fields: map[string][]backend.Field{
			"POINT": {
				{Name: "timestamp", DataType: "datetime"},
				{Name: "value", DataType: "float", Nullable: true},
				{Name: "tag", DataType: "string"},
			},
		},
	}, nil
}

// AvailableTags lists the historian's point names.
func (a *Adapter) AvailableTags(ctx context.Context) ([]string, error) {
	c, _, err := a.live()
	if err != nil {
		return nil, err
	}
	return c.ListPoints(ctx)
}

// ExecuteQuery accepts an opaque URL or point pseudo-SQL. Params may carry
// "tag" and "interval" overrides; explicit clauses in the query win.
func (a *Adapter) ExecuteQuery(ctx context.Context, query string, params backend.Params) (*backend.QueryResult, error) {
	c, defaultTag, err := a.live()
	if err != nil {
		return nil, err
	}

	if IsURLQuery(query) {
		samples, err := c.FetchURL(ctx, strings.TrimSpace(query))
		if err != nil {
			return nil, err
		}
		return resultFromSamples(samples, ""), nil
	}

	pq, err := ParsePointQuery(query)
	if err != nil {
		return nil, err
	}

	tag := pq.Tag
	if tag == "" {
		tag, _ = params["tag"].(string)
	}
	if tag == "" {
		tag = defaultTag
	}
	if tag == "" {
		return nil, errors.NewValidation("tag",
			"no tag in the query, params or data source default")
	}

	interval := pq.Interval
	if interval == "" {
		interval, _ = params["interval"].(string)
	}
	if interval == "" {
		interval = IntervalLatest
	}
	window, ok := IntervalWindow(interval)
	if !ok {
		return nil, ValidateInterval(interval)
	}

	var samples []Sample
	switch {
	case interval == IntervalLatest:
		current, err := c.CurrentValue(ctx, tag)
		if err != nil {
			return nil, err
		}
		samples = []Sample{current}
	case pq.Dual:
		samples, err = a.dualFetch(ctx, c, tag, window)
		if err != nil {
			return nil, err
		}
	default:
		end := time.Now()
		samples, err = c.RecordedRange(ctx, tag, end.Add(-window), end)
		if err != nil {
			return nil, err
		}
	}

	return resultFromSamples(samples, fmt.Sprintf("POINT tag=%s interval=%s", tag, interval)), nil
}

// dualFetch merges the historical window with the current value. On a
// timestamp collision the live sample replaces the historical one; rows
// come back in ascending timestamp order, so the live value is last.
func (a *Adapter) dualFetch(ctx context.Context, c *client, tag string, window time.Duration) ([]Sample, error) {
	end := time.Now()
	historical, err := c.RecordedRange(ctx, tag, end.Add(-window), end)
	if err != nil {
		return nil, err
	}
	current, err := c.CurrentValue(ctx, tag)
	if err != nil {
		return nil, err
	}

	merged := make([]Sample, 0, len(historical)+1)
	for _, s := range historical {
		if s.Timestamp.Equal(current.Timestamp) {
			continue
		}
		merged = append(merged, s)
	}
	merged = append(merged, current)
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged, nil
}

func resultFromSamples(samples []Sample, preview string) *backend.QueryResult {
	rows := make([][]any, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, []any{s.Timestamp, s.Value, s.Tag})
	}
	return &backend.QueryResult{
		Columns:    resultColumns,
		Rows:       rows,
		RowCount:   len(rows),
		SQLPreview: preview,
		Metadata:   map[string]string{"backend": "timeseries"},
	}
}

// Verify Adapter implements the capability set and the tag extension.
var (
	_ backend.Adapter   = (*Adapter)(nil)
	_ backend.TagLister = (*Adapter)(nil)
)
