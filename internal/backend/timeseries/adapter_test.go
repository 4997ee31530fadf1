package timeseries

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hansduf/WA-Integrasi-sub000/internal/backend"
	"github.com/hansduf/WA-Integrasi-sub000/internal/errors"
)

// fakeHistorian is an httptest stand-in for a historian REST API with a
// single point named Boiler.Temp.
type fakeHistorian struct {
	server   *httptest.Server
	now      time.Time
	requests atomic.Int64
	lastAuth atomic.Value
}

func newFakeHistorian(t *testing.T) *fakeHistorian {
	t.Helper()
	h := &fakeHistorian{now: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /points", func(w http.ResponseWriter, r *http.Request) {
		writeItems(w, []map[string]any{
			{"name": "Boiler.Temp"},
			{"name": "Boiler.Pressure"},
		})
	})
	mux.HandleFunc("GET /points/{tag}/value", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"timestamp": h.now, "value": 81.5})
	})
	mux.HandleFunc("GET /points/{tag}/recorded", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("startTime") == "" || r.URL.Query().Get("endTime") == "" {
			http.Error(w, "missing range", http.StatusBadRequest)
			return
		}
		writeItems(w, []map[string]any{
			{"timestamp": h.now.Add(-2 * time.Minute), "value": 80.0},
			{"timestamp": h.now, "value": 81.0},
		})
	})

	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.requests.Add(1)
		h.lastAuth.Store(r.Header.Get("Authorization"))
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(h.server.Close)
	return h
}

func writeItems(w http.ResponseWriter, items []map[string]any) {
	json.NewEncoder(w).Encode(map[string]any{"items": items})
}

func connectedAdapter(t *testing.T, h *fakeHistorian, extra backend.Config) *Adapter {
	t.Helper()
	cfg := backend.Config{"apiUrl": h.server.URL}
	for k, v := range extra {
		cfg[k] = v
	}
	a := New().(*Adapter)
	if err := a.Connect(context.Background(), cfg); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return a
}

// TestConfigSchema_TimeoutDefaultMatchesClient keeps the advertised
// timeoutSeconds default in step with the client fallback.
func TestConfigSchema_TimeoutDefaultMatchesClient(t *testing.T) {
	var advertised string
	for _, f := range ConfigSchema() {
		if f.Name == "timeoutSeconds" {
			advertised = f.Default
		}
	}
	if advertised == "" {
		t.Fatal("timeoutSeconds descriptor missing a default")
	}
	cfg := configFromMap(backend.Config{})
	if got := cfg.RequestTimeout.String(); got != advertised+"s" {
		t.Fatalf("advertised default %ss but client falls back to %s", advertised, got)
	}
}

func TestAdapter_ConnectRejectsBadConfig(t *testing.T) {
	a := New()
	if err := a.Connect(context.Background(), backend.Config{}); err == nil {
		t.Fatal("expected error without apiUrl")
	}
	if err := a.Connect(context.Background(), backend.Config{"apiUrl": "ftp://hist.local"}); err == nil {
		t.Fatal("expected error for non-http scheme")
	}
}

func TestAdapter_NotConnected(t *testing.T) {
	a := New()
	_, err := a.ExecuteQuery(context.Background(), "SELECT value FROM POINT", nil)
	if !errors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := a.DiscoverSchema(context.Background()); !errors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAdapter_TestConnection(t *testing.T) {
	h := newFakeHistorian(t)
	a := New()

	result := a.TestConnection(context.Background(), backend.Config{"apiUrl": h.server.URL})
	if !result.OK {
		t.Fatalf("probe failed: %s", result.Message)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer down.Close()
	result = a.TestConnection(context.Background(), backend.Config{"apiUrl": down.URL})
	if result.OK {
		t.Fatal("probe against failing historian reported OK")
	}
}

func TestAdapter_DiscoverSchema(t *testing.T) {
	h := newFakeHistorian(t)
	a := connectedAdapter(t, h, nil)

	schema, err := a.DiscoverSchema(context.Background())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if !schema.HasTable("POINT") {
		t.Fatalf("POINT table missing: %v", schema.Tables)
	}
	for _, col := range []string{"timestamp", "value", "tag"} {
		if !schema.HasColumn("POINT", col) {
			t.Fatalf("column %s missing", col)
		}
	}
}

func TestAdapter_AvailableTags(t *testing.T) {
	h := newFakeHistorian(t)
	a := connectedAdapter(t, h, nil)

	tags, err := a.AvailableTags(context.Background())
	if err != nil {
		t.Fatalf("tags: %v", err)
	}
	if len(tags) != 2 || tags[0] != "Boiler.Temp" {
		t.Fatalf("unexpected tags: %v", tags)
	}
}

func TestAdapter_LatestValue(t *testing.T) {
	h := newFakeHistorian(t)
	a := connectedAdapter(t, h, nil)

	result, err := a.ExecuteQuery(context.Background(),
		"SELECT value FROM POINT WHERE tag = 'Boiler.Temp'", nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if result.RowCount != 1 {
		t.Fatalf("rows = %d, want 1", result.RowCount)
	}
	row := result.Rows[0]
	if row[1] != 81.5 || row[2] != "Boiler.Temp" {
		t.Fatalf("unexpected row: %v", row)
	}
	if result.Metadata["backend"] != "timeseries" {
		t.Fatalf("metadata: %v", result.Metadata)
	}
}

func TestAdapter_IntervalWindowQuery(t *testing.T) {
	h := newFakeHistorian(t)
	a := connectedAdapter(t, h, nil)

	result, err := a.ExecuteQuery(context.Background(),
		"SELECT value FROM POINT WHERE tag = 'Boiler.Temp' INTERVAL '1h'", nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if result.RowCount != 2 {
		t.Fatalf("rows = %d, want 2", result.RowCount)
	}
	if result.SQLPreview != "POINT tag=Boiler.Temp interval=1h" {
		t.Fatalf("preview = %q", result.SQLPreview)
	}
}

// TestAdapter_DualQueryMergesLiveValue checks the WITH LIVE merge rule:
// the live sample replaces a historical sample with the same timestamp
// and rows come back in ascending order, live value last.
func TestAdapter_DualQueryMergesLiveValue(t *testing.T) {
	h := newFakeHistorian(t)
	a := connectedAdapter(t, h, nil)

	result, err := a.ExecuteQuery(context.Background(),
		"SELECT value FROM POINT WHERE tag = 'Boiler.Temp' INTERVAL '1h' WITH LIVE", nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	// Historical returns samples at now-2m (80.0) and now (81.0); the live
	// value at now (81.5) wins the collision.
	if result.RowCount != 2 {
		t.Fatalf("rows = %d, want 2", result.RowCount)
	}
	first, last := result.Rows[0], result.Rows[1]
	if first[1] != 80.0 {
		t.Fatalf("first row = %v", first)
	}
	if last[1] != 81.5 {
		t.Fatalf("live value did not win the collision: %v", last)
	}
	ts0, ts1 := first[0].(time.Time), last[0].(time.Time)
	if !ts0.Before(ts1) {
		t.Fatalf("rows not ascending: %v then %v", ts0, ts1)
	}
}

func TestAdapter_TagPrecedence(t *testing.T) {
	h := newFakeHistorian(t)
	a := connectedAdapter(t, h, backend.Config{"defaultTag": "Boiler.Temp"})

	// Params tag used when the query names none.
	result, err := a.ExecuteQuery(context.Background(),
		"SELECT value FROM POINT", backend.Params{"tag": "Boiler.Pressure"})
	if err != nil {
		t.Fatalf("query with params tag: %v", err)
	}
	if result.Rows[0][2] != "Boiler.Pressure" {
		t.Fatalf("params tag ignored: %v", result.Rows[0])
	}

	// Data source default when neither query nor params name one.
	result, err = a.ExecuteQuery(context.Background(), "SELECT value FROM POINT", nil)
	if err != nil {
		t.Fatalf("query with default tag: %v", err)
	}
	if result.Rows[0][2] != "Boiler.Temp" {
		t.Fatalf("default tag ignored: %v", result.Rows[0])
	}
}

func TestAdapter_NoTagAnywhere(t *testing.T) {
	h := newFakeHistorian(t)
	a := connectedAdapter(t, h, nil)

	_, err := a.ExecuteQuery(context.Background(), "SELECT value FROM POINT", nil)
	if !errors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAdapter_URLQuery(t *testing.T) {
	h := newFakeHistorian(t)
	a := connectedAdapter(t, h, nil)

	result, err := a.ExecuteQuery(context.Background(),
		h.server.URL+"/points/Boiler.Temp/value", nil)
	if err != nil {
		t.Fatalf("url query: %v", err)
	}
	if result.RowCount != 1 || result.Rows[0][1] != 81.5 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestAdapter_SendsBearerToken(t *testing.T) {
	h := newFakeHistorian(t)
	connectedAdapter(t, h, backend.Config{"apiKey": "historian-key"})

	if got := h.lastAuth.Load(); got != "Bearer historian-key" {
		t.Fatalf("authorization header = %v", got)
	}
}

// TestClient_RetriesTransientFailures exercises the retry path on 503
// responses.
func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int64
	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		writeItems(w, []map[string]any{{"name": "Boiler.Temp"}})
	}))
	defer flaky.Close()

	c, err := newClient(clientConfig{BaseURL: flaky.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	tags, err := c.ListPoints(context.Background())
	if err != nil {
		t.Fatalf("list after retries: %v", err)
	}
	if len(tags) != 1 || calls.Load() != 3 {
		t.Fatalf("tags=%v calls=%d", tags, calls.Load())
	}
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such point", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := newClient(clientConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.CurrentValue(context.Background(), "Ghost.Tag"); err == nil {
		t.Fatal("expected error for 404")
	}
	if calls.Load() != 1 {
		t.Fatalf("404 was retried %d times", calls.Load())
	}
}
