package datasource_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hansduf/WA-Integrasi-sub000/internal/backend"
	"github.com/hansduf/WA-Integrasi-sub000/internal/datasource"
	"github.com/hansduf/WA-Integrasi-sub000/internal/errors"
	"github.com/hansduf/WA-Integrasi-sub000/internal/plugin"
	"github.com/hansduf/WA-Integrasi-sub000/internal/storage"
)

// countingAdapter is a backend double with controllable connect behavior.
type countingAdapter struct {
	connects    atomic.Int64
	queries     atomic.Int64
	connectHold time.Duration

	mu          sync.Mutex
	discoverErr error
	queryErr    error
	schema      *backend.Schema
}

func (a *countingAdapter) Connect(ctx context.Context, cfg backend.Config) error {
	a.connects.Add(1)
	if a.connectHold > 0 {
		select {
		case <-time.After(a.connectHold):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if cfg["fail"] == "yes" {
		return fmt.Errorf("dial historian: connection refused")
	}
	return nil
}

func (a *countingAdapter) Disconnect() error { return nil }

func (a *countingAdapter) TestConnection(ctx context.Context, cfg backend.Config) backend.TestResult {
	if cfg["fail"] == "yes" {
		return backend.TestResult{OK: false, Message: "dial historian: connection refused"}
	}
	return backend.TestResult{OK: true, Message: "ok"}
}

func (a *countingAdapter) DiscoverSchema(context.Context) (*backend.Schema, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.discoverErr != nil {
		return nil, a.discoverErr
	}
	if a.schema != nil {
		return a.schema, nil
	}
	return backend.EmptySchema(), nil
}

func (a *countingAdapter) ExecuteQuery(context.Context, string, backend.Params) (*backend.QueryResult, error) {
	a.queries.Add(1)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.queryErr != nil {
		return nil, a.queryErr
	}
	return &backend.QueryResult{Columns: []string{"value"}, Rows: [][]any{{1}}, RowCount: 1}, nil
}

func (a *countingAdapter) setDiscoverErr(err error) {
	a.mu.Lock()
	a.discoverErr = err
	a.mu.Unlock()
}

func (a *countingAdapter) setQueryErr(err error) {
	a.mu.Lock()
	a.queryErr = err
	a.mu.Unlock()
}

func newTestRegistry(adapter *countingAdapter) *plugin.Registry {
	registry := plugin.NewRegistry()
	registry.Register(datasource.PluginTimeseries, plugin.Plugin{
		New: func() backend.Adapter { return adapter },
		ConfigSchema: []plugin.FieldDescriptor{
			{Name: "apiUrl", Type: "string", Required: true},
			{Name: "password", Type: "password", Secret: true},
		},
	})
	return registry
}

func newTestManager(t *testing.T, adapter *countingAdapter) *datasource.Manager {
	t.Helper()
	m := datasource.NewManager(newTestRegistry(adapter), storage.NewMemoryRepository(), datasource.ManagerConfig{})
	t.Cleanup(m.Close)
	return m
}

func tsConfig(id string, extra backend.Config) *datasource.Config {
	conn := backend.Config{"apiUrl": "https://historian.local/api", "password": "pw"}
	for k, v := range extra {
		conn[k] = v
	}
	return &datasource.Config{
		ID:          id,
		PluginType:  datasource.PluginTimeseries,
		DisplayName: "Plant Historian",
		Connection:  conn,
	}
}

func TestManager_AddDataSource_Validation(t *testing.T) {
	m := newTestManager(t, &countingAdapter{})
	ctx := context.Background()

	cases := []struct {
		name string
		cfg  *datasource.Config
	}{
		{"missing display name", &datasource.Config{PluginType: datasource.PluginTimeseries,
			Connection: backend.Config{"apiUrl": "x"}}},
		{"missing plugin type", &datasource.Config{DisplayName: "x"}},
		{"missing required field", &datasource.Config{PluginType: datasource.PluginTimeseries,
			DisplayName: "x", Connection: backend.Config{}}},
		{"relational without dialect", &datasource.Config{PluginType: datasource.PluginRelational,
			DisplayName: "x", Connection: backend.Config{"host": "db"}}},
		{"relational bad dialect", &datasource.Config{PluginType: datasource.PluginRelational,
			Dialect: "postgres", DisplayName: "x", Connection: backend.Config{"host": "db"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := m.AddDataSource(ctx, tc.cfg); !errors.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	if _, err := m.AddDataSource(ctx, &datasource.Config{
		PluginType: "mongo", DisplayName: "x", Connection: backend.Config{},
	}); !errors.IsUnknownPlugin(err) {
		t.Fatalf("expected unknown-plugin error, got %v", err)
	}
}

func TestManager_AddDataSource_NoEagerConnect(t *testing.T) {
	adapter := &countingAdapter{}
	m := newTestManager(t, adapter)

	created, err := m.AddDataSource(context.Background(), tsConfig("", nil))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if created.ID == "" {
		t.Fatal("no id assigned")
	}
	if created.ConnectionStatus != datasource.StatusUnknown {
		t.Fatalf("status = %q, want unknown", created.ConnectionStatus)
	}
	if adapter.connects.Load() != 0 {
		t.Fatalf("adding a source must not connect, got %d connects", adapter.connects.Load())
	}
}

func TestManager_AddDataSource_DuplicateID(t *testing.T) {
	m := newTestManager(t, &countingAdapter{})
	ctx := context.Background()

	if _, err := m.AddDataSource(ctx, tsConfig("ds-1", nil)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := m.AddDataSource(ctx, tsConfig("ds-1", nil)); !errors.IsValidation(err) {
		t.Fatalf("expected duplicate-id validation error, got %v", err)
	}
}

// TestManager_SecretRetention verifies the masked-placeholder round trip:
// reads mask the secret, and an update echoing the mask keeps the stored
// value instead of overwriting it.
func TestManager_SecretRetention(t *testing.T) {
	m := newTestManager(t, &countingAdapter{})
	ctx := context.Background()

	created, err := m.AddDataSource(ctx, tsConfig("ds-1", nil))
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	masked := m.Masked(created)
	if masked.Connection["password"] != datasource.MaskPlaceholder {
		t.Fatalf("secret not masked: %q", masked.Connection["password"])
	}
	if masked.Connection["apiUrl"] != "https://historian.local/api" {
		t.Fatal("non-secret field was masked")
	}

	// An admin edits the URL and sends the masked password straight back.
	updated, err := m.UpdateDataSource(ctx, "ds-1", datasource.Patch{
		Connection: backend.Config{
			"apiUrl":   "https://historian.local/v2",
			"password": datasource.MaskPlaceholder,
		},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Connection["password"] != "pw" {
		t.Fatalf("stored secret lost: %q", updated.Connection["password"])
	}
	if updated.Connection["apiUrl"] != "https://historian.local/v2" {
		t.Fatalf("url edit lost: %q", updated.Connection["apiUrl"])
	}

	// A genuinely new secret replaces the stored one.
	updated, err = m.UpdateDataSource(ctx, "ds-1", datasource.Patch{
		Connection: backend.Config{
			"apiUrl":   "https://historian.local/v2",
			"password": "rotated",
		},
	})
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if updated.Connection["password"] != "rotated" {
		t.Fatalf("rotation lost: %q", updated.Connection["password"])
	}
}

// TestManager_LoadAndConnectAll verifies per-source isolation: one failing
// source never aborts the others.
func TestManager_LoadAndConnectAll(t *testing.T) {
	adapter := &countingAdapter{}
	m := newTestManager(t, adapter)
	ctx := context.Background()

	for _, id := range []string{"ds-1", "ds-2", "ds-3"} {
		cfg := tsConfig(id, nil)
		if id == "ds-2" {
			cfg = tsConfig(id, backend.Config{"fail": "yes"})
		}
		if _, err := m.AddDataSource(ctx, cfg); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}

	report, err := m.LoadAndConnectAll(ctx)
	if err != nil {
		t.Fatalf("connect all: %v", err)
	}
	if len(report.Connected) != 2 {
		t.Fatalf("connected = %v, want 2 entries", report.Connected)
	}
	if len(report.Failed) != 1 || report.Failed[0].ID != "ds-2" {
		t.Fatalf("failed = %+v, want ds-2", report.Failed)
	}
	if report.Failed[0].Error == "" {
		t.Fatal("failure reason missing from report")
	}

	// The failure is persisted on the record.
	cfg, err := m.GetDataSource(ctx, "ds-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cfg.ConnectionStatus != datasource.StatusError || cfg.LastError == "" {
		t.Fatalf("status not recorded: %q %q", cfg.ConnectionStatus, cfg.LastError)
	}
}

// TestManager_ConcurrentQueriesShareOneConnect verifies reconnect
// single-flighting: many concurrent queries against a disconnected source
// produce exactly one connect attempt.
func TestManager_ConcurrentQueriesShareOneConnect(t *testing.T) {
	adapter := &countingAdapter{connectHold: 50 * time.Millisecond}
	m := newTestManager(t, adapter)
	ctx := context.Background()

	if _, err := m.AddDataSource(ctx, tsConfig("ds-1", nil)); err != nil {
		t.Fatalf("add: %v", err)
	}

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.ExecuteQuery(ctx, "ds-1", "SELECT value FROM POINT", nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if got := adapter.connects.Load(); got != 1 {
		t.Fatalf("connect attempts = %d, want 1", got)
	}
	if got := adapter.queries.Load(); got != callers {
		t.Fatalf("queries = %d, want %d", got, callers)
	}
}

func TestManager_ExecuteQuery_WrapsBackendErrors(t *testing.T) {
	adapter := &countingAdapter{}
	m := newTestManager(t, adapter)
	ctx := context.Background()

	if _, err := m.AddDataSource(ctx, tsConfig("ds-1", nil)); err != nil {
		t.Fatalf("add: %v", err)
	}

	adapter.setQueryErr(fmt.Errorf("ORA-00942: table or view does not exist"))
	_, err := m.ExecuteQuery(ctx, "ds-1", "SELECT 1", nil)
	if !errors.IsQueryExecution(err) {
		t.Fatalf("expected query-execution error, got %v", err)
	}
	if !strings.Contains(err.Error(), "ORA-00942") {
		t.Fatalf("backend message not preserved: %v", err)
	}
	if !strings.Contains(err.Error(), "ds-1") {
		t.Fatalf("data source id missing: %v", err)
	}
}

func TestManager_ExecuteQuery_PassesThroughValidationErrors(t *testing.T) {
	adapter := &countingAdapter{}
	m := newTestManager(t, adapter)
	ctx := context.Background()

	if _, err := m.AddDataSource(ctx, tsConfig("ds-1", nil)); err != nil {
		t.Fatalf("add: %v", err)
	}

	adapter.setQueryErr(errors.NewUnsupportedQueryFormat("timeseries", "bad shape"))
	_, err := m.ExecuteQuery(ctx, "ds-1", "gibberish", nil)
	if !errors.IsUnsupportedQuery(err) {
		t.Fatalf("unsupported-query error was re-wrapped: %v", err)
	}
}

func TestManager_ExecuteQuery_UnknownSource(t *testing.T) {
	m := newTestManager(t, &countingAdapter{})
	_, err := m.ExecuteQuery(context.Background(), "ghost", "SELECT 1", nil)
	if !errors.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestManager_TestDataSource_PersistsOutcome(t *testing.T) {
	adapter := &countingAdapter{}
	m := newTestManager(t, adapter)
	ctx := context.Background()

	if _, err := m.AddDataSource(ctx, tsConfig("ds-ok", nil)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := m.AddDataSource(ctx, tsConfig("ds-bad", backend.Config{"fail": "yes"})); err != nil {
		t.Fatalf("add: %v", err)
	}

	result, err := m.TestDataSource(ctx, "ds-ok")
	if err != nil {
		t.Fatalf("test: %v", err)
	}
	if !result.OK {
		t.Fatalf("probe failed: %s", result.Message)
	}
	cfg, _ := m.GetDataSource(ctx, "ds-ok")
	if cfg.ConnectionStatus != datasource.StatusConnected || cfg.LastTestedAt.IsZero() {
		t.Fatalf("success not persisted: %+v", cfg)
	}

	result, err = m.TestDataSource(ctx, "ds-bad")
	if err != nil {
		t.Fatalf("test: %v", err)
	}
	if result.OK {
		t.Fatal("probe should fail")
	}
	cfg, _ = m.GetDataSource(ctx, "ds-bad")
	if cfg.ConnectionStatus != datasource.StatusError || cfg.LastError == "" {
		t.Fatalf("failure not persisted: %+v", cfg)
	}
}

// TestManager_SchemaFallback verifies a failed live discovery serves the
// last persisted schema with the fallback flagged, and an empty schema when
// nothing was ever discovered.
func TestManager_SchemaFallback(t *testing.T) {
	adapter := &countingAdapter{
		schema: &backend.Schema{
			Tables: []string{"sensor_data"},
			Fields: map[string][]backend.Field{"sensor_data": {{Name: "ts"}}},
		},
	}
	m := newTestManager(t, adapter)
	ctx := context.Background()

	if _, err := m.AddDataSource(ctx, tsConfig("ds-1", nil)); err != nil {
		t.Fatalf("add: %v", err)
	}

	// First discovery is live and gets persisted.
	sr, err := m.DiscoverSchema(ctx, "ds-1")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if sr.FromCache || !sr.Schema.HasTable("sensor_data") {
		t.Fatalf("unexpected first discovery: %+v", sr)
	}

	// Drop the in-memory schema cache and the live handle, then break
	// discovery.
	if _, err := m.UpdateDataSource(ctx, "ds-1", datasource.Patch{}); err != nil {
		t.Fatalf("update: %v", err)
	}
	adapter.setDiscoverErr(fmt.Errorf("historian timeout"))

	sr, err = m.DiscoverSchema(ctx, "ds-1")
	if err != nil {
		t.Fatalf("fallback discover: %v", err)
	}
	if !sr.FromCache {
		t.Fatal("fallback not flagged")
	}
	if sr.LiveError == "" {
		t.Fatal("live error missing from fallback")
	}
	if !sr.Schema.HasTable("sensor_data") {
		t.Fatalf("persisted schema not served: %+v", sr.Schema)
	}
}

func TestManager_SchemaFallback_NothingCached(t *testing.T) {
	adapter := &countingAdapter{}
	adapter.setDiscoverErr(fmt.Errorf("historian timeout"))
	m := newTestManager(t, adapter)
	ctx := context.Background()

	if _, err := m.AddDataSource(ctx, tsConfig("ds-1", nil)); err != nil {
		t.Fatalf("add: %v", err)
	}

	sr, err := m.DiscoverSchema(ctx, "ds-1")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if !sr.FromCache || sr.LiveError == "" {
		t.Fatalf("fallback not flagged: %+v", sr)
	}
	if len(sr.Schema.Tables) != 0 {
		t.Fatalf("expected empty schema, got %v", sr.Schema.Tables)
	}
}

func TestManager_RemoveDataSource(t *testing.T) {
	m := newTestManager(t, &countingAdapter{})
	ctx := context.Background()

	if _, err := m.AddDataSource(ctx, tsConfig("ds-1", nil)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.RemoveDataSource(ctx, "ds-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := m.GetDataSource(ctx, "ds-1"); !errors.IsNotFound(err) {
		t.Fatalf("expected not-found after removal, got %v", err)
	}
	if err := m.RemoveDataSource(ctx, "ds-1"); !errors.IsNotFound(err) {
		t.Fatalf("double remove: %v", err)
	}
}

func TestManager_DefaultTag(t *testing.T) {
	m := newTestManager(t, &countingAdapter{})
	ctx := context.Background()

	if _, err := m.AddDataSource(ctx, tsConfig("ds-1", backend.Config{"defaultTag": "Boiler.Temp"})); err != nil {
		t.Fatalf("add: %v", err)
	}
	tag, err := m.DefaultTag(ctx, "ds-1")
	if err != nil {
		t.Fatalf("default tag: %v", err)
	}
	if tag != "Boiler.Temp" {
		t.Fatalf("tag = %q", tag)
	}
}

// flakyLookupRepo fails id lookups on demand while delegating everything
// else to a real in-memory repository.
type flakyLookupRepo struct {
	storage.Repository
	getErr error
}

func (r *flakyLookupRepo) GetDataSource(ctx context.Context, id string) (*datasource.Config, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.Repository.GetDataSource(ctx, id)
}

// TestManager_AddDataSource_IDCheckFailurePropagates verifies a repository
// failure during the duplicate-id lookup rejects the create instead of
// treating the id as free.
func TestManager_AddDataSource_IDCheckFailurePropagates(t *testing.T) {
	repo := &flakyLookupRepo{
		Repository: storage.NewMemoryRepository(),
		getErr:     fmt.Errorf("catalog store offline"),
	}
	m := datasource.NewManager(newTestRegistry(&countingAdapter{}), repo, datasource.ManagerConfig{})
	t.Cleanup(m.Close)
	ctx := context.Background()

	_, err := m.AddDataSource(ctx, tsConfig("ds-1", nil))
	if err == nil || !strings.Contains(err.Error(), "catalog store offline") {
		t.Fatalf("lookup failure not propagated: %v", err)
	}
	if errors.IsValidation(err) {
		t.Fatalf("repository failure reported as a validation problem: %v", err)
	}

	repo.getErr = nil
	if _, err := m.AddDataSource(ctx, tsConfig("ds-1", nil)); err != nil {
		t.Fatalf("add after recovery: %v", err)
	}
}
