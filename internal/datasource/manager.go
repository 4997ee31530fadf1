// Package datasource owns the catalog of configured data sources, their
// live adapter handles, periodic health checking and schema caching.
package datasource

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/hansduf/WA-Integrasi-sub000/internal/audit"
	"github.com/hansduf/WA-Integrasi-sub000/internal/backend"
	"github.com/hansduf/WA-Integrasi-sub000/internal/cache"
	"github.com/hansduf/WA-Integrasi-sub000/internal/errors"
	"github.com/hansduf/WA-Integrasi-sub000/internal/plugin"
)

// ManagerConfig carries the manager's tunables. Zero values fall back to
// conservative defaults.
type ManagerConfig struct {
	// QueryTimeout bounds one ExecuteQuery round trip. Default 15s.
	QueryTimeout time.Duration

	// ConnectTimeout bounds one connect attempt. Default 10s.
	ConnectTimeout time.Duration

	// SchemaCacheTTL bounds how long a discovered schema is served without
	// a fresh live call. Default 5m.
	SchemaCacheTTL time.Duration

	// Recorder receives audit events. Nil disables auditing.
	Recorder audit.Recorder
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 15 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.SchemaCacheTTL <= 0 {
		c.SchemaCacheTTL = 5 * time.Minute
	}
	return c
}

// Manager is the data-source abstraction layer: catalog CRUD, live adapter
// lifecycle and uniform query execution.
type Manager struct {
	registry *plugin.Registry
	repo     Repository
	cfg      ManagerConfig

	mu   sync.RWMutex
	live map[string]backend.Adapter

	// connects serializes reconnect attempts per data source so that
	// concurrent callers share one attempt instead of racing.
	connects singleflight.Group

	schemaCache *cache.TTL[*backend.Schema]

	health *healthChecker
}

// NewManager creates a manager over the given plugin registry and catalog
// repository.
func NewManager(registry *plugin.Registry, repo Repository, cfg ManagerConfig) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		registry:    registry,
		repo:        repo,
		cfg:         cfg,
		live:        make(map[string]backend.Adapter),
		schemaCache: cache.NewTTL[*backend.Schema](cfg.SchemaCacheTTL),
	}
}

// connConfig merges the record's dialect into the opaque connection map so
// the relational adapter can resolve it.
func connConfig(cfg *Config) backend.Config {
	merged := make(backend.Config, len(cfg.Connection)+1)
	for k, v := range cfg.Connection {
		merged[k] = v
	}
	if cfg.PluginType == PluginRelational && cfg.Dialect != "" {
		merged["dialect"] = cfg.Dialect
	}
	return merged
}

func (m *Manager) validate(cfg *Config) error {
	if cfg.PluginType == "" {
		return errors.NewValidation("pluginType", "required")
	}
	if cfg.PluginType == PluginRelational {
		if cfg.Dialect == "" {
			return errors.NewValidation("dialect", "required for relational data sources")
		}
		switch strings.ToLower(cfg.Dialect) {
		case DialectMySQL, DialectOracle:
		default:
			return errors.NewValidation("dialect", fmt.Sprintf("unsupported dialect %q", cfg.Dialect))
		}
	}

	// Validate the merged map so the dialect key the adapter reads is
	// present.
	return m.registry.ValidateConfig(cfg.PluginType, connConfig(cfg))
}

// AddDataSource validates and persists a new data source. It does not
// connect eagerly; the first query or the health check will.
func (m *Manager) AddDataSource(ctx context.Context, cfg *Config) (*Config, error) {
	if cfg.DisplayName == "" {
		return nil, errors.NewValidation("displayName", "required")
	}
	if err := m.validate(cfg); err != nil {
		return nil, err
	}

	stored := cfg.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	} else {
		// Only a definitive miss clears the id for use. A repository
		// failure here must not let a duplicate slip through.
		switch _, err := m.repo.GetDataSource(ctx, stored.ID); {
		case err == nil:
			return nil, errors.NewValidation("id", fmt.Sprintf("data source %q already exists", stored.ID))
		case !errors.IsNotFound(err):
			return nil, err
		}
	}
	stored.ConnectionStatus = StatusUnknown
	stored.CreatedAt = time.Now()

	if err := m.repo.SaveDataSource(ctx, stored); err != nil {
		return nil, err
	}
	audit.Emit(ctx, m.cfg.Recorder, audit.Event{
		Type: audit.EventDataSourceCreated, EntityID: stored.ID, Outcome: "success",
		Detail: map[string]string{"pluginType": stored.PluginType},
	})
	return stored.Clone(), nil
}

// GetDataSource returns one data source record.
func (m *Manager) GetDataSource(ctx context.Context, id string) (*Config, error) {
	return m.repo.GetDataSource(ctx, id)
}

// ListDataSources returns all data source records.
func (m *Manager) ListDataSources(ctx context.Context) ([]*Config, error) {
	return m.repo.ListDataSources(ctx)
}

// Masked returns cfg with its plugin's secret fields replaced by the
// placeholder, for consumer-facing reads.
func (m *Manager) Masked(cfg *Config) *Config {
	return cfg.Masked(m.registry.SecretFields(cfg.PluginType))
}

// UpdateDataSource applies a partial update. The id and plugin type are
// immutable. A secret field holding the mask placeholder keeps the
// previously stored value instead of overwriting it with placeholder text.
func (m *Manager) UpdateDataSource(ctx context.Context, id string, patch Patch) (*Config, error) {
	current, err := m.repo.GetDataSource(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := current.Clone()
	if patch.DisplayName != nil {
		updated.DisplayName = *patch.DisplayName
	}
	if patch.Dialect != nil {
		updated.Dialect = *patch.Dialect
	}
	if patch.Connection != nil {
		secrets := make(map[string]bool)
		for _, name := range m.registry.SecretFields(current.PluginType) {
			secrets[name] = true
		}
		next := make(backend.Config, len(patch.Connection))
		for key, value := range patch.Connection {
			if secrets[key] && value == MaskPlaceholder {
				// Placeholder kept: retain the stored secret.
				next[key] = current.Connection[key]
				continue
			}
			next[key] = value
		}
		updated.Connection = next
	}

	if err := m.validate(updated); err != nil {
		return nil, err
	}
	if err := m.repo.SaveDataSource(ctx, updated); err != nil {
		return nil, err
	}

	// The stored connection changed; force a reconnect on next use.
	m.dropHandle(id)
	m.schemaCache.Invalidate(id)

	audit.Emit(ctx, m.cfg.Recorder, audit.Event{
		Type: audit.EventDataSourceUpdated, EntityID: id, Outcome: "success",
	})
	return updated.Clone(), nil
}

// RemoveDataSource disconnects and deletes a data source.
func (m *Manager) RemoveDataSource(ctx context.Context, id string) error {
	if err := m.repo.DeleteDataSource(ctx, id); err != nil {
		return err
	}
	m.dropHandle(id)
	m.schemaCache.Invalidate(id)
	audit.Emit(ctx, m.cfg.Recorder, audit.Event{
		Type: audit.EventDataSourceDeleted, EntityID: id, Outcome: "success",
	})
	return nil
}

func (m *Manager) dropHandle(id string) {
	m.mu.Lock()
	adapter, ok := m.live[id]
	delete(m.live, id)
	m.mu.Unlock()
	if ok {
		adapter.Disconnect()
	}
}

// LoadAndConnectAll connects every persisted data source. Sources fail
// independently; one bad config never aborts the rest.
func (m *Manager) LoadAndConnectAll(ctx context.Context) (*ConnectReport, error) {
	configs, err := m.repo.ListDataSources(ctx)
	if err != nil {
		return nil, err
	}

	report := &ConnectReport{Connected: []string{}, Failed: []ConnectFailed{}}
	for _, cfg := range configs {
		if _, err := m.ensureConnected(ctx, cfg.ID); err != nil {
			report.Failed = append(report.Failed, ConnectFailed{ID: cfg.ID, Error: err.Error()})
			continue
		}
		report.Connected = append(report.Connected, cfg.ID)
	}
	return report, nil
}

// ensureConnected returns the live adapter for id, connecting lazily. At
// most one connect attempt per source is in flight; concurrent callers of
// the same source share its outcome.
func (m *Manager) ensureConnected(ctx context.Context, id string) (backend.Adapter, error) {
	m.mu.RLock()
	adapter, ok := m.live[id]
	m.mu.RUnlock()
	if ok {
		return adapter, nil
	}

	v, err, _ := m.connects.Do(id, func() (any, error) {
		// Re-check: a previous flight may have just installed the handle.
		m.mu.RLock()
		existing, ok := m.live[id]
		m.mu.RUnlock()
		if ok {
			return existing, nil
		}

		cfg, err := m.repo.GetDataSource(ctx, id)
		if err != nil {
			return nil, err
		}
		fresh, err := m.registry.Create(cfg.PluginType)
		if err != nil {
			return nil, err
		}

		// The connect gets its own deadline so a cancelled caller does not
		// poison the attempt other waiters are sharing.
		connectCtx, cancel := context.WithTimeout(context.Background(), m.cfg.ConnectTimeout)
		defer cancel()
		if err := fresh.Connect(connectCtx, connConfig(cfg)); err != nil {
			m.recordStatus(cfg, StatusError, err.Error())
			return nil, errors.NewBackendUnavailable(id, err)
		}
		m.recordStatus(cfg, StatusConnected, "")

		m.mu.Lock()
		m.live[id] = fresh
		m.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(backend.Adapter), nil
}

// recordStatus persists the connectivity outcome so state survives process
// restarts. Persistence failures here are deliberately swallowed; status
// is advisory.
func (m *Manager) recordStatus(cfg *Config, status Status, lastError string) {
	cfg.ConnectionStatus = status
	cfg.LastError = lastError
	cfg.LastTestedAt = time.Now()
	_ = m.repo.SaveDataSource(context.Background(), cfg)
}

// ExecuteQuery resolves the live adapter for id (reconnecting lazily) and
// runs the query under the configured timeout. Backend errors come back
// wrapped with the data source id, original message preserved.
func (m *Manager) ExecuteQuery(ctx context.Context, id, query string, params backend.Params) (*backend.QueryResult, error) {
	adapter, err := m.ensureConnected(ctx, id)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, m.cfg.QueryTimeout)
	defer cancel()

	result, err := adapter.ExecuteQuery(queryCtx, query, params)
	if err != nil {
		if errors.IsUnsupportedQuery(err) || errors.IsValidation(err) {
			return nil, err
		}
		return nil, errors.NewQueryExecution(id, err)
	}

	audit.Emit(ctx, m.cfg.Recorder, audit.Event{
		Type: audit.EventQueryExecuted, EntityID: id, Outcome: "success",
		Detail: map[string]string{"rows": fmt.Sprintf("%d", result.RowCount)},
	})
	return result, nil
}

// TestDataSource probes connectivity with the stored config and persists
// the outcome either way.
func (m *Manager) TestDataSource(ctx context.Context, id string) (*backend.TestResult, error) {
	cfg, err := m.repo.GetDataSource(ctx, id)
	if err != nil {
		return nil, err
	}
	probe, err := m.registry.Create(cfg.PluginType)
	if err != nil {
		return nil, err
	}

	testCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()
	result := probe.TestConnection(testCtx, connConfig(cfg))

	if result.OK {
		m.recordStatus(cfg, StatusConnected, "")
	} else {
		m.recordStatus(cfg, StatusError, result.Message)
	}
	audit.Emit(ctx, m.cfg.Recorder, audit.Event{
		Type: audit.EventDataSourceTested, EntityID: id,
		Outcome: map[bool]string{true: "success", false: "failure"}[result.OK],
		Detail:  map[string]string{"message": result.Message},
	})
	return &result, nil
}

// DiscoverSchema attempts a live discovery. On success the schema is
// persisted and cached; on failure the last good schema (or an empty one)
// comes back with the fallback flagged.
func (m *Manager) DiscoverSchema(ctx context.Context, id string) (*SchemaResult, error) {
	if schema, ok := m.schemaCache.Get(id); ok {
		return &SchemaResult{Schema: schema}, nil
	}

	cfg, err := m.repo.GetDataSource(ctx, id)
	if err != nil {
		return nil, err
	}

	adapter, err := m.ensureConnected(ctx, id)
	if err != nil {
		return m.schemaFallback(cfg, err), nil
	}

	discoverCtx, cancel := context.WithTimeout(ctx, m.cfg.QueryTimeout)
	defer cancel()
	schema, err := adapter.DiscoverSchema(discoverCtx)
	if err != nil {
		return m.schemaFallback(cfg, err), nil
	}

	m.schemaCache.Set(id, schema)
	cfg.CachedSchema = schema
	_ = m.repo.SaveDataSource(context.Background(), cfg)
	return &SchemaResult{Schema: schema}, nil
}

func (m *Manager) schemaFallback(cfg *Config, liveErr error) *SchemaResult {
	if cfg.CachedSchema != nil {
		return &SchemaResult{Schema: cfg.CachedSchema, FromCache: true, LiveError: liveErr.Error()}
	}
	return &SchemaResult{Schema: backend.EmptySchema(), FromCache: true, LiveError: liveErr.Error()}
}

// AvailableTags lists the tag namespace of a time-series data source.
func (m *Manager) AvailableTags(ctx context.Context, id string) ([]string, error) {
	adapter, err := m.ensureConnected(ctx, id)
	if err != nil {
		return nil, err
	}
	lister, ok := adapter.(backend.TagLister)
	if !ok {
		return nil, errors.NewValidationMsg("data source does not expose tags")
	}
	return lister.AvailableTags(ctx)
}

// DefaultTag returns the configured default tag of a data source, if any.
func (m *Manager) DefaultTag(ctx context.Context, id string) (string, error) {
	cfg, err := m.repo.GetDataSource(ctx, id)
	if err != nil {
		return "", err
	}
	return cfg.Connection["defaultTag"], nil
}

// Close disconnects every live adapter and stops the health checker.
func (m *Manager) Close() {
	m.StopHealthCheck()
	m.mu.Lock()
	handles := m.live
	m.live = make(map[string]backend.Adapter)
	m.mu.Unlock()
	for _, adapter := range handles {
		adapter.Disconnect()
	}
}
