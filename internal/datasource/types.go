package datasource

import (
	"context"
	"time"

	"github.com/hansduf/WA-Integrasi-sub000/internal/backend"
)

// Plugin type names registered in the plugin registry.
const (
	PluginRelational = "relational"
	PluginTimeseries = "timeseries"
)

// Relational dialects.
const (
	DialectMySQL  = "mysql"
	DialectOracle = "oracle"
)

// MaskPlaceholder is what read paths substitute for secret config values.
// The update path recognizes it and keeps the previously stored secret.
const MaskPlaceholder = "••••••••"

// Status is the recorded connectivity state of a data source.
type Status string

const (
	StatusUnknown      Status = "unknown"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// Config is the persisted record of one configured data source.
// ID is immutable after creation.
type Config struct {
	ID          string `json:"id"`
	PluginType  string `json:"pluginType"`
	Dialect     string `json:"dialect,omitempty"`
	DisplayName string `json:"displayName"`

	// Connection is the opaque key-value connection configuration.
	// May contain secrets; consumer-facing reads go through Masked.
	Connection backend.Config `json:"connection"`

	// CachedSchema is the last successfully discovered schema, if any.
	CachedSchema *backend.Schema `json:"cachedSchema,omitempty"`

	ConnectionStatus Status    `json:"connectionStatus"`
	LastTestedAt     time.Time `json:"lastTestedAt,omitempty"`
	LastError        string    `json:"lastError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (c *Config) Clone() *Config {
	dst := *c
	dst.Connection = make(backend.Config, len(c.Connection))
	for k, v := range c.Connection {
		dst.Connection[k] = v
	}
	if c.CachedSchema != nil {
		schema := &backend.Schema{
			Tables: append([]string(nil), c.CachedSchema.Tables...),
			Fields: make(map[string][]backend.Field, len(c.CachedSchema.Fields)),
		}
		for table, fields := range c.CachedSchema.Fields {
			schema.Fields[table] = append([]backend.Field(nil), fields...)
		}
		dst.CachedSchema = schema
	}
	return &dst
}

// Masked returns a copy with the named secret fields replaced by the
// placeholder. Masking itself is a presentation concern; this helper keeps
// the placeholder in one place so the update path can recognize it.
func (c *Config) Masked(secretFields []string) *Config {
	dst := c.Clone()
	for _, name := range secretFields {
		if _, ok := dst.Connection[name]; ok {
			dst.Connection[name] = MaskPlaceholder
		}
	}
	return dst
}

// Patch describes a partial update to a data source. Nil fields are left
// unchanged. Connection, when non-nil, replaces the stored map except for
// secret values holding the mask placeholder.
type Patch struct {
	DisplayName *string        `json:"displayName,omitempty"`
	Dialect     *string        `json:"dialect,omitempty"`
	Connection  backend.Config `json:"connection,omitempty"`
}

// Repository is the persistence the manager needs. Implementations live in
// internal/storage.
type Repository interface {
	GetDataSource(ctx context.Context, id string) (*Config, error)
	ListDataSources(ctx context.Context) ([]*Config, error)
	SaveDataSource(ctx context.Context, cfg *Config) error
	DeleteDataSource(ctx context.Context, id string) error
}

// ConnectReport is the outcome of a connect-all pass. One source's failure
// never aborts the others.
type ConnectReport struct {
	Connected []string        `json:"connected"`
	Failed    []ConnectFailed `json:"failed"`
}

// ConnectFailed records one source that could not be connected.
type ConnectFailed struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// SchemaResult is the outcome of schema discovery. FromCache is set when
// live discovery failed and the last cached schema was returned instead;
// the fallback is explicit, never silent.
type SchemaResult struct {
	Schema    *backend.Schema `json:"schema"`
	FromCache bool            `json:"fromCache"`
	LiveError string          `json:"liveError,omitempty"`
}
