// Package backend defines the common capability set for data-source
// adapters. Each adapter translates the gateway's uniform query interface
// into one backend family's native protocol.
//
// Adapters are thin and explicit: no silent retries, no hidden fallbacks.
// Connection lifecycle is owned by the data-source manager, never by the
// adapter itself.
package backend

import "context"

// Config is the opaque key-value connection configuration for one data
// source. It may contain secrets; adapters must never log its values.
type Config map[string]string

// Params carries query parameters that are bound by the adapter, never
// concatenated into the query text.
type Params map[string]any

// QueryResult represents the result of a query execution in uniform
// tabular form.
type QueryResult struct {
	// Columns are the column names in the result.
	Columns []string

	// Rows are the result rows, each row is a slice of values aligned
	// with Columns.
	Rows [][]any

	// RowCount is the number of rows returned.
	RowCount int

	// SQLPreview is the final statement sent to the backend, when the
	// adapter produces one. Empty for opaque URL fetches.
	SQLPreview string

	// Metadata contains additional execution information.
	Metadata map[string]string
}

// Field describes one column of a discovered table.
type Field struct {
	Name     string `json:"name"`
	DataType string `json:"dataType"`
	Nullable bool   `json:"nullable"`
}

// Schema is the discovered shape of a backend: its tables and their fields.
type Schema struct {
	Tables []string           `json:"tables"`
	Fields map[string][]Field `json:"fields"`
}

// EmptySchema returns a schema with no tables. Used as the explicit
// fallback when discovery fails and nothing is cached.
func EmptySchema() *Schema {
	return &Schema{Tables: []string{}, Fields: map[string][]Field{}}
}

// HasTable reports whether the schema contains the given table.
func (s *Schema) HasTable(table string) bool {
	for _, t := range s.Tables {
		if t == table {
			return true
		}
	}
	return false
}

// HasColumn reports whether the schema contains the given column on table.
func (s *Schema) HasColumn(table, column string) bool {
	for _, f := range s.Fields[table] {
		if f.Name == column {
			return true
		}
	}
	return false
}

// TestResult is the outcome of a connection probe. A failed probe is a
// result, not an error: the message explains what went wrong.
type TestResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Adapter is the capability set every backend family implements.
//
// Connect and ExecuteQuery may block on network I/O; callers apply
// timeouts through ctx and adapters must abandon in-flight work on
// cancellation.
type Adapter interface {
	// Connect establishes the live connection described by config.
	Connect(ctx context.Context, config Config) error

	// Disconnect releases the live connection. Idempotent.
	Disconnect() error

	// TestConnection probes connectivity with the given config without
	// requiring a prior Connect.
	TestConnection(ctx context.Context, config Config) TestResult

	// DiscoverSchema lists tables and fields reachable through the live
	// connection.
	DiscoverSchema(ctx context.Context) (*Schema, error)

	// ExecuteQuery runs one query. Values in params are bound, never
	// interpolated.
	ExecuteQuery(ctx context.Context, query string, params Params) (*QueryResult, error)
}

// TagLister is implemented by adapters that expose a flat tag namespace,
// such as time-series historians.
type TagLister interface {
	AvailableTags(ctx context.Context) ([]string, error)
}
