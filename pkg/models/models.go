// Package models provides shared data models for the waq public API.
package models

import (
	"time"
)

// DataSourceRequest is the API request for creating or updating a data
// source. Connection values for secret fields may carry the mask
// placeholder to keep the stored value on update.
type DataSourceRequest struct {
	DisplayName string            `json:"display_name"`
	PluginType  string            `json:"plugin_type"`
	Dialect     string            `json:"dialect,omitempty"`
	Connection  map[string]string `json:"connection"`
}

// DataSourceInfo is the API response for a data source. Secret connection
// values are always masked.
type DataSourceInfo struct {
	ID               string            `json:"id"`
	DisplayName      string            `json:"display_name"`
	PluginType       string            `json:"plugin_type"`
	Dialect          string            `json:"dialect,omitempty"`
	Connection       map[string]string `json:"connection"`
	ConnectionStatus string            `json:"connection_status"`
	LastTestedAt     time.Time         `json:"last_tested_at,omitempty"`
	LastError        string            `json:"last_error,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// TestConnectionResponse is the API response for a connectivity probe.
type TestConnectionResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// QueryRequest is the API request for executing an ad hoc query against
// one data source.
type QueryRequest struct {
	Query  string         `json:"query"`
	Params map[string]any `json:"params,omitempty"`
}

// QueryResponse is the API response for a query execution.
type QueryResponse struct {
	Columns    []string          `json:"columns"`
	Rows       [][]any           `json:"rows"`
	RowCount   int               `json:"row_count"`
	SQLPreview string            `json:"sql_preview,omitempty"`
	Duration   string            `json:"duration"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// SchemaField describes one column of a discovered table.
type SchemaField struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Nullable bool   `json:"nullable"`
}

// SchemaResponse is the API response for schema discovery. FromCache is
// set when the live call failed and a cached copy was served instead.
type SchemaResponse struct {
	Tables    []string                 `json:"tables"`
	Fields    map[string][]SchemaField `json:"fields"`
	FromCache bool                     `json:"from_cache"`
	LiveError string                   `json:"live_error,omitempty"`
}

// TagsResponse is the API response for a time-series tag listing.
type TagsResponse struct {
	Tags []string `json:"tags"`
}

// TriggerRequest is the API request for creating or updating a trigger.
type TriggerRequest struct {
	Name           string   `json:"name"`
	Aliases        []string `json:"aliases,omitempty"`
	Type           string   `json:"type"`
	DataSourceID   string   `json:"data_source_id,omitempty"`
	QueryTemplate  string   `json:"query_template,omitempty"`
	Table          string   `json:"table,omitempty"`
	SortColumn     string   `json:"sort_column,omitempty"`
	Tag            string   `json:"tag,omitempty"`
	Interval       string   `json:"interval,omitempty"`
	Children       []string `json:"children,omitempty"`
	GroupID        string   `json:"group_id,omitempty"`
	Description    string   `json:"description,omitempty"`
	ResponsePrefix string   `json:"response_prefix,omitempty"`
	Active         *bool    `json:"active,omitempty"`
}

// GroupRequest is the API request for creating or updating a trigger group.
type GroupRequest struct {
	Name             string   `json:"name"`
	ExecutionMode    string   `json:"execution_mode,omitempty"`
	MemberTriggerIDs []string `json:"member_trigger_ids"`
}

// ResolveRequest is the API request for resolving message text.
type ResolveRequest struct {
	Text string `json:"text"`
}

// ResolveResponse is the API response for trigger resolution. Matched is
// false for an unrecognized message; that is not an error.
type ResolveResponse struct {
	Matched     bool   `json:"matched"`
	TriggerID   string `json:"trigger_id,omitempty"`
	TriggerName string `json:"trigger_name,omitempty"`
	GroupID     string `json:"group_id,omitempty"`
	GroupName   string `json:"group_name,omitempty"`
}

// ExecutionResponse is the API response for trigger or group execution.
type ExecutionResponse struct {
	Name      string `json:"name"`
	Success   bool   `json:"success"`
	Body      string `json:"body"`
	Succeeded int    `json:"succeeded,omitempty"`
	Failed    int    `json:"failed,omitempty"`
	Duration  string `json:"duration"`
}

// ErrorResponse is the API response for errors.
type ErrorResponse struct {
	Error      string `json:"error"`
	Reason     string `json:"reason,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Code       int    `json:"code"`
}
