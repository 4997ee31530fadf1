// Package audit emits structured events for trigger executions and
// data-source administration. Auditing is fire-and-forget: a recorder
// failure is swallowed by Emit and never fails the operation that
// produced the event.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the core.
const (
	EventTriggerExecuted   = "trigger_executed"
	EventQueryExecuted     = "query_executed"
	EventDataSourceCreated = "data_source_created"
	EventDataSourceUpdated = "data_source_updated"
	EventDataSourceDeleted = "data_source_deleted"
	EventDataSourceTested  = "data_source_tested"
)

// Event is one structured audit record.
type Event struct {
	Type     string            `json:"type"`
	EntityID string            `json:"entityId,omitempty"`
	Actor    string            `json:"actor,omitempty"`
	Outcome  string            `json:"outcome,omitempty"` // success | failure
	Detail   map[string]string `json:"detail,omitempty"`
}

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Emit records event and swallows any recorder failure. This is the only
// entry point the core uses.
func Emit(ctx context.Context, r Recorder, event Event) {
	if r == nil {
		return
	}
	// Fire-and-forget: the event is best-effort by design.
	_ = r.Record(ctx, event)
}

// jsonEvent is the wire form written by JSONRecorder.
type jsonEvent struct {
	Timestamp string            `json:"timestamp"`
	Level     string            `json:"level"`
	Type      string            `json:"type"`
	EntityID  string            `json:"entity_id,omitempty"`
	Actor     string            `json:"actor,omitempty"`
	Outcome   string            `json:"outcome,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// JSONRecorder writes one JSON line per event.
type JSONRecorder struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewJSONRecorder creates a recorder writing to w.
func NewJSONRecorder(w io.Writer) *JSONRecorder {
	return &JSONRecorder{writer: w}
}

// Record writes the event as a JSON line.
func (r *JSONRecorder) Record(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.Type == "" {
		return fmt.Errorf("audit: event type is required")
	}

	level := "info"
	if event.Outcome == "failure" {
		level = "error"
	}
	data, err := json.Marshal(jsonEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level,
		Type:      event.Type,
		EntityID:  event.EntityID,
		Actor:     event.Actor,
		Outcome:   event.Outcome,
		Detail:    event.Detail,
	})
	if err != nil {
		return fmt.Errorf("audit: marshal event: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("audit: write event: %w", err)
	}
	return nil
}

// SQLRecorder persists events to the audit_events table so they survive
// gateway restarts.
type SQLRecorder struct {
	db *sql.DB
}

// NewSQLRecorder creates a recorder over an open database handle.
func NewSQLRecorder(db *sql.DB) *SQLRecorder {
	return &SQLRecorder{db: db}
}

// Record inserts the event.
func (r *SQLRecorder) Record(ctx context.Context, event Event) error {
	if event.Type == "" {
		return fmt.Errorf("audit: event type is required")
	}
	var detailJSON []byte
	if len(event.Detail) > 0 {
		var err error
		detailJSON, err = json.Marshal(event.Detail)
		if err != nil {
			return fmt.Errorf("audit: marshal detail: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, event_type, entity_id, actor, outcome, detail_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), event.Type, event.EntityID, event.Actor,
		event.Outcome, detailJSON, time.Now())
	if err != nil {
		return fmt.Errorf("audit: persist event: %w", err)
	}
	return nil
}

// NopRecorder discards all events. Useful for tests.
type NopRecorder struct{}

// Record does nothing and always succeeds.
func (NopRecorder) Record(ctx context.Context, event Event) error { return nil }
