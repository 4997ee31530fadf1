package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hansduf/WA-Integrasi-sub000/internal/backend"
	"github.com/hansduf/WA-Integrasi-sub000/internal/datasource"
	"github.com/hansduf/WA-Integrasi-sub000/internal/errors"
	"github.com/hansduf/WA-Integrasi-sub000/internal/trigger"
)

// SQLRepository implements Repository over database/sql. The statements use
// $N placeholders and explicit timestamps, which keeps one implementation
// working for both PostgreSQL (lib/pq) and SQLite (modernc.org/sqlite).
type SQLRepository struct {
	db *sql.DB
}

// NewSQLRepository creates a repository over an open database handle.
// Run migrations before first use.
func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// CheckConnectivity verifies database connectivity.
func (r *SQLRepository) CheckConnectivity(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("repository connectivity check failed: %w", err)
	}
	return nil
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func fromNullTime(t sql.NullTime) time.Time {
	if t.Valid {
		return t.Time
	}
	return time.Time{}
}

// GetDataSource retrieves a data source by id.
func (r *SQLRepository) GetDataSource(ctx context.Context, id string) (*datasource.Config, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, plugin_type, dialect, display_name, connection_json,
		       cached_schema_json, connection_status, last_tested_at,
		       last_error, created_at, updated_at
		FROM data_sources WHERE id = $1`, id)
	cfg, err := scanDataSource(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("data source", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data source %s: %w", id, err)
	}
	return cfg, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataSource(row rowScanner) (*datasource.Config, error) {
	var (
		cfg            datasource.Config
		dialect        sql.NullString
		connectionJSON []byte
		schemaJSON     []byte
		lastTestedAt   sql.NullTime
		lastError      sql.NullString
	)
	err := row.Scan(&cfg.ID, &cfg.PluginType, &dialect, &cfg.DisplayName,
		&connectionJSON, &schemaJSON, &cfg.ConnectionStatus, &lastTestedAt,
		&lastError, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	cfg.Dialect = dialect.String
	cfg.LastError = lastError.String
	cfg.LastTestedAt = fromNullTime(lastTestedAt)
	cfg.Connection = backend.Config{}
	if len(connectionJSON) > 0 {
		if err := json.Unmarshal(connectionJSON, &cfg.Connection); err != nil {
			return nil, fmt.Errorf("corrupt connection config: %w", err)
		}
	}
	if len(schemaJSON) > 0 {
		var schema backend.Schema
		if err := json.Unmarshal(schemaJSON, &schema); err != nil {
			return nil, fmt.Errorf("corrupt cached schema: %w", err)
		}
		cfg.CachedSchema = &schema
	}
	return &cfg, nil
}

// ListDataSources returns all data sources ordered by id.
func (r *SQLRepository) ListDataSources(ctx context.Context) ([]*datasource.Config, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, plugin_type, dialect, display_name, connection_json,
		       cached_schema_json, connection_status, last_tested_at,
		       last_error, created_at, updated_at
		FROM data_sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list data sources: %w", err)
	}
	defer rows.Close()

	out := make([]*datasource.Config, 0)
	for rows.Next() {
		cfg, err := scanDataSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan data source: %w", err)
		}
		out = append(out, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating data sources: %w", err)
	}
	return out, nil
}

// SaveDataSource upserts a data source record.
func (r *SQLRepository) SaveDataSource(ctx context.Context, cfg *datasource.Config) error {
	connectionJSON, err := marshalJSON(cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to encode connection config: %w", err)
	}
	var schemaJSON []byte
	if cfg.CachedSchema != nil {
		schemaJSON, err = marshalJSON(cfg.CachedSchema)
		if err != nil {
			return fmt.Errorf("failed to encode cached schema: %w", err)
		}
	}

	now := time.Now()
	createdAt := cfg.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO data_sources (
			id, plugin_type, dialect, display_name, connection_json,
			cached_schema_json, connection_status, last_tested_at,
			last_error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			plugin_type = $2, dialect = $3, display_name = $4,
			connection_json = $5, cached_schema_json = $6,
			connection_status = $7, last_tested_at = $8, last_error = $9,
			updated_at = $11`,
		cfg.ID, cfg.PluginType, cfg.Dialect, cfg.DisplayName, connectionJSON,
		schemaJSON, string(cfg.ConnectionStatus), nullTime(cfg.LastTestedAt),
		cfg.LastError, createdAt, now)
	if err != nil {
		return fmt.Errorf("failed to save data source %s: %w", cfg.ID, err)
	}
	return nil
}

// DeleteDataSource removes a data source by id.
func (r *SQLRepository) DeleteDataSource(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM data_sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete data source %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return errors.NewNotFound("data source", id)
	}
	return nil
}

func scanTrigger(row rowScanner) (*trigger.Trigger, error) {
	var (
		t            trigger.Trigger
		aliasesJSON  []byte
		childrenJSON []byte
		lastUsedAt   sql.NullTime
		dataSourceID sql.NullString
		groupID      sql.NullString
	)
	err := row.Scan(&t.ID, &t.Name, &aliasesJSON, &t.Type, &dataSourceID,
		&t.QueryTemplate, &t.Table, &t.SortColumn, &t.Tag, &t.Interval,
		&childrenJSON, &groupID, &t.Description, &t.ResponsePrefix,
		&t.Active, &t.UsageCount, &lastUsedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.DataSourceID = dataSourceID.String
	t.GroupID = groupID.String
	t.LastUsedAt = fromNullTime(lastUsedAt)
	if len(aliasesJSON) > 0 {
		if err := json.Unmarshal(aliasesJSON, &t.Aliases); err != nil {
			return nil, fmt.Errorf("corrupt aliases: %w", err)
		}
	}
	if len(childrenJSON) > 0 {
		if err := json.Unmarshal(childrenJSON, &t.Children); err != nil {
			return nil, fmt.Errorf("corrupt children: %w", err)
		}
	}
	return &t, nil
}

const triggerColumns = `id, name, aliases_json, trigger_type, data_source_id,
	query_template, table_name, sort_column, tag, interval_token,
	children_json, group_id, description, response_prefix, active,
	usage_count, last_used_at, created_at, updated_at`

// GetTrigger retrieves a trigger by id.
func (r *SQLRepository) GetTrigger(ctx context.Context, id string) (*trigger.Trigger, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+triggerColumns+` FROM triggers WHERE id = $1`, id)
	t, err := scanTrigger(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("trigger", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trigger %s: %w", id, err)
	}
	return t, nil
}

// ListTriggers returns all triggers ordered by name.
func (r *SQLRepository) ListTriggers(ctx context.Context) ([]*trigger.Trigger, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+triggerColumns+` FROM triggers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list triggers: %w", err)
	}
	defer rows.Close()

	out := make([]*trigger.Trigger, 0)
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trigger: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating triggers: %w", err)
	}
	return out, nil
}

// SaveTrigger upserts a trigger record.
func (r *SQLRepository) SaveTrigger(ctx context.Context, t *trigger.Trigger) error {
	aliasesJSON, err := marshalJSON(t.Aliases)
	if err != nil {
		return fmt.Errorf("failed to encode aliases: %w", err)
	}
	childrenJSON, err := marshalJSON(t.Children)
	if err != nil {
		return fmt.Errorf("failed to encode children: %w", err)
	}

	now := time.Now()
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO triggers (
			id, name, aliases_json, trigger_type, data_source_id,
			query_template, table_name, sort_column, tag, interval_token,
			children_json, group_id, description, response_prefix, active,
			usage_count, last_used_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		          $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			name = $2, aliases_json = $3, trigger_type = $4,
			data_source_id = $5, query_template = $6, table_name = $7,
			sort_column = $8, tag = $9, interval_token = $10,
			children_json = $11, group_id = $12, description = $13,
			response_prefix = $14, active = $15, usage_count = $16,
			last_used_at = $17, updated_at = $19`,
		t.ID, t.Name, aliasesJSON, string(t.Type), t.DataSourceID,
		t.QueryTemplate, t.Table, t.SortColumn, t.Tag, t.Interval,
		childrenJSON, t.GroupID, t.Description, t.ResponsePrefix, t.Active,
		t.UsageCount, nullTime(t.LastUsedAt), createdAt, now)
	if err != nil {
		return fmt.Errorf("failed to save trigger %s: %w", t.ID, err)
	}
	return nil
}

// DeleteTrigger removes a trigger by id.
func (r *SQLRepository) DeleteTrigger(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM triggers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trigger %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return errors.NewNotFound("trigger", id)
	}
	return nil
}

// GetGroup retrieves a group with its ordered members.
func (r *SQLRepository) GetGroup(ctx context.Context, id string) (*trigger.Group, error) {
	var g trigger.Group
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, execution_mode, created_at, updated_at
		FROM trigger_groups WHERE id = $1`, id).
		Scan(&g.ID, &g.Name, &g.ExecutionMode, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("trigger group", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trigger group %s: %w", id, err)
	}

	members, err := r.groupMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	g.MemberTriggerIDs = members
	return &g, nil
}

func (r *SQLRepository) groupMembers(ctx context.Context, groupID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT trigger_id FROM trigger_group_members
		WHERE group_id = $1 ORDER BY position`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	defer rows.Close()

	members := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		members = append(members, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group members: %w", err)
	}
	return members, nil
}

// ListGroups returns all groups ordered by name.
func (r *SQLRepository) ListGroups(ctx context.Context) ([]*trigger.Group, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, execution_mode, created_at, updated_at
		FROM trigger_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list trigger groups: %w", err)
	}
	defer rows.Close()

	out := make([]*trigger.Group, 0)
	for rows.Next() {
		var g trigger.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.ExecutionMode, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trigger group: %w", err)
		}
		out = append(out, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trigger groups: %w", err)
	}

	for _, g := range out {
		members, err := r.groupMembers(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		g.MemberTriggerIDs = members
	}
	return out, nil
}

// SaveGroup upserts a group and rewrites its membership rows in one
// transaction so order stays consistent.
func (r *SQLRepository) SaveGroup(ctx context.Context, g *trigger.Group) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	createdAt := g.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trigger_groups (id, name, execution_mode, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = $2, execution_mode = $3, updated_at = $5`,
		g.ID, g.Name, string(g.ExecutionMode), createdAt, now)
	if err != nil {
		return fmt.Errorf("failed to save trigger group %s: %w", g.ID, err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM trigger_group_members WHERE group_id = $1`, g.ID)
	if err != nil {
		return fmt.Errorf("failed to clear group members: %w", err)
	}
	for i, triggerID := range g.MemberTriggerIDs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO trigger_group_members (group_id, trigger_id, position)
			VALUES ($1, $2, $3)`, g.ID, triggerID, i)
		if err != nil {
			return fmt.Errorf("failed to insert group member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteGroup removes a group and its membership rows.
func (r *SQLRepository) DeleteGroup(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM trigger_group_members WHERE group_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group members: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM trigger_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trigger group %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return errors.NewNotFound("trigger group", id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Verify SQLRepository implements Repository.
var _ Repository = (*SQLRepository)(nil)
