package bootstrap_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hansduf/WA-Integrasi-sub000/internal/auth"
	"github.com/hansduf/WA-Integrasi-sub000/internal/backend"
	"github.com/hansduf/WA-Integrasi-sub000/internal/bootstrap"
	"github.com/hansduf/WA-Integrasi-sub000/internal/datasource"
	"github.com/hansduf/WA-Integrasi-sub000/internal/errors"
	"github.com/hansduf/WA-Integrasi-sub000/internal/plugin"
	"github.com/hansduf/WA-Integrasi-sub000/internal/storage"
	"github.com/hansduf/WA-Integrasi-sub000/internal/trigger"
)

const bootstrapYAML = `
dataSources:
  plant-db:
    displayName: Plant Historian
    pluginType: timeseries
    connection:
      apiUrl: https://historian.local/api
      defaultTag: Boiler.Temp
triggers:
  suhu:
    type: SIMPLE_QUERY
    aliases: [temp]
    dataSourceId: plant-db
    queryTemplate: SELECT value FROM POINT
    responsePrefix: "Suhu terkini:"
  tekanan:
    type: SIMPLE_QUERY
    dataSourceId: plant-db
    queryTemplate: SELECT value FROM POINT WHERE tag = 'Boiler.Pressure'
  laporan:
    type: COMPOSITE
    children: [suhu, tekanan]
  pagi:
    type: GROUP_REF
    group: laporan pagi
groups:
  laporan pagi:
    executionMode: parallel
    members: [suhu, tekanan]
roles:
  operator: [query, resolve]
`

type seedAdapter struct{}

func (seedAdapter) Connect(context.Context, backend.Config) error { return nil }
func (seedAdapter) Disconnect() error                             { return nil }
func (seedAdapter) TestConnection(context.Context, backend.Config) backend.TestResult {
	return backend.TestResult{OK: true}
}
func (seedAdapter) DiscoverSchema(context.Context) (*backend.Schema, error) {
	return backend.EmptySchema(), nil
}
func (seedAdapter) ExecuteQuery(context.Context, string, backend.Params) (*backend.QueryResult, error) {
	return &backend.QueryResult{}, nil
}

func writeBootstrapFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bootstrap.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func newApplyEnv(t *testing.T) (*datasource.Manager, *trigger.Store) {
	t.Helper()
	registry := plugin.NewRegistry()
	registry.Register(datasource.PluginTimeseries, plugin.Plugin{
		New: func() backend.Adapter { return seedAdapter{} },
	})
	repo := storage.NewMemoryRepository()
	m := datasource.NewManager(registry, repo, datasource.ManagerConfig{})
	t.Cleanup(m.Close)
	return m, trigger.NewStore(repo)
}

func TestLoadFile(t *testing.T) {
	path := writeBootstrapFile(t, bootstrapYAML)
	cfg, err := bootstrap.LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.DataSources) != 1 || len(cfg.Triggers) != 4 || len(cfg.Groups) != 1 {
		t.Fatalf("unexpected shape: %d/%d/%d", len(cfg.DataSources), len(cfg.Triggers), len(cfg.Groups))
	}
	if cfg.Triggers["suhu"].Aliases[0] != "temp" {
		t.Fatalf("aliases not parsed: %+v", cfg.Triggers["suhu"])
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	if _, err := bootstrap.LoadFile("/no/such/file.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// TestValidate covers the cross-reference checks.
func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"trigger references unknown data source", `
triggers:
  suhu:
    type: SIMPLE_QUERY
    dataSourceId: ghost
    queryTemplate: SELECT value FROM POINT
`},
		{"composite references unknown child", `
triggers:
  laporan:
    type: COMPOSITE
    children: [ghost]
`},
		{"group-ref references unknown group", `
triggers:
  pagi:
    type: GROUP_REF
    group: ghost
`},
		{"group references unknown member", `
groups:
  laporan:
    members: [ghost]
`},
		{"role references unknown action", `
roles:
  operator: [launch_rockets]
`},
		{"data source without plugin type", `
dataSources:
  db:
    displayName: X
`},
		{"unknown trigger type", `
triggers:
  hook:
    type: WEBHOOK
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := bootstrap.LoadFile(writeBootstrapFile(t, tc.yaml))
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if err := cfg.Validate(); !errors.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestApply_SeedsEverything(t *testing.T) {
	sources, store := newApplyEnv(t)
	authz := auth.NewAuthorizationService()
	ctx := context.Background()

	cfg, err := bootstrap.LoadFile(writeBootstrapFile(t, bootstrapYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := cfg.Apply(ctx, sources, store, authz); err != nil {
		t.Fatalf("apply: %v", err)
	}

	ds, err := sources.GetDataSource(ctx, "plant-db")
	if err != nil {
		t.Fatalf("data source not seeded: %v", err)
	}
	if ds.Connection["defaultTag"] != "Boiler.Temp" {
		t.Fatalf("connection lost: %v", ds.Connection)
	}

	suhu, err := store.FindByName(ctx, "suhu")
	if err != nil {
		t.Fatalf("trigger not seeded: %v", err)
	}
	if !suhu.Active || suhu.DataSourceID != "plant-db" {
		t.Fatalf("unexpected trigger: %+v", suhu)
	}
	if _, err := store.FindByName(ctx, "temp"); err != nil {
		t.Fatalf("alias not seeded: %v", err)
	}

	g, err := store.FindGroupByName(ctx, "laporan pagi")
	if err != nil {
		t.Fatalf("group not seeded: %v", err)
	}
	if g.ExecutionMode != trigger.ModeParallel || len(g.MemberTriggerIDs) != 2 {
		t.Fatalf("unexpected group: %+v", g)
	}

	pagi, err := store.FindByName(ctx, "pagi")
	if err != nil {
		t.Fatalf("group-ref not seeded: %v", err)
	}
	if pagi.GroupID != g.ID {
		t.Fatalf("group-ref points at %q, want %q", pagi.GroupID, g.ID)
	}

	operator := &auth.User{Roles: []string{"operator"}}
	if !authz.HasAccess(operator, auth.ActionQuery) || !authz.HasAccess(operator, auth.ActionResolve) {
		t.Fatal("role grants not applied")
	}
	if authz.HasAccess(operator, auth.ActionManageDataSources) {
		t.Fatal("operator got an ungranted action")
	}
}

// TestApply_IsIdempotent verifies a second apply leaves existing records
// untouched instead of failing on name collisions.
func TestApply_IsIdempotent(t *testing.T) {
	sources, store := newApplyEnv(t)
	ctx := context.Background()

	cfg, err := bootstrap.LoadFile(writeBootstrapFile(t, bootstrapYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Apply(ctx, sources, store, nil); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	// Operator customization survives the second apply.
	suhu, _ := store.FindByName(ctx, "suhu")
	if _, err := store.UpdateDescription(ctx, suhu.ID, "customized"); err != nil {
		t.Fatalf("customize: %v", err)
	}

	if err := cfg.Apply(ctx, sources, store, nil); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	again, _ := store.FindByName(ctx, "suhu")
	if again.Description != "customized" {
		t.Fatal("second apply clobbered an existing trigger")
	}

	list, _ := store.ListTriggers(ctx)
	if len(list) != 4 {
		t.Fatalf("expected 4 triggers after reapply, got %d", len(list))
	}
}
