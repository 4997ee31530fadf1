package plugin

import (
	"context"
	"testing"

	"github.com/hansduf/WA-Integrasi-sub000/internal/backend"
	"github.com/hansduf/WA-Integrasi-sub000/internal/errors"
)

type stubAdapter struct{}

func (stubAdapter) Connect(context.Context, backend.Config) error { return nil }
func (stubAdapter) Disconnect() error                             { return nil }
func (stubAdapter) TestConnection(context.Context, backend.Config) backend.TestResult {
	return backend.TestResult{OK: true}
}
func (stubAdapter) DiscoverSchema(context.Context) (*backend.Schema, error) {
	return backend.EmptySchema(), nil
}
func (stubAdapter) ExecuteQuery(context.Context, string, backend.Params) (*backend.QueryResult, error) {
	return &backend.QueryResult{}, nil
}

func stubPlugin(schema []FieldDescriptor) Plugin {
	return Plugin{
		New:          func() backend.Adapter { return stubAdapter{} },
		ConfigSchema: schema,
	}
}

func TestRegistry_CreateUnknownType(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Create("mongo"); !errors.IsUnknownPlugin(err) {
		t.Fatalf("expected unknown-plugin error, got %v", err)
	}
}

func TestRegistry_CreateReturnsFreshAdapter(t *testing.T) {
	r := NewRegistry()
	r.Register("stub", stubPlugin(nil))
	a, err := r.Create("stub")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a == nil {
		t.Fatal("nil adapter from registered factory")
	}
}

func TestRegistry_TypesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("timeseries", stubPlugin(nil))
	r.Register("relational", stubPlugin(nil))

	types := r.Types()
	if len(types) != 2 || types[0] != "relational" || types[1] != "timeseries" {
		t.Fatalf("unexpected type list: %v", types)
	}
}

// TestRegistry_ValidateConfig verifies required-field enforcement against
// the declared schema.
func TestRegistry_ValidateConfig(t *testing.T) {
	r := NewRegistry()
	r.Register("relational", stubPlugin([]FieldDescriptor{
		{Name: "host", Type: "string", Required: true},
		{Name: "password", Type: "password", Required: true, Secret: true},
		{Name: "port", Type: "int", Default: "3306"},
	}))

	err := r.ValidateConfig("relational", backend.Config{"host": "db.local"})
	if !errors.IsValidation(err) {
		t.Fatalf("expected validation error for missing password, got %v", err)
	}

	err = r.ValidateConfig("relational", backend.Config{"host": "db.local", "password": "s3cret"})
	if err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	if err := r.ValidateConfig("nope", backend.Config{}); !errors.IsUnknownPlugin(err) {
		t.Fatalf("expected unknown-plugin error, got %v", err)
	}
}

func TestRegistry_SecretFields(t *testing.T) {
	r := NewRegistry()
	r.Register("timeseries", stubPlugin([]FieldDescriptor{
		{Name: "apiUrl", Required: true},
		{Name: "apiKey", Secret: true},
		{Name: "password", Secret: true},
	}))

	secrets := r.SecretFields("timeseries")
	if len(secrets) != 2 || secrets[0] != "apiKey" || secrets[1] != "password" {
		t.Fatalf("unexpected secret fields: %v", secrets)
	}
	if got := r.SecretFields("unknown"); got != nil {
		t.Fatalf("unknown type should yield nil, got %v", got)
	}
}

// TestRegistry_ConfigSchemaCopyIsolated verifies callers cannot mutate the
// registered schema through the returned slice.
func TestRegistry_ConfigSchemaCopyIsolated(t *testing.T) {
	r := NewRegistry()
	r.Register("stub", stubPlugin([]FieldDescriptor{{Name: "host", Required: true}}))

	schema, err := r.ConfigSchema("stub")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	schema[0].Name = "mutated"

	again, _ := r.ConfigSchema("stub")
	if again[0].Name != "host" {
		t.Fatal("registered schema was mutated through the returned copy")
	}
}
