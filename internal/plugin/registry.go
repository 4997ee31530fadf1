// Package plugin provides the static registry of backend adapter plugins.
// Adding a backend family means one Register call at startup; there is no
// runtime discovery.
package plugin

import (
	"sort"
	"sync"

	"github.com/hansduf/WA-Integrasi-sub000/internal/backend"
	"github.com/hansduf/WA-Integrasi-sub000/internal/errors"
)

// FieldDescriptor declares one field of a plugin's connection configuration.
// It is metadata for the admin UI form; the core attaches no behavior to it
// beyond required-field validation and secret masking.
type FieldDescriptor struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // string, int, bool, password
	Required bool   `json:"required"`
	Default  string `json:"default,omitempty"`
	Secret   bool   `json:"secret,omitempty"`
}

// Factory creates a fresh, unconnected adapter instance.
type Factory func() backend.Adapter

// Plugin pairs an adapter factory with its declared configuration schema.
type Plugin struct {
	New          Factory
	ConfigSchema []FieldDescriptor
}

// Registry holds the available backend plugins keyed by type name.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds a plugin under typeName. Re-registering the same type name
// replaces the previous entry (last write wins), which tests rely on to
// swap in doubles.
func (r *Registry) Register(typeName string, p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[typeName] = p
}

// Create instantiates a fresh adapter for typeName.
func (r *Registry) Create(typeName string) (backend.Adapter, error) {
	r.mu.RLock()
	p, ok := r.plugins[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NewUnknownPluginType(typeName)
	}
	return p.New(), nil
}

// ConfigSchema returns the declared configuration fields for typeName.
func (r *Registry) ConfigSchema(typeName string) ([]FieldDescriptor, error) {
	r.mu.RLock()
	p, ok := r.plugins[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NewUnknownPluginType(typeName)
	}
	schema := make([]FieldDescriptor, len(p.ConfigSchema))
	copy(schema, p.ConfigSchema)
	return schema, nil
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateConfig checks cfg against the declared schema for typeName:
// every required field must be present and non-empty.
func (r *Registry) ValidateConfig(typeName string, cfg backend.Config) error {
	schema, err := r.ConfigSchema(typeName)
	if err != nil {
		return err
	}
	for _, field := range schema {
		if !field.Required {
			continue
		}
		if cfg[field.Name] == "" {
			return errors.NewValidation(field.Name, "required by plugin "+typeName)
		}
	}
	return nil
}

// SecretFields returns the names of fields declared secret for typeName.
// Unknown type names yield nil; masking is best-effort on read paths.
func (r *Registry) SecretFields(typeName string) []string {
	schema, err := r.ConfigSchema(typeName)
	if err != nil {
		return nil
	}
	var secrets []string
	for _, field := range schema {
		if field.Secret {
			secrets = append(secrets, field.Name)
		}
	}
	return secrets
}
