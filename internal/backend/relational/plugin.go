package relational

import "github.com/hansduf/WA-Integrasi-sub000/internal/plugin"

// ConfigSchema declares the connection fields a relational data source
// takes. The password is the only secret field.
func ConfigSchema() []plugin.FieldDescriptor {
	return []plugin.FieldDescriptor{
		{Name: "dialect", Type: "string", Required: true},
		{Name: "host", Type: "string", Required: true},
		{Name: "port", Type: "string", Required: false},
		{Name: "username", Type: "string", Required: true},
		{Name: "password", Type: "string", Required: true, Secret: true},
		{Name: "database", Type: "string", Required: false},
		{Name: "service", Type: "string", Required: false},
		{Name: "maxOpenConns", Type: "int", Required: false, Default: "10"},
		{Name: "maxIdleConns", Type: "int", Required: false, Default: "5"},
		{Name: "maxRows", Type: "int", Required: false, Default: "500"},
	}
}

// Descriptor bundles the factory and schema for registry registration.
func Descriptor() plugin.Plugin {
	return plugin.Plugin{New: New, ConfigSchema: ConfigSchema()}
}
