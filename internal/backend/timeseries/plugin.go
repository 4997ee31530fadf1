package timeseries

import "github.com/hansduf/WA-Integrasi-sub000/internal/plugin"

// ConfigSchema declares the connection fields a time-series data source
// takes. Either apiKey or username/password must be set; that is checked
// at connect time, not here.
func ConfigSchema() []plugin.FieldDescriptor {
	return []plugin.FieldDescriptor{
		{Name: "apiUrl", Type: "string", Required: true},
		{Name: "apiKey", Type: "string", Required: false, Secret: true},
		{Name: "username", Type: "string", Required: false},
		{Name: "password", Type: "string", Required: false, Secret: true},
		{Name: "timeoutSeconds", Type: "int", Required: false, Default: "15"},
		{Name: "defaultTag", Type: "string", Required: false},
	}
}

// Descriptor bundles the factory and schema for registry registration.
func Descriptor() plugin.Plugin {
	return plugin.Plugin{New: New, ConfigSchema: ConfigSchema()}
}
