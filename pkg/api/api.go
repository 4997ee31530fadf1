// Package api defines the public API endpoints and headers for the waq gateway.
package api

// API version
const Version = "0.1.0"

// API endpoints
const (
	EndpointDataSources     = "/api/v1/datasources"
	EndpointTriggers        = "/api/v1/triggers"
	EndpointTriggerNames    = "/api/v1/triggers/names"
	EndpointGroups          = "/api/v1/groups"
	EndpointResolve         = "/api/v1/resolve"
	EndpointMessage         = "/api/v1/message"
	EndpointHealth          = "/health"
	EndpointReady           = "/ready"
)

// HTTP headers
const (
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
)

// Content types
const (
	ContentTypeJSON = "application/json"
)
