// Package errors provides explicit, human-readable error types for the
// integration gateway. Every error carries a reason and, where useful, a
// suggestion so that operators can act on failures without reading code.
package errors

import (
	"errors"
	"fmt"
)

// Kind categorizes an error for HTTP status mapping and retry decisions.
type Kind int

const (
	// KindValidation marks bad or missing input. User-correctable.
	KindValidation Kind = iota + 1

	// KindNotFound marks an unknown data source, trigger or group id.
	KindNotFound

	// KindUnsupportedQuery marks a query string that matches no recognized
	// shape for the target adapter.
	KindUnsupportedQuery

	// KindBackendUnavailable marks a failed connect or reconnect. Retryable.
	KindBackendUnavailable

	// KindQueryExecution marks a query the backend accepted a connection for
	// but then rejected. The backend message is preserved verbatim.
	KindQueryExecution

	// KindAmbiguousName marks two triggers or groups normalizing to the same
	// lookup key.
	KindAmbiguousName

	// KindUnknownPlugin marks a plugin type name with no registered factory.
	KindUnknownPlugin

	// KindAuthFailed marks a missing, invalid or expired credential.
	KindAuthFailed

	// KindAccessDenied marks a valid credential lacking permission for the
	// requested action.
	KindAccessDenied

	// KindInternal marks everything else.
	KindInternal
)

// GatewayError is the base error type. All gateway errors embed it.
type GatewayError struct {
	Kind       Kind
	Message    string
	Reason     string
	Suggestion string
	Cause      error
}

func (e *GatewayError) Error() string {
	msg := e.Message
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// KindOf returns the Kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindInternal
}

// IsKind reports whether err (or anything it wraps) has the given kind.
func IsKind(err error, kind Kind) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Kind == kind
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return IsKind(err, KindValidation) }

// IsAmbiguousName reports whether err is an ambiguous-name error.
func IsAmbiguousName(err error) bool { return IsKind(err, KindAmbiguousName) }

// IsUnsupportedQuery reports whether err is an unsupported-query-format error.
func IsUnsupportedQuery(err error) bool { return IsKind(err, KindUnsupportedQuery) }

// IsBackendUnavailable reports whether err is a backend-unavailable error.
func IsBackendUnavailable(err error) bool { return IsKind(err, KindBackendUnavailable) }

// IsQueryExecution reports whether err is a query-execution error.
func IsQueryExecution(err error) bool { return IsKind(err, KindQueryExecution) }

// IsUnknownPlugin reports whether err is an unknown-plugin-type error.
func IsUnknownPlugin(err error) bool { return IsKind(err, KindUnknownPlugin) }

// IsAuthFailed reports whether err is an authentication error.
func IsAuthFailed(err error) bool { return IsKind(err, KindAuthFailed) }

// IsAccessDenied reports whether err is an authorization error.
func IsAccessDenied(err error) bool { return IsKind(err, KindAccessDenied) }

// NewValidation creates a validation error for a single field.
func NewValidation(field, reason string) *GatewayError {
	return &GatewayError{
		Kind:    KindValidation,
		Message: fmt.Sprintf("invalid field %q", field),
		Reason:  reason,
	}
}

// NewValidationMsg creates a validation error with a free-form message.
func NewValidationMsg(message string) *GatewayError {
	return &GatewayError{
		Kind:    KindValidation,
		Message: message,
	}
}

// NewNotFound creates a not-found error for an entity and id.
func NewNotFound(entity, id string) *GatewayError {
	return &GatewayError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found: %s", entity, id),
	}
}

// NewUnsupportedQueryFormat creates an error for a query string that matches
// no recognized shape for the adapter that received it.
func NewUnsupportedQueryFormat(adapter, reason string) *GatewayError {
	return &GatewayError{
		Kind:       KindUnsupportedQuery,
		Message:    fmt.Sprintf("%s adapter: unsupported query format", adapter),
		Reason:     reason,
		Suggestion: "use a full URL or a SELECT ... FROM POINT statement for time-series sources",
	}
}

// NewBackendUnavailable creates a retryable connectivity error.
func NewBackendUnavailable(dataSourceID string, cause error) *GatewayError {
	return &GatewayError{
		Kind:    KindBackendUnavailable,
		Message: fmt.Sprintf("data source %s unavailable", dataSourceID),
		Cause:   cause,
	}
}

// NewQueryExecution wraps a backend query failure. The backend message stays
// intact as the cause so callers can surface it verbatim.
func NewQueryExecution(dataSourceID string, cause error) *GatewayError {
	return &GatewayError{
		Kind:    KindQueryExecution,
		Message: fmt.Sprintf("query failed on data source %s", dataSourceID),
		Cause:   cause,
	}
}

// NewAmbiguousName creates an error for a name that collides with an existing
// trigger, alias or group after normalization.
func NewAmbiguousName(name, existing string) *GatewayError {
	return &GatewayError{
		Kind:       KindAmbiguousName,
		Message:    fmt.Sprintf("ambiguous name %q", name),
		Reason:     fmt.Sprintf("normalizes to the same key as existing %q", existing),
		Suggestion: "pick a name that stays unique after lower-casing and whitespace removal",
	}
}

// NewUnknownPluginType creates an error for an unregistered plugin type name.
func NewUnknownPluginType(typeName string) *GatewayError {
	return &GatewayError{
		Kind:       KindUnknownPlugin,
		Message:    fmt.Sprintf("unknown plugin type %q", typeName),
		Suggestion: "register the plugin factory before creating data sources of this type",
	}
}

// NewAuthFailed creates an authentication error.
func NewAuthFailed(reason string) *GatewayError {
	return &GatewayError{
		Kind:       KindAuthFailed,
		Message:    "authentication failed",
		Reason:     reason,
		Suggestion: "supply a valid bearer token in the Authorization header",
	}
}

// NewAuthExpired creates an error for an expired credential.
func NewAuthExpired() *GatewayError {
	return &GatewayError{
		Kind:    KindAuthFailed,
		Message: "authentication expired",
		Reason:  "the supplied token is no longer valid",
	}
}

// NewAccessDenied creates an authorization error for an action the caller's
// roles do not grant.
func NewAccessDenied(action, detail string) *GatewayError {
	return &GatewayError{
		Kind:    KindAccessDenied,
		Message: fmt.Sprintf("access denied for action %q", action),
		Reason:  detail,
	}
}

// NewInternal wraps an unexpected failure with operation context.
func NewInternal(op string, cause error) *GatewayError {
	return &GatewayError{
		Kind:    KindInternal,
		Message: op + " failed",
		Cause:   cause,
	}
}
