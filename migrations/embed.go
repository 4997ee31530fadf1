// Package migrations provides the embedded schema migration files applied
// by the gateway at startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
