// Package storage provides persistence for data sources, triggers and
// trigger groups. Implementations are synchronous repositories with simple
// get/list/upsert/delete semantics; all of them are thread-safe and respect
// context cancellation.
package storage

import (
	"github.com/hansduf/WA-Integrasi-sub000/internal/datasource"
	"github.com/hansduf/WA-Integrasi-sub000/internal/trigger"
)

// Repository is the full persistence surface of the gateway: the
// data-source catalog plus trigger and group records.
type Repository interface {
	datasource.Repository
	trigger.Repository
}
