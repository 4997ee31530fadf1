package trigger

import (
	"context"
	"strings"
	"time"
	"unicode"
)

// Type discriminates how a trigger executes.
type Type string

const (
	// TypeSimpleQuery runs one templated query against its data source.
	TypeSimpleQuery Type = "SIMPLE_QUERY"

	// TypeComposite runs a fixed ordered list of child triggers by name.
	TypeComposite Type = "COMPOSITE"

	// TypeGroupRef delegates to a trigger group.
	TypeGroupRef Type = "GROUP_REF"
)

// ExecutionMode controls how a group runs its members.
type ExecutionMode string

const (
	ModeParallel   ExecutionMode = "parallel"
	ModeSequential ExecutionMode = "sequential"
)

// Trigger is a named, parameterized query bound to one data source and
// invoked by text matching.
type Trigger struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
	Type    Type     `json:"type"`

	DataSourceID string `json:"dataSourceId,omitempty"`

	// QueryTemplate may embed {table}, {sortColumn} and {tag} placeholders,
	// or hold time-series pseudo-SQL / a preset token.
	QueryTemplate string `json:"queryTemplate,omitempty"`

	// Substitution sources for the template placeholders.
	Table      string `json:"table,omitempty"`
	SortColumn string `json:"sortColumn,omitempty"`
	Tag        string `json:"tag,omitempty"`

	// Interval is an optional window token such as "1h" or "24h",
	// forwarded to time-series adapters.
	Interval string `json:"interval,omitempty"`

	// Children are child trigger names, in order. Composite only.
	Children []string `json:"children,omitempty"`

	// GroupID references the group to run. Group-ref only.
	GroupID string `json:"groupId,omitempty"`

	Description    string `json:"description,omitempty"`
	ResponsePrefix string `json:"responsePrefix,omitempty"`
	Active         bool   `json:"active"`

	UsageCount int64     `json:"usageCount"`
	LastUsedAt time.Time `json:"lastUsedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Names returns the trigger's name and aliases.
func (t *Trigger) Names() []string {
	names := make([]string, 0, len(t.Aliases)+1)
	names = append(names, t.Name)
	names = append(names, t.Aliases...)
	return names
}

// Clone returns a deep copy.
func (t *Trigger) Clone() *Trigger {
	dst := *t
	dst.Aliases = append([]string(nil), t.Aliases...)
	dst.Children = append([]string(nil), t.Children...)
	return &dst
}

// Group is an administrative grouping that executes multiple triggers
// together with a tally of outcomes.
type Group struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	ExecutionMode ExecutionMode `json:"executionMode"`

	// MemberTriggerIDs is ordered; order matters in sequential mode.
	MemberTriggerIDs []string `json:"memberTriggerIds"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy.
func (g *Group) Clone() *Group {
	dst := *g
	dst.MemberTriggerIDs = append([]string(nil), g.MemberTriggerIDs...)
	return &dst
}

// Normalize lower-cases s and strips all whitespace. Trigger names, aliases
// and group names are compared only through this form.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Repository is the persistence the store needs. Implementations live in
// internal/storage.
type Repository interface {
	GetTrigger(ctx context.Context, id string) (*Trigger, error)
	ListTriggers(ctx context.Context) ([]*Trigger, error)
	SaveTrigger(ctx context.Context, t *Trigger) error
	DeleteTrigger(ctx context.Context, id string) error

	GetGroup(ctx context.Context, id string) (*Group, error)
	ListGroups(ctx context.Context) ([]*Group, error)
	SaveGroup(ctx context.Context, g *Group) error
	DeleteGroup(ctx context.Context, id string) error
}
