package trigger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hansduf/WA-Integrasi-sub000/internal/audit"
	"github.com/hansduf/WA-Integrasi-sub000/internal/backend"
	"github.com/hansduf/WA-Integrasi-sub000/internal/datasource"
	"github.com/hansduf/WA-Integrasi-sub000/internal/errors"
)

// Defaults carries fallback execution parameters applied when a trigger
// leaves them unset.
type Defaults struct {
	// Interval is the window token forwarded to time-series sources.
	Interval string

	// MaxDisplayRows caps how many rows a reply renders.
	MaxDisplayRows int
}

func (d Defaults) withDefaults() Defaults {
	if d.Interval == "" {
		d.Interval = "1h"
	}
	if d.MaxDisplayRows <= 0 {
		d.MaxDisplayRows = 10
	}
	return d
}

// Resolution is the outcome of matching an incoming message against the
// trigger namespace. A miss is a normal resolution, not an error.
type Resolution struct {
	Matched bool     `json:"matched"`
	Trigger *Trigger `json:"trigger,omitempty"`
	Group   *Group   `json:"group,omitempty"`
}

// Result is the outcome of executing one trigger or group.
type Result struct {
	TriggerID string `json:"triggerId,omitempty"`
	GroupID   string `json:"groupId,omitempty"`
	Name      string `json:"name"`
	Success   bool   `json:"success"`

	// Body is the human-readable reply text.
	Body string `json:"body"`

	// Succeeded and Failed tally member outcomes for group execution.
	Succeeded int `json:"succeeded,omitempty"`
	Failed    int `json:"failed,omitempty"`
}

// Engine resolves incoming message text to triggers and executes them
// against the data-source layer.
type Engine struct {
	store    *Store
	sources  *datasource.Manager
	defaults Defaults
	recorder audit.Recorder
}

// NewEngine creates a trigger engine.
func NewEngine(store *Store, sources *datasource.Manager, defaults Defaults, recorder audit.Recorder) *Engine {
	return &Engine{
		store:    store,
		sources:  sources,
		defaults: defaults.withDefaults(),
		recorder: recorder,
	}
}

// Resolve matches message text against the namespace: trigger names and
// aliases first, then group names. Inactive triggers do not resolve. No
// match returns Matched=false with a nil error.
func (e *Engine) Resolve(ctx context.Context, text string) (*Resolution, error) {
	t, err := e.store.FindByName(ctx, text)
	if err == nil {
		if !t.Active {
			return &Resolution{}, nil
		}
		return &Resolution{Matched: true, Trigger: t}, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}

	g, err := e.store.FindGroupByName(ctx, text)
	if err == nil {
		return &Resolution{Matched: true, Group: g}, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}
	return &Resolution{}, nil
}

// HandleMessage resolves and executes in one step. An unmatched message
// returns a nil result and nil error.
func (e *Engine) HandleMessage(ctx context.Context, text string) (*Result, error) {
	res, err := e.Resolve(ctx, text)
	if err != nil {
		return nil, err
	}
	if !res.Matched {
		return nil, nil
	}
	if res.Group != nil {
		return e.ExecuteGroup(ctx, res.Group)
	}
	return e.Execute(ctx, res.Trigger)
}

// Execute runs a resolved trigger by type.
func (e *Engine) Execute(ctx context.Context, t *Trigger) (*Result, error) {
	switch t.Type {
	case TypeSimpleQuery:
		result := e.ExecuteSingleTrigger(ctx, t)
		e.audit(ctx, result)
		return result, nil
	case TypeComposite:
		result := e.executeComposite(ctx, t)
		e.audit(ctx, result)
		return result, nil
	case TypeGroupRef:
		g, err := e.store.GetGroup(ctx, t.GroupID)
		if err != nil {
			return nil, err
		}
		return e.ExecuteGroup(ctx, g)
	default:
		return nil, errors.NewValidation("type", "unknown trigger type "+string(t.Type))
	}
}

// ExecuteSingleTrigger is the one execution path shared by direct
// invocation, composite children and group members. Failures come back in
// the result, never as an error.
func (e *Engine) ExecuteSingleTrigger(ctx context.Context, t *Trigger) *Result {
	result := &Result{TriggerID: t.ID, Name: t.Name}
	if !t.Active {
		result.Body = "trigger is inactive"
		return result
	}
	if t.Type == TypeComposite {
		return e.executeComposite(ctx, t)
	}
	if t.Type == TypeGroupRef {
		g, err := e.store.GetGroup(ctx, t.GroupID)
		if err != nil {
			result.Body = err.Error()
			return result
		}
		nested, err := e.ExecuteGroup(ctx, g)
		if err != nil {
			result.Body = err.Error()
			return result
		}
		nested.TriggerID = t.ID
		return nested
	}

	query, params, err := e.buildQuery(ctx, t)
	if err != nil {
		result.Body = err.Error()
		return result
	}

	qr, err := e.sources.ExecuteQuery(ctx, t.DataSourceID, query, params)
	if err != nil {
		result.Body = err.Error()
		return result
	}

	e.store.RecordUsage(ctx, t.ID)
	result.Success = true
	result.Body = formatReply(t.ResponsePrefix, qr, e.defaults.MaxDisplayRows)
	return result
}

// buildQuery substitutes the {table}, {sortColumn} and {tag} placeholders
// and assembles the query parameters. The tag falls back to the data
// source's default; substituted identifiers are checked against the
// cached schema when one is known.
func (e *Engine) buildQuery(ctx context.Context, t *Trigger) (string, backend.Params, error) {
	tag := t.Tag
	if tag == "" && strings.Contains(t.QueryTemplate, "{tag}") {
		fallback, err := e.sources.DefaultTag(ctx, t.DataSourceID)
		if err != nil {
			return "", nil, err
		}
		tag = fallback
	}

	query := t.QueryTemplate
	query = strings.ReplaceAll(query, "{table}", t.Table)
	query = strings.ReplaceAll(query, "{sortColumn}", t.SortColumn)
	query = strings.ReplaceAll(query, "{tag}", tag)

	if t.Table != "" || t.SortColumn != "" {
		if err := e.checkSchema(ctx, t); err != nil {
			return "", nil, err
		}
	}

	params := backend.Params{}
	interval := t.Interval
	if interval == "" {
		interval = e.defaults.Interval
	}
	params["interval"] = interval
	if tag != "" {
		params["tag"] = tag
	}
	return query, params, nil
}

// checkSchema validates the trigger's table and sort column against the
// data source's schema. An empty schema (discovery unavailable and no
// cached copy) skips validation rather than blocking execution.
func (e *Engine) checkSchema(ctx context.Context, t *Trigger) error {
	sr, err := e.sources.DiscoverSchema(ctx, t.DataSourceID)
	if err != nil || sr.Schema == nil || len(sr.Schema.Tables) == 0 {
		return nil
	}
	if t.Table != "" && !sr.Schema.HasTable(t.Table) {
		return errors.NewValidation("table", fmt.Sprintf("table %q not found in data source schema", t.Table))
	}
	if t.Table != "" && t.SortColumn != "" && !sr.Schema.HasColumn(t.Table, t.SortColumn) {
		return errors.NewValidation("sortColumn", fmt.Sprintf("column %q not found in table %q", t.SortColumn, t.Table))
	}
	return nil
}

// executeComposite runs the ordered children by name. A failing child
// renders as an inline failure line; the composite itself always reports
// success.
func (e *Engine) executeComposite(ctx context.Context, t *Trigger) *Result {
	var b strings.Builder
	if t.ResponsePrefix != "" {
		b.WriteString(t.ResponsePrefix)
		b.WriteString("\n\n")
	}
	for i, childName := range t.Children {
		if i > 0 {
			b.WriteString("\n\n")
		}
		child, err := e.store.FindByName(ctx, childName)
		if err != nil {
			fmt.Fprintf(&b, "❌ %s: %s", childName, err.Error())
			continue
		}
		r := e.ExecuteSingleTrigger(ctx, child)
		if !r.Success {
			fmt.Fprintf(&b, "❌ %s: %s", childName, r.Body)
			continue
		}
		fmt.Fprintf(&b, "✅ %s\n%s", child.Name, r.Body)
	}
	return &Result{TriggerID: t.ID, Name: t.Name, Success: true, Body: b.String()}
}

// ExecuteGroup runs every member per the group's execution mode, tallying
// outcomes. A dangling or inactive member counts as one failure.
func (e *Engine) ExecuteGroup(ctx context.Context, g *Group) (*Result, error) {
	results := make([]*Result, len(g.MemberTriggerIDs))

	runMember := func(i int, id string) {
		member, err := e.store.GetTrigger(ctx, id)
		if err != nil {
			results[i] = &Result{TriggerID: id, Name: id, Body: err.Error()}
			return
		}
		results[i] = e.ExecuteSingleTrigger(ctx, member)
	}

	if g.ExecutionMode == ModeParallel {
		var wg sync.WaitGroup
		for i, id := range g.MemberTriggerIDs {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				runMember(i, id)
			}(i, id)
		}
		wg.Wait()
	} else {
		for i, id := range g.MemberTriggerIDs {
			runMember(i, id)
		}
	}

	var b strings.Builder
	succeeded, failed := 0, 0
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if r.Success {
			succeeded++
			fmt.Fprintf(&b, "✅ %s\n%s", r.Name, r.Body)
		} else {
			failed++
			fmt.Fprintf(&b, "❌ %s: %s", r.Name, r.Body)
		}
	}

	header := fmt.Sprintf("%s: %d succeeded, %d failed", g.Name, succeeded, failed)
	result := &Result{
		GroupID: g.ID, Name: g.Name, Success: true,
		Body:      header + "\n\n" + b.String(),
		Succeeded: succeeded, Failed: failed,
	}
	e.audit(ctx, result)
	return result, nil
}

func (e *Engine) audit(ctx context.Context, r *Result) {
	outcome := "failure"
	if r.Success {
		outcome = "success"
	}
	entity := r.TriggerID
	if entity == "" {
		entity = r.GroupID
	}
	audit.Emit(ctx, e.recorder, audit.Event{
		Type: audit.EventTriggerExecuted, EntityID: entity, Outcome: outcome,
		Detail: map[string]string{"name": r.Name},
	})
}
