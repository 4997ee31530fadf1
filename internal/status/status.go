// Package status provides operational status reporting for the waq
// gateway without a dashboard dependency.
package status

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hansduf/WA-Integrasi-sub000/internal/audit"
	"github.com/hansduf/WA-Integrasi-sub000/internal/datasource"
	"github.com/hansduf/WA-Integrasi-sub000/internal/trigger"
)

// StatusResult represents the result of a status check.
type StatusResult struct {
	Ready                bool   `json:"ready"`
	Reason               string `json:"reason,omitempty"`
	RepositoryHealth     string `json:"repository_health"`
	DataSourcesTotal     int    `json:"data_sources_total"`
	DataSourcesConnected int    `json:"data_sources_connected"`
	TriggersTotal        int    `json:"triggers_total"`
	TriggersActive       int    `json:"triggers_active"`
	Version              string `json:"version"`
}

// StatusChecker provides status checking functionality.
type StatusChecker interface {
	GetStatus(ctx context.Context) (*StatusResult, error)
}

// ConnectivityChecker reports whether the catalog store is reachable.
type ConnectivityChecker interface {
	CheckConnectivity(ctx context.Context) error
}

// Checker aggregates repository, data source and trigger state into one
// status result.
type Checker struct {
	repo     ConnectivityChecker
	sources  *datasource.Manager
	triggers *trigger.Store
	version  string
}

// NewChecker creates a gateway status checker. repo may be nil for
// in-memory deployments.
func NewChecker(repo ConnectivityChecker, sources *datasource.Manager, triggers *trigger.Store, version string) *Checker {
	return &Checker{repo: repo, sources: sources, triggers: triggers, version: version}
}

// GetStatus implements StatusChecker.
func (c *Checker) GetStatus(ctx context.Context) (*StatusResult, error) {
	result := &StatusResult{Ready: true, RepositoryHealth: "connected", Version: c.version}

	if c.repo != nil {
		if err := c.repo.CheckConnectivity(ctx); err != nil {
			result.Ready = false
			result.RepositoryHealth = err.Error()
			result.Reason = "repository not ready: " + err.Error()
		}
	}

	configs, err := c.sources.ListDataSources(ctx)
	if err != nil {
		result.Ready = false
		if result.Reason == "" {
			result.Reason = "data source listing failed: " + err.Error()
		}
		return result, nil
	}
	result.DataSourcesTotal = len(configs)
	for _, cfg := range configs {
		if cfg.ConnectionStatus == datasource.StatusConnected {
			result.DataSourcesConnected++
		}
	}

	triggers, err := c.triggers.ListTriggers(ctx)
	if err != nil {
		result.Ready = false
		if result.Reason == "" {
			result.Reason = "trigger listing failed: " + err.Error()
		}
		return result, nil
	}
	result.TriggersTotal = len(triggers)
	for _, t := range triggers {
		if t.Active {
			result.TriggersActive++
		}
	}

	return result, nil
}

// ExecutionStat counts outcomes for one trigger name.
type ExecutionStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// UsageSummary aggregates execution outcomes. Only aggregates are
// exposed; no message or row content is retained.
type UsageSummary struct {
	Executed    int             `json:"executed"`
	Failed      int             `json:"failed"`
	QueriesRun  int             `json:"queries_run"`
	TopTriggers []ExecutionStat `json:"top_triggers"`
}

// String returns a safe string representation without sensitive data.
func (s *UsageSummary) String() string {
	var sb strings.Builder
	sb.WriteString("Execution Summary:\n")
	sb.WriteString(fmt.Sprintf("  Executed: %d\n", s.Executed))
	sb.WriteString(fmt.Sprintf("  Failed: %d\n", s.Failed))
	sb.WriteString(fmt.Sprintf("  Queries run: %d\n", s.QueriesRun))

	if len(s.TopTriggers) > 0 {
		sb.WriteString("Top Triggers:\n")
		for _, t := range s.TopTriggers {
			sb.WriteString(fmt.Sprintf("  - %s: %d\n", t.Name, t.Count))
		}
	}

	return sb.String()
}

// SummaryRecorder is an audit.Recorder that keeps running aggregates for
// the status endpoint. It wraps an inner recorder so events still reach
// their primary sink.
type SummaryRecorder struct {
	inner audit.Recorder

	mu       sync.RWMutex
	executed int
	failed   int
	queries  int
	byName   map[string]int
}

// NewSummaryRecorder creates a summary recorder over an inner sink.
// inner may be nil.
func NewSummaryRecorder(inner audit.Recorder) *SummaryRecorder {
	return &SummaryRecorder{inner: inner, byName: make(map[string]int)}
}

// Record implements audit.Recorder.
func (r *SummaryRecorder) Record(ctx context.Context, event audit.Event) error {
	r.mu.Lock()
	switch event.Type {
	case audit.EventTriggerExecuted:
		r.executed++
		if event.Outcome != "success" {
			r.failed++
		}
		if name := event.Detail["name"]; name != "" {
			r.byName[name]++
		}
	case audit.EventQueryExecuted:
		r.queries++
	}
	r.mu.Unlock()

	if r.inner == nil {
		return nil
	}
	return r.inner.Record(ctx, event)
}

// Summary returns the current aggregates, top triggers capped at 5.
func (r *SummaryRecorder) Summary() *UsageSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summary := &UsageSummary{Executed: r.executed, Failed: r.failed, QueriesRun: r.queries}
	for name, count := range r.byName {
		summary.TopTriggers = append(summary.TopTriggers, ExecutionStat{Name: name, Count: count})
	}
	sort.Slice(summary.TopTriggers, func(i, j int) bool {
		if summary.TopTriggers[i].Count != summary.TopTriggers[j].Count {
			return summary.TopTriggers[i].Count > summary.TopTriggers[j].Count
		}
		return summary.TopTriggers[i].Name < summary.TopTriggers[j].Name
	})
	if len(summary.TopTriggers) > 5 {
		summary.TopTriggers = summary.TopTriggers[:5]
	}
	return summary
}
