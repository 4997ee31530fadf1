// Package bootstrap provides declarative system initialization. A single
// YAML file defines data sources, triggers, groups and role grants, and
// is validated before anything is applied.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hansduf/WA-Integrasi-sub000/internal/auth"
	"github.com/hansduf/WA-Integrasi-sub000/internal/datasource"
	"github.com/hansduf/WA-Integrasi-sub000/internal/errors"
	"github.com/hansduf/WA-Integrasi-sub000/internal/trigger"
)

// Config is the declarative bootstrap file.
type Config struct {
	// DataSources to register, keyed by a stable id.
	DataSources map[string]DataSourceConfig `yaml:"dataSources,omitempty"`

	// Triggers to register, keyed by primary name.
	Triggers map[string]TriggerConfig `yaml:"triggers,omitempty"`

	// Groups to register, keyed by group name.
	Groups map[string]GroupConfig `yaml:"groups,omitempty"`

	// Roles maps role names to granted actions.
	Roles map[string][]string `yaml:"roles,omitempty"`

	// validated tracks if Validate() has been called
	validated bool
}

// DataSourceConfig declares one data source.
type DataSourceConfig struct {
	DisplayName string            `yaml:"displayName"`
	PluginType  string            `yaml:"pluginType"`
	Dialect     string            `yaml:"dialect,omitempty"`
	Connection  map[string]string `yaml:"connection"`
}

// TriggerConfig declares one trigger.
type TriggerConfig struct {
	Aliases        []string `yaml:"aliases,omitempty"`
	Type           string   `yaml:"type"`
	DataSourceID   string   `yaml:"dataSourceId,omitempty"`
	QueryTemplate  string   `yaml:"queryTemplate,omitempty"`
	Table          string   `yaml:"table,omitempty"`
	SortColumn     string   `yaml:"sortColumn,omitempty"`
	Tag            string   `yaml:"tag,omitempty"`
	Interval       string   `yaml:"interval,omitempty"`
	Children       []string `yaml:"children,omitempty"`
	Group          string   `yaml:"group,omitempty"`
	Description    string   `yaml:"description,omitempty"`
	ResponsePrefix string   `yaml:"responsePrefix,omitempty"`
}

// GroupConfig declares one trigger group. Members reference trigger keys
// from the Triggers section.
type GroupConfig struct {
	ExecutionMode string   `yaml:"executionMode,omitempty"`
	Members       []string `yaml:"members"`
}

// LoadFile reads and parses a bootstrap file.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bootstrap file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse bootstrap file: %w", err)
	}
	return &cfg, nil
}

var knownActions = map[string]auth.Action{
	string(auth.ActionManageDataSources): auth.ActionManageDataSources,
	string(auth.ActionManageTriggers):    auth.ActionManageTriggers,
	string(auth.ActionQuery):             auth.ActionQuery,
	string(auth.ActionResolve):           auth.ActionResolve,
}

// Validate checks internal consistency before anything is applied.
func (c *Config) Validate() error {
	for id, ds := range c.DataSources {
		if ds.PluginType == "" {
			return errors.NewValidation("dataSources."+id+".pluginType", "required")
		}
		if ds.DisplayName == "" {
			return errors.NewValidation("dataSources."+id+".displayName", "required")
		}
	}

	for name, t := range c.Triggers {
		switch trigger.Type(t.Type) {
		case trigger.TypeSimpleQuery:
			if t.DataSourceID == "" {
				return errors.NewValidation("triggers."+name+".dataSourceId", "required")
			}
			if _, ok := c.DataSources[t.DataSourceID]; !ok {
				return errors.NewValidation("triggers."+name+".dataSourceId",
					fmt.Sprintf("unknown data source %q", t.DataSourceID))
			}
		case trigger.TypeComposite:
			for _, child := range t.Children {
				if _, ok := c.Triggers[child]; !ok {
					return errors.NewValidation("triggers."+name+".children",
						fmt.Sprintf("unknown child trigger %q", child))
				}
			}
		case trigger.TypeGroupRef:
			if _, ok := c.Groups[t.Group]; !ok {
				return errors.NewValidation("triggers."+name+".group",
					fmt.Sprintf("unknown group %q", t.Group))
			}
		default:
			return errors.NewValidation("triggers."+name+".type", "unknown trigger type "+t.Type)
		}
	}

	for name, g := range c.Groups {
		for _, member := range g.Members {
			if _, ok := c.Triggers[member]; !ok {
				return errors.NewValidation("groups."+name+".members",
					fmt.Sprintf("unknown member trigger %q", member))
			}
		}
	}

	for role, actions := range c.Roles {
		for _, action := range actions {
			if _, ok := knownActions[action]; !ok {
				return errors.NewValidation("roles."+role,
					fmt.Sprintf("unknown action %q", action))
			}
		}
	}

	c.validated = true
	return nil
}

// Apply pushes the declared state into the running system. Existing
// records with the same ids are left untouched; bootstrap is a seed, not
// a reconciliation loop.
func (c *Config) Apply(ctx context.Context, sources *datasource.Manager, triggers *trigger.Store, authz *auth.AuthorizationService) error {
	if !c.validated {
		if err := c.Validate(); err != nil {
			return err
		}
	}

	for id, ds := range c.DataSources {
		if _, err := sources.GetDataSource(ctx, id); err == nil {
			continue
		}
		_, err := sources.AddDataSource(ctx, &datasource.Config{
			ID:          id,
			DisplayName: ds.DisplayName,
			PluginType:  ds.PluginType,
			Dialect:     ds.Dialect,
			Connection:  ds.Connection,
		})
		if err != nil {
			return fmt.Errorf("bootstrap data source %s: %w", id, err)
		}
	}

	triggerIDs := make(map[string]string, len(c.Triggers))
	var applyTrigger func(name string) error
	applyTrigger = func(name string) error {
		if _, done := triggerIDs[name]; done {
			return nil
		}
		def := c.Triggers[name]

		// Children first so composites reference existing names.
		for _, child := range def.Children {
			if err := applyTrigger(child); err != nil {
				return err
			}
		}

		if existing, err := triggers.FindByName(ctx, name); err == nil {
			triggerIDs[name] = existing.ID
			return nil
		}
		created, err := triggers.CreateTrigger(ctx, &trigger.Trigger{
			Name:           name,
			Aliases:        def.Aliases,
			Type:           trigger.Type(def.Type),
			DataSourceID:   def.DataSourceID,
			QueryTemplate:  def.QueryTemplate,
			Table:          def.Table,
			SortColumn:     def.SortColumn,
			Tag:            def.Tag,
			Interval:       def.Interval,
			Children:       def.Children,
			Description:    def.Description,
			ResponsePrefix: def.ResponsePrefix,
			Active:         true,
		})
		if err != nil {
			return fmt.Errorf("bootstrap trigger %s: %w", name, err)
		}
		triggerIDs[name] = created.ID
		return nil
	}

	// Group-ref triggers need their group's id; create plain triggers
	// first, then groups, then group-refs.
	for name, def := range c.Triggers {
		if trigger.Type(def.Type) == trigger.TypeGroupRef {
			continue
		}
		if err := applyTrigger(name); err != nil {
			return err
		}
	}

	groupIDs := make(map[string]string, len(c.Groups))
	for name, def := range c.Groups {
		if existing, err := triggers.FindGroupByName(ctx, name); err == nil {
			groupIDs[name] = existing.ID
			continue
		}
		members := make([]string, 0, len(def.Members))
		for _, member := range def.Members {
			members = append(members, triggerIDs[member])
		}
		created, err := triggers.CreateGroup(ctx, &trigger.Group{
			Name:             name,
			ExecutionMode:    trigger.ExecutionMode(def.ExecutionMode),
			MemberTriggerIDs: members,
		})
		if err != nil {
			return fmt.Errorf("bootstrap group %s: %w", name, err)
		}
		groupIDs[name] = created.ID
	}

	for name, def := range c.Triggers {
		if trigger.Type(def.Type) != trigger.TypeGroupRef {
			continue
		}
		if _, err := triggers.FindByName(ctx, name); err == nil {
			continue
		}
		_, err := triggers.CreateTrigger(ctx, &trigger.Trigger{
			Name:           name,
			Aliases:        def.Aliases,
			Type:           trigger.TypeGroupRef,
			GroupID:        groupIDs[def.Group],
			Description:    def.Description,
			ResponsePrefix: def.ResponsePrefix,
			Active:         true,
		})
		if err != nil {
			return fmt.Errorf("bootstrap trigger %s: %w", name, err)
		}
	}

	if authz != nil {
		for role, actions := range c.Roles {
			for _, action := range actions {
				authz.GrantAction(role, knownActions[action])
			}
		}
	}

	return nil
}
