package cli

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hansduf/WA-Integrasi-sub000/pkg/models"
)

func (c *CLI) newTriggerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Trigger administration",
		Long:  `Manage triggers - the named queries invoked by chat messages.`,
	}

	cmd.AddCommand(c.newTriggerRegisterCmd())
	cmd.AddCommand(c.newTriggerListCmd())
	cmd.AddCommand(c.newTriggerDeleteNameCmd())

	return cmd
}

// triggerDefinition is the YAML shape of a trigger file.
type triggerDefinition struct {
	Name           string   `yaml:"name"`
	Aliases        []string `yaml:"aliases,omitempty"`
	Type           string   `yaml:"type"`
	DataSourceID   string   `yaml:"dataSourceId,omitempty"`
	QueryTemplate  string   `yaml:"queryTemplate,omitempty"`
	Table          string   `yaml:"table,omitempty"`
	SortColumn     string   `yaml:"sortColumn,omitempty"`
	Tag            string   `yaml:"tag,omitempty"`
	Interval       string   `yaml:"interval,omitempty"`
	Children       []string `yaml:"children,omitempty"`
	GroupID        string   `yaml:"groupId,omitempty"`
	Description    string   `yaml:"description,omitempty"`
	ResponsePrefix string   `yaml:"responsePrefix,omitempty"`
}

func (c *CLI) newTriggerRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <file.yaml>",
		Short: "Register a trigger",
		Long: `Register a trigger from a YAML definition file.

Example file:
  name: latest temp
  aliases: [suhu terkini]
  type: SIMPLE_QUERY
  dataSourceId: 6f2c...
  queryTemplate: SELECT * FROM {table} ORDER BY {sortColumn} DESC LIMIT 1
  table: sensor_data
  sortColumn: ts
  responsePrefix: Current plant temperature`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTriggerRegister(args[0])
		},
	}
}

func (c *CLI) runTriggerRegister(filePath string) error {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}

	var def triggerDefinition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		c.errorf("Error: invalid definition file: %v\n", err)
		return err
	}

	client := c.newGatewayClient()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created, err := client.CreateTrigger(ctx, models.TriggerRequest{
		Name:           def.Name,
		Aliases:        def.Aliases,
		Type:           def.Type,
		DataSourceID:   def.DataSourceID,
		QueryTemplate:  def.QueryTemplate,
		Table:          def.Table,
		SortColumn:     def.SortColumn,
		Tag:            def.Tag,
		Interval:       def.Interval,
		Children:       def.Children,
		GroupID:        def.GroupID,
		Description:    def.Description,
		ResponsePrefix: def.ResponsePrefix,
	})
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}

	if c.jsonOutput {
		return printJSON(created)
	}
	c.printf("Registered trigger %s\n", def.Name)
	return nil
}

func (c *CLI) newTriggerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered triggers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTriggerList()
		},
	}
}

func (c *CLI) runTriggerList() error {
	client := c.newGatewayClient()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	triggers, err := client.ListTriggers(ctx)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}
	return printJSON(triggers)
}

func (c *CLI) newTriggerDeleteNameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-name <name>",
		Short: "Delete one trigger name or alias",
		Long: `Remove one name from the trigger namespace. When the trigger still has
other names, only the given name is removed; removing a trigger's last
name deletes the trigger.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTriggerDeleteName(args[0])
		},
	}
}

func (c *CLI) runTriggerDeleteName(name string) error {
	client := c.newGatewayClient()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.DeleteTriggerName(ctx, name); err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}
	c.printf("Deleted name %q\n", name)
	return nil
}

func (c *CLI) newGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Trigger group administration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List trigger groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := c.newGatewayClient()
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			groups, err := client.ListGroups(ctx)
			if err != nil {
				c.errorf("Error: %v\n", err)
				return err
			}
			return printJSON(groups)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "execute <id>",
		Short: "Execute every member of a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := c.newGatewayClient()
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			result, err := client.ExecuteGroup(ctx, args[0])
			if err != nil {
				c.errorf("Error: %v\n", err)
				return err
			}
			if c.jsonOutput {
				return printJSON(result)
			}
			c.println(result.Body)
			return nil
		},
	})

	return cmd
}
