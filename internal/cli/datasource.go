package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hansduf/WA-Integrasi-sub000/pkg/models"
)

func (c *CLI) newDataSourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "datasource",
		Aliases: []string{"ds"},
		Short:   "Data source catalog management",
		Long:    `Manage the data source catalog - the backends triggers query against.`,
	}

	cmd.AddCommand(c.newDataSourceRegisterCmd())
	cmd.AddCommand(c.newDataSourceListCmd())
	cmd.AddCommand(c.newDataSourceDescribeCmd())
	cmd.AddCommand(c.newDataSourceTestCmd())
	cmd.AddCommand(c.newDataSourceSchemaCmd())
	cmd.AddCommand(c.newDataSourceDeleteCmd())

	return cmd
}

// dataSourceDefinition is the YAML shape of a data source file.
type dataSourceDefinition struct {
	DisplayName string            `yaml:"displayName"`
	PluginType  string            `yaml:"pluginType"`
	Dialect     string            `yaml:"dialect,omitempty"`
	Connection  map[string]string `yaml:"connection"`
}

func (c *CLI) newDataSourceRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <file.yaml>",
		Short: "Register a data source",
		Long: `Register a data source from a YAML definition file.

Example file (relational):
  displayName: Production MySQL
  pluginType: relational
  dialect: mysql
  connection:
    host: db.internal
    port: "3306"
    username: reader
    password: s3cret
    database: plant

Example file (time-series):
  displayName: Plant Historian
  pluginType: timeseries
  connection:
    apiUrl: https://historian.internal/api
    apiKey: s3cret
    defaultTag: TEMP_01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDataSourceRegister(args[0])
		},
	}
}

func (c *CLI) runDataSourceRegister(filePath string) error {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}

	var def dataSourceDefinition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		c.errorf("Error: invalid definition file: %v\n", err)
		return err
	}

	client := c.newGatewayClient()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created, err := client.CreateDataSource(ctx, models.DataSourceRequest{
		DisplayName: def.DisplayName,
		PluginType:  def.PluginType,
		Dialect:     def.Dialect,
		Connection:  def.Connection,
	})
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}

	if c.jsonOutput {
		return printJSON(created)
	}
	c.printf("Registered data source %s (%s)\n", created.DisplayName, created.ID)
	return nil
}

func (c *CLI) newDataSourceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered data sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDataSourceList()
		},
	}
}

func (c *CLI) runDataSourceList() error {
	client := c.newGatewayClient()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sources, err := client.ListDataSources(ctx)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}

	if c.jsonOutput {
		return printJSON(sources)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tDIALECT\tSTATUS")
	for _, ds := range sources {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", ds.ID, ds.DisplayName, ds.PluginType, ds.Dialect, ds.ConnectionStatus)
	}
	return w.Flush()
}

func (c *CLI) newDataSourceDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <id>",
		Short: "Show one data source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDataSourceDescribe(args[0])
		},
	}
}

func (c *CLI) runDataSourceDescribe(id string) error {
	client := c.newGatewayClient()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ds, err := client.GetDataSource(ctx, id)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}

	if c.jsonOutput {
		return printJSON(ds)
	}

	c.printf("ID:       %s\n", ds.ID)
	c.printf("Name:     %s\n", ds.DisplayName)
	c.printf("Type:     %s\n", ds.PluginType)
	if ds.Dialect != "" {
		c.printf("Dialect:  %s\n", ds.Dialect)
	}
	c.printf("Status:   %s\n", ds.ConnectionStatus)
	if ds.LastError != "" {
		c.printf("Error:    %s\n", ds.LastError)
	}
	c.println("Connection:")
	for key, value := range ds.Connection {
		c.printf("  %s: %s\n", key, value)
	}
	return nil
}

func (c *CLI) newDataSourceTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <id>",
		Short: "Test connectivity of a data source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDataSourceTest(args[0])
		},
	}
}

func (c *CLI) runDataSourceTest(id string) error {
	client := c.newGatewayClient()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := client.TestDataSource(ctx, id)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}

	if c.jsonOutput {
		return printJSON(result)
	}
	if result.OK {
		c.printf("✓ connection ok\n")
	} else {
		c.printf("✗ connection failed: %s\n", result.Message)
	}
	return nil
}

func (c *CLI) newDataSourceSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <id>",
		Short: "Discover the schema of a data source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDataSourceSchema(args[0])
		},
	}
}

func (c *CLI) runDataSourceSchema(id string) error {
	client := c.newGatewayClient()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	schema, err := client.DiscoverSchema(ctx, id)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}

	if c.jsonOutput {
		return printJSON(schema)
	}

	if schema.FromCache {
		c.printf("(cached schema; live discovery failed: %s)\n", schema.LiveError)
	}
	for _, table := range schema.Tables {
		c.printf("%s\n", table)
		for _, field := range schema.Fields[table] {
			nullable := "NOT NULL"
			if field.Nullable {
				nullable = "NULL"
			}
			c.printf("  %s %s %s\n", field.Name, field.DataType, nullable)
		}
	}
	return nil
}

func (c *CLI) newDataSourceDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a data source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDataSourceDelete(args[0])
		},
	}
}

func (c *CLI) runDataSourceDelete(id string) error {
	client := c.newGatewayClient()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.DeleteDataSource(ctx, id); err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}
	c.printf("Deleted data source %s\n", id)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
