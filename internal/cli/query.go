package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func (c *CLI) newQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <datasource-id> <query>",
		Short: "Execute an ad hoc query against a data source",
		Long: `Execute a query through the gateway against one data source.

Relational sources take SELECT statements with optional :name parameters.
Time-series sources take SELECT ... FROM POINT pseudo-SQL or a full URL.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runQuery(args[0], args[1])
		},
	}
}

func (c *CLI) runQuery(dataSourceID, query string) error {
	client := c.newGatewayClient()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	c.debugf("executing against %s: %s\n", dataSourceID, query)
	result, err := client.ExecuteQuery(ctx, dataSourceID, query)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}

	if c.jsonOutput {
		return printJSON(result)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for i, col := range result.Columns {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, col)
	}
	fmt.Fprintln(w)
	for _, row := range result.Rows {
		for i, v := range row {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprintf(w, "%v", v)
		}
		fmt.Fprintln(w)
	}
	w.Flush()

	c.printf("(%d rows, %s)\n", result.RowCount, result.Duration)
	return nil
}

func (c *CLI) newResolveCmd() *cobra.Command {
	execute := false
	cmd := &cobra.Command{
		Use:   "resolve <text>",
		Short: "Resolve message text to a trigger",
		Long: `Match message text against trigger names, aliases and group names the
way an incoming chat message would be matched. With --execute the matched
trigger also runs and its reply is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolve(args[0], execute)
		},
	}
	cmd.Flags().BoolVar(&execute, "execute", false, "execute the matched trigger")
	return cmd
}

func (c *CLI) runResolve(text string, execute bool) error {
	client := c.newGatewayClient()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if execute {
		result, err := client.SendMessage(ctx, text)
		if err != nil {
			c.errorf("Error: %v\n", err)
			return err
		}
		if c.jsonOutput {
			return printJSON(result)
		}
		if !result.Matched {
			c.println("no match")
			return nil
		}
		c.println(result.Response.Body)
		return nil
	}

	res, err := client.Resolve(ctx, text)
	if err != nil {
		c.errorf("Error: %v\n", err)
		return err
	}
	if c.jsonOutput {
		return printJSON(res)
	}
	switch {
	case res.TriggerID != "":
		c.printf("trigger %s (%s)\n", res.TriggerName, res.TriggerID)
	case res.GroupID != "":
		c.printf("group %s (%s)\n", res.GroupName, res.GroupID)
	default:
		c.println("no match")
	}
	return nil
}
