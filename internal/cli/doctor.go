package cli

import (
	"context"
	"net"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

func (c *CLI) newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run system diagnostics",
		Long: `Run gateway diagnostics.

Checks:
  - configuration
  - network reachability of the gateway endpoint
  - gateway health
  - gateway readiness (catalog store, data sources)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDoctor()
		},
	}
}

// DiagnosticCheck is one doctor check outcome.
type DiagnosticCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

func (c *CLI) runDoctor() error {
	c.println("waq System Diagnostics")
	c.println("======================")
	c.println("")

	checks := []DiagnosticCheck{
		c.checkConfig(),
		c.checkNetwork(),
		c.checkGateway(),
		c.checkReadiness(),
	}

	allPassed := true
	for _, check := range checks {
		if !check.Passed {
			allPassed = false
		}
		c.printCheck(check)
	}

	c.println("")

	if c.jsonOutput {
		return printJSON(map[string]interface{}{
			"checks":     checks,
			"all_passed": allPassed,
		})
	}

	if allPassed {
		c.println("✓ All checks passed")
	} else {
		c.println("✗ Some checks failed")
	}
	return nil
}

func (c *CLI) printCheck(check DiagnosticCheck) {
	mark := "✓"
	if !check.Passed {
		mark = "✗"
	}
	if check.Message != "" {
		c.printf("%s %s: %s\n", mark, check.Name, check.Message)
	} else {
		c.printf("%s %s\n", mark, check.Name)
	}
}

func (c *CLI) checkConfig() DiagnosticCheck {
	check := DiagnosticCheck{Name: "configuration"}
	if c.cfg == nil || c.cfg.Endpoint == "" {
		check.Message = "no gateway endpoint configured"
		return check
	}
	check.Passed = true
	check.Message = c.cfg.Endpoint
	return check
}

func (c *CLI) checkNetwork() DiagnosticCheck {
	check := DiagnosticCheck{Name: "network"}
	if c.cfg == nil || c.cfg.Endpoint == "" {
		check.Message = "skipped, no endpoint"
		return check
	}

	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		check.Message = "invalid endpoint URL: " + err.Error()
		return check
	}
	host := u.Host
	if u.Port() == "" {
		if u.Scheme == "https" {
			host = net.JoinHostPort(u.Hostname(), "443")
		} else {
			host = net.JoinHostPort(u.Hostname(), "80")
		}
	}

	conn, err := net.DialTimeout("tcp", host, 5*time.Second)
	if err != nil {
		check.Message = err.Error()
		return check
	}
	conn.Close()
	check.Passed = true
	check.Message = "reachable"
	return check
}

func (c *CLI) checkGateway() DiagnosticCheck {
	check := DiagnosticCheck{Name: "gateway health"}
	client := c.newGatewayClient()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ok, err := client.CheckHealth(ctx)
	if err != nil {
		check.Message = err.Error()
		return check
	}
	check.Passed = ok
	if ok {
		check.Message = "healthy"
	} else {
		check.Message = "unhealthy"
	}
	return check
}

func (c *CLI) checkReadiness() DiagnosticCheck {
	check := DiagnosticCheck{Name: "gateway readiness"}
	client := c.newGatewayClient()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := client.GetStatus(ctx); err != nil {
		check.Message = err.Error()
		return check
	}
	check.Passed = true
	check.Message = "ready"
	return check
}

func (c *CLI) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show gateway status and usage aggregates",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := c.newGatewayClient()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			payload, err := client.GetStatus(ctx)
			if err != nil {
				c.errorf("Error: %v\n", err)
				return err
			}
			return printJSON(payload)
		},
	}
}
