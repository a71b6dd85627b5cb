package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"coralrelay/pkg/config"
	"coralrelay/pkg/facade"
	"coralrelay/pkg/types"
)

const defaultCLITimeout = 10 * time.Second

var (
	facadeURL  string
	namesOnly  bool
	cliTimeout time.Duration
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agents registered on the coral network",
	Long:  "Asks a running facade for the registered agents and prints them as a table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, _, err := loadRuntime("cmd.agents")
		if err != nil {
			return err
		}

		client, err := facade.NewClient(resolveFacadeURL(cfg), cliTimeout)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cliTimeout)
		defer cancel()

		response, err := client.ListAgents(ctx, !namesOnly)
		if err != nil {
			return fmt.Errorf("list agents via %s: %w", client.BaseURL(), err)
		}

		renderAgents(cmd.OutOrStdout(), response.Agents.Agents, namesOnly)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(agentsCmd)
	agentsCmd.Flags().StringVar(&facadeURL, "url", "", "facade base URL (default: http://localhost:<facade.port>)")
	agentsCmd.Flags().BoolVar(&namesOnly, "names", false, "print names only")
	agentsCmd.Flags().DurationVar(&cliTimeout, "timeout", defaultCLITimeout, "request timeout")
}

// resolveFacadeURL prefers the --url flag and falls back to the local facade port.
func resolveFacadeURL(cfg *config.Config) string {
	if value := strings.TrimSpace(facadeURL); value != "" {
		return value
	}

	return fmt.Sprintf("http://localhost:%d", cfg.Facade.Port)
}

func renderAgents(w io.Writer, agents []types.Agent, namesOnly bool) {
	table := tablewriter.NewWriter(w)
	if namesOnly {
		table.SetHeader([]string{"Name"})
	} else {
		table.SetHeader([]string{"Name", "Capabilities"})
	}
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, agent := range agents {
		if namesOnly {
			table.Append([]string{agent.Name})
			continue
		}
		table.Append([]string{agent.Name, strings.Join(agent.Capabilities, ", ")})
	}

	table.Render()
}
