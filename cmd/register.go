package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"coralrelay/pkg/facade"
	"coralrelay/pkg/relay"
	"coralrelay/pkg/roster"
)

var rosterPath string

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register the agents declared in a roster file",
	Long:  "Reads a YAML or JSON roster of agents and registers each one through a running facade. Re-running it updates capabilities in place.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, log, err := loadRuntime("cmd.register")
		if err != nil {
			return err
		}

		file, err := roster.Load(rosterPath)
		if err != nil {
			return err
		}

		client, err := facade.NewClient(resolveFacadeURL(cfg), cliTimeout)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cliTimeout*time.Duration(len(file.Agents)))
		defer cancel()

		outcomes := roster.Apply(ctx, client, file)
		printOutcomes(cmd.OutOrStdout(), outcomes)

		if failed := roster.Failed(outcomes); failed > 0 {
			log.Warn("Roster partially applied", "failed", failed, "total", len(outcomes))
			return fmt.Errorf("%d of %d agents failed to register", failed, len(outcomes))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().StringVarP(&rosterPath, "file", "f", "agents.yaml", "roster file (.yaml, .yml or .json)")
	registerCmd.Flags().StringVar(&facadeURL, "url", "", "facade base URL (default: http://localhost:<facade.port>)")
	registerCmd.Flags().DurationVar(&cliTimeout, "timeout", defaultCLITimeout, "request timeout per agent")
}

func printOutcomes(w io.Writer, outcomes []roster.Outcome) {
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			fmt.Fprintf(w, "FAIL %s: %s\n", outcome.Agent, relay.MessageFromError(outcome.Err))
			continue
		}
		fmt.Fprintf(w, "OK   %s\n", outcome.Message)
	}
}
