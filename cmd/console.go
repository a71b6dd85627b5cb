package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"coralrelay/pkg/facade"
	"coralrelay/pkg/ui/console"
)

var consoleCommand string

var consoleCmd = &cobra.Command{
	Use:   "console [command]",
	Short: "Open the operator console against a facade",
	Long:  "Starts an interactive console that issues relay commands (/agents, /register, /send, /thread, /health) against a running facade. With a command argument it runs that one command and exits.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadRuntime("cmd.console")
		if err != nil {
			return err
		}

		client, err := facade.NewClient(resolveFacadeURL(cfg), cliTimeout)
		if err != nil {
			return err
		}

		execute := console.FacadeExecutor(client)
		target := console.Target{FacadeURL: client.BaseURL()}

		if command := resolveConsoleCommand(args); command != "" {
			return console.RunOneShot(cmd.Context(), execute, command, target)
		}

		return console.RunInteractive(cmd.Context(), execute, target)
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().StringVarP(&consoleCommand, "exec", "e", "", "run one command and exit")
	consoleCmd.Flags().StringVar(&facadeURL, "url", "", "facade base URL (default: http://localhost:<facade.port>)")
	consoleCmd.Flags().DurationVar(&cliTimeout, "timeout", defaultCLITimeout, "request timeout")
}

func resolveConsoleCommand(args []string) string {
	if value := strings.TrimSpace(consoleCommand); value != "" {
		return value
	}

	return strings.TrimSpace(strings.Join(args, " "))
}
