package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"coralrelay/pkg/bus"
	"coralrelay/pkg/gateway"
	"coralrelay/pkg/mediator"
	"coralrelay/pkg/upstream"
)

var mediatorCmd = &cobra.Command{
	Use:   "mediator",
	Short: "Run the mediator tier",
	Long:  "Runs the mediator: validates relay requests, forwards them to the coral network and streams relay events.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, log, err := loadRuntime("cmd.mediator")
		if err != nil {
			return err
		}

		client, err := upstream.New(cfg.Upstream)
		if err != nil {
			log.Error("Failed to initialize upstream client", "error", err)
			return err
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		messageBus := bus.NewMessageBus()
		defer messageBus.Close()
		go mediator.ObserveEvents(runCtx, messageBus, log)

		svc, err := mediator.NewService(client, log, mediator.WithEvents(messageBus))
		if err != nil {
			log.Error("Failed to initialize mediator service", "error", err)
			return err
		}

		monitor := gateway.NewMonitor("mediator", func(ctx context.Context) error {
			_, err := client.Health(ctx)
			return err
		}, log)
		monitor.SetView(func() any { return svc.View().Stats() })

		runtime := &gateway.Runtime{
			Name:    "mediator",
			Host:    cfg.Mediator.Host,
			Port:    cfg.Mediator.Port,
			Handler: mediator.NewServer(svc, monitor, messageBus, cfg.Mediator.Timeout(), log).Handler(),
			Monitor: monitor,
			Log:     log,
		}

		log.Info("Mediator started", "address", gateway.Address(cfg.Mediator.Host, cfg.Mediator.Port), "upstream_mode", cfg.Upstream.Mode, "upstream_url", cfg.Upstream.ServerURL)
		if err := runtime.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Mediator runtime failed", "error", err)
			return err
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(mediatorCmd)
}
