package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"coralrelay/pkg/channel"
	"coralrelay/pkg/channel/telegram"
	"coralrelay/pkg/config"
	"coralrelay/pkg/facade"
	"coralrelay/pkg/gateway"
	"coralrelay/pkg/mediator"
)

const telegramChannelName = "telegram"

var facadeCmd = &cobra.Command{
	Use:   "facade",
	Short: "Run the facade tier",
	Long:  "Runs the facade: the simplified HTTP surface for application code, plus any enabled chat channels.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, log, err := loadRuntime("cmd.facade")
		if err != nil {
			return err
		}

		adapters, err := enabledAdapters(cfg, log)
		if err != nil {
			log.Error("Facade configuration invalid", "error", err)
			return err
		}

		mediatorClient, err := mediator.NewClient(cfg.Facade.MediatorURL, cfg.Facade.Timeout())
		if err != nil {
			log.Error("Failed to initialize mediator client", "error", err)
			return err
		}

		svc, err := facade.NewService(mediatorClient, log)
		if err != nil {
			log.Error("Failed to initialize facade service", "error", err)
			return err
		}

		monitor := gateway.NewMonitor("facade", func(ctx context.Context) error {
			_, err := mediatorClient.Health(ctx)
			return err
		}, log)

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runtime := &gateway.Runtime{
			Name:           "facade",
			Host:           cfg.Facade.Host,
			Port:           cfg.Facade.Port,
			Handler:        facade.NewServer(svc, monitor, cfg.Facade.Timeout(), log).Handler(),
			Monitor:        monitor,
			Channels:       adapters,
			ChannelHandler: facade.CommandHandler(svc),
			Log:            log,
		}

		log.Info("Facade started",
			"address", gateway.Address(cfg.Facade.Host, cfg.Facade.Port),
			"mediator_url", mediatorClient.BaseURL(),
			"channels", enabledChannelNames(adapters),
		)
		if err := runtime.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Facade runtime failed", "error", err)
			return err
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(facadeCmd)
}

// enabledAdapters builds the configured chat channels. None is fine: the
// facade then serves HTTP only.
func enabledAdapters(cfg *config.Config, log *slog.Logger) ([]channel.Adapter, error) {
	adapters := make([]channel.Adapter, 0, 1)

	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, log)
		if err != nil {
			return nil, fmt.Errorf("configure %s channel: %w", telegramChannelName, err)
		}
		adapters = append(adapters, adapter)
	}

	return adapters, nil
}

func enabledChannelNames(adapters []channel.Adapter) string {
	if len(adapters) == 0 {
		return "none"
	}

	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}
