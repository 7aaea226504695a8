package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"calendar-app/internal/config"
	appLog "calendar-app/internal/log"
)

type cli struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	cmd := &cobra.Command{
		Use:          "calendar",
		Short:        "Calendar with passive reminders",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Run the API, the reminder interval and the embedded worker
  calendar serve

  # Run only the background worker against a shared replica
  calendar worker --config /etc/calendar/config.yaml

  # Export all events
  calendar export --format ics > calendar.ics
`),
	}
	cmd.PersistentFlags().StringVar(&c.configPath, "config", "config.yaml", "path to the YAML config file (created if missing)")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(c.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
		c.cfg = cfg
		return nil
	}

	cmd.AddCommand(
		newServeCmd(c),
		newWorkerCmd(c),
		newExportCmd(c),
		newCheckCmd(c),
	)
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
