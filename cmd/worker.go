package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"calendar-app/internal/background"
	"calendar-app/internal/bus"
	"calendar-app/internal/ics"
	"calendar-app/internal/presence"
	"calendar-app/internal/reminder"
	"calendar-app/internal/replica"
)

// newWorker builds a background worker reading the shared replica. The
// returned closers must be closed by the caller.
func newWorker(c *cli, withBus bool) (*background.Worker, closers, error) {
	cfg := c.cfg
	var cl closers

	loc, err := cfg.Location()
	if err != nil {
		return nil, cl, err
	}
	medium, err := openMedium(cfg.Replica, true)
	if err != nil {
		return nil, cl, fmt.Errorf("replica: %w", err)
	}
	cl.add(medium)

	var b bus.Bus
	// A chan bus only connects contexts of one process.
	if withBus && cfg.Bus.Type != "chan" {
		if b, err = openBus(cfg.Bus); err != nil {
			return nil, cl, fmt.Errorf("bus: %w", err)
		}
		cl.add(b)
	}

	w, err := background.New(background.Options{
		Replicator:  replica.NewReplicator(medium),
		Evaluator:   reminder.NewEvaluator(loc),
		Notifier:    newNotifier(cfg.Notifications),
		Presence:    presence.NewHeartbeat(medium, cfg.Background.StaleAfter),
		Bus:         b,
		Task:        cfg.Background.Task,
		Schedule:    cfg.Background.Schedule,
		Icon:        cfg.Notifications.Icon,
		ForwardLogs: b != nil,
	})
	return w, cl, err
}

func newWorkerCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the background reminder worker on its own",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w, cl, err := newWorker(c, true)
			defer cl.Close()
			if err != nil {
				return err
			}
			return w.Run(ctx)
		},
	}
}

func newCheckCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run one background reminder check and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, cl, err := newWorker(c, false)
			defer cl.Close()
			if err != nil {
				return err
			}
			rep, err := w.CheckInBackground(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}
}

func newExportCmd(c *cli) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all events as iCalendar or plain text",
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := c.cfg.Location()
			if err != nil {
				return err
			}
			store, err := openStorage(c.cfg.Storage)
			if err != nil {
				return fmt.Errorf("storage: %w", err)
			}
			var cl closers
			cl.add(store)
			defer cl.Close()

			events, err := store.LoadEvents()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch format {
			case "ics":
				_, err = fmt.Fprint(out, ics.Export(events, loc, time.Now()))
			case "text", "txt":
				_, err = fmt.Fprintln(out, ics.ExportText(events))
			default:
				return fmt.Errorf("unknown format %q: use ics or text", format)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "ics", "output format: ics or text")
	return cmd
}
