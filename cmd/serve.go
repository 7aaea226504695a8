package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"calendar-app/internal/background"
	"calendar-app/internal/foreground"
	"calendar-app/internal/handlers"
	appLog "calendar-app/internal/log"
	"calendar-app/internal/notify"
	"calendar-app/internal/presence"
	"calendar-app/internal/reminder"
	"calendar-app/internal/replica"
)

func newServeCmd(c *cli) *cobra.Command {
	var staticDir, tlsCert, tlsKey string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the calendar API with foreground reminders and the embedded worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, c, staticDir, tlsCert, tlsKey)
		},
	}
	cmd.Flags().StringVar(&staticDir, "static", "./static", "directory to serve static files from")
	cmd.Flags().StringVar(&tlsCert, "tls-cert", "", "path to TLS certificate file (optional)")
	cmd.Flags().StringVar(&tlsKey, "tls-key", "", "path to TLS key file (optional)")
	return cmd
}

func serve(ctx context.Context, c *cli, staticDir, tlsCert, tlsKey string) error {
	cfg := c.cfg
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	var cl closers
	defer cl.Close()

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	cl.add(store)

	medium, err := openMedium(cfg.Replica, false)
	if err != nil {
		return fmt.Errorf("replica: %w", err)
	}
	cl.add(medium)

	b, err := openBus(cfg.Bus)
	if err != nil {
		return fmt.Errorf("bus: %w", err)
	}
	cl.add(b)

	evaluator := reminder.NewEvaluator(loc)
	notifier := newNotifier(cfg.Notifications)
	registry := presence.NewRegistry()
	heartbeat := presence.NewHeartbeat(medium, cfg.Background.StaleAfter)
	rep := replica.NewReplicator(medium)

	dispatcher := &notify.Dispatcher{
		Notifier:    notifier,
		Permissions: newPermissions(cfg.Notifications),
		Windows:     registry,
		Opener:      newOpener(cfg.Notifications),
		OpenURL:     cfg.Notifications.OpenURL,
	}
	// Without a worker listening in this process, a chan bus has nobody
	// to show forwarded notifications.
	if cfg.Background.Enabled || cfg.Bus.Type != "chan" {
		dispatcher.Bus = b
	}

	app, err := foreground.New(foreground.Options{
		Storage:    store,
		Replicator: rep,
		Dispatcher: dispatcher,
		Evaluator:  evaluator,
		Bus:        b,
		Registry:   registry,
		Heartbeat:  heartbeat,
		Interval:   cfg.Foreground.Interval,
		Icon:       cfg.Notifications.Icon,
	})
	if err != nil {
		return err
	}
	if err := app.Load(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Background.Enabled {
		worker, err := background.New(background.Options{
			Replicator:  rep,
			Evaluator:   evaluator,
			Notifier:    notifier,
			Presence:    presence.Any(registry, heartbeat),
			Bus:         b,
			Task:        cfg.Background.Task,
			Schedule:    cfg.Background.Schedule,
			Icon:        cfg.Notifications.Icon,
			ForwardLogs: true,
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return worker.Run(ctx) })
	}

	g.Go(func() error { return app.Run(ctx) })

	handlers.App = app
	handlers.Location = loc
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newRouter(staticDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		var err error
		if tlsCert != "" && tlsKey != "" {
			appLog.Info("Starting calendar app with HTTPS", "addr", srv.Addr, "static", staticDir)
			err = srv.ListenAndServeTLS(tlsCert, tlsKey)
		} else {
			appLog.Info("Starting calendar app with HTTP", "addr", srv.Addr, "static", staticDir)
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("could not start HTTP server: %w", err)
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	appLog.Info("calendar app stopped")
	return err
}

func newRouter(staticDir string) *mux.Router {
	r := mux.NewRouter()
	handlers.Register(r)

	// Static file server for the frontend at "/"
	staticFs := http.FileServer(http.Dir(staticDir))
	r.PathPrefix("/").Handler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if ext := filepath.Ext(req.URL.Path); ext != "" {
			if ctype := mime.TypeByExtension(ext); ctype != "" {
				w.Header().Set("Content-Type", ctype)
			}
		}
		staticFs.ServeHTTP(w, req)
	}))
	return r
}
