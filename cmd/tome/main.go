package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/jorge-barreto/tome/internal/agent"
	"github.com/jorge-barreto/tome/internal/api"
	"github.com/jorge-barreto/tome/internal/config"
	"github.com/jorge-barreto/tome/internal/docs"
	"github.com/jorge-barreto/tome/internal/doctor"
	"github.com/jorge-barreto/tome/internal/monitor"
	"github.com/jorge-barreto/tome/internal/pipeline"
	"github.com/jorge-barreto/tome/internal/progress"
	"github.com/jorge-barreto/tome/internal/scaffold"
	"github.com/jorge-barreto/tome/internal/schedule"
	"github.com/jorge-barreto/tome/internal/ux"
)

func main() {
	app := &cli.Command{
		Name:        "tome",
		Usage:       "Long-form book generation pipeline",
		Description: "Run 'tome docs' for documentation on configuration, stages, the API and more.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Log diagnostics to stderr"},
		},
		Commands: []*cli.Command{
			initCmd(),
			runCmd(),
			statusCmd(),
			watchCmd(),
			serveCmd(),
			doctorCmd(),
			docsCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%serror:%s %v\n", ux.Red, ux.Reset, err)
		os.Exit(1)
	}
}

func cliLogger(cmd *cli.Command) *slog.Logger {
	level := slog.LevelWarn
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	return newLogger(os.Stderr, false, level)
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Generate a book in the foreground",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "topic", Usage: "Book topic (default: defaults.topic)"},
			&cli.StringFlag{Name: "audience", Usage: "Target audience (default: defaults.audience)"},
			&cli.IntFlag{Name: "words", Usage: "Target word count (default: defaults.words)"},
			&cli.BoolFlag{Name: "mock", Usage: "Use the offline mock provider"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Hide per-section lines"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			proj, err := loadProject()
			if err != nil {
				return err
			}
			cfg := proj.Config
			if err := checkNested(cfg, cmd.Bool("mock")); err != nil {
				return err
			}
			log := cliLogger(cmd)

			req := defaultRequest(cfg)
			if v := cmd.String("topic"); v != "" {
				req.Topic = v
			}
			if v := cmd.String("audience"); v != "" {
				req.Audience = v
			}
			if v := cmd.Int("words"); v != 0 {
				req.TargetWordCount = int(v)
			}
			if err := config.ValidateTopic(req.Topic); err != nil {
				return fmt.Errorf("%w (use --topic or set defaults.topic)", err)
			}
			req.TargetWordCount = pipeline.ClampWords(req.TargetWordCount, cfg.Defaults.Words)

			console := &ux.Console{Quiet: cmd.Bool("quiet")}
			gen, err := newGenerator(cfg, cmd.Bool("mock"), nil, log)
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			p := newPipeline(cfg, store, gen, log, console)
			req.RunID = uuid.NewString()

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()

			fmt.Printf("%sRun:%s %s  %s\"%s\", %d words for %s%s\n",
				ux.Bold, ux.Reset, req.RunID, ux.Dim, req.Topic, req.TargetWordCount, req.Audience, ux.Reset)

			out, err := p.Run(ctx, req)
			if err != nil {
				if _, gerr := store.Get(context.WithoutCancel(ctx), req.RunID); gerr == nil {
					console.StatusHint(req.RunID)
					console.DoctorHint(req.RunID)
				}
				return err
			}
			if out.Rejected {
				console.Rejected(out.QualityScore, out.RejectionReason)
				console.DoctorHint(req.RunID)
				return fmt.Errorf("book rejected by review")
			}
			console.Success(out.RunID, out.FinalWordCount, out.ArtifactPath)
			return nil
		},
	}
}

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show one run, or list all runs",
		ArgsUsage: "[run-id]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			proj, err := loadProject()
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(proj.Config)
			if err != nil {
				return err
			}
			defer closeStore()

			runID := cmd.Args().First()
			if runID == "" {
				recs, err := store.List(ctx)
				if err != nil {
					return err
				}
				ux.RenderList(os.Stdout, recs)
				return nil
			}
			snap, err := store.Get(ctx, runID)
			if err != nil {
				return fmt.Errorf("loading run: %w", err)
			}
			ux.RenderStatus(os.Stdout, snap)
			return nil
		},
	}
}

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Follow a run in a terminal monitor",
		ArgsUsage: "<run-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			runID := cmd.Args().First()
			if runID == "" {
				return fmt.Errorf("run-id argument is required")
			}
			proj, err := loadProject()
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(proj.Config)
			if err != nil {
				return err
			}
			defer closeStore()

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			snap, err := monitor.Run(ctx, store, runID)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			if snap != nil && snap.Terminal() {
				ux.RenderStatus(os.Stdout, snap)
			}
			return nil
		},
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API and run the scheduler",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (default: server.addr)"},
			&cli.BoolFlag{Name: "no-schedule", Usage: "Do not start the cron scheduler"},
			&cli.BoolFlag{Name: "mock", Usage: "Use the offline mock provider"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			proj, err := loadProject()
			if err != nil {
				return err
			}
			cfg := proj.Config
			level := slog.LevelInfo
			if cmd.Bool("verbose") {
				level = slog.LevelDebug
			}
			log := newLogger(os.Stderr, true, level)
			slog.SetDefault(log)

			gen, err := newGenerator(cfg, cmd.Bool("mock"), nil, log)
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()
			hub := progress.NewHub(store)

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			launcher := pipeline.NewLauncher(ctx, newPipeline(cfg, hub, gen, log, nil), cfg.Server.MaxConcurrent, log)
			launcher.Store = hub
			defer func() {
				stop()
				launcher.Wait()
			}()

			if cfg.Schedule.Enabled && !cmd.Bool("no-schedule") {
				sched, err := schedule.New(cfg.Schedule.Cron, cfg.Location(), launcher, defaultRequest(cfg), log)
				if err != nil {
					return err
				}
				sched.Start()
				defer sched.Stop()
				log.Info("scheduler started", "cron", cfg.Schedule.Cron, "timezone", cfg.Schedule.Timezone, "next", sched.Next())
			}

			addr := cfg.Server.Addr
			if v := cmd.String("addr"); v != "" {
				addr = v
			}
			srv := &http.Server{
				Addr: addr,
				Handler: api.NewRouter(&api.Server{
					Store:    hub,
					Hub:      hub,
					Launcher: launcher,
					Defaults: api.Defaults{Audience: cfg.Defaults.Audience, Words: cfg.Defaults.Words},
					Log:      log,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe() }()
			log.Info("listening", "addr", addr)

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func doctorCmd() *cli.Command {
	return &cli.Command{
		Name:      "doctor",
		Usage:     "Diagnose a failed run using AI",
		ArgsUsage: "<run-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "mock", Usage: "Use the offline mock provider"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			runID := cmd.Args().First()
			if runID == "" {
				return fmt.Errorf("run-id argument is required")
			}
			proj, err := loadProject()
			if err != nil {
				return err
			}
			cfg := proj.Config
			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			snap, err := store.Get(ctx, runID)
			if err != nil {
				return fmt.Errorf("loading run: %w", err)
			}
			gen, err := newGenerator(cfg, cmd.Bool("mock"), os.Stdout, cliLogger(cmd))
			if err != nil {
				return err
			}
			return doctor.Run(ctx, os.Stdout, agent.WithTimeout(gen, cfg.CallTimeout()), cfg, snap)
		},
	}
}

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize a new .tome/ directory with example config",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			return scaffold.Init(dir, os.Stdout)
		},
	}
}

func docsCmd() *cli.Command {
	return &cli.Command{
		Name:      "docs",
		Usage:     "Show documentation",
		ArgsUsage: "[topic]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				docs.List(os.Stdout)
				return nil
			}
			t, err := docs.Get(name)
			if err != nil {
				return err
			}
			fmt.Print(t.Content)
			return nil
		},
	}
}
