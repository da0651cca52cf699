// Command vigilo runs the check execution daemon: scheduler, result
// processor, downtime manager and the operator command pipe.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/oceanplexian/vigilo/internal/checker"
	"github.com/oceanplexian/vigilo/internal/clock"
	"github.com/oceanplexian/vigilo/internal/config"
	"github.com/oceanplexian/vigilo/internal/dependency"
	"github.com/oceanplexian/vigilo/internal/downtimes"
	"github.com/oceanplexian/vigilo/internal/events"
	"github.com/oceanplexian/vigilo/internal/extcmd"
	"github.com/oceanplexian/vigilo/internal/logging"
	"github.com/oceanplexian/vigilo/internal/metrics"
	"github.com/oceanplexian/vigilo/internal/objects"
	"github.com/oceanplexian/vigilo/internal/remote"
	"github.com/oceanplexian/vigilo/internal/scheduler"
)

const version = "1.0.0"

func main() {
	var configPath, logLevel string
	var logJSON bool

	root := &cobra.Command{
		Use:     "vigilo",
		Short:   "Distributed check execution daemon",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if cmd.Flags().Changed("log-json") {
				cfg.Log.JSON = logJSON
			}
			return run(cfg)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "/etc/vigilo/vigilo.yaml", "configuration file")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.Flags().BoolVar(&logJSON, "log-json", false, "log JSON instead of console output")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logging.Init(logging.Config{Level: cfg.Log.Level, JSONOutput: cfg.Log.JSON})
	log := logging.WithComponent("main")
	log.Info().Str("version", version).Str("node", cfg.NodeName).Int("pid", os.Getpid()).
		Msg("vigilo starting")

	clk := clock.System{}
	rt := objects.NewRuntime(cfg.NodeName, clk.Now())
	rt.SetActiveChecksEnabled(cfg.Toggles.ActiveChecks)
	rt.SetNotificationsEnabled(cfg.Toggles.Notifications)
	rt.SetFlappingEnabled(cfg.Toggles.FlapDetection)
	rt.SetEventHandlersEnabled(cfg.Toggles.EventHandlers)

	sig := events.NewSignals(logging.WithComponent("events"))
	graph := dependency.NewGraph(clk, logging.WithComponent("dependency"))
	store := objects.NewStore()
	if err := cfg.BuildObjects(store, graph); err != nil {
		return err
	}

	registry := remote.NewRegistry(cfg.NodeName)
	proc := checker.NewProcessor(clk, rt, sig, graph, nil, cfg.NodeName, logging.WithComponent("checker"))
	exec := checker.NewExecutor(clk, rt, proc, sig, registry, logging.WithComponent("checker"))
	sched := scheduler.New(clk, rt, exec, cfg.Checks.MaxConcurrent, logging.WithComponent("scheduler"))
	sig.NextCheckUpdated.Connect(sched.OnNextCheckChanged)

	comments := downtimes.NewComments(clk, sig)
	mgr := downtimes.NewManager(store, comments, clk, sig, proc, logging.WithComponent("downtimes"))
	sweep := checker.NewStaleAgentSweep(clk, registry, proc, sched, logging.WithComponent("checker"))

	sds, err := cfg.BuildScheduledDowntimes()
	if err != nil {
		return err
	}
	for _, sd := range sds {
		if err := mgr.AddScheduled(sd); err != nil {
			return err
		}
	}

	for _, c := range store.All() {
		sched.Register(c)
	}
	log.Info().Int("checkables", store.Len()).Msg("configuration loaded")

	cmdProc := extcmd.NewProcessor(cfg.CommandPipe, logging.WithComponent("extcmd"))
	extcmd.NewHandlers(clk, store, rt, sched, proc, mgr, comments, logging.WithComponent("extcmd")).Register(cmdProc)
	if err := os.MkdirAll(filepath.Dir(cfg.CommandPipe), 0755); err != nil {
		return fmt.Errorf("create command pipe directory: %w", err)
	}
	if err := cmdProc.Start(); err != nil {
		return err
	}
	log.Info().Str("pipe", cfg.CommandPipe).Msg("external command pipe ready")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Run()
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sched.Stop()
		cmdProc.Stop()
		return nil
	})
	g.Go(func() error { return mgr.Run(ctx) })
	g.Go(func() error { return sweep.Run(ctx) })

	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: cfg.MetricsListen, Handler: mux}
		g.Go(func() error {
			log.Info().Str("addr", cfg.MetricsListen).Msg("metrics listener started")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	log.Info().Msg("vigilo shut down")
	return err
}
