package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-drift/hostbridge/internal/demo"
	"github.com/go-drift/hostbridge/internal/hostloop"
	"github.com/go-drift/hostbridge/pkg/bridge"
	"github.com/go-drift/hostbridge/pkg/debug"
	"github.com/go-drift/hostbridge/pkg/errors"
	"github.com/go-drift/hostbridge/pkg/host"
	"github.com/go-drift/hostbridge/pkg/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the demo app against a simulated host",
	Long: `Runs a simulated host loop with the demo app mounted. The host advances
a frame counter every tick and the app re-renders it. With debug enabled the
inspection server exposes /health, /tree, /ticks and /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("ticks") {
			cfg.Tick.Count, _ = cmd.Flags().GetInt("ticks")
		}
		if cmd.Flags().Changed("debug-addr") {
			cfg.Debug.Addr, _ = cmd.Flags().GetString("debug-addr")
			cfg.Debug.Enabled = true
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger := newLogger(cfg)
		errors.SetHandler(&errors.LogHandler{Logger: logger, Verbose: cfg.Log.Level == "debug"})
		defer errors.SetHandler(nil)

		opts := []bridge.Option{
			bridge.WithLogger(logger),
			bridge.WithTraceCapacity(cfg.Tick.TraceCapacity, cfg.Tick.Slow),
		}
		var collector *metrics.Collector
		if cfg.Metrics.Enabled {
			collector = metrics.New()
			opts = append(opts, bridge.WithMetrics(collector))
		}
		rt := bridge.New(opts...)

		world := host.NewWorld()
		demo.Setup(world)
		if _, err := rt.Mount(world, demo.App); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Debug.Enabled {
			debugOpts := []debug.Option{
				debug.WithLogger(logger),
				debug.WithTreeTimeout(cfg.Debug.TreeTimeout),
			}
			if collector != nil {
				debugOpts = append(debugOpts, debug.WithMetrics(collector.Handler()))
			}
			srv, err := debug.Start(cfg.Debug.Addr, debug.NewHandler(rt, debugOpts...), logger)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Warn("debug server shutdown", "error", err)
				}
			}()
		}

		loop := &hostloop.Loop{
			World:    world,
			Runtime:  rt,
			Interval: cfg.Tick.Interval,
			Count:    cfg.Tick.Count,
			Step:     demo.Step,
			Logger:   logger,
		}
		logger.Info("host loop started", "interval", cfg.Tick.Interval, "count", cfg.Tick.Count)
		ran := loop.Run(ctx)
		trace := rt.TickTrace().Snapshot()
		logger.Info("host loop stopped",
			"ticks", ran,
			"slow", trace.SlowTicks,
			"failed", trace.FailedTicks,
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Int("ticks", 0, "Stop after this many ticks (0 runs until interrupted)")
	runCmd.Flags().String("debug-addr", "", "Serve the inspection endpoints on this address")
}
