package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/l1jgo/tickecs/internal/config"
	"github.com/l1jgo/tickecs/internal/core/ecs"
	"github.com/l1jgo/tickecs/internal/core/event"
	coresys "github.com/l1jgo/tickecs/internal/core/system"
	"github.com/l1jgo/tickecs/internal/data"
	"github.com/l1jgo/tickecs/internal/metrics"
	"github.com/l1jgo/tickecs/internal/scripting"
	"github.com/l1jgo/tickecs/internal/system"
)

type runOptions struct {
	configPath   string
	ticks        uint64
	restorePath  string
	snapshotPath string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the tick loop until interrupted or the tick limit is reached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("ticks") {
				cfg.Loop.MaxTicks = opts.ticks
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "config file (default $TICKECS_CONFIG, else built-in defaults)")
	cmd.Flags().Uint64Var(&opts.ticks, "ticks", 0, "stop after this many ticks (0 = until interrupted)")
	cmd.Flags().StringVar(&opts.restorePath, "restore", "", "load world state from a snapshot before the first tick")
	cmd.Flags().StringVar(&opts.snapshotPath, "snapshot", "", "write world state to this file on exit")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("TICKECS_CONFIG")
	}
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func loadSchema(cfg *config.Config, log *zap.Logger) (*data.SchemaTable, error) {
	schema, err := data.LoadSchemaTable(cfg.Data.SchemaFile, cfg.World.TableCapacity)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn("schema file not found, starting without tables", zap.String("file", cfg.Data.SchemaFile))
		return data.Build(nil, cfg.World.TableCapacity)
	}
	return schema, err
}

func run(ctx context.Context, cfg *config.Config, opts *runOptions) error {
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	schema, err := loadSchema(cfg, log)
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	log.Info("schema loaded", zap.Int("tables", schema.Count()))

	eng := ecs.NewEngine(log)
	world := eng.CreateWorld(ecs.WithCapacity(cfg.World.Capacity))

	if opts.restorePath != "" {
		snap, err := data.LoadSnapshot(opts.restorePath)
		if err != nil {
			return err
		}
		if err := data.RestoreWorld(world, schema, snap); err != nil {
			return err
		}
		log.Info("world restored", zap.String("file", opts.restorePath), zap.Int("entities", world.Entities().Len()))
	}

	bus := event.NewBus()
	event.Subscribe(bus, func(ev event.EntityAdded) {
		log.Debug("entity added", zap.String("world", ev.World), zap.Uint32("entity", uint32(ev.Entity)))
	})
	event.Subscribe(bus, func(ev event.EntityRemoved) {
		log.Debug("entity removed", zap.String("world", ev.World), zap.Uint32("entity", uint32(ev.Entity)))
	})
	world.AddBehavior(bus.Behavior())
	world.AddBehavior(system.NewLifecycleSystem("main", bus).Behavior())

	recycler := system.NewRecycleSystem(log)
	world.AddBehavior(recycler.Behavior())

	scripts, err := scripting.NewEngine(cfg.Data.ScriptsDir, schema, log)
	if err != nil {
		return err
	}
	defer scripts.Close()
	for _, b := range scripts.Behaviors() {
		if !world.AddBehavior(b) {
			log.Warn("script behavior rejected", zap.String("script", b.Name))
		}
	}
	log.Info("scripts loaded", zap.Int("count", len(scripts.Scripts())))

	if cfg.Metrics.Enabled {
		srv, err := serveMetrics(cfg.Metrics.BindAddress, world, log)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	runner := coresys.NewRunner(log)
	runner.Register("main", coresys.PhaseUpdate, world)

	log.Info("tick loop started",
		zap.Duration("tick_rate", cfg.Loop.TickRate),
		zap.Uint64("max_ticks", cfg.Loop.MaxTicks))
	err = runner.Run(ctx, cfg.Loop.TickRate, cfg.Loop.MaxTicks)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("tick loop stopped",
		zap.Uint64("ticks", runner.Ticks()),
		zap.Duration("now", runner.Now()),
		zap.Int("entities", world.Entities().Len()))

	if opts.snapshotPath != "" {
		if err := data.SaveSnapshot(opts.snapshotPath, data.CaptureWorld(world)); err != nil {
			return err
		}
		log.Info("world snapshot written", zap.String("file", opts.snapshotPath))
	}
	return nil
}

func serveMetrics(addr string, world *ecs.World, log *zap.Logger) (*http.Server, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	col := metrics.NewCollector()
	if err := col.Register(reg); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	world.AddBehavior(col.Behavior("main"))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.Error(err))
		}
	}()
	log.Info("metrics listening", zap.String("addr", addr))
	return srv, nil
}
