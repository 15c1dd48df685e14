package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/scbackend/pkg/api"
	"github.com/cuemby/scbackend/pkg/broadcast"
	"github.com/cuemby/scbackend/pkg/engine"
	"github.com/cuemby/scbackend/pkg/events"
	"github.com/cuemby/scbackend/pkg/health"
	"github.com/cuemby/scbackend/pkg/log"
	"github.com/cuemby/scbackend/pkg/metrics"
	"github.com/cuemby/scbackend/pkg/registry"
	"github.com/cuemby/scbackend/pkg/storage"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the event stream",
	Long: `Run the HTTP API and the WebSocket event stream until interrupted.

DASHPORT and SERVPORT override the API and stream ports.

Examples:
  # Defaults: API on :3030, stream on :3031, bolt store in ./data
  scbackend serve

  # In-memory store, relay "message" and "alert" events
  scbackend serve --store memory --republish message,alert`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("api-addr", "", "Address for the HTTP API")
	serveCmd.Flags().String("stream-addr", "", "Address for the WebSocket event stream")
	serveCmd.Flags().StringSlice("republish", nil, "Event kinds relayed to subscribers")
	serveCmd.Flags().String("step-interval", "", "Engine runtime step interval (e.g. 500ms); empty disables")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := log.WithComponent("serve")

	store, err := storage.Open(cfg.Store, cfg.DataDir)
	if err != nil {
		metrics.RegisterComponent(metrics.ComponentStorage, false, err.Error())
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close store")
		}
	}()
	metrics.RegisterComponent(metrics.ComponentStorage, true, cfg.Store)
	metrics.SetVersion(Version)

	step, err := cfg.Step()
	if err != nil {
		return err
	}

	broadcaster := broadcast.New(broadcast.Options{
		ServerVersion:   cfg.ServerVersion,
		Buffer:          cfg.SubscriberBuffer,
		InboundRate:     cfg.InboundRate,
		InboundBurst:    cfg.InboundBurst,
		MaxMessageBytes: cfg.MaxMessageBytes,
	})

	reg := registry.New(registry.Config{
		Republish: events.NewKindSet(cfg.RepublishKinds...),
		Factory:   engine.ScriptFactory(engine.ScriptOptions{StepInterval: step}),
		Source:    storage.Source{Store: store},
		Publisher: broadcaster,
	})
	reg.AddListener(events.KindProjectStop, func(id string, ev events.Event) {
		logger.Info().Str("instance_id", id).Msg("Project stopped")
	})
	metrics.RegisterComponent(metrics.ComponentRegistry, true, "")

	collector := metrics.NewCollector(reg, broadcaster)
	collector.Start()
	defer collector.Stop()

	apiServer := api.NewServer(store, reg)

	monitor := health.NewMonitor(health.DefaultConfig(), metrics.UpdateComponent)
	monitor.Add(metrics.ComponentStorage, health.NewStoreChecker(store))
	monitor.Add(metrics.ComponentBroadcast, health.NewTCPChecker(cfg.StreamAddr))
	monitor.Add(metrics.ComponentAPI, health.NewHTTPChecker(health.LivenessURL(cfg.APIAddr)))
	monitor.Start()
	defer monitor.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("api_addr", cfg.APIAddr).
		Str("stream_addr", cfg.StreamAddr).
		Str("store", cfg.Store).
		Strs("republish", cfg.RepublishKinds).
		Msg("Starting scbackend")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		metrics.RegisterComponent(metrics.ComponentBroadcast, true, "")
		defer metrics.UpdateComponent(metrics.ComponentBroadcast, false, "stopped")
		if err := broadcaster.ListenAndServe(gctx, cfg.StreamAddr); err != nil {
			return fmt.Errorf("stream server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		metrics.RegisterComponent(metrics.ComponentAPI, true, "")
		defer metrics.UpdateComponent(metrics.ComponentAPI, false, "stopped")
		if err := apiServer.ListenAndServe(gctx, cfg.APIAddr); err != nil {
			return fmt.Errorf("API server: %w", err)
		}
		return nil
	})

	err = g.Wait()

	logger.Info().Msg("Shutting down")
	metrics.UpdateComponent(metrics.ComponentRegistry, false, "closing")
	reg.Close()

	if err != nil {
		return err
	}
	logger.Info().Msg("Shutdown complete")
	return nil
}
