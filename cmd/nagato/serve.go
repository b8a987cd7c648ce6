package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nadzzz/nagato/internal/health"
	"github.com/nadzzz/nagato/internal/transport"
	"github.com/nadzzz/nagato/internal/transport/console"
	grpctransport "github.com/nadzzz/nagato/internal/transport/grpc"
	httptransport "github.com/nadzzz/nagato/internal/transport/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the assistant with the enabled transports",
	Long: `Starts the health and metrics server and every enabled transport
(HTTP, gRPC, console). Stops on SIGINT/SIGTERM, or when the console exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		slog.Info("nagato starting", "version", version)
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		var transports []transport.Transport
		if cfg.Transports.HTTP.Enabled {
			transports = append(transports, httptransport.New(cfg.Transports.HTTP.Port))
		}
		if cfg.Transports.GRPC.Enabled {
			transports = append(transports, grpctransport.New(cfg.Transports.GRPC.Port))
		}
		if cfg.Transports.Console.Enabled {
			transports = append(transports, console.New(cfg.Transports.Console.Prompt, cfg.Assistant.Name))
		}
		if len(transports) == 0 {
			return errors.New("no transports enabled, enable at least one in config")
		}

		healthServer := health.New(cfg.Server.HealthPort, a.registry)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return healthServer.ListenAndServe(gctx) })

		for _, t := range transports {
			g.Go(func() error {
				slog.Info("starting transport", "name", t.Name())
				err := t.Listen(gctx, a.dispatcher.Handle)
				if t.Name() == "console" {
					// The user typed exit or closed stdin.
					stop()
				}
				return err
			})
		}

		healthServer.SetReady(true)
		slog.Info("nagato ready", "transports", len(transports), "health_port", cfg.Server.HealthPort)

		<-gctx.Done()
		slog.Info("shutting down")
		healthServer.SetReady(false)
		for _, t := range transports {
			if err := t.Close(); err != nil {
				slog.Error("transport close error", "name", t.Name(), "error", err)
			}
		}
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		slog.Info("nagato stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
