// "cookiejar-tp" serves the cookiejar transaction handler to a node over
// gRPC.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/blockberries/cookiejar/config"
	cookiejargrpc "github.com/blockberries/cookiejar/grpc"
	"github.com/blockberries/cookiejar/handler"
	"github.com/blockberries/cookiejar/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	var configFile, listen string
	root := &cobra.Command{
		Use:          "cookiejar-tp",
		Short:        "Run the cookiejar transaction processor",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Processor.Listen = listen
			}
			log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg.Processor.Listen, log)
		},
	}
	root.Flags().StringVar(&configFile, "config", "", "YAML config file")
	root.Flags().StringVar(&listen, "listen", "", "gRPC listen address")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(ctx context.Context, addr string, log *zap.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := cookiejargrpc.NewGRPCServer(handler.New(handler.WithLogger(log)), log)
	gs := srv.NewServer()

	errc := make(chan error, 1)
	go func() { errc <- gs.Serve(lis) }()
	log.Info("processor listening", zap.String("addr", lis.Addr().String()))

	select {
	case err := <-errc:
		_ = srv.Server().Close()
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	gs.GracefulStop()
	return srv.Server().Close()
}
