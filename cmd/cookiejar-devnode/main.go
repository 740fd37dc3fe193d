// "cookiejar-devnode" runs a single node development network: the REST
// gateway, an in-order batch executor and a state store, wired to the
// cookiejar processor in-process or over gRPC.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/blockberries/cookiejar"
	"github.com/blockberries/cookiejar/config"
	"github.com/blockberries/cookiejar/devnode"
	cookiejargrpc "github.com/blockberries/cookiejar/grpc"
	"github.com/blockberries/cookiejar/handler"
	"github.com/blockberries/cookiejar/local"
	"github.com/blockberries/cookiejar/logging"
	"github.com/blockberries/cookiejar/processor"
	"github.com/blockberries/cookiejar/statestore"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type flags struct {
	config    string
	listen    string
	processor string
	backend   string
	dataDir   string
}

func main() {
	var f flags
	root := &cobra.Command{
		Use:          "cookiejar-devnode",
		Short:        "Run a development node for the cookiejar family",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd, f)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg.Node, log)
		},
	}
	fl := root.Flags()
	fl.StringVar(&f.config, "config", "", "YAML config file")
	fl.StringVar(&f.listen, "listen", "", "REST gateway listen address")
	fl.StringVar(&f.processor, "processor", "", `processor address, or "local" to run it in-process`)
	fl.StringVar(&f.backend, "backend", "", "state store backend (memory|pebble)")
	fl.StringVar(&f.dataDir, "data-dir", "", "pebble data directory")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func load(cmd *cobra.Command, f flags) (*config.Config, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return nil, err
	}
	fl := cmd.Flags()
	if fl.Changed("listen") {
		cfg.Node.Listen = f.listen
	}
	if fl.Changed("processor") {
		cfg.Node.Processor = f.processor
	}
	if fl.Changed("backend") {
		cfg.Node.Backend = f.backend
	}
	if fl.Changed("data-dir") {
		cfg.Node.DataDir = f.dataDir
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg config.Node, log *zap.Logger) (err error) {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, store.Close()) }()

	conn, err := connect(ctx, cfg.Processor, log)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, conn.Close()) }()

	node, err := devnode.New(conn, store,
		devnode.WithLogger(log),
		devnode.WithQueueSize(cfg.QueueSize),
		devnode.WithRetry(cfg.RetryLimit, 0, 0),
	)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, node.Close()) }()

	log.Info("node starting",
		zap.String("listen", cfg.Listen),
		zap.String("processor", cfg.Processor),
		zap.String("backend", cfg.Backend),
	)
	return node.ListenAndServe(ctx, cfg.Listen)
}

func openStore(cfg config.Node) (statestore.Store, error) {
	if cfg.Backend == config.BackendPebble {
		return statestore.OpenPebble(cfg.DataDir, nil)
	}
	return statestore.NewMemory(), nil
}

type closingConnection interface {
	cookiejar.Connection
	Close() error
}

func connect(ctx context.Context, addr string, log *zap.Logger) (closingConnection, error) {
	if addr == config.ProcessorLocal {
		return local.NewConnection(handler.New(handler.WithLogger(log)), processor.WithLogger(log)), nil
	}
	return cookiejargrpc.Dial(ctx, addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}
