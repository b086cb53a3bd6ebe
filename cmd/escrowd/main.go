package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/erikrakuscek/escrow-ethereum/config"
	"github.com/erikrakuscek/escrow-ethereum/core"
	"github.com/erikrakuscek/escrow-ethereum/core/events"
	"github.com/erikrakuscek/escrow-ethereum/core/genesis"
	nativecommon "github.com/erikrakuscek/escrow-ethereum/native/common"
	"github.com/erikrakuscek/escrow-ethereum/observability"
	"github.com/erikrakuscek/escrow-ethereum/observability/logging"
	telemetry "github.com/erikrakuscek/escrow-ethereum/observability/otel"
	"github.com/erikrakuscek/escrow-ethereum/rpc"
	"github.com/erikrakuscek/escrow-ethereum/storage"
	"github.com/erikrakuscek/escrow-ethereum/storage/eventindex"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides config GenesisFile)")
	flag.Parse()

	if err := run(*configFile, *genesisFlag); err != nil {
		fmt.Fprintf(os.Stderr, "escrowd: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, genesisOverride string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.Setup("escrowd", cfg.Environment,
		logging.WithLevel(cfg.LogLevel),
		logging.WithRotatingFile(cfg.LogFile, cfg.LogMaxSizeMB))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
		Attributes:  map[string]string{"escrow.backend": cfg.Backend},
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := storage.Open(cfg.Backend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	index, err := eventindex.Open(cfg.EventIndexPath)
	if err != nil {
		return fmt.Errorf("open event index: %w", err)
	}
	defer index.Close()
	index.SetLogger(logger.With(slog.String("component", "eventindex")))

	node, err := core.NewNode(db, cfg.Admin(),
		core.WithEventSink(events.Multi{index, observability.Escrow()}),
		core.WithPauses(nativecommon.NewStaticPauses(cfg.PausedModules...)),
		core.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}

	genesisPath := strings.TrimSpace(genesisOverride)
	if genesisPath == "" {
		genesisPath = strings.TrimSpace(cfg.GenesisFile)
	}
	if genesisPath != "" {
		if err := applyGenesis(node, genesisPath, logger); err != nil {
			return err
		}
	}

	open, err := node.OpenEscrowCount()
	if err != nil {
		return fmt.Errorf("count open escrows: %w", err)
	}
	observability.Escrow().SetOpenEscrows(open)

	auth, err := rpcAuth(cfg.RPCAuth)
	if err != nil {
		return err
	}
	server := rpc.NewServer(node, index, rpc.Config{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
		Auth:              auth,
		Logger:            logger,
	})
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.RPCAddress)
	}()
	logger.Info("escrow node running",
		slog.String("rpc", cfg.RPCAddress),
		slog.String("backend", cfg.Backend),
		slog.String("admin", node.Admin().Hex()),
		slog.Uint64("openEscrows", open))

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("rpc server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("rpc shutdown failed", slog.Any("error", err))
	}
	return nil
}

func rpcAuth(cfg config.RPCAuth) (rpc.AuthConfig, error) {
	envVar := strings.TrimSpace(cfg.SecretEnv)
	if envVar == "" {
		return rpc.AuthConfig{}, nil
	}
	secret := strings.TrimSpace(os.Getenv(envVar))
	if secret == "" {
		return rpc.AuthConfig{}, fmt.Errorf("rpc_auth: %s is not set", envVar)
	}
	return rpc.AuthConfig{
		Secret:    secret,
		Issuer:    cfg.Issuer,
		ClockSkew: time.Duration(cfg.ClockSkewSeconds) * time.Second,
	}, nil
}

func applyGenesis(node *core.Node, path string, logger *slog.Logger) error {
	spec, err := genesis.LoadGenesisSpec(path)
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}
	deployed, applied, err := node.ApplyGenesis(spec)
	if err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	if !applied {
		logger.Info("genesis already applied; skipping", slog.String("path", path))
		return nil
	}
	for _, tok := range deployed {
		logger.Info("genesis token deployed",
			slog.String("symbol", tok.Symbol),
			slog.String("kind", tok.Kind.String()),
			slog.String("contract", tok.Address.Hex()),
			slog.Bool("registered", tok.Register))
	}
	return nil
}
