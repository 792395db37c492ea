package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"

	api "github.com/oshokin/agrisecure/internal/api/grpc/security"
	"github.com/oshokin/agrisecure/internal/config"
	"github.com/oshokin/agrisecure/internal/logger"
	"github.com/oshokin/agrisecure/internal/mqtt"
	pb "github.com/oshokin/agrisecure/internal/pb/v1"
	"github.com/oshokin/agrisecure/internal/service/ingest"
	"github.com/oshokin/agrisecure/internal/version"
)

// Options controls the agrisecure-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// StateFile overrides the file store path from config.
	StateFile string
}

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts the gRPC server and the MQTT pipeline and blocks until ctx is
// canceled or the server stops.
//
//nolint:funlen // Linear startup sequence.
func Run(ctx context.Context, opts *Options) error {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err := logger.Configure(settings.LogLevel, settings.LogFormat); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}

	ctx = logger.WithName(ctx, "agrisecure-server")

	logger.InfoKV(ctx, "Starting agrisecure server", "version", version.Full())

	if opts.StateFile != "" {
		settings.Storage.Path = opts.StateFile
	}

	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	store, err := openStore(ctx, &settings.Storage)
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Close(); err != nil {
			logger.ErrorKV(ctx, "Failed to close store", "error", err)
		}
	}()

	var (
		broker    *mqtt.Client
		publisher ingest.JSONPublisher
	)

	if settings.MQTT.Enabled {
		broker = mqtt.NewClient(ctx, &settings.MQTT)
		publisher = broker
	}

	eng, err := newEngine(ctx, settings, store, publisher)
	if err != nil {
		return fmt.Errorf("initialise services: %w", err)
	}

	if broker != nil {
		if err := broker.Connect(); err != nil {
			return fmt.Errorf("connect mqtt: %w", err)
		}

		defer broker.Disconnect()

		if err := eng.pipeline.Subscribe(broker, settings.MQTT.SecurityTopic, settings.MQTT.StatusTopic); err != nil {
			return fmt.Errorf("subscribe mqtt: %w", err)
		}
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	return serve(ctx, eng, lis, settings)
}

// serve runs the gRPC server on lis until ctx is canceled.
func serve(ctx context.Context, eng *engine, lis net.Listener, settings *config.Config) error {
	grpcServer := grpc.NewServer()
	pb.RegisterSecurityServiceServer(grpcServer, api.NewServer(eng.arming, eng.alarms, eng.registry, eng.stats, eng.policy))

	logger.InfoKV(ctx, "Agrisecure server listening",
		"listen_address", lis.Addr().String(),
		"storage", settings.Storage.Driver,
		"mqtt", settings.MQTT.Enabled,
	)

	refreshCtx, stopRefresh := context.WithCancel(ctx)
	defer stopRefresh()

	go eng.refreshLoop(refreshCtx, settings.Nodes.RefreshInterval)

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
// Returns appropriate listen address (e.g., ":8080" for port-only binding).
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Bind on all interfaces.
	return ":" + port, nil
}
