package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fevzifiratt/ceng797-term-project/pkg/clock"
	"github.com/fevzifiratt/ceng797-term-project/pkg/config"
	"github.com/fevzifiratt/ceng797-term-project/pkg/node"
	"github.com/fevzifiratt/ceng797-term-project/pkg/observability"
	"github.com/fevzifiratt/ceng797-term-project/pkg/protocol/codec"
	"github.com/fevzifiratt/ceng797-term-project/pkg/transport/udpmcast"
)

const statusLogInterval = 10 * time.Second

// run is the main entry point after CLI parsing.
func run(cmd *cobra.Command) int {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}
	if cmd.Flags().Changed("node-id") {
		cfg.NodeID = opts.NodeID
	}
	if cmd.Flags().Changed("local-port") {
		cfg.LocalPort = opts.LocalPort
	}
	if err := cfg.Validate(); err != nil {
		_, _ = os.Stderr.WriteString("invalid configuration: " + err.Error() + "\n")
		return 1
	}

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = logger.Sync() }()

	zap.L().Info("gcmesh-node starting", zap.Int("node_id", cfg.NodeID))
	zap.L().Info("effective configuration", zap.Any("config", cfg))

	wire, err := codec.ForFormat(cfg.WireFormat)
	if err != nil {
		zap.L().Error("codec init failed", zap.Error(err))
		return 1
	}
	tr, err := udpmcast.New(udpmcast.Config{
		Group:     cfg.Group,
		LocalPort: cfg.LocalPort,
		DestPort:  cfg.DestPort,
		Interface: cfg.Interface,
	})
	if err != nil {
		zap.L().Error("transport init failed", zap.Error(err))
		return 1
	}

	rec := observability.NewRecorder()
	n, err := node.New(node.Config{
		ID:                  cfg.NodeID,
		NumHosts:            cfg.NumHosts,
		HelloInterval:       cfg.HelloInterval,
		HelloJitter:         cfg.HelloJitter,
		NeighborTimeout:     cfg.NeighborTimeout,
		MaintenanceInterval: cfg.MaintenanceInterval,
		ColoringInterval:    cfg.ColoringInterval,
		ColoringJitter:      cfg.ColoringJitter,
		DataInterval:        cfg.DataInterval,
		DataJitter:          cfg.DataJitter,
		ForwardJitter:       cfg.ForwardJitter,
		InitialTTL:          cfg.InitialTTL,
	}, node.Deps{
		Transport: tr,
		Clock:     clock.System(),
		Codec:     wire,
		Sink:      rec,
		Logger:    logger,
	})
	if err != nil {
		zap.L().Error("node init failed", zap.Error(err))
		_ = tr.Close()
		return 1
	}
	if err := n.Start(); err != nil {
		zap.L().Error("node start failed", zap.Error(err))
		_ = tr.Close()
		return 1
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	statusTicker := time.NewTicker(statusLogInterval)
	defer statusTicker.Stop()

	for {
		select {
		case <-statusTicker.C:
			logStatus(n, rec)
		case sig := <-stop:
			zap.L().Info("shutting down", zap.String("signal", sig.String()))
			logStatus(n, rec)
			_ = n.Close()
			return 0
		}
	}
}

func logStatus(n *node.Node, rec *observability.Recorder) {
	st := n.Status()
	stats := rec.Snapshot()
	zap.L().Info("node status",
		zap.Stringer("role", st.Role),
		zap.Int("color", st.Color),
		zap.Int("cluster", st.ClusterID),
		zap.Int("neighbors", st.Neighbors),
		zap.Int("cached_routes", st.Routes),
		zap.Int("data_sent", stats.DataSent),
		zap.Int("data_received", stats.DataReceived),
		zap.Int64("delivered_bits", stats.DeliveredBits),
		zap.Duration("mean_delay", stats.MeanDelay()))
}
