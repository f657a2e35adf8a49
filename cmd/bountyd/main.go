package main

import (
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"

	"bountychain/config"
	"bountychain/core/events"
	"bountychain/core/state"
	"bountychain/native/bounty"
	"bountychain/observability/logging"
	"bountychain/rpc"
	"bountychain/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the node configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	var logWriter io.Writer = os.Stdout
	if strings.TrimSpace(cfg.LogFile) != "" {
		logWriter = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   true,
		})
	}
	logger := logging.Setup("bountyd", cfg.Env, logWriter)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", "dir", cfg.DataDir, "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", "err", err)
		}
	}()

	manager := state.NewManager(db)
	buffer := events.NewBuffer(cfg.EventBuffer)

	engine := bounty.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(buffer)

	token := strings.TrimSpace(cfg.RPCToken)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("BOUNTY_RPC_TOKEN"))
	}
	if token == "" {
		logger.Warn("RPC token not configured; mutating methods will be rejected")
	}

	server := rpc.NewServer(engine, buffer, logger, rpc.ServerConfig{
		AuthToken:    token,
		RateLimitRPS: cfg.RateLimitRPS,
	})

	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddress,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting metrics server", "addr", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", "err", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.RPCAddress)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("RPC server stopped", "err", err)
		os.Exit(1)
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		_ = metricsSrv.Close()
	}
}
