package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/tipjar/service/config"
	"github.com/brojonat/tipjar/service/metrics"
	"github.com/brojonat/tipjar/service/nats"
	"github.com/brojonat/tipjar/service/server"
	"github.com/brojonat/tipjar/service/solana"
	"github.com/brojonat/tipjar/service/tipjar"
	"github.com/brojonat/tipjar/service/view"
	"github.com/brojonat/tipjar/service/wallet"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// A .env file is optional; real environment variables take precedence.
	_ = godotenv.Load()

	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"network", cfg.Network(),
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	program, err := tipjar.NewProgram(cfg.ProgramID)
	if err != nil {
		logger.Error("invalid program id", "error", err)
		os.Exit(1)
	}
	solanaClient := newSolanaClient(cfg, m, logger)
	logger.Info("initialized solana RPC client",
		"network", cfg.Network(),
		"program_id", cfg.ProgramID.String(),
		"tipjar", program.Address().String(),
		"commitment", cfg.Commitment,
	)

	// Without a keypair the page is view-only; Connect reports the missing key.
	w := wallet.NewKeypairWallet(nil)
	if cfg.WalletKeypairPath != "" {
		loaded, err := wallet.LoadKeypairWallet(cfg.WalletKeypairPath)
		if err != nil {
			logger.Error("failed to load wallet", "error", err)
			os.Exit(1)
		}
		w = loaded
		logger.Info("loaded wallet keypair", "path", cfg.WalletKeypairPath)
	} else {
		logger.Warn("WALLET_KEYPAIR_PATH not set, tipping disabled")
	}

	var (
		publisher nats.Publisher
		events    server.EventSource
	)
	if cfg.NATSURL != "" {
		pub, err := nats.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Error("failed to connect NATS publisher", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		publisher = pub

		sub, err := nats.NewSubscriber(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to connect NATS subscriber", "error", err)
			os.Exit(1)
		}
		defer sub.Close()
		events = sub
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	}

	controller := view.New(ctx, view.Config{
		Chain:   solanaClient,
		Wallet:  w,
		Program: program,
		Network: cfg.Network(),
		PayLink: view.PayLink{
			SuggestedTip: cfg.SuggestedTip,
			Label:        cfg.PayLabel,
			Message:      cfg.PayMessage,
		},
		Publisher: publisher,
		Metrics:   m,
		Logger:    logger,
	})

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, controller, events, m, logger).WithGatherer(registry)
	if err := httpServer.WithTemplates(); err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newSolanaClient labels metrics with the detected network rather than the
// RPC URL, which may carry an API key.
func newSolanaClient(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *solana.Client {
	return solana.NewClient(solana.NewRPCClient(cfg.SolanaRPCURL), cfg.Network(), m, logger,
		solana.WithCommitment(cfg.Commitment),
		solana.WithPollInterval(cfg.ConfirmPollInterval),
	)
}
