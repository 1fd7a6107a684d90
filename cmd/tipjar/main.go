package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/tipjar/service/config"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "tipjar",
		Usage: "Solana tip jar CLI",
		Description: `A command-line tool for a single on-chain tip jar.

Read the account and send transactions directly over RPC with a local
keypair, drive a running tip jar server over HTTP, or follow tip events
from NATS or the server's event stream.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Direct RPC commands
			addressCommand(),
			accountCommand(),
			balanceCommand(),
			initializeCommand(),
			tipCommand(),
			withdrawCommand(),
			// Payment link commands
			payURICommand(),
			qrCommand(),
			// Client commands (HTTP API)
			remoteCommands(),
			// Event streaming commands
			eventsCommands(),
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Solana RPC endpoint",
				EnvVars: []string{"SOLANA_NETWORK"},
				Value:   config.DefaultRPCURL,
			},
			&cli.StringFlag{
				Name:    "program-id",
				Usage:   "Tip jar program id (defaults to the deployed program)",
				EnvVars: []string{"TIPJAR_PROGRAM_ID"},
			},
			&cli.StringFlag{
				Name:    "keypair",
				Aliases: []string{"k"},
				Usage:   "Path to a solana-keygen JSON keypair used to sign",
				EnvVars: []string{"WALLET_KEYPAIR_PATH"},
			},
			&cli.StringFlag{
				Name:    "commitment",
				Usage:   "Commitment to read at and wait for (processed, confirmed, finalized)",
				EnvVars: []string{"COMMITMENT"},
				Value:   "confirmed",
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Tip jar server URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level for diagnostics on stderr",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "error",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}
}

// newLogger logs to stderr: JSON with --json, colored text otherwise.
func newLogger(c *cli.Context) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		level = slog.LevelError
	}
	if c.Bool("json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

// signalContext is cancelled on interrupt so confirmation waits and
// streams stop cleanly.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}
