package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brojonat/tipjar/service/tipjar"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Config holds all application configuration loaded from environment variables.
// All fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// NATS configuration; empty disables event publishing.
	NATSURL string

	// Solana configuration
	SolanaRPCURL        string
	ProgramID           solana.PublicKey
	WalletKeypairPath   string
	Commitment          rpc.CommitmentType
	ConfirmPollInterval time.Duration

	// Payment link configuration
	SuggestedTip uint64 // lamports
	PayLabel     string
	PayMessage   string
}

// Network labels for the configured RPC endpoint.
const (
	NetworkLocal   = "local"
	NetworkDevnet  = "devnet"
	NetworkMainnet = "mainnet"
	NetworkCustom  = "custom"
)

// DefaultRPCURL is a local test validator.
const DefaultRPCURL = "http://127.0.0.1:8899"

// Load reads configuration from environment variables and validates all fields.
// Every problem is reported, not just the first.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.NATSURL = os.Getenv("NATS_URL")

	cfg.SolanaRPCURL = getEnvOrDefault("SOLANA_NETWORK", DefaultRPCURL)
	cfg.WalletKeypairPath = os.Getenv("WALLET_KEYPAIR_PATH")

	programID, err := tipjar.ParseProgramID(os.Getenv("TIPJAR_PROGRAM_ID"))
	if err != nil {
		errs = append(errs, fmt.Errorf("TIPJAR_PROGRAM_ID: %w", err))
	} else {
		cfg.ProgramID = programID
	}

	commitment, err := ParseCommitment(getEnvOrDefault("COMMITMENT", string(rpc.CommitmentConfirmed)))
	if err != nil {
		errs = append(errs, fmt.Errorf("COMMITMENT: %w", err))
	} else {
		cfg.Commitment = commitment
	}

	pollInterval, err := parseDuration("CONFIRM_POLL_INTERVAL", "500ms")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmPollInterval = pollInterval
	}

	suggested, err := tipjar.ParseSOL(getEnvOrDefault("SUGGESTED_TIP_SOL", "0.1"))
	if err != nil {
		errs = append(errs, fmt.Errorf("SUGGESTED_TIP_SOL: %w", err))
	} else {
		cfg.SuggestedTip = suggested
	}

	cfg.PayLabel = getEnvOrDefault("PAY_LABEL", tipjar.DefaultPayLabel)
	cfg.PayMessage = getEnvOrDefault("PAY_MESSAGE", tipjar.DefaultPayMessage)

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if c.ProgramID.IsZero() {
		errs = append(errs, fmt.Errorf("ProgramID is required"))
	}

	if c.ConfirmPollInterval < 10*time.Millisecond {
		errs = append(errs, fmt.Errorf("ConfirmPollInterval must be at least 10ms"))
	}

	if c.SuggestedTip == 0 {
		errs = append(errs, fmt.Errorf("SuggestedTip must be greater than 0"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// Network guesses which cluster SolanaRPCURL points at.
func (c *Config) Network() string {
	return DetectNetwork(c.SolanaRPCURL)
}

// DetectNetwork classifies an RPC endpoint by substring.
func DetectNetwork(endpoint string) string {
	switch e := strings.ToLower(endpoint); {
	case strings.Contains(e, "127.0.0.1"), strings.Contains(e, "localhost"):
		return NetworkLocal
	case strings.Contains(e, "devnet"):
		return NetworkDevnet
	case strings.Contains(e, "mainnet"):
		return NetworkMainnet
	default:
		return NetworkCustom
	}
}

// ParseCommitment accepts processed, confirmed or finalized.
func ParseCommitment(s string) (rpc.CommitmentType, error) {
	switch c := rpc.CommitmentType(strings.ToLower(strings.TrimSpace(s))); c {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
		return c, nil
	default:
		return "", fmt.Errorf("unsupported commitment %q (want processed, confirmed or finalized)", s)
	}
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}
