// Package config loads a peer's startup configuration: where its durable
// store and identity seed live, the genesis stake table it should boot
// from if no store already exists, and how often it runs a merge round.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/latticenet/core/pkg/cell"
	"github.com/latticenet/core/pkg/state"
)

// Config is a peer's full startup configuration.
type Config struct {
	// StorePath is the pebble data directory backing the peer's CellStore.
	StorePath string
	// SeedPath is the file holding the peer's 32-byte Ed25519 identity
	// seed. Created on first run if absent.
	SeedPath string
	// LogFile is the path structured logs are written to, in addition to
	// stdout.
	LogFile string

	// MergeInterval paces how often the peer runs a belief-merge round
	// against its known remote peers.
	MergeInterval time.Duration

	// MetricsAddr is the address the Prometheus /metrics endpoint listens
	// on. Empty disables it.
	MetricsAddr string

	// Genesis is the stake table a fresh store is bootstrapped from. Empty
	// unless GENESIS_ACCOUNTS names entries explicitly; main falls back to
	// a single self-staked entry when this is empty.
	Genesis          []state.StakeEntry
	GenesisTimestamp int64
}

// Default returns the configuration a fresh devnet peer starts with.
func Default() Config {
	return Config{
		StorePath:        "data/peer.db",
		SeedPath:         "data/peer.seed",
		LogFile:          "data/peerd.log",
		MergeInterval:    200 * time.Millisecond,
		MetricsAddr:      "",
		Genesis:          nil,
		GenesisTimestamp: 0,
	}
}

// LoadFromEnv loads configuration from an .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults. envPath ""
// loads .env from the current directory.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("PEER_STORE_PATH"); v != "" {
		cfg.StorePath = v
	}
	if v := os.Getenv("PEER_SEED_PATH"); v != "" {
		cfg.SeedPath = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("PEER_MERGE_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.MergeInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("GENESIS_TIMESTAMP"); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.GenesisTimestamp = ts
		}
	}
	if v := os.Getenv("GENESIS_ACCOUNTS"); v != "" {
		entries, err := parseGenesisAccounts(v)
		if err == nil {
			cfg.Genesis = entries
		}
	}

	return cfg
}

// parseGenesisAccounts parses a comma-separated list of
// "hexaddress:balance:stake" triples, the format GENESIS_ACCOUNTS names.
func parseGenesisAccounts(s string) ([]state.StakeEntry, error) {
	var out []state.StakeEntry
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		parts := strings.Split(field, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("config: genesis account %q: want hexaddress:balance:stake", field)
		}
		raw, err := hex.DecodeString(parts[0])
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("config: genesis account %q: bad address", field)
		}
		var addr cell.Address
		copy(addr[:], raw)
		balance, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: genesis account %q: bad balance", field)
		}
		stake, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: genesis account %q: bad stake", field)
		}
		out = append(out, state.StakeEntry{Owner: addr, Balance: balance, Stake: stake})
	}
	return out, nil
}
