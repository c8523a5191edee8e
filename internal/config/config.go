// Package config loads matchd's runtime settings from an optional .env
// file and the environment (github.com/joho/godotenv, as the pack's
// uhyunpark-hyperlicked and vaultstring repos load their own config),
// with command-line flags overriding both — the same env-then-flags
// precedence the teacher's cmd/client/client.go already applies to its own
// CLI parameters via the stdlib flag package.
package config

import (
	"flag"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"vaultex/internal/common"
	"vaultex/internal/fees"
)

// Config is everything matchd needs to construct an Engine and a wire
// Server. It never touches the matching core directly.
type Config struct {
	ListenAddr  string
	Workers     int
	PotAccount  common.AccountId
	DefaultFees fees.AccountFee
	DefaultPair common.TradingPairConfig
}

func defaults() Config {
	return Config{
		ListenAddr:  "127.0.0.1:9101",
		Workers:     10,
		PotAccount:  "vaultex-fee-pot",
		DefaultFees: fees.AccountFee{MakerFraction: decimal.Zero, TakerFraction: decimal.Zero},
		DefaultPair: common.TradingPairConfig{
			Pair:        common.TradingPair{Base: "BTC", Quote: "USD"},
			MinVolume:   decimal.RequireFromString("0.00000001"),
			QtyStepSize: decimal.RequireFromString("0.00000001"),
		},
	}
}

// Load reads envPath (if non-empty) via godotenv, then the process
// environment, then command-line flags, in increasing priority, and
// returns the resulting Config. Missing optional values fall back to
// documented defaults.
func Load(envPath string, args []string) Config {
	cfg := defaults()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("VAULTEX_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("VAULTEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("VAULTEX_FEE_POT_ACCOUNT"); v != "" {
		cfg.PotAccount = common.AccountId(v)
	}
	if v := os.Getenv("VAULTEX_DEFAULT_MAKER_FEE"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			cfg.DefaultFees.MakerFraction = d
		}
	}
	if v := os.Getenv("VAULTEX_DEFAULT_TAKER_FEE"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			cfg.DefaultFees.TakerFraction = d
		}
	}
	if v := os.Getenv("VAULTEX_MIN_VOLUME"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			cfg.DefaultPair.MinVolume = d
		}
	}
	if v := os.Getenv("VAULTEX_QTY_STEP_SIZE"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			cfg.DefaultPair.QtyStepSize = d
		}
	}
	if v := os.Getenv("VAULTEX_BASE_ASSET"); v != "" {
		cfg.DefaultPair.Pair.Base = common.AssetId(v)
	}
	if v := os.Getenv("VAULTEX_QUOTE_ASSET"); v != "" {
		cfg.DefaultPair.Pair.Quote = common.AssetId(v)
	}

	fs := flag.NewFlagSet("matchd", flag.ContinueOnError)
	listenAddr := fs.String("listen", cfg.ListenAddr, "TCP address to listen on")
	workers := fs.Int("workers", cfg.Workers, "worker-pool size")
	potAccount := fs.String("fee-pot", string(cfg.PotAccount), "fee-pot account id")
	makerFee := fs.String("maker-fee", cfg.DefaultFees.MakerFraction.String(), "default maker fee fraction")
	takerFee := fs.String("taker-fee", cfg.DefaultFees.TakerFraction.String(), "default taker fee fraction")
	_ = fs.Parse(args)

	cfg.ListenAddr = *listenAddr
	cfg.Workers = *workers
	cfg.PotAccount = common.AccountId(*potAccount)
	if d, err := decimal.NewFromString(*makerFee); err == nil {
		cfg.DefaultFees.MakerFraction = d
	}
	if d, err := decimal.NewFromString(*takerFee); err == nil {
		cfg.DefaultFees.TakerFraction = d
	}

	return cfg
}
