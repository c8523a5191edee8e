// Command matchd runs the TCP matching-engine server: it loads
// configuration, constructs an Engine, and serves wire.Server connections
// until SIGINT/SIGTERM. Grounded on the teacher's cmd/server/server.go.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"vaultex/internal/config"
	"vaultex/internal/engine"
	"vaultex/internal/wire"
)

func main() {
	envPath := flag.String("env", "", "path to a .env file (optional; defaults to ./.env if present)")
	flag.Parse()

	cfg := config.Load(*envPath, flag.Args())

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	eng := engine.New(cfg.PotAccount, cfg.DefaultFees)
	eng.AddTradingPair(cfg.DefaultPair)

	srv := wire.New(cfg.ListenAddr, eng, cfg.Workers)

	log.Info().Str("address", cfg.ListenAddr).Int("workers", cfg.Workers).Msg("starting matchd")
	go func() {
		if err := srv.Run(ctx); err != nil {
			log.Error().Err(err).Msg("server exited")
			os.Exit(1)
		}
	}()

	<-ctx.Done()
}
