package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/chatter-irc/chatter/internal/config"
	"github.com/chatter-irc/chatter/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.SetLevelFromString(cfg.LogLevel)

	app, err := NewApp(cfg)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("failed to initialize application")
	}

	if err := app.Startup(); err != nil {
		logger.Log.Fatal().Err(err).Msg("failed to start application")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.Log.Info().Str("signal", sig.String()).Msg("shutting down")

	app.Shutdown()
}
