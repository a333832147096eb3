package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/spondex/internal/services"
	"github.com/desertthunder/spondex/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	shared.LoadEnv()
	logger := shared.NewLogger(nil)

	configPath := "config.toml"
	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "error", err)
		}
	}

	var spotify services.Client
	if svc, err := services.NewSpotifyClient(config.Credentials.Spotify); err == nil {
		if token, err := services.LoadSpotifyToken(config.Credentials.Spotify.TokenPath); err == nil {
			svc.SetToken(token)
		}
		spotify = svc
	} else {
		logger.Debug("spotify client not configured", "error", err)
	}

	var yandex services.Client
	if token, err := shared.RequireEnv(config.Credentials.Yandex.TokenEnv); err == nil {
		if svc, err := services.NewYandexClient(config.Credentials.Yandex, token); err == nil {
			yandex = svc
		} else {
			logger.Debug("yandex client not configured", "error", err)
		}
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Spotify:    spotify,
		Yandex:     yandex,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "spondex",
		Usage:    "Reconcile Spotify & Yandex Music libraries",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("application error: %v", err)
	}
}
