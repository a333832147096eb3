package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/spondex/internal/server"
	"github.com/desertthunder/spondex/internal/services"
	"github.com/desertthunder/spondex/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the Spotify authorization-code flow. It serves the redirect
// callback locally, opens the authorization page, and persists the token.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	spotify, ok := r.spotify.(*services.SpotifyClient)
	if !ok || spotify == nil {
		return fmt.Errorf("%w: Spotify client not configured, check credentials in %s", shared.ErrMissingCredentials, r.configPath)
	}

	state := shared.GenerateID()
	handler := server.NewOAuthHandler(spotify.Exchange, state)

	router := server.NewRouter()
	router.Use(server.LogRequests(r.logger))
	router.Handler(handler)

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	go func() {
		if err := server.Serve(serveCtx, addr, router, r.logger); err != nil {
			r.logger.Error("callback server stopped", "error", err)
		}
	}()

	authURL := spotify.GetAuthURL(state)
	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL to authorize:\n%s\n", authURL)
	} else {
		r.logger.Info("opening browser for authorization")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
			r.writePlain("Open this URL to authorize:\n%s\n", authURL)
		}
	}

	select {
	case result := <-handler.Result():
		if err := result.Error(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
		}

		spotify.SetToken(result.Token)

		tokenPath := r.config.Credentials.Spotify.TokenPath
		if err := services.SaveSpotifyToken(tokenPath, result.Token); err != nil {
			r.logger.Warn("failed to persist token", "error", err)
		} else {
			r.logger.Info("token saved", "path", tokenPath)
		}

		return r.writePlain("✓ Spotify authentication successful\n")

	case <-time.After(cmd.Duration("timeout")):
		return fmt.Errorf("%w: no callback received", shared.ErrTimeout)

	case <-ctx.Done():
		return ctx.Err()
	}
}

// AuthStatus reports the authentication state of both services.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	tokenPath := r.config.Credentials.Spotify.TokenPath
	token, err := services.LoadSpotifyToken(tokenPath)

	switch {
	case err != nil:
		r.writePlain("Spotify: ✗ Not authenticated (run 'spondex auth login')\n")
	case !token.Valid() && token.RefreshToken == "":
		r.writePlain("Spotify: ✗ Token expired at %s\n", token.Expiry.Format(time.RFC3339))
	case !token.Valid():
		r.writePlain("Spotify: ✓ Token expired at %s, will refresh on next use\n", token.Expiry.Format(time.RFC3339))
	default:
		r.writePlain("Spotify: ✓ Authenticated (expires %s)\n", token.Expiry.Format(time.RFC3339))
	}

	tokenEnv := r.config.Credentials.Yandex.TokenEnv
	if _, err := shared.RequireEnv(tokenEnv); err != nil {
		r.writePlain("Yandex:  ✗ %s not set\n", tokenEnv)
	} else {
		r.writePlain("Yandex:  ✓ Token present in %s\n", tokenEnv)
	}

	return nil
}
