package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spondex/internal/server"
	"github.com/desertthunder/spondex/internal/shared"
	"github.com/desertthunder/spondex/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SyncRun runs sync passes forever, sleeping between them, until interrupted.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	opts, err := r.syncOptions(cmd)
	if err != nil {
		return err
	}
	opts.Sleep = cmd.Duration("sleep")

	if err := r.requireClients(); err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	sync := tasks.NewSynchronizer(db, r.spotify, r.yandex, r.logger)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	sync.SetProgress(progressCh)
	go r.printProgress(progressCh)
	defer close(progressCh)

	if cmd.Bool("serve-status") {
		addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
		router := server.NewRouter()
		router.Use(server.LogRequests(r.logger))
		router.Handler(server.NewStatusHandler("spondex", sync.Status))

		go func() {
			if err := server.Serve(ctx, addr, router, r.logger); err != nil {
				r.logger.Error("status server stopped", "error", err)
			}
		}()
	}

	r.logger.Info("starting sync loop", "sleep", opts.Sleep, "track_target", opts.TrackTarget)
	return sync.Run(ctx, opts)
}

// SyncOnce runs a single sync pass and exits.
func (r *Runner) SyncOnce(ctx context.Context, cmd *cli.Command) error {
	opts, err := r.syncOptions(cmd)
	if err != nil {
		return err
	}

	if err := r.requireClients(); err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	sync := tasks.NewSynchronizer(db, r.spotify, r.yandex, r.logger)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	sync.SetProgress(progressCh)
	go r.printProgress(progressCh)
	defer close(progressCh)

	if err := sync.RunOnce(ctx, opts); err != nil {
		return err
	}

	status := sync.Status()
	r.writePlain("\n")
	r.writePlainHeader("Sync Pass Complete")
	r.writePlain("Finished at: %s\n", status.LastPassAt.Format("2006-01-02 15:04:05"))
	return nil
}

// syncOptions builds pass options from the shared sync flags.
func (r *Runner) syncOptions(cmd *cli.Command) (tasks.Options, error) {
	opts := tasks.Options{
		ForceFullSync:            cmd.Bool("force-full-sync"),
		TrackTarget:              tasks.Target(cmd.String("track-sync-target")),
		RemoveDuplicates:         cmd.Bool("remove-duplicates"),
		SyncPlaylists:            cmd.Bool("sync-playlists"),
		IncludeFollowedPlaylists: cmd.Bool("include-followed-playlists"),
		SyncFavoriteAlbums:       cmd.Bool("sync-favorite-albums"),
		SyncFavoriteArtists:      cmd.Bool("sync-favorite-artists"),
		FavoriteReadonly:         cmd.Bool("favorite-sync-readonly"),
		FavoriteTarget:           tasks.Target(cmd.String("favorite-sync-target")),
	}

	if !opts.TrackTarget.Valid() {
		return opts, fmt.Errorf("%w: unknown track sync target %q", shared.ErrInvalidFlag, opts.TrackTarget)
	}
	if !opts.FavoriteTarget.Valid() {
		return opts, fmt.Errorf("%w: unknown favorite sync target %q", shared.ErrInvalidFlag, opts.FavoriteTarget)
	}

	return opts, nil
}

// requireClients verifies both service clients were constructed at startup.
func (r *Runner) requireClients() error {
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify client not configured, check credentials in %s", shared.ErrMissingCredentials, r.configPath)
	}
	if r.yandex == nil {
		return fmt.Errorf("%w: Yandex client not configured, set the token env named in %s", shared.ErrMissingCredentials, r.configPath)
	}
	return nil
}

// printProgress renders progress updates until the channel closes.
func (r *Runner) printProgress(ch <-chan tasks.ProgressUpdate) {
	for update := range ch {
		switch update.Phase {
		case tasks.Fetching:
			r.writePlain("📥 %s\n", update.Message)
		case tasks.PersistingSnapshot:
			r.writePlain("💾 %s\n", update.Message)
		case tasks.Matching:
			r.writePlain("🔍 %s\n", update.Message)
		case tasks.Applying:
			r.writePlain("   %s\n", update.Message)
		case tasks.CursorAdvance:
			r.writePlain("✓ %s\n", update.Message)
		case tasks.Sleeping:
			r.writePlain("💤 %s\n", update.Message)
		}
	}
}
