// package tasks implements library reconciliation passes between Spotify and Yandex Music.
//
// The core abstraction is Synchronizer, which orchestrates liked track, playlist, and favorite syncs.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spondex/internal/models"
	"github.com/desertthunder/spondex/internal/repositories"
	"github.com/desertthunder/spondex/internal/services"
	"github.com/desertthunder/spondex/internal/shared"
)

// passCooldown is how long the loop waits after a failed pass before retrying.
const passCooldown = time.Minute

// Target restricts which service receives changes during a sync pass.
type Target string

const (
	TargetBoth    Target = "both"
	TargetSpotify Target = "spotify"
	TargetYandex  Target = "yandex"
)

// Valid reports whether t is a known target selector.
func (t Target) Valid() bool {
	return t == TargetBoth || t == TargetSpotify || t == TargetYandex
}

// Includes reports whether changes may be applied to the given service.
func (t Target) Includes(service models.Service) bool {
	return t == TargetBoth || string(t) == string(service)
}

// Options selects which sync kinds run during a pass and how they behave.
type Options struct {
	Sleep                    time.Duration // pause between passes
	ForceFullSync            bool          // ignore cursors and reprocess every track
	TrackTarget              Target        // which service receives liked tracks
	RemoveDuplicates         bool          // drop repeated likes once, after the first clean pass
	SyncPlaylists            bool
	IncludeFollowedPlaylists bool
	SyncFavoriteAlbums       bool
	SyncFavoriteArtists      bool
	FavoriteReadonly         bool   // snapshot and link favorites without applying changes
	FavoriteTarget           Target // which service receives favorites
}

// PassStatus is a point-in-time view of the sync loop for health reporting.
type PassStatus struct {
	LastPassAt time.Time `json:"last_pass_at"`
	Passes     int       `json:"passes"`
	Failures   int       `json:"failures"`
	LastError  string    `json:"last_error,omitempty"`
}

// Synchronizer reconciles the libraries of the two services. Each sync kind
// runs the same sequence: fetch from the services, persist raw snapshots,
// match, record links, apply the unmatched remainder, and advance cursors.
//
// A Synchronizer is single-writer by design; only Status may be called
// concurrently with a running pass.
type Synchronizer struct {
	spotify services.Client
	yandex  services.Client

	links        *repositories.LinkRepository
	tracks       *repositories.TrackRepository
	playlists    *repositories.PlaylistRepository
	favorites    *repositories.FavoriteRepository
	history      *repositories.HistoryRepository
	undiscovered *repositories.UndiscoveredRepository

	logger   *log.Logger
	progress chan<- ProgressUpdate

	mu     sync.Mutex
	status PassStatus
}

// NewSynchronizer creates a Synchronizer backed by the given database handle
// and service clients.
func NewSynchronizer(db *sql.DB, spotify, yandex services.Client, logger *log.Logger) *Synchronizer {
	return &Synchronizer{
		spotify:      spotify,
		yandex:       yandex,
		links:        repositories.NewLinkRepository(db),
		tracks:       repositories.NewTrackRepository(db),
		playlists:    repositories.NewPlaylistRepository(db),
		favorites:    repositories.NewFavoriteRepository(db),
		history:      repositories.NewHistoryRepository(db),
		undiscovered: repositories.NewUndiscoveredRepository(db),
		logger:       logger,
	}
}

// SetProgress directs progress updates to ch. A nil channel disables reporting.
func (s *Synchronizer) SetProgress(ch chan<- ProgressUpdate) {
	s.progress = ch
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (s *Synchronizer) sendProgress(update ProgressUpdate) {
	if s.progress == nil {
		return
	}
	select {
	case s.progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// Run executes sync passes forever, sleeping between them, until ctx is
// canceled. A failed pass logs the error and retries after a fixed cooldown;
// cursors from the failed pass stay unchanged, so the next pass reprocesses
// the same window.
func (s *Synchronizer) Run(ctx context.Context, opts Options) error {
	if !opts.TrackTarget.Valid() {
		return fmt.Errorf("%w: unknown track sync target %q", shared.ErrInvalidFlag, opts.TrackTarget)
	}
	if !opts.FavoriteTarget.Valid() {
		return fmt.Errorf("%w: unknown favorite sync target %q", shared.ErrInvalidFlag, opts.FavoriteTarget)
	}

	interval := opts.Sleep
	if interval <= 0 {
		interval = time.Minute
	}

	pending := opts
	for {
		err := s.RunOnce(ctx, pending)
		s.recordPass(err)

		wait := interval
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("sync pass failed", "error", err)
			wait = passCooldown
		} else {
			s.logger.Info("sync pass finished")
			// Duplicate removal is a one-shot cleanup; later passes keep
			// their likes deduplicated through the link store.
			pending.RemoveDuplicates = false
		}

		s.sendProgress(sleepingUpdate(wait))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// RunOnce executes a single sync pass: liked tracks always, then playlists
// and favorites when enabled.
func (s *Synchronizer) RunOnce(ctx context.Context, opts Options) error {
	if err := s.SyncTracks(ctx, opts); err != nil {
		return fmt.Errorf("track sync: %w", err)
	}
	if opts.SyncPlaylists {
		if err := s.SyncPlaylists(ctx, opts); err != nil {
			return fmt.Errorf("playlist sync: %w", err)
		}
	}
	if opts.SyncFavoriteAlbums {
		if err := s.SyncFavoriteAlbums(ctx, opts); err != nil {
			return fmt.Errorf("favorite album sync: %w", err)
		}
	}
	if opts.SyncFavoriteArtists {
		if err := s.SyncFavoriteArtists(ctx, opts); err != nil {
			return fmt.Errorf("favorite artist sync: %w", err)
		}
	}
	if opts.RemoveDuplicates {
		if err := s.RemoveDuplicates(ctx); err != nil {
			return fmt.Errorf("duplicate removal: %w", err)
		}
	}
	return nil
}

// Status returns a copy of the loop's pass counters. Safe to call from other
// goroutines, such as the status endpoint.
func (s *Synchronizer) Status() PassStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Synchronizer) recordPass(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastPassAt = time.Now().UTC()
	if err != nil {
		s.status.Failures++
		s.status.LastError = err.Error()
		return
	}
	s.status.Passes++
	s.status.LastError = ""
}
