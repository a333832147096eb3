// Package tasks orchestrates library reconciliation between Spotify and Yandex Music with real-time progress reporting.
//
// # Core Operations
//
// [Synchronizer] runs four sync kinds, each a fetch → snapshot → match → apply sequence:
//
//  1. [Synchronizer.SyncTracks] : Liked tracks, both directions
//     - Fetches each service's likes since that service's sync cursor
//     - Pushes unlinked tracks to the other service via exact-match search
//     - Records a crosswalk link per added track, advances the cursor on completion
//
//  2. [Synchronizer.SyncPlaylists] : Owned Spotify playlists mirrored onto Yandex
//     - Pairs playlists by normalized title, creating missing ones
//     - Resolves tracks through the link store before falling back to search
//     - Snapshots both services' playlists after mirroring
//
//  3. [Synchronizer.SyncFavoriteAlbums] : Saved albums
//     - Diffs both sides by normalized name and artist, links matched pairs
//     - Saves one-sided albums on the services the favorite target allows
//
//  4. [Synchronizer.SyncFavoriteArtists] : Followed artists, keyed by normalized name
//
// [Synchronizer.Run] wraps the kinds selected by [Options] in an endless
// pass/sleep loop; a failed pass is retried after a fixed cooldown without
// advancing any cursor. [Synchronizer.RunOnce] executes a single pass.
//
// # Progress Reporting
//
// # All operations use a non-blocking channel for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Failure Isolation
//
// A fetch or persistence failure aborts the running kind and surfaces from the
// pass. A failure applying a single entity (a track that cannot be found, a
// playlist that cannot be created) only skips that entity; tracks absent from
// the target's catalog are recorded for review via the undiscovered table.
package tasks
