// Package repositories implements SQLite persistence for all sync state.
//
// Snapshot repositories are refreshed wholesale each pass: every entity a
// service reports is upserted, then rows absent from the fresh listing are
// pruned. Absent rows are reported as ok=false, never as errors.
//
// Key Implementations:
//   - [LinkRepository] : the cross-service id crosswalk with supersede-on-relink semantics
//   - [TrackRepository] : liked track snapshots per service
//   - [PlaylistRepository] : playlist headers plus ordered track listings
//   - [FavoriteRepository] : saved albums and followed artists
//   - [HistoryRepository] : per-service sync cursors bounding incremental fetches
//   - [UndiscoveredRepository] : tracks confirmed absent from a service's catalog
//
// Link rows enforce at-most-one-link-per-id by deleting any row touching
// either id before inserting a new pair, inside a single transaction.
package repositories
