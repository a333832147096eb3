// Package models defines domain entities for the Spondex library sync engine.
//
// The package contains two categories of types:
//
// 1. Snapshot entities: rows mirroring what each service reported on the last pass
//   - [Track] : liked tracks with their normalized matching key
//   - [Playlist] / [PlaylistTrack] : playlist headers and ordered track listings
//   - [FavoriteAlbum] / [FavoriteArtist] : saved albums and followed artists
//
// 2. Reconciliation records: durable state the sync loop builds up over passes
//   - [Link] : the crosswalk pairing one Spotify id with one Yandex id per entity kind
//   - [UndiscoveredTrack] : tracks confirmed absent from a service's catalog
//
// Entities carry a NormalizedKey computed by the matching package; two entities
// on opposite services with equal non-empty keys are considered the same thing.
package models
