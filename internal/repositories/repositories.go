// package repositories provides the persistence layer for sync state.
//
// Repositories cover three kinds of state: per-service snapshots (tracks,
// playlists, favorites) refreshed wholesale each pass, the cross-service link
// crosswalk, and bookkeeping rows (sync cursors, undiscovered tracks).
package repositories

import (
	"fmt"
	"strings"

	"github.com/desertthunder/spondex/internal/models"
	"github.com/desertthunder/spondex/internal/shared"
)

// linkTable maps an entity kind to its crosswalk table.
func linkTable(kind models.EntityKind) (string, error) {
	switch kind {
	case models.KindTrack:
		return "track_links", nil
	case models.KindAlbum:
		return "album_links", nil
	case models.KindArtist:
		return "artist_links", nil
	default:
		return "", fmt.Errorf("unknown entity kind %q: %w", kind, shared.ErrInvalidArgument)
	}
}

// placeholders returns a comma-separated list of n SQL parameter markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
