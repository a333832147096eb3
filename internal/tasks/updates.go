package tasks

import (
	"fmt"
	"time"

	"github.com/desertthunder/spondex/internal/models"
	"github.com/desertthunder/spondex/internal/services"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration, one value per stage of a sync pass.
type Phase int

const (
	Fetching Phase = iota
	PersistingSnapshot
	Matching
	Applying
	CursorAdvance
	Sleeping
)

func (p Phase) String() string {
	switch p {
	case Fetching:
		return "fetching"
	case PersistingSnapshot:
		return "persisting_snapshot"
	case Matching:
		return "matching"
	case Applying:
		return "applying"
	case CursorAdvance:
		return "cursor_advance"
	case Sleeping:
		return "sleeping"
	default:
		return ""
	}
}

func fetchingTracksUpdate(service models.Service) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Fetching,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching liked tracks from %s...", service),
	}
}

func fetchingPlaylistsUpdate(service models.Service) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Fetching,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching playlists from %s...", service),
	}
}

func fetchingFavoritesUpdate(kind models.EntityKind) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Fetching,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching favorite %ss from both services...", kind),
	}
}

func snapshotUpdate(noun string, service models.Service, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PersistingSnapshot,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Recording %d %s snapshot rows for %s...", count, noun, service),
	}
}

func matchingUpdate(kind models.EntityKind, left, right int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Matching,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Matching %d yandex %ss against %d spotify %ss...", left, kind, right, kind),
	}
}

func applyingTrackUpdate(step, total int, track services.Track, target models.Service) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Applying,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s on %s", step, total, track.Artist, track.Title, target),
		Data:    track,
	}
}

func applyingFavoriteUpdate(step, total int, name string, target models.Service) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Applying,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s on %s", step, total, name, target),
	}
}

func mirroringPlaylistUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Applying,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Mirroring playlist: %s...", step, total, title),
	}
}

func cursorUpdate(service models.Service) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CursorAdvance,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Advancing %s sync cursor", service),
	}
}

func sleepingUpdate(wait time.Duration) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Sleeping,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Sleeping for %s until the next pass...", wait),
	}
}
