// package formatter renders crosswalk links, undiscovered tracks, and sync
// snapshots for CLI output (plain text, CSV, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/spondex/internal/models"
	"github.com/desertthunder/spondex/internal/shared"
)

// LinksToCSV renders links as CSV with columns: Kind, SpotifyID, YandexID,
// NormalizedKey, CreatedAt.
func LinksToCSV(links []models.Link) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Kind", "SpotifyID", "YandexID", "NormalizedKey", "CreatedAt"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, link := range links {
		record := []string{
			string(link.Kind),
			link.SpotifyID,
			link.YandexID,
			link.NormalizedKey,
			link.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// LinksToText renders links as a numbered plain-text listing.
func LinksToText(kind models.EntityKind, links []models.Link) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("%s links: %d\n\n", kind, len(links)))
	for i, link := range links {
		buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, link.NormalizedKey))
		buf.WriteString(fmt.Sprintf("   spotify:%s <-> yandex:%s\n", link.SpotifyID, link.YandexID))
	}

	return buf.Bytes()
}

// UndiscoveredToText renders tracks that could not be found on a target
// service for manual review.
func UndiscoveredToText(service models.Service, tracks []models.UndiscoveredTrack) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Tracks not found on %s: %d\n\n", service, len(tracks)))
	for i, track := range tracks {
		buf.WriteString(fmt.Sprintf("%d. %s - %s", i+1, track.Artist, track.Title))
		if track.Album != "" {
			buf.WriteString(fmt.Sprintf(" (%s)", track.Album))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes()
}

// SnapshotSummaryToText renders per-service entity counts for one kind.
func SnapshotSummaryToText(noun string, counts map[models.Service]int) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("%s snapshot:\n", noun))
	for _, service := range []models.Service{models.ServiceSpotify, models.ServiceYandex} {
		buf.WriteString(fmt.Sprintf("  %s: %d\n", service, counts[service]))
	}

	return buf.Bytes()
}

// LinksToJSON renders links as JSON, optionally indented.
func LinksToJSON(links []models.Link, pretty bool) ([]byte, error) {
	return shared.MarshalJSON(links, pretty)
}

// WriteLinksExport writes a kind's links to {base}_links.csv; base defaults
// to the kind name.
func WriteLinksExport(kind models.EntityKind, links []models.Link, base string) (string, error) {
	if base == "" {
		base = string(kind)
	}

	data, err := LinksToCSV(links)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}

	path := base + "_links.csv"
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}

	return path, nil
}
