// Package matching converts free-text entity names into canonical comparison
// keys and diffs entity sequences from two services by those keys.
package matching

import (
	"regexp"
	"strings"
)

// Separator joins the parts of a composite key. It can never appear inside a
// normalized part, so a two-field key cannot collide with a one-field key.
const Separator = "::"

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Normalize converts free text into a canonical comparison key: lowercased,
// with every run of characters outside [a-z0-9] replaced by a single space,
// and surrounding whitespace trimmed. Empty input yields an empty string.
// Normalize is idempotent.
func Normalize(value string) string {
	if value == "" {
		return ""
	}
	lowered := strings.ToLower(value)
	simplified := nonAlphanumeric.ReplaceAllString(lowered, " ")
	return strings.TrimSpace(simplified)
}

// TrackKey returns the comparison key for a track title.
func TrackKey(title string) string {
	return Normalize(title)
}

// ArtistKey returns the comparison key for an artist name.
func ArtistKey(name string) string {
	return Normalize(name)
}

// AlbumKey returns the comparison key for an album, combining its name and
// artist. An empty part keeps its position so that ("the wall", "") and
// ("", "the wall") produce distinct keys; only when both parts are empty does
// the album have no key at all.
func AlbumKey(name, artist string) string {
	n := Normalize(name)
	a := Normalize(artist)
	if n == "" && a == "" {
		return ""
	}
	return n + Separator + a
}
