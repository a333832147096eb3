package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/spondex/internal/models"
)

var _ list.Item = linkItem{}

// linkItem wraps [models.Link] to implement [list.Item].
type linkItem struct {
	link models.Link
}

func (i linkItem) FilterValue() string { return i.link.NormalizedKey }
func (i linkItem) Title() string       { return i.link.NormalizedKey }
func (i linkItem) Description() string {
	return fmt.Sprintf("spotify:%s • yandex:%s", i.link.SpotifyID, i.link.YandexID)
}
