package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spondex/internal/models"
)

// linksFetchedMsg carries a freshly loaded set of links for one entity kind.
type linksFetchedMsg struct {
	kind  models.EntityKind
	links []models.Link
	err   error
}

var _ tea.Msg = linksFetchedMsg{}
