package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spondex/internal/models"
	"github.com/desertthunder/spondex/internal/repositories"
)

// kindOrder is the tab-cycling order for the browser.
var kindOrder = []models.EntityKind{models.KindTrack, models.KindAlbum, models.KindArtist}

// Model represents the crosswalk browser state.
type Model struct {
	repo     *repositories.LinkRepository
	kind     models.EntityKind
	width    int
	height   int
	linkList list.Model
	ready    bool
	err      error
	help     help.Model
	keys     keyMap
}

// NewModel creates a browser over the given link repository, starting on
// track links.
func NewModel(repo *repositories.LinkRepository) *Model {
	return &Model{
		repo: repo,
		kind: models.KindTrack,
		help: help.New(),
		keys: newKeyMap(),
	}
}

// Init loads the initial set of links.
func (m *Model) Init() tea.Cmd {
	return m.fetchLinks(m.kind)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.ready {
			m.linkList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		if m.ready && m.linkList.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.cycle):
			return m, m.fetchLinks(nextKind(m.kind))
		case key.Matches(msg, m.keys.refresh):
			return m, m.fetchLinks(m.kind)
		}

	case linksFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.kind = msg.kind
		items := make([]list.Item, len(msg.links))
		for i, link := range msg.links {
			items[i] = linkItem{link: link}
		}
		m.linkList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.linkList.Title = fmt.Sprintf("%s links (%d)", msg.kind, len(msg.links))
		m.linkList.SetSize(m.width-4, m.height-8)
		m.ready = true
		return m, nil
	}

	if !m.ready {
		return m, nil
	}

	var cmd tea.Cmd
	m.linkList, cmd = m.linkList.Update(msg)
	return m, cmd
}

// View renders the browser.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}
	if !m.ready {
		return styles.help.Render("Loading links...")
	}

	helpKeys := []key.Binding{m.keys.cycle, m.keys.refresh, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.linkList.View(), helpView)
}

func (m *Model) fetchLinks(kind models.EntityKind) tea.Cmd {
	return func() tea.Msg {
		links, err := m.repo.List(kind)
		return linksFetchedMsg{kind: kind, links: links, err: err}
	}
}

func nextKind(kind models.EntityKind) models.EntityKind {
	for i, k := range kindOrder {
		if k == kind {
			return kindOrder[(i+1)%len(kindOrder)]
		}
	}
	return kindOrder[0]
}
