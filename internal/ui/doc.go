// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI is a read-only browser over the crosswalk: it lists the stored
// links for one entity kind at a time and cycles kinds (track, album,
// artist) with tab. Filtering comes from charmbracelet/bubbles/list.
//
// The [Model] implements bubbletea's standard Init/Update/View pattern;
// link loads run as commands so the repository never blocks the event loop.
//
// Keyboard navigation uses vim-style bindings (j/k, tab, r, q) with
// contextual help displayed via charmbracelet/bubbles/help.
package ui
