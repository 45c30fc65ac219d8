package screens

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/reader/pkg/app/components"
	"github.com/kerbaras/reader/pkg/app/styles"
)

type LibraryScreen struct {
	backend Backend
	list    *components.EntryList
	help    help.Model
	width   int
	height  int
	err     error
}

func NewLibraryScreen(backend Backend) *LibraryScreen {
	return &LibraryScreen{
		backend: backend,
		list:    components.NewEntryList(),
		help:    newHelp(),
	}
}

func (s *LibraryScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.list.Width = width - 4
	s.list.Height = height - 10
	s.help.Width = width
}

func (s *LibraryScreen) Init() tea.Cmd {
	return s.loadLibrary
}

func (s *LibraryScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		selected := s.list.Selected()
		switch {
		case key.Matches(msg, keys.Up):
			s.list.Prev()
		case key.Matches(msg, keys.Down):
			s.list.Next()
		case key.Matches(msg, keys.Refresh):
			return s, s.loadLibrary
		case key.Matches(msg, keys.Delete):
			if selected != nil {
				return s, s.removeEntry(selected.Entry.ID)
			}
		case key.Matches(msg, keys.Open):
			if selected != nil {
				return s, switchTo("details", selected.Entry.ID)
			}
		case key.Matches(msg, keys.Resume):
			if selected != nil {
				return s, switchTo("reader", OpenRequest{EntryID: selected.Entry.ID, Resume: true})
			}
		}

	case libraryLoadedMsg:
		s.list.SetItems(msg.items)
		s.err = msg.err

	case entryRemovedMsg:
		s.err = msg.err
		return s, s.loadLibrary
	}

	return s, nil
}

func (s *LibraryScreen) View() string {
	if s.width == 0 {
		return "Loading..."
	}

	header := styles.TitleStyle.Render("📚 Library")
	help := s.help.ShortHelpView([]key.Binding{
		keys.Up, keys.Down, keys.Open, keys.Resume, keys.Delete, keys.Refresh, keys.Tab, keys.Quit,
	})

	return fmt.Sprintf("%s\n\n%s%s\n%s", header, renderError(s.err), s.list.View(), help)
}

type libraryLoadedMsg struct {
	items []components.EntryListItem
	err   error
}

type entryRemovedMsg struct {
	err error
}

func (s *LibraryScreen) loadLibrary() tea.Msg {
	entries, err := s.backend.ListEntries()
	if err != nil {
		return libraryLoadedMsg{err: err}
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	items := make([]components.EntryListItem, len(entries))
	for i, entry := range entries {
		items[i] = components.EntryListItem{Entry: entry}
		if units, err := s.backend.Units(ctx, entry.ID, false); err == nil {
			items[i].UnitCount = len(units)
		}
		if cp, err := s.backend.Checkpoint(ctx, entry.ID); err == nil {
			items[i].Checkpoint = cp
		}
	}
	return libraryLoadedMsg{items: items}
}

func (s *LibraryScreen) removeEntry(entryID string) tea.Cmd {
	return func() tea.Msg {
		return entryRemovedMsg{err: s.backend.RemoveEntry(entryID)}
	}
}
