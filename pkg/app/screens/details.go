package screens

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/reader/pkg/app/components"
	"github.com/kerbaras/reader/pkg/app/styles"
	"github.com/kerbaras/reader/pkg/data"
)

const visibleUnits = 10

type DetailsScreen struct {
	backend    Backend
	entryID    string
	entry      *data.Entry
	units      []data.Unit
	checkpoint *data.Checkpoint
	selected   int
	help       help.Model
	status     string
	busy       bool
	width      int
	height     int
	err        error
}

func NewDetailsScreen(backend Backend, entryID string) *DetailsScreen {
	return &DetailsScreen{
		backend: backend,
		entryID: entryID,
		help:    newHelp(),
	}
}

func (s *DetailsScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.help.Width = width
}

func (s *DetailsScreen) Init() tea.Cmd {
	return s.loadDetails(false)
}

func (s *DetailsScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if s.selected > 0 {
				s.selected--
			}
		case key.Matches(msg, keys.Down):
			if s.selected < len(s.units)-1 {
				s.selected++
			}
		case key.Matches(msg, keys.Open):
			if len(s.units) > 0 {
				return s, switchTo("reader", OpenRequest{EntryID: s.entryID, Index: s.selected})
			}
		case key.Matches(msg, keys.Resume):
			return s, switchTo("reader", OpenRequest{EntryID: s.entryID, Resume: true})
		case key.Matches(msg, keys.Refresh):
			s.status = ""
			return s, s.loadDetails(true)
		case key.Matches(msg, keys.Export):
			if len(s.units) > 0 && !s.busy {
				s.busy = true
				s.status = "Exporting..."
				return s, s.exportUnit(s.selected)
			}
		case key.Matches(msg, keys.Back):
			return s, switchTo("library", nil)
		}

	case detailsLoadedMsg:
		s.err = msg.err
		if msg.entry != nil {
			s.entry = msg.entry
			s.units = msg.units
			s.checkpoint = msg.checkpoint
			s.selected = min(s.selected, max(len(s.units)-1, 0))
			if msg.selectCheckpoint {
				s.selectCheckpoint()
			}
		}

	case exportedMsg:
		s.busy = false
		s.err = msg.err
		if msg.err == nil {
			s.status = fmt.Sprintf("Exported to %s", msg.path)
		} else {
			s.status = ""
		}
	}

	return s, nil
}

func (s *DetailsScreen) selectCheckpoint() {
	if s.checkpoint == nil {
		return
	}
	for i, u := range s.units {
		if u.Ordinal == s.checkpoint.UnitOrdinal {
			s.selected = i
			return
		}
	}
}

func (s *DetailsScreen) View() string {
	if s.width == 0 || (s.entry == nil && s.err == nil) {
		return "Loading..."
	}
	if s.entry == nil {
		return renderError(s.err) + s.help.ShortHelpView([]key.Binding{keys.Back, keys.Quit})
	}

	header := styles.TitleStyle.Render(fmt.Sprintf("📖 %s", s.entry.Title))

	var status string
	if s.status != "" {
		status = styles.StatusReady.Render(s.status) + "\n"
	}

	help := s.help.ShortHelpView([]key.Binding{
		keys.Up, keys.Down, keys.Open, keys.Resume, keys.Export, keys.Refresh, keys.Back, keys.Quit,
	})

	return fmt.Sprintf("%s\n\n%s%s\n%s\n%s%s",
		header,
		renderError(s.err),
		s.renderInfo(),
		s.renderUnits(),
		status,
		help,
	)
}

func (s *DetailsScreen) renderInfo() string {
	desc := s.entry.Description
	if len(desc) > 200 {
		desc = desc[:197] + "..."
	}

	progress := components.EntryListItem{Entry: s.entry, Checkpoint: s.checkpoint}.ProgressText()
	info := lipgloss.JoinVertical(
		lipgloss.Left,
		styles.TextStyle.Render(desc),
		"",
		styles.MutedStyle.Render(fmt.Sprintf("Source: %s • %s", s.entry.Source, s.entry.MediaType)),
		styles.SubtitleStyle.Render(progress),
	)
	return styles.CardStyle.Width(s.width - 4).Render(info)
}

func (s *DetailsScreen) renderUnits() string {
	if len(s.units) == 0 {
		return styles.MutedStyle.Render("No units available")
	}

	var b strings.Builder
	b.WriteString(styles.SubtitleStyle.Render(fmt.Sprintf("Units (%d total):", len(s.units))))
	b.WriteString("\n\n")

	start, end := 0, len(s.units)
	if end > visibleUnits {
		start = max(s.selected-visibleUnits/2, 0)
		end = start + visibleUnits
		if end > len(s.units) {
			end = len(s.units)
			start = end - visibleUnits
		}
	}

	for i := start; i < end; i++ {
		unit := s.units[i]
		icon, style := "○", styles.MutedStyle
		if s.checkpoint != nil && unit.Ordinal == s.checkpoint.UnitOrdinal {
			icon, style = "●", styles.StatusReady
		}

		line := fmt.Sprintf("%s %s", icon, unit.Label())
		if i == s.selected {
			line = styles.SelectedStyle.Render(line)
		} else {
			line = style.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(s.units) > visibleUnits {
		b.WriteString("\n")
		b.WriteString(styles.MutedStyle.Render(
			fmt.Sprintf("Showing %d-%d of %d units", start+1, end, len(s.units)),
		))
		b.WriteString("\n")
	}
	return b.String()
}

type detailsLoadedMsg struct {
	entry            *data.Entry
	units            []data.Unit
	checkpoint       *data.Checkpoint
	selectCheckpoint bool
	err              error
}

type exportedMsg struct {
	path string
	err  error
}

func (s *DetailsScreen) loadDetails(refresh bool) tea.Cmd {
	first := s.entry == nil
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		entry, err := s.backend.GetEntry(s.entryID)
		if err != nil {
			return detailsLoadedMsg{err: err}
		}
		units, err := s.backend.Units(ctx, s.entryID, refresh)
		if err != nil {
			return detailsLoadedMsg{entry: entry, err: err}
		}
		cp, err := s.backend.Checkpoint(ctx, s.entryID)
		return detailsLoadedMsg{
			entry:            entry,
			units:            units,
			checkpoint:       cp,
			selectCheckpoint: first,
			err:              err,
		}
	}
}

func (s *DetailsScreen) exportUnit(index int) tea.Cmd {
	return func() tea.Msg {
		path, err := s.backend.ExportUnit(context.Background(), s.entryID, index)
		return exportedMsg{path: path, err: err}
	}
}
