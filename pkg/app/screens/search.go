package screens

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/reader/pkg/app/styles"
	"github.com/kerbaras/reader/pkg/data"
)

type SearchScreen struct {
	backend   Backend
	sources   []string
	source    int
	input     textinput.Model
	help      help.Model
	results   []data.Entry
	selected  int
	searching bool
	adding    bool
	width     int
	height    int
	err       error
}

func NewSearchScreen(backend Backend) *SearchScreen {
	ti := textinput.New()
	ti.Placeholder = "Search..."
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 50

	return &SearchScreen{
		backend: backend,
		sources: backend.Sources(),
		input:   ti,
		help:    newHelp(),
	}
}

func (s *SearchScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.help.Width = width
}

// Capturing reports whether the query input has focus.
func (s *SearchScreen) Capturing() bool {
	return s.input.Focused()
}

// Source is the source searches go to.
func (s *SearchScreen) Source() string {
	if len(s.sources) == 0 {
		return ""
	}
	return s.sources[s.source]
}

func (s *SearchScreen) Init() tea.Cmd {
	return textinput.Blink
}

func (s *SearchScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if s.searching || s.adding {
			return s, nil
		}

		switch {
		case key.Matches(msg, keys.NextSource):
			if len(s.sources) > 0 {
				s.source = (s.source + 1) % len(s.sources)
				s.results = nil
				s.selected = 0
			}
			return s, nil

		case key.Matches(msg, keys.Open):
			if s.input.Focused() {
				query := strings.TrimSpace(s.input.Value())
				if query != "" {
					s.searching = true
					s.err = nil
					return s, s.performSearch(s.Source(), query)
				}
			} else if len(s.results) > 0 {
				s.adding = true
				return s, s.addEntry(s.Source(), s.results[s.selected].ID)
			}
			return s, nil

		case msg.String() == "esc":
			if s.input.Focused() {
				s.input.Blur()
			} else {
				s.input.Focus()
				cmd = textinput.Blink
			}
			return s, cmd

		case !s.input.Focused() && key.Matches(msg, keys.Up):
			if len(s.results) > 0 {
				s.selected = (s.selected - 1 + len(s.results)) % len(s.results)
			}
			return s, nil

		case !s.input.Focused() && key.Matches(msg, keys.Down):
			if len(s.results) > 0 {
				s.selected = (s.selected + 1) % len(s.results)
			}
			return s, nil
		}

	case searchResultMsg:
		s.searching = false
		s.results = msg.results
		s.selected = 0
		s.err = msg.err
		if len(s.results) > 0 {
			s.input.Blur()
		}
		return s, nil

	case entryAddedMsg:
		s.adding = false
		if msg.err != nil {
			s.err = msg.err
			return s, nil
		}
		return s, switchTo("library", nil)
	}

	if s.input.Focused() {
		s.input, cmd = s.input.Update(msg)
	}
	return s, cmd
}

func (s *SearchScreen) View() string {
	if s.width == 0 {
		return "Loading..."
	}

	header := styles.TitleStyle.Render("🔍 Search")
	sourceLine := s.renderSources()

	inputStyle := styles.InputStyle
	if s.input.Focused() {
		inputStyle = styles.FocusedInputStyle
	}
	inputView := inputStyle.Render(s.input.View())

	var resultsView string
	switch {
	case s.searching:
		resultsView = styles.StatusLoading.Render("Searching...")
	case s.adding:
		resultsView = styles.StatusLoading.Render("Adding to library...")
	case len(s.results) > 0:
		resultsView = s.renderResults()
	case s.input.Value() != "":
		resultsView = styles.MutedStyle.Render("No results found")
	}

	help := s.help.ShortHelpView([]key.Binding{
		keys.Open, keys.NextSource, keys.Up, keys.Down, keys.Tab, keys.Quit,
	})

	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s%s\n\n%s",
		header,
		sourceLine,
		inputView,
		renderError(s.err),
		resultsView,
		help,
	)
}

func (s *SearchScreen) renderSources() string {
	if len(s.sources) == 0 {
		return styles.StatusError.Render("No sources configured")
	}
	tabs := make([]string, len(s.sources))
	for i, name := range s.sources {
		if i == s.source {
			tabs[i] = styles.ActiveTabStyle.Render(name)
		} else {
			tabs[i] = styles.InactiveTabStyle.Render(name)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (s *SearchScreen) renderResults() string {
	var b strings.Builder
	b.WriteString(styles.SubtitleStyle.Render(fmt.Sprintf("Found %d results:", len(s.results))))
	b.WriteString("\n\n")

	for i, entry := range s.results {
		cardStyle := styles.CardStyle
		if i == s.selected && !s.input.Focused() {
			cardStyle = styles.ActiveCardStyle
		}

		desc := entry.Description
		if len(desc) > 120 {
			desc = desc[:117] + "..."
		}

		cardContent := lipgloss.JoinVertical(
			lipgloss.Left,
			styles.TitleStyle.Render(entry.Title),
			styles.TextStyle.Render(desc),
			styles.MutedStyle.Render(fmt.Sprintf("%s • %s • ID: %s", entry.Source, entry.MediaType, entry.ID)),
		)

		b.WriteString(cardStyle.Width(s.width - 6).Render(cardContent))
		b.WriteString("\n")
	}
	return b.String()
}

type searchResultMsg struct {
	results []data.Entry
	err     error
}

type entryAddedMsg struct {
	entry *data.Entry
	err   error
}

func (s *SearchScreen) performSearch(source, query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		results, err := s.backend.Search(ctx, source, query)
		return searchResultMsg{results: results, err: err}
	}
}

func (s *SearchScreen) addEntry(source, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		entry, err := s.backend.AddEntry(ctx, source, id)
		return entryAddedMsg{entry: entry, err: err}
	}
}
