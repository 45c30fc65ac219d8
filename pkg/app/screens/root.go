package screens

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/reader/pkg/app/styles"
	"github.com/kerbaras/reader/pkg/data"
	"github.com/kerbaras/reader/pkg/integrations"
	"github.com/kerbaras/reader/pkg/services"
)

// Backend is what the screens need from the services layer.
// *services.Controller implements it.
type Backend interface {
	Sources() []string
	Search(ctx context.Context, source, query string) ([]data.Entry, error)
	AddEntry(ctx context.Context, source, id string) (*data.Entry, error)
	ListEntries() ([]*data.Entry, error)
	GetEntry(id string) (*data.Entry, error)
	RemoveEntry(id string) error
	Units(ctx context.Context, entryID string, refresh bool) ([]data.Unit, error)
	Checkpoint(ctx context.Context, entryID string) (*data.Checkpoint, error)
	OpenReader(ctx context.Context, entryID string, index int, resume bool) (services.Reader, error)
	ExportUnit(ctx context.Context, entryID string, index int) (string, error)
	EPubBuilder() *integrations.EPubBuilder
}

var _ Backend = (*services.Controller)(nil)

const requestTimeout = 30 * time.Second

type screenType int

const (
	libraryView screenType = iota
	searchView
	detailsView
	readerView
)

// SwitchScreenMsg asks the root screen to change views. Data is the entry ID
// for "details" and an OpenRequest for "reader".
type SwitchScreenMsg struct {
	Screen string
	Data   any
}

// OpenRequest selects where a reader opens.
type OpenRequest struct {
	EntryID string
	Index   int
	Resume  bool
}

type RootScreen struct {
	backend Backend

	currentView screenType
	library     *LibraryScreen
	search      *SearchScreen
	details     *DetailsScreen
	reader      *ReaderScreen

	width  int
	height int
}

func NewRootScreen(backend Backend) *RootScreen {
	return &RootScreen{
		backend:     backend,
		currentView: libraryView,
		library:     NewLibraryScreen(backend),
		search:      NewSearchScreen(backend),
	}
}

func (r *RootScreen) Init() tea.Cmd {
	return r.library.Init()
}

func (r *RootScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.width = msg.Width
		r.height = msg.Height
		// Every screen keeps its size so switching does not wait for a resize
		r.library.SetSize(msg.Width, msg.Height)
		r.search.SetSize(msg.Width, msg.Height)
		if r.details != nil {
			r.details.SetSize(msg.Width, msg.Height)
		}
		if r.reader != nil {
			r.reader.SetSize(msg.Width, msg.Height)
		}
		return r, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || (key.Matches(msg, keys.Quit) && !r.capturing()) {
			return r, r.quit()
		}
		if key.Matches(msg, keys.Tab) && (r.currentView == libraryView || r.currentView == searchView) {
			if r.currentView == libraryView {
				r.currentView = searchView
				return r, r.search.Init()
			}
			r.currentView = libraryView
			return r, r.library.Init()
		}

	case readerOpenedMsg:
		// The user left before the session finished opening
		if msg.reader != nil && (r.currentView != readerView || r.reader != msg.screen) {
			return r, discardReader(msg.reader)
		}

	case SwitchScreenMsg:
		switch msg.Screen {
		case "library":
			r.currentView = libraryView
			cmd = r.library.Init()
		case "search":
			r.currentView = searchView
			cmd = r.search.Init()
		case "details":
			if entryID, ok := msg.Data.(string); ok {
				r.details = NewDetailsScreen(r.backend, entryID)
				r.details.SetSize(r.width, r.height)
				r.currentView = detailsView
				cmd = r.details.Init()
			}
		case "reader":
			if req, ok := msg.Data.(OpenRequest); ok {
				r.reader = NewReaderScreen(r.backend, req)
				r.reader.SetSize(r.width, r.height)
				r.currentView = readerView
				cmd = r.reader.Init()
			}
		}
		return r, cmd
	}

	switch r.currentView {
	case libraryView:
		_, cmd = r.library.Update(msg)
	case searchView:
		_, cmd = r.search.Update(msg)
	case detailsView:
		if r.details != nil {
			_, cmd = r.details.Update(msg)
		}
	case readerView:
		if r.reader != nil {
			_, cmd = r.reader.Update(msg)
		}
	}
	return r, cmd
}

// capturing reports whether the active screen consumes printable keys.
func (r *RootScreen) capturing() bool {
	return r.currentView == searchView && r.search.Capturing()
}

func (r *RootScreen) quit() tea.Cmd {
	if r.reader != nil && r.reader.Open() {
		return tea.Sequence(r.reader.closeCmd(), tea.Quit)
	}
	return tea.Quit
}

func discardReader(reader services.Reader) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_ = reader.Close(ctx)
		return nil
	}
}

func (r *RootScreen) View() string {
	var content string
	switch r.currentView {
	case libraryView:
		content = r.library.View()
	case searchView:
		content = r.search.View()
	case detailsView:
		if r.details != nil {
			content = r.details.View()
		}
	case readerView:
		if r.reader != nil {
			content = r.reader.View()
		}
	}

	if r.currentView == detailsView || r.currentView == readerView {
		return content
	}
	return fmt.Sprintf("%s\n\n%s", r.renderTabs(), content)
}

func (r *RootScreen) renderTabs() string {
	libraryTab := styles.InactiveTabStyle.Render("Library")
	searchTab := styles.InactiveTabStyle.Render("Search")
	if r.currentView == libraryView {
		libraryTab = styles.ActiveTabStyle.Render("Library")
	} else {
		searchTab = styles.ActiveTabStyle.Render("Search")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, libraryTab, searchTab)
}

func renderError(err error) string {
	if err == nil {
		return ""
	}
	return styles.StatusError.Render(fmt.Sprintf("Error: %s", err)) + "\n\n"
}

func switchTo(screen string, payload any) tea.Cmd {
	return func() tea.Msg {
		return SwitchScreenMsg{Screen: screen, Data: payload}
	}
}
