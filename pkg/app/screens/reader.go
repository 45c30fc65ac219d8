package screens

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/reader/pkg/app/components"
	"github.com/kerbaras/reader/pkg/app/styles"
	"github.com/kerbaras/reader/pkg/data"
	"github.com/kerbaras/reader/pkg/pager"
	"github.com/kerbaras/reader/pkg/services"
)

const (
	seekStep     = 30
	eventBacklog = 32
)

// ReaderScreen drives one reading session.
type ReaderScreen struct {
	backend Backend
	req     OpenRequest

	reader      services.Reader
	unsubscribe func()
	events      chan pager.Event
	done        chan struct{}
	closing     bool

	content  services.Content
	loaded   bool
	seq      int
	playback int
	tracker  *components.ProgressTracker
	help     help.Model
	status   string
	err      error

	width  int
	height int
}

func NewReaderScreen(backend Backend, req OpenRequest) *ReaderScreen {
	return &ReaderScreen{
		backend: backend,
		req:     req,
		tracker: components.NewProgressTracker(80),
		help:    newHelp(),
	}
}

func (s *ReaderScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.help.Width = width
	s.tracker.SetWidth(width - 4)
}

// Open reports whether a session is open and not closing.
func (s *ReaderScreen) Open() bool {
	return s.reader != nil && !s.closing
}

func (s *ReaderScreen) Init() tea.Cmd {
	req := s.req
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		r, err := s.backend.OpenReader(ctx, req.EntryID, req.Index, req.Resume)
		return readerOpenedMsg{screen: s, reader: r, err: err}
	}
}

func (s *ReaderScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case readerOpenedMsg:
		if msg.err != nil {
			s.err = msg.err
			return s, nil
		}
		s.attach(msg.reader)
		return s, tea.Batch(s.loadContent(), s.listenEvents(), s.listenProgress())

	case contentMsg:
		if msg.seq != s.seq || s.closing {
			return s, nil
		}
		s.loaded = true
		s.err = msg.err
		if msg.err == nil {
			s.content = msg.content
		}

	case navigatedMsg:
		switch {
		case s.closing:
			return s, nil
		case errors.Is(msg.err, pager.ErrTransitionInFlight):
			s.status = "Still loading, try again"
			return s, nil
		case msg.err != nil:
			s.err = msg.err
			return s, nil
		}
		s.err = nil
		if msg.result.Moved && s.reader.MediaType() == data.MediaVideo {
			s.playback = 0
		}
		return s, s.loadContent()

	case pagerEventMsg:
		switch msg.Kind {
		case pager.EventReleased:
			s.tracker.Forget(msg.Unit.ID)
		case pager.EventFetchFailed:
			s.status = fmt.Sprintf("%s unavailable: %s", msg.Unit.Label(), msg.Err)
		}
		return s, s.listenEvents()

	case pageProgressMsg:
		s.tracker.Update(services.PageProgress(msg))
		return s, s.listenProgress()

	case exportedMsg:
		s.err = msg.err
		if msg.err == nil {
			s.status = fmt.Sprintf("Exported to %s", msg.path)
		}

	case readerClosedMsg:
		return s, switchTo("details", s.req.EntryID)

	case tea.KeyMsg:
		return s, s.handleKey(msg)
	}

	return s, nil
}

func (s *ReaderScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, keys.Back) {
		if s.reader == nil {
			return switchTo("details", s.req.EntryID)
		}
		return s.closeCmd()
	}
	if !s.Open() {
		return nil
	}
	s.status = ""
	r := s.reader

	if g, ok := gesture(msg); ok {
		return s.navigate(func(ctx context.Context) (pager.Result, error) {
			return r.Navigate(ctx, g)
		})
	}

	switch {
	case key.Matches(msg, keys.NextUnit):
		return s.navigate(func(ctx context.Context) (pager.Result, error) {
			return r.Advance(ctx, pager.Forward)
		})
	case key.Matches(msg, keys.PrevUnit):
		return s.navigate(func(ctx context.Context) (pager.Result, error) {
			return r.Advance(ctx, pager.Backward)
		})
	case key.Matches(msg, keys.Direction):
		cfg := r.Config()
		cfg.ReadingDirection = nextReadingDirection(cfg.ReadingDirection)
		if err := r.Reconfigure(cfg); err != nil {
			s.err = err
		} else {
			s.status = fmt.Sprintf("Reading direction: %s", cfg.ReadingDirection)
		}
	case key.Matches(msg, keys.Export):
		builder := s.backend.EPubBuilder()
		s.status = "Exporting..."
		return func() tea.Msg {
			path, err := r.Export(context.Background(), builder)
			return exportedMsg{path: path, err: err}
		}
	}

	if r.MediaType() != data.MediaVideo {
		return nil
	}
	switch {
	case key.Matches(msg, keys.SeekBack):
		s.playback = max(s.playback-seekStep, 0)
		r.Playback(s.playback)
	case key.Matches(msg, keys.SeekForward):
		s.playback += seekStep
		r.Playback(s.playback)
	case key.Matches(msg, keys.Finished):
		return s.navigate(r.Finished)
	}
	return nil
}

func nextReadingDirection(rd pager.ReadingDirection) pager.ReadingDirection {
	switch rd {
	case pager.LeftToRight:
		return pager.RightToLeft
	case pager.RightToLeft:
		return pager.Vertical
	}
	return pager.LeftToRight
}

func (s *ReaderScreen) attach(r services.Reader) {
	s.reader = r
	s.playback = r.ResumeAt()
	s.events = make(chan pager.Event, eventBacklog)
	s.done = make(chan struct{})
	events := s.events
	// Observers must not block the pager
	s.unsubscribe = r.Subscribe(func(ev pager.Event) {
		select {
		case events <- ev:
		default:
		}
	})
}

func (s *ReaderScreen) closeCmd() tea.Cmd {
	if !s.Open() {
		return nil
	}
	s.closing = true
	r, unsubscribe, done := s.reader, s.unsubscribe, s.done
	return func() tea.Msg {
		unsubscribe()
		close(done)
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return readerClosedMsg{err: r.Close(ctx)}
	}
}

func (s *ReaderScreen) navigate(move func(context.Context) (pager.Result, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		res, err := move(ctx)
		return navigatedMsg{result: res, err: err}
	}
}

func (s *ReaderScreen) loadContent() tea.Cmd {
	s.seq++
	seq, r := s.seq, s.reader
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		content, err := r.Content(ctx)
		return contentMsg{seq: seq, content: content, err: err}
	}
}

func (s *ReaderScreen) listenEvents() tea.Cmd {
	events, done := s.events, s.done
	return func() tea.Msg {
		select {
		case ev := <-events:
			return pagerEventMsg(ev)
		case <-done:
			return nil
		}
	}
}

func (s *ReaderScreen) listenProgress() tea.Cmd {
	ch := s.reader.PageProgress()
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return pageProgressMsg(p)
	}
}

func (s *ReaderScreen) View() string {
	if s.width == 0 {
		return "Loading..."
	}
	if s.reader == nil {
		if s.err != nil {
			return renderError(s.err) + s.help.ShortHelpView([]key.Binding{keys.Back, keys.Quit})
		}
		return styles.StatusLoading.Render("Opening...")
	}

	pos := s.reader.Position()
	if s.loaded {
		pos = s.content.Position
	}

	header := lipgloss.JoinVertical(
		lipgloss.Left,
		styles.TitleStyle.Render(s.reader.Entry().Title),
		styles.SubtitleStyle.Render(pos.Unit.Label()),
	)

	var body string
	switch {
	case !s.loaded:
		body = styles.StatusLoading.Render("Loading...")
	case s.reader.MediaType() == data.MediaText:
		body = styles.PageStyle.Width(s.width - 4).Render(strings.Join(s.content.Lines, "\n"))
	case s.reader.MediaType() == data.MediaImage:
		body = s.renderImage(pos)
	case s.reader.MediaType() == data.MediaVideo:
		body = s.renderVideo()
	}

	var status string
	if s.status != "" {
		status = styles.StatusReady.Render(s.status) + "\n"
	}

	return fmt.Sprintf("%s\n\n%s%s\n\n%s\n%s%s",
		header,
		renderError(s.err),
		body,
		styles.StatusBarStyle.Width(s.width).Render(s.statusLine(pos)),
		status,
		s.help.ShortHelpView(s.bindings()),
	)
}

func (s *ReaderScreen) renderImage(pos services.Position) string {
	var b strings.Builder
	if page := s.content.Page; page != nil {
		b.WriteString(styles.PageStyle.Render(fmt.Sprintf("Page %d of %d\n%s • %.1f KB",
			page.Index+1, pos.Total, page.ContentType, float64(len(page.Data))/1024)))
	} else {
		b.WriteString(styles.MutedStyle.Render("Page not loaded"))
	}
	if progress := s.tracker.View(pos.Unit.ID, pos.Total); progress != "" {
		b.WriteString("\n\n")
		b.WriteString(progress)
	}
	return b.String()
}

func (s *ReaderScreen) renderVideo() string {
	var b strings.Builder
	if len(s.content.Providers) == 0 {
		b.WriteString(styles.MutedStyle.Render("No providers available"))
	}
	for _, p := range s.content.Providers {
		b.WriteString(styles.SubtitleStyle.Render(p.Provider))
		b.WriteString("\n")
		for _, stream := range p.Streams {
			b.WriteString(styles.TextStyle.Render(fmt.Sprintf("  %s (%s) %s", stream.Quality, stream.Format, stream.URL)))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(styles.TextStyle.Render("Position: " + components.FormatPlayback(s.playback)))
	return b.String()
}

func (s *ReaderScreen) statusLine(pos services.Position) string {
	units := len(s.reader.Units())
	rd := s.reader.Config().ReadingDirection
	if s.reader.MediaType() == data.MediaVideo {
		return fmt.Sprintf("Episode %d/%d • %s", pos.Index+1, units, rd)
	}
	return fmt.Sprintf("Unit %d/%d • page %d/%d • %s", pos.Index+1, units, pos.Offset+1, max(pos.Total, 1), rd)
}

func (s *ReaderScreen) bindings() []key.Binding {
	if s.reader != nil && s.reader.MediaType() == data.MediaVideo {
		return []key.Binding{keys.Left, keys.Right, keys.SeekBack, keys.SeekForward, keys.Finished, keys.Back}
	}
	return []key.Binding{keys.Left, keys.Right, keys.NextUnit, keys.PrevUnit, keys.Direction, keys.Export, keys.Back}
}

type readerOpenedMsg struct {
	screen *ReaderScreen
	reader services.Reader
	err    error
}

type contentMsg struct {
	seq     int
	content services.Content
	err     error
}

type navigatedMsg struct {
	result pager.Result
	err    error
}

type pagerEventMsg pager.Event

type pageProgressMsg services.PageProgress

type readerClosedMsg struct {
	err error
}
