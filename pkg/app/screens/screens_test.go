package screens

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/reader/pkg/app/styles"
	"github.com/kerbaras/reader/pkg/data"
	"github.com/kerbaras/reader/pkg/integrations"
	"github.com/kerbaras/reader/pkg/pager"
	"github.com/kerbaras/reader/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu          sync.Mutex
	entry       *data.Entry
	units       []data.Unit
	cfg         pager.Config
	resumeAt    int
	gestures    []pager.Gesture
	advances    []pager.Direction
	playback    []int
	finished    int
	closed      bool
	navigateErr error
}

func newFakeReader(media data.MediaType) *fakeReader {
	return &fakeReader{
		entry: &data.Entry{ID: "e1", Title: "Entry", MediaType: media},
		units: []data.Unit{{ID: "u1", Ordinal: 1}, {ID: "u2", Ordinal: 2}},
		cfg:   pager.DefaultConfig(),
	}
}

func (f *fakeReader) ID() string                { return "session" }
func (f *fakeReader) Entry() *data.Entry        { return f.entry }
func (f *fakeReader) MediaType() data.MediaType { return f.entry.MediaType }
func (f *fakeReader) Units() []data.Unit        { return f.units }

func (f *fakeReader) Config() pager.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

func (f *fakeReader) Position() services.Position {
	return services.Position{Unit: f.units[0], Total: 3}
}

func (f *fakeReader) Content(context.Context) (services.Content, error) {
	return services.Content{Position: f.Position(), Lines: []string{"line"}}, nil
}

func (f *fakeReader) Advance(_ context.Context, dir pager.Direction) (pager.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advances = append(f.advances, dir)
	return pager.Result{Moved: true, Index: 1, Direction: dir}, nil
}

func (f *fakeReader) Step(context.Context, int) (pager.Result, error) { return pager.Result{}, nil }
func (f *fakeReader) MoveTo(context.Context, int) (pager.Result, error) {
	return pager.Result{}, nil
}
func (f *fakeReader) JumpTo(context.Context, int) (pager.Result, error) {
	return pager.Result{}, nil
}

func (f *fakeReader) Navigate(_ context.Context, g pager.Gesture) (pager.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gestures = append(f.gestures, g)
	return pager.Result{Offset: 1}, f.navigateErr
}

func (f *fakeReader) Reconfigure(cfg pager.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg
	return nil
}

func (f *fakeReader) ResumeAt() int { return f.resumeAt }

func (f *fakeReader) Playback(seconds int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playback = append(f.playback, seconds)
}

func (f *fakeReader) Finished(context.Context) (pager.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished++
	return pager.Result{Moved: true, Index: 1, Direction: pager.Forward}, nil
}

func (f *fakeReader) Export(context.Context, *integrations.EPubBuilder) (string, error) {
	return "/tmp/out.epub", nil
}

func (f *fakeReader) PageProgress() <-chan services.PageProgress { return nil }
func (f *fakeReader) Subscribe(pager.Observer) func()            { return func() {} }

func (f *fakeReader) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeBackend struct {
	entries    []*data.Entry
	units      []data.Unit
	checkpoint *data.Checkpoint
	reader     *fakeReader
	exported   []int
}

func (b *fakeBackend) Sources() []string { return []string{"mangadex", "textdir"} }
func (b *fakeBackend) Search(context.Context, string, string) ([]data.Entry, error) {
	return nil, nil
}
func (b *fakeBackend) AddEntry(context.Context, string, string) (*data.Entry, error) {
	return nil, nil
}
func (b *fakeBackend) ListEntries() ([]*data.Entry, error) { return b.entries, nil }

func (b *fakeBackend) GetEntry(id string) (*data.Entry, error) {
	for _, e := range b.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, services.ErrEntryNotFound
}

func (b *fakeBackend) RemoveEntry(string) error { return nil }
func (b *fakeBackend) Units(context.Context, string, bool) ([]data.Unit, error) {
	return b.units, nil
}
func (b *fakeBackend) Checkpoint(context.Context, string) (*data.Checkpoint, error) {
	return b.checkpoint, nil
}
func (b *fakeBackend) OpenReader(context.Context, string, int, bool) (services.Reader, error) {
	return b.reader, nil
}

func (b *fakeBackend) ExportUnit(_ context.Context, _ string, index int) (string, error) {
	b.exported = append(b.exported, index)
	return "/tmp/unit.epub", nil
}

func (b *fakeBackend) EPubBuilder() *integrations.EPubBuilder {
	return integrations.NewEPubBuilder("")
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// openReaderScreen returns a reader screen attached to r without starting
// its listeners.
func openReaderScreen(t *testing.T, r *fakeReader) *ReaderScreen {
	t.Helper()
	s := NewReaderScreen(&fakeBackend{reader: r}, OpenRequest{EntryID: "e1"})
	s.SetSize(80, 24)
	s.Update(readerOpenedMsg{screen: s, reader: r})
	require.True(t, s.Open())
	return s
}

func TestReaderArrowKeysNavigate(t *testing.T) {
	r := newFakeReader(data.MediaText)
	s := openReaderScreen(t, r)

	_, cmd := s.Update(tea.KeyMsg{Type: tea.KeyRight})
	require.NotNil(t, cmd)
	msg := cmd()
	assert.IsType(t, navigatedMsg{}, msg)

	_, cmd = s.Update(runeKey("h"))
	require.NotNil(t, cmd)
	cmd()

	assert.Equal(t, []pager.Gesture{pager.GestureRight, pager.GestureLeft}, r.gestures)
}

func TestReaderUnitKeysAdvance(t *testing.T) {
	r := newFakeReader(data.MediaImage)
	s := openReaderScreen(t, r)

	_, cmd := s.Update(runeKey("n"))
	cmd()
	_, cmd = s.Update(runeKey("p"))
	cmd()

	assert.Equal(t, []pager.Direction{pager.Forward, pager.Backward}, r.advances)
}

func TestReaderTransitionInFlight(t *testing.T) {
	r := newFakeReader(data.MediaText)
	r.navigateErr = pager.ErrTransitionInFlight
	s := openReaderScreen(t, r)

	_, cmd := s.Update(tea.KeyMsg{Type: tea.KeyLeft})
	_, cmd = s.Update(cmd())
	assert.Nil(t, cmd)
	assert.NoError(t, s.err)
	assert.Contains(t, s.status, "Still loading")
}

func TestReaderIgnoresStaleContent(t *testing.T) {
	r := newFakeReader(data.MediaText)
	s := openReaderScreen(t, r)

	s.Update(contentMsg{seq: s.seq - 1, content: services.Content{Lines: []string{"stale"}}})
	assert.False(t, s.loaded)

	s.Update(contentMsg{seq: s.seq, content: services.Content{Lines: []string{"fresh"}}})
	assert.True(t, s.loaded)
	assert.Equal(t, []string{"fresh"}, s.content.Lines)
}

func TestReaderVideoPlayback(t *testing.T) {
	r := newFakeReader(data.MediaVideo)
	r.resumeAt = 90
	s := openReaderScreen(t, r)
	assert.Equal(t, 90, s.playback)

	s.Update(runeKey("]"))
	s.Update(runeKey("["))
	s.Update(runeKey("["))
	assert.Equal(t, []int{120, 90, 60}, r.playback)

	_, cmd := s.Update(runeKey("f"))
	_, cmd = s.Update(cmd())
	require.NotNil(t, cmd)
	assert.Equal(t, 1, r.finished)
	assert.Equal(t, 0, s.playback)
}

func TestReaderSeekKeysIgnoredForText(t *testing.T) {
	r := newFakeReader(data.MediaText)
	s := openReaderScreen(t, r)

	_, cmd := s.Update(runeKey("]"))
	assert.Nil(t, cmd)
	assert.Empty(t, r.playback)
}

func TestReaderCyclesReadingDirection(t *testing.T) {
	r := newFakeReader(data.MediaImage)
	s := openReaderScreen(t, r)

	s.Update(runeKey("t"))
	assert.Equal(t, pager.RightToLeft, r.Config().ReadingDirection)
	s.Update(runeKey("t"))
	assert.Equal(t, pager.Vertical, r.Config().ReadingDirection)
	s.Update(runeKey("t"))
	assert.Equal(t, pager.LeftToRight, r.Config().ReadingDirection)
}

func TestReaderBackClosesSession(t *testing.T) {
	r := newFakeReader(data.MediaText)
	s := openReaderScreen(t, r)

	_, cmd := s.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.False(t, s.Open())

	msg := cmd()
	assert.True(t, r.closed)

	_, cmd = s.Update(msg)
	assert.Equal(t, SwitchScreenMsg{Screen: "details", Data: "e1"}, cmd())
}

func TestReaderExport(t *testing.T) {
	r := newFakeReader(data.MediaText)
	s := openReaderScreen(t, r)

	_, cmd := s.Update(runeKey("e"))
	s.Update(cmd())
	assert.Contains(t, s.status, "/tmp/out.epub")
}

func TestRootDiscardsOrphanedReader(t *testing.T) {
	r := newFakeReader(data.MediaText)
	root := NewRootScreen(&fakeBackend{})

	_, cmd := root.Update(readerOpenedMsg{reader: r})
	require.NotNil(t, cmd)
	cmd()
	assert.True(t, r.closed)
}

func TestRootQuit(t *testing.T) {
	root := NewRootScreen(&fakeBackend{})
	root.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	_, cmd := root.Update(runeKey("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestRootSearchInputCapturesQuitKey(t *testing.T) {
	root := NewRootScreen(&fakeBackend{})
	root.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	root.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, searchView, root.currentView)

	root.Update(runeKey("q"))
	assert.Equal(t, searchView, root.currentView)
	assert.Equal(t, "q", root.search.input.Value())
}

func TestRootOpensReaderWithSize(t *testing.T) {
	backend := &fakeBackend{reader: newFakeReader(data.MediaText)}
	root := NewRootScreen(backend)
	root.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	_, cmd := root.Update(SwitchScreenMsg{Screen: "reader", Data: OpenRequest{EntryID: "e1"}})
	require.NotNil(t, cmd)
	assert.Equal(t, readerView, root.currentView)
	assert.Equal(t, 100, root.reader.width)

	msg := cmd()
	opened, ok := msg.(readerOpenedMsg)
	require.True(t, ok)
	assert.Same(t, root.reader, opened.screen)
}

func TestLibraryLoadsProgress(t *testing.T) {
	backend := &fakeBackend{
		entries:    []*data.Entry{{ID: "e1", Title: "Entry", MediaType: data.MediaImage}},
		units:      []data.Unit{{ID: "u1", Ordinal: 1}, {ID: "u2", Ordinal: 2}},
		checkpoint: &data.Checkpoint{UnitOrdinal: 2, Offset: 4},
	}
	s := NewLibraryScreen(backend)
	s.SetSize(80, 24)

	s.Update(s.loadLibrary())
	require.Len(t, s.list.Items, 1)
	item := s.list.Items[0]
	assert.Equal(t, 2, item.UnitCount)
	assert.Equal(t, "Chapter 2, page 5", item.ProgressText())

	_, cmd := s.Update(runeKey("c"))
	assert.Equal(t, SwitchScreenMsg{Screen: "reader", Data: OpenRequest{EntryID: "e1", Resume: true}}, cmd())
}

func TestDetailsSelectsCheckpointUnit(t *testing.T) {
	backend := &fakeBackend{
		entries:    []*data.Entry{{ID: "e1", Title: "Entry", MediaType: data.MediaText}},
		units:      []data.Unit{{ID: "u1", Ordinal: 1}, {ID: "u2", Ordinal: 2}, {ID: "u3", Ordinal: 3}},
		checkpoint: &data.Checkpoint{UnitOrdinal: 2},
	}
	s := NewDetailsScreen(backend, "e1")
	s.SetSize(80, 24)

	s.Update(s.Init()())
	assert.Equal(t, 1, s.selected)

	_, cmd := s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, SwitchScreenMsg{Screen: "reader", Data: OpenRequest{EntryID: "e1", Index: 1}}, cmd())

	_, cmd = s.Update(runeKey("e"))
	s.Update(cmd())
	assert.Equal(t, []int{1}, backend.exported)
	assert.Contains(t, s.status, "/tmp/unit.epub")
}

func TestDetailsMissingEntry(t *testing.T) {
	s := NewDetailsScreen(&fakeBackend{}, "missing")
	s.SetSize(80, 24)

	s.Update(s.Init()())
	assert.True(t, errors.Is(s.err, services.ErrEntryNotFound))
	assert.Contains(t, s.View(), "Error")
}

func TestGestureKeys(t *testing.T) {
	tests := []struct {
		msg  tea.KeyMsg
		want pager.Gesture
	}{
		{tea.KeyMsg{Type: tea.KeyLeft}, pager.GestureLeft},
		{tea.KeyMsg{Type: tea.KeyRight}, pager.GestureRight},
		{runeKey("k"), pager.GestureUp},
		{runeKey("j"), pager.GestureDown},
		{tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}, pager.GestureRight},
	}
	for _, tt := range tests {
		got, ok := gesture(tt.msg)
		require.True(t, ok, tt.msg.String())
		assert.Equal(t, tt.want, got, tt.msg.String())
	}

	_, ok := gesture(runeKey("x"))
	assert.False(t, ok)
}

func TestHelpUsesTheme(t *testing.T) {
	h := newHelp()
	assert.Equal(t, styles.HelpKeyStyle.Render("q"), h.Styles.ShortKey.Render("q"))
	assert.Equal(t, styles.HelpStyle.Render("quit"), h.Styles.ShortDesc.Render("quit"))
	assert.Contains(t, h.ShortHelpView([]key.Binding{keys.Quit}), "quit")
}
