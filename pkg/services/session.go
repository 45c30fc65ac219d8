package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/kerbaras/reader/pkg/data"
	"github.com/kerbaras/reader/pkg/integrations"
	"github.com/kerbaras/reader/pkg/logging"
	"github.com/kerbaras/reader/pkg/pager"
	"github.com/kerbaras/reader/pkg/progress"
	"github.com/rs/zerolog"
)

var (
	ErrExportUnsupported = errors.New("export is not supported for video units")
	ErrNotLoaded         = errors.New("current unit is not loaded")
)

// Position is where a reader stands.
type Position struct {
	Index     int
	Unit      data.Unit
	Offset    int
	Total     int
	Direction pager.Direction
}

// Content is what the current position shows. Only the field matching the
// media type is set.
type Content struct {
	Position
	Lines     []string
	Page      *Page
	Providers []data.ProviderOption
}

// Reader is an open reading session over one entry.
type Reader interface {
	ID() string
	Entry() *data.Entry
	MediaType() data.MediaType
	Units() []data.Unit
	Config() pager.Config
	Position() Position
	Content(ctx context.Context) (Content, error)

	Advance(ctx context.Context, dir pager.Direction) (pager.Result, error)
	Step(ctx context.Context, delta int) (pager.Result, error)
	MoveTo(ctx context.Context, offset int) (pager.Result, error)
	JumpTo(ctx context.Context, index int) (pager.Result, error)
	Navigate(ctx context.Context, g pager.Gesture) (pager.Result, error)
	Reconfigure(cfg pager.Config) error

	// ResumeAt is the playback position a video session resumed at, in seconds.
	ResumeAt() int
	Playback(seconds int)
	Finished(ctx context.Context) (pager.Result, error)

	Export(ctx context.Context, b *integrations.EPubBuilder) (string, error)
	// PageProgress reports image page loads. It is nil for other media and
	// closed when the session closes.
	PageProgress() <-chan PageProgress
	Subscribe(obs pager.Observer) (cancel func())
	Close(ctx context.Context) error
}

var (
	_ Reader = (*Session[*data.PageDetails, data.PageRef])(nil)
	_ Reader = (*Session[*data.TextDetails, data.TextPage])(nil)
	_ Reader = (*Session[*data.VideoDetails, data.ProviderOption])(nil)
)

type renderFunc[D any] func(ctx context.Context, details D, c *Content) error

type exportFunc[D any] func(ctx context.Context, b *integrations.EPubBuilder, entry *data.Entry, unit data.Unit, details D) (string, error)

// sessionParams describes a session before its pager exists
type sessionParams[D pager.Details[S], S any] struct {
	entry      *data.Entry
	units      []data.Unit
	start      int
	resume     bool
	checkpoint *data.Checkpoint
	fetcher    pager.Fetcher[D]
	prefetcher pager.Prefetcher[S]
	syncer     *progress.Syncer
	loader     *PageLoader
	render     renderFunc[D]
	export     exportFunc[D]
	opts       []pager.Option
	logger     zerolog.Logger
}

// Session pages through the units of an entry and reports progress.
type Session[D pager.Details[S], S any] struct {
	id     string
	entry  *data.Entry
	pager  *pager.Pager[D, S]
	syncer *progress.Syncer
	loader *PageLoader
	render renderFunc[D]
	export exportFunc[D]
	logger zerolog.Logger

	unsubscribe func()
	closeOnce   sync.Once

	mu       sync.Mutex
	current  data.Unit
	resumeAt int
	// consumed by the first move of a resumed video session
	pendingResume *data.Unit
}

// startSession applies the resume checkpoint, opens the pager on the start unit
// and starts the progress flusher.
func startSession[D pager.Details[S], S any](ctx context.Context, p sessionParams[D, S]) (*Session[D, S], error) {
	id := uuid.NewString()
	logger := p.logger.With().
		Str(logging.FieldSessionID, id).
		Str(logging.FieldEntryID, p.entry.ID).
		Str(logging.FieldMediaType, string(p.entry.MediaType)).
		Logger()

	s := &Session[D, S]{
		id:     id,
		entry:  p.entry,
		syncer: p.syncer,
		loader: p.loader,
		render: p.render,
		export: p.export,
		logger: logger,
	}

	opts := append([]pager.Option{pager.WithLogger(logger)}, p.opts...)
	if p.resume {
		startUnit := p.units[p.start]
		if offset, ok := progress.ResumeOffset(p.checkpoint, startUnit.Ordinal); ok {
			if p.entry.MediaType == data.MediaVideo {
				s.resumeAt = offset
				s.pendingResume = &startUnit
			} else {
				opts = append(opts, pager.WithStartOffset(offset))
			}
		}
	}

	pg, err := pager.New(p.entry.ID, p.units, p.start, p.fetcher, p.prefetcher, opts...)
	if err != nil {
		s.closeResources(ctx)
		return nil, err
	}
	s.pager = pg
	s.unsubscribe = pg.Subscribe(s.observe)

	if _, err := pg.Open(ctx); err != nil {
		s.unsubscribe()
		_ = pg.Close()
		s.closeResources(ctx)
		return nil, fmt.Errorf("failed to open %s: %w", p.units[p.start].Label(), err)
	}
	s.syncer.Start(context.Background())

	logger.Info().
		Str(logging.FieldEvent, "session.opened").
		Str(logging.FieldUnitID, p.units[p.start].ID).
		Bool("resumed", p.resume).
		Msg("session opened")
	return s, nil
}

// observe runs on the pager goroutine.
func (s *Session[D, S]) observe(ev pager.Event) {
	switch ev.Kind {
	case pager.EventMoved:
		offset := max(ev.Offset, 0)
		s.mu.Lock()
		s.current = ev.Unit
		if s.pendingResume != nil {
			if s.pendingResume.ID == ev.Unit.ID {
				offset = s.resumeAt
			}
			s.pendingResume = nil
		}
		s.mu.Unlock()
		s.syncer.UnitChanged(ev.Unit.Ordinal, offset)
	case pager.EventOffsetChanged:
		s.syncer.Position(ev.Unit.Ordinal, ev.Offset)
	case pager.EventReleased:
		if s.loader != nil {
			s.loader.Release(ev.Unit.ID)
		}
	case pager.EventFetchFailed:
		s.logger.Warn().
			Err(ev.Err).
			Str(logging.FieldEvent, "session.fetch_failed").
			Str(logging.FieldUnitID, ev.Unit.ID).
			Int(logging.FieldIndex, ev.Index).
			Msg("unit unavailable")
	}
}

func (s *Session[D, S]) ID() string                { return s.id }
func (s *Session[D, S]) Entry() *data.Entry        { return s.entry }
func (s *Session[D, S]) MediaType() data.MediaType { return s.entry.MediaType }
func (s *Session[D, S]) Units() []data.Unit        { return s.pager.Units() }
func (s *Session[D, S]) Config() pager.Config      { return s.pager.Config() }

// State returns the pager snapshot with typed details.
func (s *Session[D, S]) State() pager.State[D] { return s.pager.State() }

func (s *Session[D, S]) Position() Position {
	return position[D, S](s.pager.State())
}

func position[D pager.Details[S], S any](st pager.State[D]) Position {
	return Position{
		Index:     st.Index,
		Unit:      st.Unit,
		Offset:    st.Offset,
		Total:     len(st.Current.SubItems()),
		Direction: st.Direction,
	}
}

// Content resolves what the current position shows. Image pages are loaded
// on demand when prefetch has not finished yet.
func (s *Session[D, S]) Content(ctx context.Context) (Content, error) {
	st := s.pager.State()
	c := Content{Position: position[D, S](st)}
	if st.Current.UnitID() == "" {
		return c, ErrNotLoaded
	}
	if err := s.render(ctx, st.Current, &c); err != nil {
		return c, err
	}
	return c, nil
}

func (s *Session[D, S]) Advance(ctx context.Context, dir pager.Direction) (pager.Result, error) {
	return s.pager.Advance(ctx, dir)
}

func (s *Session[D, S]) Step(ctx context.Context, delta int) (pager.Result, error) {
	return s.pager.Step(ctx, delta)
}

func (s *Session[D, S]) MoveTo(ctx context.Context, offset int) (pager.Result, error) {
	return s.pager.MoveTo(ctx, offset)
}

func (s *Session[D, S]) JumpTo(ctx context.Context, index int) (pager.Result, error) {
	return s.pager.JumpTo(ctx, index)
}

// Navigate applies a physical gesture. Paged units turn one sub-item; video
// units change episode.
func (s *Session[D, S]) Navigate(ctx context.Context, g pager.Gesture) (pager.Result, error) {
	dir := s.pager.Config().ReadingDirection.Translate(g)
	if s.entry.MediaType == data.MediaVideo {
		return s.pager.Advance(ctx, dir)
	}
	switch dir {
	case pager.Forward:
		return s.pager.Step(ctx, 1)
	case pager.Backward:
		return s.pager.Step(ctx, -1)
	}
	return s.pager.Step(ctx, 0)
}

func (s *Session[D, S]) Reconfigure(cfg pager.Config) error {
	return s.pager.Reconfigure(cfg)
}

func (s *Session[D, S]) ResumeAt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumeAt
}

// Playback records the playback position of the current video unit.
func (s *Session[D, S]) Playback(seconds int) {
	s.mu.Lock()
	unit := s.current
	s.mu.Unlock()
	s.syncer.Position(unit.Ordinal, max(seconds, 0))
}

// Finished reports that the current unit played to the end. With
// AutoAdvance the next unit is opened.
func (s *Session[D, S]) Finished(ctx context.Context) (pager.Result, error) {
	if !s.pager.Config().AutoAdvance {
		return pager.Result{}, nil
	}
	return s.pager.Advance(ctx, pager.Forward)
}

// Export writes the current unit to an EPUB.
func (s *Session[D, S]) Export(ctx context.Context, b *integrations.EPubBuilder) (string, error) {
	if s.export == nil {
		return "", ErrExportUnsupported
	}
	st := s.pager.State()
	if st.Current.UnitID() == "" {
		return "", ErrNotLoaded
	}
	return s.export(ctx, b, s.entry, st.Unit, st.Current)
}

func (s *Session[D, S]) PageProgress() <-chan PageProgress {
	if s.loader == nil {
		return nil
	}
	return s.loader.Progress()
}

func (s *Session[D, S]) Subscribe(obs pager.Observer) (cancel func()) {
	return s.pager.Subscribe(obs)
}

// Close stops the pager and issues the final checkpoint write.
func (s *Session[D, S]) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.unsubscribe()
		_ = s.pager.Close()
		s.closeResources(ctx)
		s.logger.Info().
			Str(logging.FieldEvent, "session.closed").
			Msg("session closed")
	})
	return nil
}

func (s *Session[D, S]) closeResources(ctx context.Context) {
	s.syncer.Close(ctx)
	if s.loader != nil {
		s.loader.Close()
	}
}

func renderPages(loader *PageLoader) renderFunc[*data.PageDetails] {
	return func(ctx context.Context, details *data.PageDetails, c *Content) error {
		refs := details.SubItems()
		if c.Offset < 0 || c.Offset >= len(refs) {
			return nil
		}
		page, err := loader.Get(ctx, details.UnitID(), refs[c.Offset])
		if err != nil {
			return err
		}
		c.Page = &page
		return nil
	}
}

func renderText(_ context.Context, details *data.TextDetails, c *Content) error {
	pages := details.SubItems()
	if c.Offset >= 0 && c.Offset < len(pages) {
		c.Lines = pages[c.Offset].Lines
	}
	return nil
}

func renderVideo(_ context.Context, details *data.VideoDetails, c *Content) error {
	c.Providers = details.SubItems()
	return nil
}

func exportPages(loader *PageLoader) exportFunc[*data.PageDetails] {
	return func(ctx context.Context, b *integrations.EPubBuilder, entry *data.Entry, unit data.Unit, details *data.PageDetails) (string, error) {
		pages, err := loader.LoadUnit(ctx, details)
		if err != nil {
			return "", err
		}
		images := make([][]byte, len(pages))
		for i, page := range pages {
			images[i] = page.Data
		}
		return b.ExportImages(entry, unit, images)
	}
}

func exportText(_ context.Context, b *integrations.EPubBuilder, entry *data.Entry, unit data.Unit, details *data.TextDetails) (string, error) {
	return b.ExportText(entry, unit, details.SubItems())
}
