package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync"

	"github.com/kerbaras/reader/pkg/data"
	"github.com/kerbaras/reader/pkg/integrations"
	"github.com/kerbaras/reader/pkg/logging"
	"github.com/kerbaras/reader/pkg/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const maxPageBytes = 32 << 20

// PageProgress reports page loads of a unit
type PageProgress struct {
	UnitID string
	Index  int
	Loaded int
	Total  int
	Status string // "loading", "ready", "error"
	Err    error
}

// Page is a materialized page image
type Page struct {
	Index       int
	Data        []byte
	ContentType string
}

type unitPages struct {
	total int
	pages map[int]Page
}

// PageLoader downloads and prepares page images. Pages are cached per unit
// until the unit is released.
type PageLoader struct {
	client    *http.Client
	limiter   *rate.Limiter
	processor *integrations.ImageProcessor
	userAgent string
	logger    zerolog.Logger

	mu           sync.Mutex
	units        map[string]*unitPages
	progressChan chan PageProgress
	closeOnce    sync.Once
	closed       bool
}

type LoaderOption func(*PageLoader)

func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *PageLoader) { l.client = c }
}

// WithPageRate limits page downloads to r per second
func WithPageRate(r rate.Limit, burst int) LoaderOption {
	return func(l *PageLoader) {
		if r > 0 {
			l.limiter = rate.NewLimiter(r, max(burst, 1))
		}
	}
}

func WithUserAgent(ua string) LoaderOption {
	return func(l *PageLoader) { l.userAgent = ua }
}

func WithLoaderLogger(logger zerolog.Logger) LoaderOption {
	return func(l *PageLoader) { l.logger = logger }
}

// NewPageLoader creates a loader. A nil processor keeps images as served.
func NewPageLoader(processor *integrations.ImageProcessor, opts ...LoaderOption) *PageLoader {
	l := &PageLoader{
		client:       http.DefaultClient,
		processor:    processor,
		logger:       logging.WithComponent("pageloader"),
		units:        make(map[string]*unitPages),
		progressChan: make(chan PageProgress, 100),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Progress returns the channel for receiving page load updates
func (l *PageLoader) Progress() <-chan PageProgress {
	return l.progressChan
}

// Prefetch materializes a single page; it satisfies pager.Prefetcher.
func (l *PageLoader) Prefetch(ctx context.Context, unitID string, _ int, ref data.PageRef) error {
	_, err := l.Get(ctx, unitID, ref)
	return err
}

// Get returns the page from cache or loads it.
func (l *PageLoader) Get(ctx context.Context, unitID string, ref data.PageRef) (Page, error) {
	if page, ok := l.Cached(unitID, ref.Index); ok {
		return page, nil
	}

	unit := l.unit(unitID)
	l.sendProgress(PageProgress{UnitID: unitID, Index: ref.Index, Loaded: l.Loaded(unitID), Status: "loading"})

	page, err := l.load(ctx, ref)
	if err != nil {
		l.logger.Debug().
			Err(err).
			Str(logging.FieldEvent, "pageloader.failed").
			Str(logging.FieldUnitID, unitID).
			Int(logging.FieldIndex, ref.Index).
			Msg("page load failed")
		if ctx.Err() != nil {
			l.forget(unitID, unit)
		}
		l.sendProgress(PageProgress{UnitID: unitID, Index: ref.Index, Status: "error", Err: err})
		return Page{}, err
	}

	l.mu.Lock()
	// Released while loading: hand the page out without caching it
	if l.units[unitID] == unit {
		unit.pages[ref.Index] = page
	}
	loaded, total := len(unit.pages), unit.total
	l.mu.Unlock()

	l.sendProgress(PageProgress{UnitID: unitID, Index: ref.Index, Loaded: loaded, Total: total, Status: "ready"})
	return page, nil
}

// LoadUnit loads every page of a unit, three at a time, and returns them in
// page order.
func (l *PageLoader) LoadUnit(ctx context.Context, details *data.PageDetails) ([]Page, error) {
	unitID := details.UnitID()
	refs := details.SubItems()

	l.mu.Lock()
	l.unitLocked(unitID).total = len(refs)
	l.mu.Unlock()

	pages := make([]Page, len(refs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i, ref := range refs {
		g.Go(func() error {
			page, err := l.Get(ctx, unitID, ref)
			if err != nil {
				return fmt.Errorf("page %d: %w", ref.Index+1, err)
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

// Cached returns a loaded page without loading it.
func (l *PageLoader) Cached(unitID string, index int) (Page, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	unit, ok := l.units[unitID]
	if !ok {
		return Page{}, false
	}
	page, ok := unit.pages[index]
	return page, ok
}

// Loaded returns how many pages of a unit are cached.
func (l *PageLoader) Loaded(unitID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if unit, ok := l.units[unitID]; ok {
		return len(unit.pages)
	}
	return 0
}

// Pages returns the cached pages of a unit in page order.
func (l *PageLoader) Pages(unitID string) []Page {
	l.mu.Lock()
	defer l.mu.Unlock()
	unit, ok := l.units[unitID]
	if !ok {
		return nil
	}
	out := make([]Page, 0, len(unit.pages))
	for _, page := range unit.pages {
		out = append(out, page)
	}
	slices.SortFunc(out, func(a, b Page) int { return a.Index - b.Index })
	return out
}

// Release drops every cached page of a unit.
func (l *PageLoader) Release(unitID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.units, unitID)
}

// Close drops the cache and closes the progress channel.
func (l *PageLoader) Close() {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.units = make(map[string]*unitPages)
		l.closed = true
		close(l.progressChan)
	})
}

func (l *PageLoader) unit(unitID string) *unitPages {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unitLocked(unitID)
}

func (l *PageLoader) unitLocked(unitID string) *unitPages {
	unit, ok := l.units[unitID]
	if !ok {
		unit = &unitPages{pages: make(map[int]Page)}
		l.units[unitID] = unit
	}
	return unit
}

// forget removes an entry that never received a page, so a cancelled
// prefetch of a released unit does not bring the unit back.
func (l *PageLoader) forget(unitID string, unit *unitPages) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.units[unitID] == unit && len(unit.pages) == 0 && unit.total == 0 {
		delete(l.units, unitID)
	}
}

func (l *PageLoader) load(ctx context.Context, ref data.PageRef) (Page, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return Page{}, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return Page{}, err
	}
	for k, v := range ref.Headers {
		req.Header.Set(k, v)
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("bad status: %s", resp.Status)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Page{}, fmt.Errorf("failed to read image content: %w", err)
	}
	metrics.PageBytes.Add(float64(len(content)))

	if l.processor == nil {
		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = http.DetectContentType(content)
		}
		return Page{Index: ref.Index, Data: content, ContentType: contentType}, nil
	}

	processed, err := l.processor.ProcessImageData(content)
	if err != nil {
		return Page{}, err
	}
	return Page{Index: ref.Index, Data: processed, ContentType: l.processor.ContentType()}, nil
}

// sendProgress sends a progress update (non-blocking)
func (l *PageLoader) sendProgress(progress PageProgress) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.progressChan <- progress:
	default:
		// Channel full, skip this update
	}
}
