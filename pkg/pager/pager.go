package pager

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/kerbaras/reader/pkg/data"
	"github.com/kerbaras/reader/pkg/logging"
	"github.com/kerbaras/reader/pkg/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// NoOffset is the sub-item offset of units that are not paged (video).
const NoOffset = -1

// Details is what a content provider resolves a unit into: an ordered list
// of sub-items (pages, text pages, stream providers).
type Details[S any] interface {
	UnitID() string
	SubItems() []S
	// Paged reports whether sub-items are navigable positions. Video units
	// list providers but are positioned by playback time.
	Paged() bool
}

// Fetcher resolves a unit's details. An error means the unit is absent.
type Fetcher[D any] interface {
	FetchUnitDetails(ctx context.Context, entryID, unitID string) (D, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc[D any] func(ctx context.Context, entryID, unitID string) (D, error)

func (f FetcherFunc[D]) FetchUnitDetails(ctx context.Context, entryID, unitID string) (D, error) {
	return f(ctx, entryID, unitID)
}

// Prefetcher materializes a single sub-item ahead of display.
type Prefetcher[S any] interface {
	Prefetch(ctx context.Context, unitID string, offset int, item S) error
}

// PrefetcherFunc adapts a function to Prefetcher.
type PrefetcherFunc[S any] func(ctx context.Context, unitID string, offset int, item S) error

func (f PrefetcherFunc[S]) Prefetch(ctx context.Context, unitID string, offset int, item S) error {
	return f(ctx, unitID, offset, item)
}

// Result describes the outcome of a navigation call. Moved is true only when
// the current unit changed; offset moves within a unit and no-ops report false.
type Result struct {
	Moved     bool
	Index     int
	Offset    int
	Direction Direction
}

// State is a snapshot of the pager. Empty or still-loading slots hold the
// zero value of D.
type State[D any] struct {
	Index     int
	Unit      data.Unit
	Offset    int
	Direction Direction
	Previous  D
	Current   D
	Next      D
}

type slotState int

const (
	slotLoading slotState = iota
	slotReady
	slotFailed
)

// slot is one cache position. A slot is allocated per fetch and never
// reassigned, so a fetch result can only land in the slot it was started for.
// ctx is cancelled when the slot leaves the cache, which abandons its
// prefetches.
type slot[D any] struct {
	gen       uint64
	index     int
	unitID    string
	state     slotState
	details   D
	scheduled map[int]struct{}

	ctx  context.Context
	drop context.CancelFunc
}

type landing int

const (
	landHead landing = iota
	landTail
)

type outcome struct {
	result Result
	err    error
}

type transition[D any] struct {
	target *slot[D]
	land   landing
	cached bool
	reply  chan<- outcome
}

type options struct {
	cfg         Config
	logger      zerolog.Logger
	concurrency int64
	startOffset int
}

// Option configures a Pager.
type Option func(*options)

// WithConfig sets the initial settings snapshot.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStartOffset makes Open land on offset instead of the first sub-item.
// Offsets past the end of the start unit land on its last sub-item.
func WithStartOffset(offset int) Option {
	return func(o *options) {
		if offset > 0 {
			o.startOffset = offset
		}
	}
}

// WithPrefetchConcurrency bounds concurrent Prefetch calls (default 3).
func WithPrefetchConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = int64(n)
		}
	}
}

// Pager walks an ordered list of units one at a time, keeping the previous,
// current and next unit details cached and prefetching sub-items around the
// current offset.
//
// All state is owned by a single goroutine; public methods submit work to it
// and wait. Fetches run concurrently and post their results back.
type Pager[D Details[S], S any] struct {
	entryID     string
	units       []data.Unit
	start       int
	startOffset int
	fetcher     Fetcher[D]
	prefetcher  Prefetcher[S]
	logger      zerolog.Logger
	sem         *semaphore.Weighted

	ctx       context.Context
	cancel    context.CancelFunc
	ops       chan func()
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// owned by run
	cfg         Config
	index       int
	offset      int
	direction   Direction
	prev        *slot[D]
	cur         *slot[D]
	next        *slot[D]
	pending     *transition[D]
	observers   []observerEntry
	observerSeq uint64
	slotSeq     uint64
}

// New creates a pager over units positioned at start. Nothing is fetched
// until Open. prefetcher may be nil.
func New[D Details[S], S any](entryID string, units []data.Unit, start int, fetcher Fetcher[D], prefetcher Prefetcher[S], opts ...Option) (*Pager[D, S], error) {
	if len(units) == 0 {
		return nil, ErrNoUnits
	}
	if start < 0 || start >= len(units) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidStart, start, len(units))
	}
	if fetcher == nil {
		return nil, errors.New("pager: nil fetcher")
	}

	o := options{
		cfg:         DefaultConfig(),
		logger:      logging.WithComponent("pager"),
		concurrency: 3,
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pager[D, S]{
		entryID:     entryID,
		units:       slices.Clone(units),
		start:       start,
		startOffset: o.startOffset,
		fetcher:     fetcher,
		prefetcher:  prefetcher,
		logger:      o.logger.With().Str(logging.FieldEntryID, entryID).Logger(),
		sem:         semaphore.NewWeighted(o.concurrency),
		ctx:         ctx,
		cancel:      cancel,
		ops:         make(chan func()),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		cfg:         o.cfg.normalized(),
		index:       start,
	}
	go p.run()
	return p, nil
}

func (p *Pager[D, S]) run() {
	defer close(p.stopped)
	for {
		select {
		case <-p.done:
			return
		case op := <-p.ops:
			op()
		}
	}
}

// do runs fn on the owner goroutine and waits for it.
func (p *Pager[D, S]) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case p.ops <- func() { defer close(finished); fn() }:
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	// A received op always runs to completion before the loop exits.
	<-finished
	return nil
}

// post hands fn to the owner goroutine without waiting. Dropped after Close.
func (p *Pager[D, S]) post(fn func()) {
	select {
	case p.ops <- fn:
	case <-p.done:
	}
}

func (p *Pager[D, S]) await(ctx context.Context, reply <-chan outcome) (Result, error) {
	select {
	case out := <-reply:
		return out.result, out.err
	case <-ctx.Done():
		// The transition keeps running; its result is still committed.
		return Result{}, ctx.Err()
	case <-p.stopped:
		select {
		case out := <-reply:
			return out.result, out.err
		default:
			return Result{}, ErrClosed
		}
	}
}

// EntryID returns the entry whose units are paged.
func (p *Pager[D, S]) EntryID() string { return p.entryID }

// Units returns a copy of the unit list.
func (p *Pager[D, S]) Units() []data.Unit { return slices.Clone(p.units) }

// Open fetches the start unit and primes its neighbours. Calling Open on an
// open pager is a no-op.
func (p *Pager[D, S]) Open(ctx context.Context) (Result, error) {
	return p.transition(ctx, func() (int, landing, error) {
		if p.cur != nil {
			return p.cur.index, landHead, nil
		}
		return p.start, landHead, nil
	})
}

// JumpTo moves to an arbitrary unit. Jumping to an adjacent unit behaves
// exactly like Advance; jumping to the current unit or out of range is a no-op.
func (p *Pager[D, S]) JumpTo(ctx context.Context, index int) (Result, error) {
	return p.transition(ctx, func() (int, landing, error) {
		return index, landHead, nil
	})
}

// Advance moves one unit in logical order, landing on its first sub-item.
// Moving past either end of the list is a no-op.
func (p *Pager[D, S]) Advance(ctx context.Context, dir Direction) (Result, error) {
	return p.transition(ctx, func() (int, landing, error) {
		if p.cur == nil {
			return 0, landHead, ErrNotOpen
		}
		switch dir {
		case Forward:
			return p.cur.index + 1, landHead, nil
		case Backward:
			return p.cur.index - 1, landHead, nil
		}
		return p.cur.index, landHead, nil
	})
}

// MoveTo sets the sub-item offset. Offsets below zero continue at the tail of
// the previous unit, offsets past the end at the head of the next unit. At
// the first or last unit such moves are clamped no-ops.
func (p *Pager[D, S]) MoveTo(ctx context.Context, offset int) (Result, error) {
	return p.move(ctx, func(int) int { return offset })
}

// Step moves the sub-item offset by delta with MoveTo's boundary rules.
func (p *Pager[D, S]) Step(ctx context.Context, delta int) (Result, error) {
	return p.move(ctx, func(current int) int { return current + delta })
}

func (p *Pager[D, S]) transition(ctx context.Context, pick func() (int, landing, error)) (Result, error) {
	reply := make(chan outcome, 1)
	if err := p.do(ctx, func() {
		target, land, err := pick()
		if err != nil {
			reply <- outcome{result: p.result(false), err: err}
			return
		}
		p.begin(target, land, reply)
	}); err != nil {
		return Result{}, err
	}
	return p.await(ctx, reply)
}

func (p *Pager[D, S]) move(ctx context.Context, target func(current int) int) (Result, error) {
	reply := make(chan outcome, 1)
	if err := p.do(ctx, func() { p.beginMove(target, reply) }); err != nil {
		return Result{}, err
	}
	return p.await(ctx, reply)
}

// begin starts a unit transition. Runs on the owner goroutine.
func (p *Pager[D, S]) begin(target int, land landing, reply chan<- outcome) {
	if p.pending != nil {
		metrics.TransitionsRejected.Inc()
		reply <- outcome{result: p.result(false), err: ErrTransitionInFlight}
		return
	}
	if target < 0 || target >= len(p.units) || (p.cur != nil && target == p.cur.index) {
		reply <- outcome{result: p.result(false)}
		return
	}

	s, cached := p.lookup(target)
	if s == nil {
		s = p.allocate(target)
		p.fetch(s)
	}
	if s.state == slotReady {
		reply <- p.commit(s, land, cached)
		return
	}
	p.pending = &transition[D]{target: s, land: land, cached: cached, reply: reply}
}

func (p *Pager[D, S]) beginMove(target func(int) int, reply chan<- outcome) {
	if p.pending != nil {
		metrics.TransitionsRejected.Inc()
		reply <- outcome{result: p.result(false), err: ErrTransitionInFlight}
		return
	}
	if p.cur == nil {
		reply <- outcome{result: p.result(false), err: ErrNotOpen}
		return
	}

	base := p.offset
	if base == NoOffset {
		base = 0
	}
	offset := target(base)

	paged := p.cur.details.Paged()
	span := 1
	if paged {
		span = len(p.cur.details.SubItems())
	}

	switch {
	case offset < 0:
		if p.cur.index == 0 {
			reply <- outcome{result: p.result(false)}
			return
		}
		p.begin(p.cur.index-1, landTail, reply)
	case offset >= span:
		if p.cur.index == len(p.units)-1 {
			reply <- outcome{result: p.result(false)}
			return
		}
		p.begin(p.cur.index+1, landHead, reply)
	case !paged:
		reply <- outcome{result: p.result(false)}
	default:
		if offset != p.offset {
			p.offset = offset
			p.emit(Event{
				Kind:      EventOffsetChanged,
				Index:     p.index,
				Unit:      p.units[p.index],
				Offset:    offset,
				Direction: p.direction,
			})
		}
		p.schedulePrefetch()
		reply <- outcome{result: p.result(false)}
	}
}

// lookup returns a usable adjacent slot already holding index.
func (p *Pager[D, S]) lookup(index int) (*slot[D], bool) {
	for _, s := range []*slot[D]{p.next, p.prev} {
		if s != nil && s.index == index && s.state != slotFailed {
			return s, true
		}
	}
	return nil, false
}

func (p *Pager[D, S]) allocate(index int) *slot[D] {
	p.slotSeq++
	ctx, drop := context.WithCancel(p.ctx)
	return &slot[D]{
		gen:       p.slotSeq,
		index:     index,
		unitID:    p.units[index].ID,
		scheduled: make(map[int]struct{}),
		ctx:       ctx,
		drop:      drop,
	}
}

// neighbour allocates and starts fetching the slot for index, or returns nil
// past either end of the list.
func (p *Pager[D, S]) neighbour(index int) *slot[D] {
	if index < 0 || index >= len(p.units) {
		return nil
	}
	s := p.allocate(index)
	p.fetch(s)
	return s
}

func (p *Pager[D, S]) fetch(s *slot[D]) {
	unitID := s.unitID
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		details, err := p.fetcher.FetchUnitDetails(p.ctx, p.entryID, unitID)
		if err == nil && details.UnitID() != unitID {
			err = fmt.Errorf("fetcher returned unit %q", details.UnitID())
		}
		p.post(func() { p.onFetched(s, details, err) })
	}()
}

// live reports whether s is still referenced by the cache or the pending
// transition. Results for dropped slots are discarded.
func (p *Pager[D, S]) live(s *slot[D]) bool {
	if s == p.prev || s == p.cur || s == p.next {
		return true
	}
	return p.pending != nil && p.pending.target == s
}

func (p *Pager[D, S]) onFetched(s *slot[D], details D, err error) {
	if !p.live(s) {
		metrics.UnitFetches.WithLabelValues("stale").Inc()
		p.logger.Debug().
			Str(logging.FieldEvent, "pager.fetch_stale").
			Str(logging.FieldUnitID, s.unitID).
			Uint64("gen", s.gen).
			Msg("discarding result for dropped slot")
		return
	}

	unit := p.units[s.index]
	if err != nil {
		s.state = slotFailed
		metrics.UnitFetches.WithLabelValues("error").Inc()
		p.logger.Warn().
			Err(err).
			Str(logging.FieldEvent, "pager.fetch_failed").
			Str(logging.FieldUnitID, s.unitID).
			Int(logging.FieldIndex, s.index).
			Msg("unit fetch failed")
		p.emit(Event{Kind: EventFetchFailed, Index: s.index, Unit: unit, Offset: p.offset, Err: err})

		if t := p.pending; t != nil && t.target == s {
			p.pending = nil
			t.reply <- outcome{
				result: p.result(false),
				err:    fmt.Errorf("%w: unit %s: %w", ErrFetchFailed, s.unitID, err),
			}
		}
		return
	}

	s.details = details
	s.state = slotReady
	metrics.UnitFetches.WithLabelValues("ok").Inc()

	if t := p.pending; t != nil && t.target == s {
		p.pending = nil
		t.reply <- p.commit(s, t.land, t.cached)
		return
	}

	// Prime whichever sub-item scrolls in first from this neighbour.
	switch s {
	case p.next:
		p.prime(s, 0)
	case p.prev:
		p.prime(s, len(details.SubItems())-1)
	}
}

// commit makes s current and rotates the cache. Runs on the owner goroutine.
func (p *Pager[D, S]) commit(s *slot[D], land landing, cached bool) outcome {
	old := p.cur
	dir := None
	if old != nil {
		switch s.index {
		case old.index + 1:
			dir = Forward
		case old.index - 1:
			dir = Backward
		}
	}

	var dropped []*slot[D]
	switch dir {
	case Forward:
		dropped = appendSlot(dropped, p.prev)
		if p.next != s {
			dropped = appendSlot(dropped, p.next)
		}
		p.prev, p.cur = old, s
		p.next = p.neighbour(s.index + 1)
	case Backward:
		dropped = appendSlot(dropped, p.next)
		if p.prev != s {
			dropped = appendSlot(dropped, p.prev)
		}
		p.next, p.cur = old, s
		p.prev = p.neighbour(s.index - 1)
	default:
		for _, d := range []*slot[D]{p.prev, old, p.next} {
			if d != s {
				dropped = appendSlot(dropped, d)
			}
		}
		p.cur = s
		p.prev = p.neighbour(s.index - 1)
		p.next = p.neighbour(s.index + 1)
	}

	p.index = s.index
	p.direction = dir
	p.offset = p.landingOffset(s, land)
	if old == nil && p.offset != NoOffset && p.startOffset > 0 {
		p.offset = min(p.startOffset, max(len(s.details.SubItems())-1, 0))
	}

	cacheLabel := "miss"
	if cached {
		cacheLabel = "hit"
	}
	metrics.Transitions.WithLabelValues(dir.String(), cacheLabel).Inc()

	p.logger.Debug().
		Str(logging.FieldEvent, "pager.moved").
		Str(logging.FieldUnitID, s.unitID).
		Int(logging.FieldIndex, s.index).
		Int(logging.FieldOffset, p.offset).
		Stringer(logging.FieldDirection, dir).
		Bool("cached", cached).
		Msg("unit transition committed")

	for _, d := range dropped {
		d.drop()
		if d.state == slotReady {
			p.emit(Event{Kind: EventReleased, Index: d.index, Unit: p.units[d.index]})
		}
	}
	p.emit(Event{
		Kind:      EventMoved,
		Index:     p.index,
		Unit:      p.units[p.index],
		Offset:    p.offset,
		Direction: dir,
	})
	p.schedulePrefetch()

	return outcome{result: p.result(true)}
}

func appendSlot[D any](list []*slot[D], s *slot[D]) []*slot[D] {
	if s == nil {
		return list
	}
	return append(list, s)
}

func (p *Pager[D, S]) landingOffset(s *slot[D], land landing) int {
	if !s.details.Paged() {
		return NoOffset
	}
	if land == landTail {
		if n := len(s.details.SubItems()); n > 0 {
			return n - 1
		}
	}
	return 0
}

// schedulePrefetch covers the window around the current offset.
func (p *Pager[D, S]) schedulePrefetch() {
	if p.prefetcher == nil || p.cur == nil || p.cur.state != slotReady || !p.cur.details.Paged() {
		return
	}
	items := p.cur.details.SubItems()
	lo, hi := Window(p.offset, p.cfg.PrefetchRadius, len(items))
	for i := lo; i <= hi; i++ {
		p.prefetchOne(p.cur, i, items[i])
	}
}

func (p *Pager[D, S]) prime(s *slot[D], offset int) {
	if p.prefetcher == nil || !s.details.Paged() {
		return
	}
	items := s.details.SubItems()
	if offset < 0 || offset >= len(items) {
		return
	}
	p.prefetchOne(s, offset, items[offset])
}

// prefetchOne schedules a single sub-item unless it is already scheduled or
// done. Marks live on the slot; a failed prefetch is unmarked so a later
// window can retry it. Prefetches of a dropped slot are skipped, or cancelled
// if already running.
func (p *Pager[D, S]) prefetchOne(s *slot[D], offset int, item S) {
	if _, ok := s.scheduled[offset]; ok {
		return
	}
	s.scheduled[offset] = struct{}{}

	unitID := s.unitID
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(s.ctx, 1); err != nil {
			metrics.PrefetchScheduled.WithLabelValues("skipped").Inc()
			return
		}
		if s.ctx.Err() != nil {
			p.sem.Release(1)
			metrics.PrefetchScheduled.WithLabelValues("skipped").Inc()
			return
		}
		err := p.prefetcher.Prefetch(s.ctx, unitID, offset, item)
		p.sem.Release(1)

		if err != nil {
			if s.ctx.Err() != nil {
				metrics.PrefetchScheduled.WithLabelValues("skipped").Inc()
				return
			}
			metrics.PrefetchScheduled.WithLabelValues("error").Inc()
			p.logger.Debug().
				Err(err).
				Str(logging.FieldEvent, "pager.prefetch_failed").
				Str(logging.FieldUnitID, unitID).
				Int(logging.FieldOffset, offset).
				Msg("prefetch failed")
			p.post(func() { delete(s.scheduled, offset) })
			return
		}
		metrics.PrefetchScheduled.WithLabelValues("ok").Inc()
	}()
}

func (p *Pager[D, S]) result(moved bool) Result {
	return Result{Moved: moved, Index: p.index, Offset: p.offset, Direction: p.direction}
}

func (p *Pager[D, S]) emit(ev Event) {
	for _, o := range p.observers {
		o.fn(ev)
	}
}

func readyDetails[D any](s *slot[D]) D {
	var zero D
	if s == nil || s.state != slotReady {
		return zero
	}
	return s.details
}

func (p *Pager[D, S]) snapshot() State[D] {
	return State[D]{
		Index:     p.index,
		Unit:      p.units[p.index],
		Offset:    p.offset,
		Direction: p.direction,
		Previous:  readyDetails(p.prev),
		Current:   readyDetails(p.cur),
		Next:      readyDetails(p.next),
	}
}

// State returns a snapshot of the current position and cache.
func (p *Pager[D, S]) State() State[D] {
	var st State[D]
	if err := p.do(context.Background(), func() { st = p.snapshot() }); err != nil {
		<-p.stopped
		return p.snapshot()
	}
	return st
}

// Config returns the active settings snapshot.
func (p *Pager[D, S]) Config() Config {
	var cfg Config
	if err := p.do(context.Background(), func() { cfg = p.cfg }); err != nil {
		<-p.stopped
		return p.cfg
	}
	return cfg
}

// Reconfigure replaces the settings snapshot and reschedules prefetch with
// the new radius.
func (p *Pager[D, S]) Reconfigure(cfg Config) error {
	return p.do(context.Background(), func() {
		p.cfg = cfg.normalized()
		p.schedulePrefetch()
	})
}

// Subscribe registers an observer until the returned cancel func is called
// or the pager is closed. cancel must not be called from an observer.
func (p *Pager[D, S]) Subscribe(obs Observer) (cancel func()) {
	var id uint64
	if err := p.do(context.Background(), func() {
		p.observerSeq++
		id = p.observerSeq
		p.observers = append(p.observers, observerEntry{id: id, fn: obs})
	}); err != nil {
		return func() {}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = p.do(context.Background(), func() {
				p.observers = slices.DeleteFunc(p.observers, func(o observerEntry) bool { return o.id == id })
			})
		})
	}
}

// Close stops the pager and drops observers. Prefetches still queued on the
// concurrency limit are abandoned; running fetches and prefetches see a
// cancelled context and Close waits for them to return. A transition still
// waiting for its fetch returns ErrClosed.
func (p *Pager[D, S]) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		<-p.stopped
		p.cancel()
		p.wg.Wait()

		if t := p.pending; t != nil {
			p.pending = nil
			t.reply <- outcome{result: p.result(false), err: ErrClosed}
		}
		p.observers = nil
	})
	return nil
}
