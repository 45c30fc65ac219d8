package progress

import (
	"context"
	"sync"
	"time"

	"github.com/kerbaras/reader/pkg/data"
	"github.com/kerbaras/reader/pkg/logging"
	"github.com/kerbaras/reader/pkg/metrics"
	"github.com/rs/zerolog"
)

// DefaultInterval is how often a changing position is flushed.
const DefaultInterval = 15 * time.Second

const (
	triggerUnit     = "unit"
	triggerInterval = "interval"
	triggerClose    = "close"
)

// Syncer reports the reading position of one session to a Remote.
//
// Unit changes are written immediately. Offset changes within a unit are
// coalesced and written on a fixed interval while they keep changing. Close
// issues a final write. Writes are never queued or retried; a failure is
// logged and the next write carries a fresher position anyway.
type Syncer struct {
	remote    Remote
	mediaType data.MediaType
	entryID   string
	interval  time.Duration
	logger    zerolog.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	stop   chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	active  bool
	ordinal float64
	offset  int
	dirty   bool
	started bool
	closed  bool
}

type SyncerOption func(*Syncer)

// WithInterval overrides DefaultInterval
func WithInterval(d time.Duration) SyncerOption {
	return func(s *Syncer) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithLogger(l zerolog.Logger) SyncerOption {
	return func(s *Syncer) { s.logger = l }
}

// WithClock sets the time source stamped on checkpoints
func WithClock(now func() time.Time) SyncerOption {
	return func(s *Syncer) { s.now = now }
}

func NewSyncer(remote Remote, mediaType data.MediaType, entryID string, opts ...SyncerOption) *Syncer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Syncer{
		remote:    remote,
		mediaType: mediaType,
		entryID:   entryID,
		interval:  DefaultInterval,
		logger:    logging.WithComponent("progress"),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().
		Str(logging.FieldEntryID, entryID).
		Str(logging.FieldMediaType, string(mediaType)).
		Logger()
	return s
}

// ResumeOffset returns the offset stored in cp when it describes the unit
// with the given ordinal.
func ResumeOffset(cp *data.Checkpoint, ordinal float64) (int, bool) {
	if cp == nil || cp.UnitOrdinal != ordinal {
		return 0, false
	}
	return cp.Offset, true
}

// Start runs the interval flusher until ctx is done or Close is called.
func (s *Syncer) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.Flush(s.ctx)
			}
		}
	}()
}

// UnitChanged makes ordinal the active unit and writes it immediately
// without waiting for the result.
func (s *Syncer) UnitChanged(ordinal float64, offset int) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.ordinal = ordinal
	s.offset = offset
	s.dirty = false
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.write(s.ctx, triggerUnit, ordinal, offset)
	}()
}

// Position records the offset within the active unit. It is flushed on the
// next interval. Positions for any other unit are dropped.
func (s *Syncer) Position(ordinal float64, offset int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.active {
		return
	}
	if ordinal != s.ordinal {
		s.logger.Debug().
			Str(logging.FieldEvent, "progress.position_dropped").
			Float64(logging.FieldOrdinal, ordinal).
			Float64("active_ordinal", s.ordinal).
			Msg("position for inactive unit")
		return
	}
	if offset != s.offset {
		s.offset = offset
		s.dirty = true
	}
}

// Flush writes the position if it changed since the last write.
func (s *Syncer) Flush(ctx context.Context) {
	s.mu.Lock()
	if !s.dirty || !s.active {
		s.mu.Unlock()
		return
	}
	s.dirty = false
	ordinal, offset := s.ordinal, s.offset
	s.mu.Unlock()

	s.write(ctx, triggerInterval, ordinal, offset)
}

// Close stops the flusher, waits for writes in flight and writes the final
// position. Writes still running when ctx is done are abandoned.
func (s *Syncer) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.stop)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.cancel()
		<-done
	}
	defer s.cancel()

	s.mu.Lock()
	active := s.active
	ordinal, offset := s.ordinal, s.offset
	s.mu.Unlock()

	if active {
		s.write(ctx, triggerClose, ordinal, offset)
	}
}

func (s *Syncer) write(ctx context.Context, trigger string, ordinal float64, offset int) {
	cp := data.Checkpoint{UnitOrdinal: ordinal, Offset: offset, UpdatedAt: s.now()}
	if err := s.remote.ReportCheckpoint(ctx, s.mediaType, s.entryID, cp); err != nil {
		metrics.CheckpointWrites.WithLabelValues(trigger, "error").Inc()
		s.logger.Warn().
			Err(err).
			Str(logging.FieldEvent, "progress.write_failed").
			Str("trigger", trigger).
			Float64(logging.FieldOrdinal, ordinal).
			Int(logging.FieldOffset, offset).
			Msg("checkpoint write dropped")
		return
	}
	metrics.CheckpointWrites.WithLabelValues(trigger, "ok").Inc()
	s.logger.Debug().
		Str(logging.FieldEvent, "progress.written").
		Str("trigger", trigger).
		Float64(logging.FieldOrdinal, ordinal).
		Int(logging.FieldOffset, offset).
		Msg("checkpoint written")
}
