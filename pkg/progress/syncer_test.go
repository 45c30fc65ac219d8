package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kerbaras/reader/pkg/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

type fakeRemote struct {
	mu        sync.Mutex
	stored    *data.Checkpoint
	fetchErr  error
	reportErr error
	reports   []data.Checkpoint
}

func (f *fakeRemote) FetchCheckpoint(_ context.Context, _ data.MediaType, _ string) (*data.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.stored, nil
}

func (f *fakeRemote) ReportCheckpoint(_ context.Context, _ data.MediaType, _ string, cp data.Checkpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, cp)
	if f.reportErr != nil {
		return f.reportErr
	}
	f.stored = &cp
	return nil
}

func (f *fakeRemote) written() []data.Checkpoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]data.Checkpoint(nil), f.reports...)
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestSyncer(remote Remote, opts ...SyncerOption) *Syncer {
	opts = append([]SyncerOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewSyncer(remote, data.MediaImage, "entry-1", opts...)
}

func TestResumeOffset(t *testing.T) {
	cp := &data.Checkpoint{UnitOrdinal: 3, Offset: 7}

	offset, ok := ResumeOffset(cp, 3)
	assert.True(t, ok)
	assert.Equal(t, 7, offset)

	// A checkpoint for another unit does not seed the offset
	offset, ok = ResumeOffset(cp, 4)
	assert.False(t, ok)
	assert.Zero(t, offset)

	_, ok = ResumeOffset(nil, 1)
	assert.False(t, ok)
}

func TestUnitChangedWritesImmediately(t *testing.T) {
	remote := &fakeRemote{}
	s := newTestSyncer(remote)
	defer s.Close(context.Background())

	s.UnitChanged(3, 0)

	require.Eventually(t, func() bool { return len(remote.written()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, data.Checkpoint{UnitOrdinal: 3, Offset: 0, UpdatedAt: fixedNow}, remote.written()[0])
}

func TestFlushWritesOnlyWhenChanged(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{}
	s := newTestSyncer(remote)
	defer s.Close(ctx)

	s.UnitChanged(2, 0)
	require.Eventually(t, func() bool { return len(remote.written()) == 1 }, time.Second, 5*time.Millisecond)

	s.Flush(ctx)
	assert.Len(t, remote.written(), 1)

	s.Position(2, 5)
	s.Position(2, 6)
	s.Flush(ctx)
	s.Flush(ctx)

	written := remote.written()
	require.Len(t, written, 2)
	assert.Equal(t, 6, written[1].Offset)
	assert.Equal(t, 2.0, written[1].UnitOrdinal)
}

func TestPositionForInactiveUnitDropped(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{}
	s := newTestSyncer(remote)

	s.Position(1, 4)
	s.Flush(ctx)
	assert.Empty(t, remote.written())

	s.UnitChanged(2, 0)
	require.Eventually(t, func() bool { return len(remote.written()) == 1 }, time.Second, 5*time.Millisecond)

	// Late position from the unit that was left
	s.Position(1, 9)
	s.Flush(ctx)
	assert.Len(t, remote.written(), 1)

	s.Close(ctx)
	written := remote.written()
	require.Len(t, written, 2)
	assert.Equal(t, data.Checkpoint{UnitOrdinal: 2, Offset: 0, UpdatedAt: fixedNow}, written[1])
}

func TestIntervalFlush(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{}
	s := newTestSyncer(remote, WithInterval(10*time.Millisecond))
	s.Start(ctx)
	defer s.Close(ctx)

	s.UnitChanged(1, 0)
	s.Position(1, 5)

	require.Eventually(t, func() bool {
		for _, cp := range remote.written() {
			if cp.Offset == 5 {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestCloseWritesFinalPosition(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{}
	s := newTestSyncer(remote)

	s.UnitChanged(4, 0)
	s.Position(4, 11)
	s.Close(ctx)

	written := remote.written()
	require.Len(t, written, 2)
	assert.Equal(t, 11, written[1].Offset)

	// Closed syncers ignore further updates
	s.UnitChanged(5, 0)
	s.Position(5, 1)
	s.Close(ctx)
	assert.Len(t, remote.written(), 2)
}

func TestCloseWithoutPositionWritesNothing(t *testing.T) {
	remote := &fakeRemote{}
	s := newTestSyncer(remote)
	s.Start(context.Background())
	s.Close(context.Background())
	assert.Empty(t, remote.written())
}

func TestFailedWritesAreNotRetried(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{reportErr: errors.New("503")}
	s := newTestSyncer(remote)

	s.UnitChanged(1, 0)
	s.Close(ctx)

	// One attempt for the unit change, one for close
	assert.Len(t, remote.written(), 2)
}
