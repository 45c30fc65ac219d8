package pager

import "github.com/kerbaras/reader/pkg/data"

// EventKind identifies what an Event reports.
type EventKind int

const (
	// EventMoved is emitted after a unit transition commits, including Open.
	EventMoved EventKind = iota + 1
	// EventOffsetChanged is emitted when the sub-item offset changes within a unit.
	EventOffsetChanged
	// EventFetchFailed is emitted when a unit fetch fails, adjacent or targeted.
	EventFetchFailed
	// EventReleased is emitted when a loaded unit leaves the cache window.
	EventReleased
)

func (k EventKind) String() string {
	switch k {
	case EventMoved:
		return "moved"
	case EventOffsetChanged:
		return "offset_changed"
	case EventFetchFailed:
		return "fetch_failed"
	case EventReleased:
		return "released"
	}
	return "unknown"
}

// Event is delivered to observers on the pager's goroutine.
type Event struct {
	Kind      EventKind
	Index     int
	Unit      data.Unit
	Offset    int
	Direction Direction
	Err       error
}

// Observer receives pager events. Observers run on the pager's goroutine and
// must not block or call back into the pager.
type Observer func(Event)

type observerEntry struct {
	id uint64
	fn Observer
}
