package pager

import "errors"

var (
	// ErrFetchFailed is returned when the content provider could not resolve
	// the target unit. Pager state is left unchanged.
	ErrFetchFailed = errors.New("pager: unit fetch failed")

	// ErrTransitionInFlight is returned when a unit transition is requested
	// while another one is still waiting for its fetch.
	ErrTransitionInFlight = errors.New("pager: transition in flight")

	// ErrNotOpen is returned by offset moves before Open has succeeded.
	ErrNotOpen = errors.New("pager: not open")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("pager: closed")

	ErrNoUnits      = errors.New("pager: no units")
	ErrInvalidStart = errors.New("pager: start index out of range")
)
