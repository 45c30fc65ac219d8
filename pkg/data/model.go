package data

import (
	"fmt"
	"strconv"
	"time"
)

// MediaType identifies how an entry's units are consumed
type MediaType string

const (
	MediaText  MediaType = "text"
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// ParseMediaType validates a media type string
func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(s) {
	case MediaText, MediaImage, MediaVideo:
		return MediaType(s), nil
	}
	return "", fmt.Errorf("unknown media type %q", s)
}

// Entry is a manga, novel or series in the library
type Entry struct {
	ID          string
	Title       string
	Description string
	CoverURL    string
	Source      string
	MediaType   MediaType
}

// Unit is a chapter or episode. Units are immutable once listed.
type Unit struct {
	ID         string
	EntryID    string
	Ordinal    float64
	Volume     *float64
	Title      string
	Translator string
}

// Label renders the unit for humans, e.g. "Vol. 2 Ch. 10.5: Title".
func (u Unit) Label() string {
	label := "Ch. " + FormatOrdinal(u.Ordinal)
	if u.Volume != nil && *u.Volume != 0 {
		label = fmt.Sprintf("Vol. %s %s", FormatOrdinal(*u.Volume), label)
	}
	if u.Title != "" {
		label = fmt.Sprintf("%s: %s", label, u.Title)
	}
	return label
}

// FormatOrdinal prints 10 as "10" and 10.5 as "10.5".
func FormatOrdinal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseOrdinal parses a chapter number as published by sources. Empty
// strings (oneshots) are chapter 0.
func ParseOrdinal(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// PageRef points at a single page image of a unit
type PageRef struct {
	Index   int
	URL     string
	Headers map[string]string
}

// VideoStream is a single playable stream of an episode
type VideoStream struct {
	URL     string
	Quality string
	Format  string // "hls", "mp4", ...
}

// ProviderOption is one host offering an episode
type ProviderOption struct {
	Provider string
	Streams  []VideoStream
	Headers  map[string]string
}

// TextPage is a page of pre-split text lines
type TextPage struct {
	Index int
	Lines []string
}

// PageDetails are the resolved pages of an image unit
type PageDetails struct {
	Unit  string
	Pages []PageRef
}

func (d *PageDetails) UnitID() string {
	if d == nil {
		return ""
	}
	return d.Unit
}

func (d *PageDetails) SubItems() []PageRef {
	if d == nil {
		return nil
	}
	return d.Pages
}

func (d *PageDetails) Paged() bool { return true }

// VideoDetails are the resolved providers of a video unit
type VideoDetails struct {
	Unit      string
	Providers []ProviderOption
}

func (d *VideoDetails) UnitID() string {
	if d == nil {
		return ""
	}
	return d.Unit
}

func (d *VideoDetails) SubItems() []ProviderOption {
	if d == nil {
		return nil
	}
	return d.Providers
}

// Paged is false: a video unit has a playback position, not pages.
func (d *VideoDetails) Paged() bool { return false }

// TextDetails are the resolved pages of a text unit
type TextDetails struct {
	Unit  string
	Pages []TextPage
}

func (d *TextDetails) UnitID() string {
	if d == nil {
		return ""
	}
	return d.Unit
}

func (d *TextDetails) SubItems() []TextPage {
	if d == nil {
		return nil
	}
	return d.Pages
}

func (d *TextDetails) Paged() bool { return true }

// Checkpoint is the last known reading position of an entry, keyed by
// (MediaType, EntryID). Offset is a page index or playback seconds.
type Checkpoint struct {
	UnitOrdinal float64
	Offset      int
	UpdatedAt   time.Time
}
