package sources

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/kerbaras/reader/pkg/data"
)

var ErrUnknownSource = errors.New("unknown source")

// Catalog lists entries and their ordered units.
type Catalog interface {
	Name() string
	Search(ctx context.Context, query string) ([]data.Entry, error)
	GetEntry(ctx context.Context, id string) (*data.Entry, error)
	GetUnits(ctx context.Context, entryID string) ([]data.Unit, error)
}

// ImageSource resolves a unit into page images.
type ImageSource interface {
	Catalog
	FetchPages(ctx context.Context, entryID, unitID string) (*data.PageDetails, error)
}

// VideoSource resolves a unit into stream providers.
type VideoSource interface {
	Catalog
	FetchProviders(ctx context.Context, entryID, unitID string) (*data.VideoDetails, error)
}

// TextSource resolves a unit into pages of text.
type TextSource interface {
	Catalog
	FetchText(ctx context.Context, entryID, unitID string) (*data.TextDetails, error)
}

// Provider is exactly one of a text, image or video source. The kind is
// fixed at construction and decides which details a session pages through.
type Provider struct {
	kind  data.MediaType
	text  TextSource
	image ImageSource
	video VideoSource
}

func Text(s TextSource) Provider   { return Provider{kind: data.MediaText, text: s} }
func Image(s ImageSource) Provider { return Provider{kind: data.MediaImage, image: s} }
func Video(s VideoSource) Provider { return Provider{kind: data.MediaVideo, video: s} }

func (p Provider) Kind() data.MediaType { return p.kind }

func (p Provider) Catalog() Catalog {
	switch p.kind {
	case data.MediaText:
		return p.text
	case data.MediaImage:
		return p.image
	case data.MediaVideo:
		return p.video
	}
	return nil
}

func (p Provider) Name() string {
	if c := p.Catalog(); c != nil {
		return c.Name()
	}
	return ""
}

func (p Provider) Text() (TextSource, bool)   { return p.text, p.kind == data.MediaText }
func (p Provider) Image() (ImageSource, bool) { return p.image, p.kind == data.MediaImage }
func (p Provider) Video() (VideoSource, bool) { return p.video, p.kind == data.MediaVideo }

// Registry looks providers up by source name.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

func (r *Registry) Register(p Provider) {
	if p.Catalog() == nil {
		return
	}
	r.providers[p.Name()] = p
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return Provider{}, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return p, nil
}

// Names returns the registered source names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
