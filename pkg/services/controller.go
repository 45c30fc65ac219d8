package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/kerbaras/reader/pkg/config"
	"github.com/kerbaras/reader/pkg/data"
	"github.com/kerbaras/reader/pkg/integrations"
	"github.com/kerbaras/reader/pkg/logging"
	"github.com/kerbaras/reader/pkg/pager"
	"github.com/kerbaras/reader/pkg/progress"
	"github.com/kerbaras/reader/pkg/sources"
	"github.com/kerbaras/reader/pkg/utils"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	ErrEntryNotFound = errors.New("entry not found")
	ErrNoUnits       = errors.New("entry has no units")
)

// Library is the local store of entries, units and checkpoints.
type Library interface {
	SaveEntry(entry *data.Entry) error
	GetEntry(id string) (*data.Entry, error)
	ListEntries() ([]*data.Entry, error)
	DeleteEntry(id string) error
	ReplaceUnits(entryID string, units []data.Unit) error
	GetUnits(entryID string) ([]data.Unit, error)
	progress.Remote
}

// Controller wires sources, the library and progress storage into reading
// sessions.
type Controller struct {
	library  Library
	registry *sources.Registry
	remote   progress.Remote
	cfg      *config.Config
	client   *http.Client
	logger   zerolog.Logger
}

type ControllerOption func(*Controller)

// WithRemote replaces the checkpoint store. By default checkpoints go to the
// library and, when sync is configured, to the remote progress service.
func WithRemote(r progress.Remote) ControllerOption {
	return func(c *Controller) { c.remote = r }
}

func WithClient(client *http.Client) ControllerOption {
	return func(c *Controller) { c.client = client }
}

func NewController(library Library, registry *sources.Registry, cfg *config.Config, opts ...ControllerOption) *Controller {
	c := &Controller{
		library:  library,
		registry: registry,
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.HTTP.Timeout},
		logger:   logging.WithComponent("controller"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.remote == nil {
		remotes := progress.Multi{library}
		if cfg.IsSyncConfigured() {
			remotes = append(remotes, progress.NewHTTPRemote(cfg.Sync.URL, cfg.Sync.Token, c.apiOptions()...))
		}
		c.remote = remotes
	}
	return c
}

// NewRegistry builds the providers enabled in cfg. MangaDex is always
// available; the stream index and text directory need a location.
func NewRegistry(cfg *config.Config, client *http.Client) *sources.Registry {
	opts := apiOptions(cfg, client)
	registry := sources.NewRegistry(
		sources.Image(sources.NewMangaDex(cfg.Sources.MangaDexURL, cfg.Sources.Language, opts...)),
	)
	if cfg.Sources.StreamIndexURL != "" {
		registry.Register(sources.Video(sources.NewStreamIndex(cfg.Sources.StreamIndexURL, opts...)))
	}
	if cfg.Sources.TextDir != "" {
		registry.Register(sources.Text(sources.NewTextDirectory(cfg.Sources.TextDir, cfg.Sources.LinesPerPage)))
	}
	return registry
}

func apiOptions(cfg *config.Config, client *http.Client) []utils.APIOption {
	if client == nil {
		client = http.DefaultClient
	}
	return []utils.APIOption{
		utils.WithHTTPClient(client),
		utils.WithRateLimit(rate.Limit(cfg.HTTP.Rate), cfg.HTTP.Burst),
		utils.WithHeader("User-Agent", cfg.HTTP.UserAgent),
	}
}

func (c *Controller) apiOptions() []utils.APIOption {
	return apiOptions(c.cfg, c.client)
}

// Sources lists the registered source names.
func (c *Controller) Sources() []string {
	return c.registry.Names()
}

// Search queries a source's catalog.
func (c *Controller) Search(ctx context.Context, source, query string) ([]data.Entry, error) {
	provider, err := c.registry.Get(source)
	if err != nil {
		return nil, err
	}
	entries, err := provider.Catalog().Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", source, err)
	}
	for i := range entries {
		entries[i].Source = provider.Name()
		entries[i].MediaType = provider.Kind()
	}
	return entries, nil
}

// AddEntry stores an entry from a source in the library along with its units.
func (c *Controller) AddEntry(ctx context.Context, source, id string) (*data.Entry, error) {
	provider, err := c.registry.Get(source)
	if err != nil {
		return nil, err
	}
	entry, err := provider.Catalog().GetEntry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get entry %s: %w", id, err)
	}
	entry.Source = provider.Name()
	entry.MediaType = provider.Kind()

	if err := c.library.SaveEntry(entry); err != nil {
		return nil, err
	}
	if _, err := c.refreshUnits(ctx, provider, entry.ID); err != nil {
		return nil, err
	}

	c.logger.Info().
		Str(logging.FieldEvent, "controller.entry_added").
		Str(logging.FieldEntryID, entry.ID).
		Str(logging.FieldSource, entry.Source).
		Msg("entry added")
	return entry, nil
}

func (c *Controller) ListEntries() ([]*data.Entry, error) {
	return c.library.ListEntries()
}

// GetEntry returns a library entry or ErrEntryNotFound.
func (c *Controller) GetEntry(id string) (*data.Entry, error) {
	entry, err := c.library.GetEntry(id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return entry, nil
}

func (c *Controller) RemoveEntry(id string) error {
	return c.library.DeleteEntry(id)
}

// Units returns the stored units of an entry. They are fetched from the
// source when nothing is stored yet or refresh is set.
func (c *Controller) Units(ctx context.Context, entryID string, refresh bool) ([]data.Unit, error) {
	entry, err := c.GetEntry(entryID)
	if err != nil {
		return nil, err
	}
	if !refresh {
		units, err := c.library.GetUnits(entryID)
		if err != nil {
			return nil, err
		}
		if len(units) > 0 {
			return units, nil
		}
	}
	provider, err := c.registry.Get(entry.Source)
	if err != nil {
		return nil, err
	}
	return c.refreshUnits(ctx, provider, entryID)
}

func (c *Controller) refreshUnits(ctx context.Context, provider sources.Provider, entryID string) ([]data.Unit, error) {
	units, err := provider.Catalog().GetUnits(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	if err := c.library.ReplaceUnits(entryID, units); err != nil {
		return nil, err
	}
	return units, nil
}

// Checkpoint returns the most advanced stored checkpoint of an entry, or nil.
func (c *Controller) Checkpoint(ctx context.Context, entryID string) (*data.Checkpoint, error) {
	entry, err := c.GetEntry(entryID)
	if err != nil {
		return nil, err
	}
	return c.remote.FetchCheckpoint(ctx, entry.MediaType, entryID)
}

// OpenReader opens a session on the unit at index. With resume the session
// starts at the checkpoint's unit when there is one, and at its stored offset.
func (c *Controller) OpenReader(ctx context.Context, entryID string, index int, resume bool) (Reader, error) {
	entry, err := c.GetEntry(entryID)
	if err != nil {
		return nil, err
	}
	units, err := c.Units(ctx, entryID, false)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoUnits, entry.Title)
	}
	provider, err := c.registry.Get(entry.Source)
	if err != nil {
		return nil, err
	}
	entry.MediaType = provider.Kind()

	var checkpoint *data.Checkpoint
	if resume {
		cp, err := c.remote.FetchCheckpoint(ctx, entry.MediaType, entryID)
		if err != nil {
			c.logger.Warn().
				Err(err).
				Str(logging.FieldEvent, "controller.checkpoint_failed").
				Str(logging.FieldEntryID, entryID).
				Msg("resuming without checkpoint")
		} else if cp != nil {
			if i := unitIndex(units, cp.UnitOrdinal); i >= 0 {
				index = i
			}
			checkpoint = cp
		}
	}
	if index < 0 || index >= len(units) {
		return nil, fmt.Errorf("%w: %d of %d", pager.ErrInvalidStart, index, len(units))
	}

	syncer := progress.NewSyncer(c.remote, entry.MediaType, entry.ID,
		progress.WithInterval(c.cfg.Sync.Interval),
		progress.WithLogger(logging.WithComponent("progress")),
	)
	opts := []pager.Option{
		pager.WithConfig(c.cfg.PagerConfig()),
		pager.WithPrefetchConcurrency(c.cfg.Reader.PrefetchConcurrency),
	}
	logger := logging.WithComponent("session")

	switch provider.Kind() {
	case data.MediaImage:
		src, _ := provider.Image()
		loader := c.newPageLoader()
		return asReader(startSession(ctx, sessionParams[*data.PageDetails, data.PageRef]{
			entry:      entry,
			units:      units,
			start:      index,
			resume:     resume,
			checkpoint: checkpoint,
			fetcher:    pager.FetcherFunc[*data.PageDetails](src.FetchPages),
			prefetcher: loader,
			syncer:     syncer,
			loader:     loader,
			render:     renderPages(loader),
			export:     exportPages(loader),
			opts:       opts,
			logger:     logger,
		}))
	case data.MediaText:
		src, _ := provider.Text()
		return asReader(startSession(ctx, sessionParams[*data.TextDetails, data.TextPage]{
			entry:      entry,
			units:      units,
			start:      index,
			resume:     resume,
			checkpoint: checkpoint,
			fetcher:    pager.FetcherFunc[*data.TextDetails](src.FetchText),
			syncer:     syncer,
			render:     renderText,
			export:     exportText,
			opts:       opts,
			logger:     logger,
		}))
	case data.MediaVideo:
		src, _ := provider.Video()
		return asReader(startSession(ctx, sessionParams[*data.VideoDetails, data.ProviderOption]{
			entry:      entry,
			units:      units,
			start:      index,
			resume:     resume,
			checkpoint: checkpoint,
			fetcher:    pager.FetcherFunc[*data.VideoDetails](src.FetchProviders),
			syncer:     syncer,
			render:     renderVideo,
			opts:       opts,
			logger:     logger,
		}))
	}
	return nil, fmt.Errorf("source %s has no media type", provider.Name())
}

// asReader keeps a failed session from becoming a non-nil Reader.
func asReader[D pager.Details[S], S any](s *Session[D, S], err error) (Reader, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// unitIndex finds the first unit with the given ordinal.
func unitIndex(units []data.Unit, ordinal float64) int {
	for i, u := range units {
		if u.Ordinal == ordinal {
			return i
		}
	}
	return -1
}

// ExportUnit writes the unit at index to an EPUB in the export directory.
func (c *Controller) ExportUnit(ctx context.Context, entryID string, index int) (string, error) {
	entry, err := c.GetEntry(entryID)
	if err != nil {
		return "", err
	}
	units, err := c.Units(ctx, entryID, false)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(units) {
		return "", fmt.Errorf("unit %d out of range (%d units)", index+1, len(units))
	}
	unit := units[index]
	provider, err := c.registry.Get(entry.Source)
	if err != nil {
		return "", err
	}
	builder := c.EPubBuilder()

	switch provider.Kind() {
	case data.MediaImage:
		src, _ := provider.Image()
		details, err := src.FetchPages(ctx, entryID, unit.ID)
		if err != nil {
			return "", err
		}
		loader := c.newPageLoader()
		defer loader.Close()
		return exportPages(loader)(ctx, builder, entry, unit, details)
	case data.MediaText:
		src, _ := provider.Text()
		details, err := src.FetchText(ctx, entryID, unit.ID)
		if err != nil {
			return "", err
		}
		return exportText(ctx, builder, entry, unit, details)
	}
	return "", ErrExportUnsupported
}

// EPubBuilder returns a builder for the configured export directory and
// reading direction.
func (c *Controller) EPubBuilder() *integrations.EPubBuilder {
	builder := integrations.NewEPubBuilder(c.cfg.Library.ExportDir)
	builder.SetRightToLeft(c.cfg.PagerConfig().ReadingDirection == pager.RightToLeft)
	return builder
}

func (c *Controller) newPageLoader() *PageLoader {
	var processor *integrations.ImageProcessor
	if profile, ok := integrations.GetDisplayProfile(c.cfg.Display.Profile); ok {
		processor = integrations.NewImageProcessor(profile.Settings())
	}
	return NewPageLoader(processor,
		WithHTTPClient(c.client),
		WithPageRate(rate.Limit(c.cfg.HTTP.Rate), c.cfg.HTTP.Burst),
		WithUserAgent(c.cfg.HTTP.UserAgent),
	)
}

// Close closes the library when it owns resources.
func (c *Controller) Close() error {
	if closer, ok := c.library.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
