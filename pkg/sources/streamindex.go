package sources

import (
	"context"
	"fmt"
	"net/url"

	"github.com/kerbaras/reader/pkg/data"
	"github.com/kerbaras/reader/pkg/utils"
)

const StreamIndexName = "streamindex"

type siSeries struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Cover       string `json:"cover"`
}

func (s *siSeries) toEntry() data.Entry {
	return data.Entry{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		CoverURL:    s.Cover,
		Source:      StreamIndexName,
		MediaType:   data.MediaVideo,
	}
}

type siEpisode struct {
	ID     string   `json:"id"`
	Number float64  `json:"number"`
	Season *float64 `json:"season"`
	Title  string   `json:"title"`
}

type siProvider struct {
	Name    string            `json:"name"`
	Headers map[string]string `json:"headers"`
	Streams []struct {
		URL     string `json:"url"`
		Quality string `json:"quality"`
		Format  string `json:"format"`
	} `json:"streams"`
}

// StreamIndex is a video source backed by a JSON episode index:
//
//	GET /series?q=..              {"series":[...]}
//	GET /series/{id}              {...}
//	GET /series/{id}/episodes     {"episodes":[...]}
//	GET /episodes/{id}/sources    {"providers":[...]}
type StreamIndex struct {
	api *utils.API
}

func NewStreamIndex(baseURL string, opts ...utils.APIOption) *StreamIndex {
	return &StreamIndex{api: utils.NewAPI(baseURL, opts...)}
}

func (s *StreamIndex) Name() string { return StreamIndexName }

func (s *StreamIndex) Search(ctx context.Context, query string) ([]data.Entry, error) {
	var res struct {
		Series []siSeries `json:"series"`
	}
	if err := s.api.Get(ctx, "/series", url.Values{"q": {query}}, &res); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	out := make([]data.Entry, len(res.Series))
	for i := range res.Series {
		out[i] = res.Series[i].toEntry()
	}
	return out, nil
}

func (s *StreamIndex) GetEntry(ctx context.Context, id string) (*data.Entry, error) {
	var series siSeries
	if err := s.api.Get(ctx, "/series/"+url.PathEscape(id), nil, &series); err != nil {
		return nil, fmt.Errorf("get series %s: %w", id, err)
	}
	entry := series.toEntry()
	return &entry, nil
}

// GetUnits lists episodes in index order. Seasons map to volumes.
func (s *StreamIndex) GetUnits(ctx context.Context, entryID string) ([]data.Unit, error) {
	var res struct {
		Episodes []siEpisode `json:"episodes"`
	}
	if err := s.api.Get(ctx, "/series/"+url.PathEscape(entryID)+"/episodes", nil, &res); err != nil {
		return nil, fmt.Errorf("get episodes %s: %w", entryID, err)
	}
	units := make([]data.Unit, len(res.Episodes))
	for i, ep := range res.Episodes {
		units[i] = data.Unit{
			ID:      ep.ID,
			EntryID: entryID,
			Ordinal: ep.Number,
			Volume:  ep.Season,
			Title:   ep.Title,
		}
	}
	return units, nil
}

// FetchProviders lists the hosts streaming an episode. An episode without
// any provider is treated as missing.
func (s *StreamIndex) FetchProviders(ctx context.Context, _ string, unitID string) (*data.VideoDetails, error) {
	var res struct {
		Providers []siProvider `json:"providers"`
	}
	if err := s.api.Get(ctx, "/episodes/"+url.PathEscape(unitID)+"/sources", nil, &res); err != nil {
		return nil, fmt.Errorf("get sources %s: %w", unitID, err)
	}
	if len(res.Providers) == 0 {
		return nil, fmt.Errorf("episode %s has no providers", unitID)
	}

	providers := make([]data.ProviderOption, len(res.Providers))
	for i, p := range res.Providers {
		opt := data.ProviderOption{Provider: p.Name, Headers: p.Headers}
		for _, st := range p.Streams {
			opt.Streams = append(opt.Streams, data.VideoStream{URL: st.URL, Quality: st.Quality, Format: st.Format})
		}
		providers[i] = opt
	}
	return &data.VideoDetails{Unit: unitID, Providers: providers}, nil
}
