package sources

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"github.com/kerbaras/reader/pkg/data"
	"github.com/kerbaras/reader/pkg/utils"
)

const (
	DefaultMangaDexURL = "https://api.mangadex.org"
	feedPageSize       = 500
)

type mdLocalized map[string]string

// pick returns the preferred language, then English, then the first
// language in sorted order.
func (l mdLocalized) pick(lang string) string {
	if v, ok := l[lang]; ok {
		return v
	}
	if v, ok := l["en"]; ok {
		return v
	}
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	if len(keys) == 0 {
		return ""
	}
	return l[keys[0]]
}

type mdManga struct {
	ID         string `json:"id"`
	Attributes struct {
		Title       mdLocalized `json:"title"`
		Description mdLocalized `json:"description"`
	} `json:"attributes"`
}

func (m *mdManga) toEntry(lang string) data.Entry {
	return data.Entry{
		ID:          m.ID,
		Title:       m.Attributes.Title.pick(lang),
		Description: m.Attributes.Description.pick(lang),
		Source:      MangaDexName,
		MediaType:   data.MediaImage,
	}
}

type mdChapter struct {
	ID         string `json:"id"`
	Attributes struct {
		Title       string `json:"title"`
		Language    string `json:"translatedLanguage"`
		Volume      string `json:"volume"`
		Number      string `json:"chapter"`
		Pages       int    `json:"pages"`
		ExternalURL string `json:"externalUrl"`
	} `json:"attributes"`
	Relationships []struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		Attributes struct {
			Name string `json:"name"`
		} `json:"attributes"`
	} `json:"relationships"`
}

func (c *mdChapter) toUnit(entryID string) (data.Unit, error) {
	ordinal, err := data.ParseOrdinal(c.Attributes.Number)
	if err != nil {
		return data.Unit{}, fmt.Errorf("chapter %s: %w", c.ID, err)
	}
	unit := data.Unit{
		ID:      c.ID,
		EntryID: entryID,
		Ordinal: ordinal,
		Title:   c.Attributes.Title,
	}
	if c.Attributes.Volume != "" {
		if v, err := strconv.ParseFloat(c.Attributes.Volume, 64); err == nil {
			unit.Volume = &v
		}
	}
	for _, rel := range c.Relationships {
		if rel.Type == "scanlation_group" && rel.Attributes.Name != "" {
			unit.Translator = rel.Attributes.Name
			break
		}
	}
	return unit, nil
}

const MangaDexName = "mangadex"

// MangaDex is an image source backed by the MangaDex API.
type MangaDex struct {
	api      *utils.API
	language string
}

func NewMangaDex(baseURL, language string, opts ...utils.APIOption) *MangaDex {
	if baseURL == "" {
		baseURL = DefaultMangaDexURL
	}
	if language == "" {
		language = "en"
	}
	return &MangaDex{api: utils.NewAPI(baseURL, opts...), language: language}
}

func (m *MangaDex) Name() string { return MangaDexName }

func (m *MangaDex) Search(ctx context.Context, query string) ([]data.Entry, error) {
	params := url.Values{}
	params.Set("title", query)
	params.Set("limit", "20")
	var res struct {
		Data []mdManga `json:"data"`
	}
	if err := m.api.Get(ctx, "/manga", params, &res); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	out := make([]data.Entry, len(res.Data))
	for i := range res.Data {
		out[i] = res.Data[i].toEntry(m.language)
	}
	return out, nil
}

func (m *MangaDex) GetEntry(ctx context.Context, id string) (*data.Entry, error) {
	var res struct {
		Data mdManga `json:"data"`
	}
	if err := m.api.Get(ctx, "/manga/"+url.PathEscape(id), nil, &res); err != nil {
		return nil, fmt.Errorf("get manga %s: %w", id, err)
	}
	entry := res.Data.toEntry(m.language)
	return &entry, nil
}

// GetUnits walks the chapter feed in the configured language, in chapter
// order. External chapters and chapters without pages are skipped.
func (m *MangaDex) GetUnits(ctx context.Context, entryID string) ([]data.Unit, error) {
	var units []data.Unit
	for offset := 0; ; {
		params := url.Values{}
		params.Set("translatedLanguage[]", m.language)
		params.Set("order[volume]", "asc")
		params.Set("order[chapter]", "asc")
		params.Set("includes[]", "scanlation_group")
		params.Set("limit", strconv.Itoa(feedPageSize))
		params.Set("offset", strconv.Itoa(offset))

		var feed struct {
			Data  []mdChapter `json:"data"`
			Total int         `json:"total"`
		}
		if err := m.api.Get(ctx, "/manga/"+url.PathEscape(entryID)+"/feed", params, &feed); err != nil {
			return nil, fmt.Errorf("get feed %s: %w", entryID, err)
		}

		for i := range feed.Data {
			c := &feed.Data[i]
			if c.Attributes.ExternalURL != "" || c.Attributes.Pages == 0 {
				continue
			}
			unit, err := c.toUnit(entryID)
			if err != nil {
				return nil, err
			}
			units = append(units, unit)
		}

		offset += len(feed.Data)
		if len(feed.Data) == 0 || offset >= feed.Total {
			break
		}
	}
	slices.SortStableFunc(units, func(a, b data.Unit) int {
		switch {
		case a.Ordinal < b.Ordinal:
			return -1
		case a.Ordinal > b.Ordinal:
			return 1
		}
		return 0
	})
	return units, nil
}

// FetchPages asks the at-home network for a server holding the chapter.
func (m *MangaDex) FetchPages(ctx context.Context, _ string, unitID string) (*data.PageDetails, error) {
	var server struct {
		BaseURL string `json:"baseUrl"`
		Chapter struct {
			Hash string   `json:"hash"`
			Data []string `json:"data"`
		} `json:"chapter"`
	}
	if err := m.api.Get(ctx, "/at-home/server/"+url.PathEscape(unitID), nil, &server); err != nil {
		return nil, fmt.Errorf("get pages %s: %w", unitID, err)
	}
	pages := make([]data.PageRef, len(server.Chapter.Data))
	for i, file := range server.Chapter.Data {
		pages[i] = data.PageRef{
			Index: i,
			URL:   fmt.Sprintf("%s/data/%s/%s", server.BaseURL, server.Chapter.Hash, file),
		}
	}
	return &data.PageDetails{Unit: unitID, Pages: pages}, nil
}
