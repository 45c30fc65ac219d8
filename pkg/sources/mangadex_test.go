package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kerbaras/reader/pkg/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMangaDexServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/manga", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "naruto", r.URL.Query().Get("title"))
		w.Write([]byte(`{"data":[{"id":"m1","attributes":{"title":{"en":"Naruto"},"description":{"en":"Ninja"}}}]}`))
	})
	mux.HandleFunc("/manga/m1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"id":"m1","attributes":{"title":{"ja-ro":"Naruto (romaji)","en":"Naruto"}}}}`))
	})
	mux.HandleFunc("/manga/m1/feed", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "en", r.URL.Query().Get("translatedLanguage[]"))
		switch r.URL.Query().Get("offset") {
		case "0":
			w.Write([]byte(`{"total":4,"data":[
				{"id":"c2","attributes":{"chapter":"2","volume":"1","title":"Second","pages":18},
				 "relationships":[{"id":"g1","type":"scanlation_group","attributes":{"name":"Group A"}}]},
				{"id":"c1","attributes":{"chapter":"1","volume":"1","title":"First","pages":20}},
				{"id":"cx","attributes":{"chapter":"2.5","pages":0,"externalUrl":"https://example.com"}}
			]}`))
		default:
			w.Write([]byte(`{"total":4,"data":[{"id":"c3","attributes":{"chapter":"10.5","title":"Extra","pages":4}}]}`))
		}
	})
	mux.HandleFunc("/at-home/server/c1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"baseUrl":"https://cdn.example.com","chapter":{"hash":"abc","data":["1.png","2.png"]}}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestMangaDex_Search(t *testing.T) {
	md := NewMangaDex(newMangaDexServer(t).URL, "en")

	entries, err := md.Search(context.Background(), "naruto")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, data.Entry{
		ID:          "m1",
		Title:       "Naruto",
		Description: "Ninja",
		Source:      MangaDexName,
		MediaType:   data.MediaImage,
	}, entries[0])
}

func TestMangaDex_GetEntry(t *testing.T) {
	md := NewMangaDex(newMangaDexServer(t).URL, "ja-ro")

	entry, err := md.GetEntry(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", entry.ID)
	assert.Equal(t, "Naruto (romaji)", entry.Title)
}

func TestMangaDex_GetUnits(t *testing.T) {
	md := NewMangaDex(newMangaDexServer(t).URL, "")

	units, err := md.GetUnits(context.Background(), "m1")
	require.NoError(t, err)
	require.Len(t, units, 3)

	assert.Equal(t, "c1", units[0].ID)
	assert.Equal(t, 1.0, units[0].Ordinal)
	require.NotNil(t, units[0].Volume)
	assert.Equal(t, 1.0, *units[0].Volume)

	assert.Equal(t, "c2", units[1].ID)
	assert.Equal(t, "Group A", units[1].Translator)

	assert.Equal(t, "c3", units[2].ID)
	assert.Equal(t, 10.5, units[2].Ordinal)
	assert.Nil(t, units[2].Volume)
	assert.Equal(t, "m1", units[2].EntryID)
}

func TestMangaDex_FetchPages(t *testing.T) {
	md := NewMangaDex(newMangaDexServer(t).URL, "en")

	details, err := md.FetchPages(context.Background(), "m1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", details.UnitID())
	assert.Equal(t, []data.PageRef{
		{Index: 0, URL: "https://cdn.example.com/data/abc/1.png"},
		{Index: 1, URL: "https://cdn.example.com/data/abc/2.png"},
	}, details.Pages)
}

func TestMangaDex_FetchPagesMissing(t *testing.T) {
	md := NewMangaDex(newMangaDexServer(t).URL, "en")

	_, err := md.FetchPages(context.Background(), "m1", "nope")
	assert.Error(t, err)
}
