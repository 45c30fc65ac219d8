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

func newStreamIndexServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /series", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "frieren", r.URL.Query().Get("q"))
		w.Write([]byte(`{"series":[{"id":"s1","title":"Frieren","cover":"https://img.example.com/s1.jpg"}]}`))
	})
	mux.HandleFunc("GET /series/s1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"s1","title":"Frieren","description":"After the journey"}`))
	})
	mux.HandleFunc("GET /series/s1/episodes", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"episodes":[
			{"id":"e1","number":1,"season":1,"title":"The Journey's End"},
			{"id":"e2","number":2,"season":1},
			{"id":"sp","number":2.5,"title":"Special"}
		]}`))
	})
	mux.HandleFunc("GET /episodes/e1/sources", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"providers":[
			{"name":"alpha","headers":{"Referer":"https://alpha.example.com"},
			 "streams":[{"url":"https://alpha.example.com/e1/1080.m3u8","quality":"1080p","format":"hls"},
			            {"url":"https://alpha.example.com/e1/720.m3u8","quality":"720p","format":"hls"}]},
			{"name":"beta","streams":[{"url":"https://beta.example.com/e1.mp4","quality":"480p","format":"mp4"}]}
		]}`))
	})
	mux.HandleFunc("GET /episodes/e2/sources", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"providers":[]}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestStreamIndex_Search(t *testing.T) {
	si := NewStreamIndex(newStreamIndexServer(t).URL)

	entries, err := si.Search(context.Background(), "frieren")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "s1", entries[0].ID)
	assert.Equal(t, data.MediaVideo, entries[0].MediaType)
	assert.Equal(t, StreamIndexName, entries[0].Source)
	assert.Equal(t, "https://img.example.com/s1.jpg", entries[0].CoverURL)
}

func TestStreamIndex_GetEntry(t *testing.T) {
	si := NewStreamIndex(newStreamIndexServer(t).URL)

	entry, err := si.GetEntry(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "After the journey", entry.Description)
}

func TestStreamIndex_GetUnits(t *testing.T) {
	si := NewStreamIndex(newStreamIndexServer(t).URL)

	units, err := si.GetUnits(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, "Vol. 1 Ch. 1: The Journey's End", units[0].Label())
	assert.Equal(t, 2.5, units[2].Ordinal)
	assert.Nil(t, units[2].Volume)
}

func TestStreamIndex_FetchProviders(t *testing.T) {
	si := NewStreamIndex(newStreamIndexServer(t).URL)

	details, err := si.FetchProviders(context.Background(), "s1", "e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", details.UnitID())
	assert.False(t, details.Paged())
	require.Len(t, details.Providers, 2)
	assert.Equal(t, "alpha", details.Providers[0].Provider)
	assert.Equal(t, "https://alpha.example.com", details.Providers[0].Headers["Referer"])
	assert.Equal(t, data.VideoStream{URL: "https://beta.example.com/e1.mp4", Quality: "480p", Format: "mp4"}, details.Providers[1].Streams[0])
}

func TestStreamIndex_FetchProvidersEmptyIsMissing(t *testing.T) {
	si := NewStreamIndex(newStreamIndexServer(t).URL)

	_, err := si.FetchProviders(context.Background(), "s1", "e2")
	assert.Error(t, err)

	_, err = si.FetchProviders(context.Background(), "s1", "e404")
	assert.Error(t, err)
}
