package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/kerbaras/reader/pkg/data"
	"github.com/kerbaras/reader/pkg/integrations"
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

func createTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 10), uint8(y * 10), 200, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// newImageServer serves body at every path and counts requests
func newImageServer(t *testing.T, body []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestPageLoader_GetCachesUntilRelease(t *testing.T) {
	body := createTestPNG(t, 4, 4)
	server, hits := newImageServer(t, body)
	loader := NewPageLoader(nil, WithHTTPClient(server.Client()))
	defer loader.Close()
	ctx := context.Background()

	ref := data.PageRef{Index: 0, URL: server.URL + "/p0.png"}
	page, err := loader.Get(ctx, "c1", ref)
	require.NoError(t, err)
	assert.Equal(t, body, page.Data)
	assert.Equal(t, "image/png", page.ContentType)

	_, err = loader.Get(ctx, "c1", ref)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, loader.Loaded("c1"))

	loader.Release("c1")
	_, ok := loader.Cached("c1", 0)
	assert.False(t, ok)
	assert.Zero(t, loader.Loaded("c1"))

	_, err = loader.Get(ctx, "c1", ref)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestPageLoader_SendsHeaders(t *testing.T) {
	var referer, agent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer = r.Header.Get("Referer")
		agent = r.Header.Get("User-Agent")
		w.Write([]byte("raw"))
	}))
	defer server.Close()

	loader := NewPageLoader(nil, WithHTTPClient(server.Client()), WithUserAgent("reader-test"))
	defer loader.Close()

	ref := data.PageRef{URL: server.URL, Headers: map[string]string{"Referer": "https://example.org"}}
	require.NoError(t, loader.Prefetch(context.Background(), "c1", 0, ref))
	assert.Equal(t, "https://example.org", referer)
	assert.Equal(t, "reader-test", agent)
}

func TestPageLoader_LoadUnit(t *testing.T) {
	server, _ := newImageServer(t, createTestPNG(t, 40, 20))
	processor := integrations.NewImageProcessor(integrations.ImageSettings{MaxWidth: 10, Format: "png"})
	loader := NewPageLoader(processor, WithHTTPClient(server.Client()))
	defer loader.Close()

	details := &data.PageDetails{Unit: "c1"}
	for i := range 5 {
		details.Pages = append(details.Pages, data.PageRef{Index: i, URL: server.URL + "/p.png"})
	}

	pages, err := loader.LoadUnit(context.Background(), details)
	require.NoError(t, err)
	require.Len(t, pages, 5)
	for i, page := range pages {
		assert.Equal(t, i, page.Index)
		assert.Equal(t, "image/png", page.ContentType)

		img, _, err := image.Decode(bytes.NewReader(page.Data))
		require.NoError(t, err)
		assert.Equal(t, 10, img.Bounds().Dx())
		assert.Equal(t, 5, img.Bounds().Dy())
	}
	assert.Len(t, loader.Pages("c1"), 5)
}

func TestPageLoader_Errors(t *testing.T) {
	server, _ := newImageServer(t, createTestPNG(t, 2, 2))
	loader := NewPageLoader(nil, WithHTTPClient(server.Client()))
	defer loader.Close()

	_, err := loader.Get(context.Background(), "c1", data.PageRef{Index: 3, URL: server.URL + "/missing.png"})
	assert.Error(t, err)
	_, ok := loader.Cached("c1", 3)
	assert.False(t, ok)

	var failed bool
	for len(loader.Progress()) > 0 {
		if p := <-loader.Progress(); p.Status == "error" {
			failed = true
			assert.Equal(t, 3, p.Index)
		}
	}
	assert.True(t, failed, "no error progress reported")

	details := &data.PageDetails{Unit: "c2", Pages: []data.PageRef{
		{Index: 0, URL: server.URL + "/ok.png"},
		{Index: 1, URL: server.URL + "/missing.png"},
	}}
	_, err = loader.LoadUnit(context.Background(), details)
	assert.ErrorContains(t, err, "page 2")
}

func TestPageLoader_ReleasedWhileLoading(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.Write([]byte("late"))
	}))
	defer server.Close()

	loader := NewPageLoader(nil, WithHTTPClient(server.Client()))
	defer loader.Close()

	done := make(chan error, 1)
	go func() {
		_, err := loader.Get(context.Background(), "c1", data.PageRef{URL: server.URL})
		done <- err
	}()

	<-started
	loader.Release("c1")
	close(release)
	require.NoError(t, <-done)

	_, ok := loader.Cached("c1", 0)
	assert.False(t, ok, "page of a released unit was cached")
}

func TestPageLoader_CancelledLoadAfterRelease(t *testing.T) {
	server, hits := newImageServer(t, createTestPNG(t, 2, 2))
	loader := NewPageLoader(nil, WithHTTPClient(server.Client()))
	defer loader.Close()

	_, err := loader.Get(context.Background(), "c1", data.PageRef{URL: server.URL + "/0.png"})
	require.NoError(t, err)
	loader.Release("c1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = loader.Prefetch(ctx, "c1", 1, data.PageRef{Index: 1, URL: server.URL + "/1.png"})
	require.ErrorIs(t, err, context.Canceled)

	assert.Zero(t, loader.Loaded("c1"))
	loader.mu.Lock()
	_, ok := loader.units["c1"]
	loader.mu.Unlock()
	assert.False(t, ok, "cancelled load recreated a released unit")
	assert.EqualValues(t, 1, hits.Load())
}

func TestPageLoader_Close(t *testing.T) {
	loader := NewPageLoader(nil)
	loader.Close()
	loader.Close()

	_, open := <-loader.Progress()
	assert.False(t, open)
	// Updates after close are dropped
	loader.sendProgress(PageProgress{UnitID: "c1"})
}
