package utils

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/items", r.URL.Path)
		assert.Equal(t, "en", r.URL.Query().Get("lang"))
		assert.Equal(t, "reader-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"one"}`))
	}))
	defer server.Close()

	api := NewAPI(server.URL, WithHeader("User-Agent", "reader-test"), WithRateLimit(100, 1))

	var out struct {
		Name string `json:"name"`
	}
	err := api.Get(context.Background(), "/items", url.Values{"lang": {"en"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "one", out.Name)
}

func TestAPIPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 3, body["offset"])
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	api := NewAPI(server.URL)
	err := api.Post(context.Background(), "/progress", map[string]int{"offset": 3}, nil)
	assert.NoError(t, err)
}

func TestAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	api := NewAPI(server.URL)

	err := api.Get(context.Background(), "/missing", nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	err = api.Get(context.Background(), "/broken", nil, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "boom", se.Body)
}

func TestAPIContextCanceled(t *testing.T) {
	api := NewAPI("http://127.0.0.1:1", WithRateLimit(1, 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := api.Get(ctx, "/", nil, nil)
	assert.Error(t, err)
}
