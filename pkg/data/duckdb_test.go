package data

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()

	repo, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	return repo
}

func floatPtr(v float64) *float64 { return &v }

func TestSaveAndGetEntry(t *testing.T) {
	repo := setupTestDB(t)

	entry := &Entry{
		ID:          "entry-1",
		Title:       "Test Manga",
		Description: "A test description",
		CoverURL:    "https://example.com/cover.jpg",
		Source:      "mangadex",
		MediaType:   MediaImage,
	}
	require.NoError(t, repo.SaveEntry(entry))

	got, err := repo.GetEntry("entry-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry, got)
}

func TestGetNonExistentEntry(t *testing.T) {
	repo := setupTestDB(t)

	got, err := repo.GetEntry("missing")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveEntryUpsert(t *testing.T) {
	repo := setupTestDB(t)

	entry := &Entry{ID: "entry-1", Title: "Old", MediaType: MediaText}
	require.NoError(t, repo.SaveEntry(entry))

	entry.Title = "New"
	require.NoError(t, repo.SaveEntry(entry))

	entries, err := repo.ListEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "New", entries[0].Title)
}

func TestListEntriesOrderedByTitle(t *testing.T) {
	repo := setupTestDB(t)

	for _, e := range []*Entry{
		{ID: "b", Title: "Berserk", MediaType: MediaImage},
		{ID: "a", Title: "Akira", MediaType: MediaImage},
		{ID: "c", Title: "Cowboy Bebop", MediaType: MediaVideo},
	} {
		require.NoError(t, repo.SaveEntry(e))
	}

	entries, err := repo.ListEntries()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Akira", entries[0].Title)
	assert.Equal(t, "Berserk", entries[1].Title)
	assert.Equal(t, MediaVideo, entries[2].MediaType)
}

func TestReplaceAndGetUnits(t *testing.T) {
	repo := setupTestDB(t)

	units := []Unit{
		{ID: "u1", Ordinal: 1, Volume: floatPtr(1), Title: "Start", Translator: "group"},
		{ID: "u2", Ordinal: 1.5},
		{ID: "u3", Ordinal: 2, Volume: floatPtr(1)},
	}
	require.NoError(t, repo.ReplaceUnits("entry-1", units))

	got, err := repo.GetUnits("entry-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range units {
		units[i].EntryID = "entry-1"
	}
	assert.Equal(t, units, got)

	// Replacing drops units that disappeared upstream
	require.NoError(t, repo.ReplaceUnits("entry-1", units[:1]))
	n, err := repo.CountUnits("entry-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDeleteEntry(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveEntry(&Entry{ID: "entry-1", Title: "Gone", MediaType: MediaImage}))
	require.NoError(t, repo.ReplaceUnits("entry-1", []Unit{{ID: "u1", Ordinal: 1}}))
	require.NoError(t, repo.ReportCheckpoint(ctx, MediaImage, "entry-1", Checkpoint{UnitOrdinal: 1, UpdatedAt: time.Now()}))

	require.NoError(t, repo.DeleteEntry("entry-1"))

	entry, err := repo.GetEntry("entry-1")
	require.NoError(t, err)
	assert.Nil(t, entry)

	units, err := repo.GetUnits("entry-1")
	require.NoError(t, err)
	assert.Empty(t, units)

	cp, err := repo.FetchCheckpoint(ctx, MediaImage, "entry-1")
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestCheckpointRoundTrip(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	cp, err := repo.FetchCheckpoint(ctx, MediaImage, "entry-1")
	require.NoError(t, err)
	assert.Nil(t, cp)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.ReportCheckpoint(ctx, MediaImage, "entry-1", Checkpoint{UnitOrdinal: 3, Offset: 7, UpdatedAt: now}))

	cp, err = repo.FetchCheckpoint(ctx, MediaImage, "entry-1")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 3.0, cp.UnitOrdinal)
	assert.Equal(t, 7, cp.Offset)
	assert.True(t, now.Equal(cp.UpdatedAt))

	// Same media type key is separate from other kinds
	other, err := repo.FetchCheckpoint(ctx, MediaVideo, "entry-1")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestCheckpointOnlyAdvances(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.ReportCheckpoint(ctx, MediaImage, "entry-1", Checkpoint{UnitOrdinal: 5, Offset: 2, UpdatedAt: now}))

	// Earlier unit is ignored
	require.NoError(t, repo.ReportCheckpoint(ctx, MediaImage, "entry-1", Checkpoint{UnitOrdinal: 4, Offset: 9, UpdatedAt: now.Add(time.Second)}))
	cp, err := repo.FetchCheckpoint(ctx, MediaImage, "entry-1")
	require.NoError(t, err)
	assert.Equal(t, 5.0, cp.UnitOrdinal)
	assert.Equal(t, 2, cp.Offset)

	// Same unit updates the offset
	require.NoError(t, repo.ReportCheckpoint(ctx, MediaImage, "entry-1", Checkpoint{UnitOrdinal: 5, Offset: 11, UpdatedAt: now.Add(2 * time.Second)}))
	cp, err = repo.FetchCheckpoint(ctx, MediaImage, "entry-1")
	require.NoError(t, err)
	assert.Equal(t, 11, cp.Offset)

	// Later unit replaces it
	require.NoError(t, repo.ReportCheckpoint(ctx, MediaImage, "entry-1", Checkpoint{UnitOrdinal: 6, Offset: 0, UpdatedAt: now.Add(3 * time.Second)}))
	cp, err = repo.FetchCheckpoint(ctx, MediaImage, "entry-1")
	require.NoError(t, err)
	assert.Equal(t, 6.0, cp.UnitOrdinal)
	assert.Equal(t, 0, cp.Offset)
}
