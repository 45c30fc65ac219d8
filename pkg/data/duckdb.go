package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb/v2"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS entries (
	id          VARCHAR PRIMARY KEY,
	title       VARCHAR NOT NULL,
	description VARCHAR,
	cover_url   VARCHAR,
	source      VARCHAR,
	media_type  VARCHAR NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS units (
	entry_id   VARCHAR NOT NULL,
	id         VARCHAR NOT NULL,
	position   INTEGER NOT NULL,
	ordinal    DOUBLE NOT NULL,
	volume     DOUBLE,
	title      VARCHAR,
	translator VARCHAR,
	PRIMARY KEY (entry_id, id)
)`, `
CREATE TABLE IF NOT EXISTS checkpoints (
	media_type   VARCHAR NOT NULL,
	entry_id     VARCHAR NOT NULL,
	unit_ordinal DOUBLE NOT NULL,
	unit_offset  INTEGER NOT NULL,
	updated_at   TIMESTAMP NOT NULL,
	PRIMARY KEY (media_type, entry_id)
)`,
}

// InitDuckDB opens the database at path, creating its directory and schema.
func InitDuckDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return db, nil
}

// Repository is the local library: entries, their unit lists and reading
// checkpoints. It also serves as a progress remote backed by the local file.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps an initialised database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Open initialises the database at path and returns a repository over it.
func Open(path string) (*Repository, error) {
	db, err := InitDuckDB(path)
	if err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// SaveEntry inserts or replaces an entry.
func (r *Repository) SaveEntry(entry *Entry) error {
	if entry == nil {
		return errors.New("entry cannot be nil")
	}
	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO entries (id, title, description, cover_url, source, media_type)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Title, entry.Description, entry.CoverURL, entry.Source, string(entry.MediaType),
	)
	if err != nil {
		return fmt.Errorf("failed to save entry %s: %w", entry.ID, err)
	}
	return nil
}

// GetEntry returns the entry with id, or nil if it is not in the library.
func (r *Repository) GetEntry(id string) (*Entry, error) {
	row := r.db.QueryRow(
		`SELECT id, title, description, cover_url, source, media_type FROM entries WHERE id = ?`, id,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry %s: %w", id, err)
	}
	return entry, nil
}

// ListEntries returns every entry ordered by title.
func (r *Repository) ListEntries() ([]*Entry, error) {
	rows, err := r.db.Query(
		`SELECT id, title, description, cover_url, source, media_type FROM entries ORDER BY title`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteEntry removes an entry with its units and checkpoints.
func (r *Repository) DeleteEntry(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM units WHERE entry_id = ?`,
		`DELETE FROM checkpoints WHERE entry_id = ?`,
		`DELETE FROM entries WHERE id = ?`,
	} {
		if _, err := tx.Exec(stmt, id); err != nil {
			return fmt.Errorf("failed to delete entry %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// ReplaceUnits stores the unit list of an entry, preserving its order.
func (r *Repository) ReplaceUnits(entryID string, units []Unit) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM units WHERE entry_id = ?`, entryID); err != nil {
		return fmt.Errorf("failed to clear units: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO units (entry_id, id, position, ordinal, volume, title, translator)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, u := range units {
		var volume sql.NullFloat64
		if u.Volume != nil {
			volume = sql.NullFloat64{Float64: *u.Volume, Valid: true}
		}
		if _, err := stmt.Exec(entryID, u.ID, i, u.Ordinal, volume, u.Title, u.Translator); err != nil {
			return fmt.Errorf("failed to save unit %s: %w", u.ID, err)
		}
	}
	return tx.Commit()
}

// GetUnits returns the units of an entry in stored order.
func (r *Repository) GetUnits(entryID string) ([]Unit, error) {
	rows, err := r.db.Query(
		`SELECT id, ordinal, volume, title, translator FROM units WHERE entry_id = ? ORDER BY position`,
		entryID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get units: %w", err)
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		u := Unit{EntryID: entryID}
		var volume sql.NullFloat64
		var title, translator sql.NullString
		if err := rows.Scan(&u.ID, &u.Ordinal, &volume, &title, &translator); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		if volume.Valid {
			v := volume.Float64
			u.Volume = &v
		}
		u.Title = title.String
		u.Translator = translator.String
		units = append(units, u)
	}
	return units, rows.Err()
}

// CountUnits returns how many units are stored for an entry.
func (r *Repository) CountUnits(entryID string) (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM units WHERE entry_id = ?`, entryID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count units: %w", err)
	}
	return n, nil
}

// FetchCheckpoint returns the stored checkpoint or nil when there is none.
func (r *Repository) FetchCheckpoint(ctx context.Context, mediaType MediaType, entryID string) (*Checkpoint, error) {
	var cp Checkpoint
	err := r.db.QueryRowContext(ctx,
		`SELECT unit_ordinal, unit_offset, updated_at FROM checkpoints WHERE media_type = ? AND entry_id = ?`,
		string(mediaType), entryID,
	).Scan(&cp.UnitOrdinal, &cp.Offset, &cp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch checkpoint: %w", err)
	}
	return &cp, nil
}

// ReportCheckpoint stores cp unless the stored checkpoint already names a
// later unit. Checkpoints never move back to an earlier unit.
func (r *Repository) ReportCheckpoint(ctx context.Context, mediaType MediaType, entryID string, cp Checkpoint) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current float64
	err = tx.QueryRowContext(ctx,
		`SELECT unit_ordinal FROM checkpoints WHERE media_type = ? AND entry_id = ?`,
		string(mediaType), entryID,
	).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to read checkpoint: %w", err)
	case current > cp.UnitOrdinal:
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO checkpoints (media_type, entry_id, unit_ordinal, unit_offset, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(mediaType), entryID, cp.UnitOrdinal, cp.Offset, cp.UpdatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var e Entry
	var description, coverURL, source sql.NullString
	var mediaType string
	if err := s.Scan(&e.ID, &e.Title, &description, &coverURL, &source, &mediaType); err != nil {
		return nil, err
	}
	e.Description = description.String
	e.CoverURL = coverURL.String
	e.Source = source.String
	e.MediaType = MediaType(mediaType)
	return &e, nil
}
