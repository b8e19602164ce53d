package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/yt2spotify/internal/models"
	"github.com/desertthunder/yt2spotify/internal/shared"
)

var _ models.Repository[*models.ConversionRecord] = (*ConversionRepository)(nil)

// ConversionRepository implements [models.Repository] for [models.ConversionRecord] history.
//
// Songs are stored in conversion_songs, ordered by position, and removed with their conversion.
type ConversionRepository struct {
	db *sql.DB
}

// NewConversionRepository creates a new [ConversionRepository] with the given database connection
func NewConversionRepository(db *sql.DB) *ConversionRepository {
	return &ConversionRepository{db: db}
}

const conversionColumns = `id, sequence, user_id, youtube_url, outcome, message, recognized_count, tracks_added,
	playlist_id, playlist_name, playlist_url, created_at, deleted_at`

// Create inserts rec and its songs with a fresh sequence number.
//
// An empty ID is replaced by a generated one.
func (r *ConversionRepository) Create(rec *models.ConversionRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if rec.ID == "" {
		rec.ID = shared.GenerateID()
	}
	if rec.Created.IsZero() {
		rec.Created = time.Now()
	}

	var pl models.PlaylistHandle
	if rec.Playlist != nil {
		pl = *rec.Playlist
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := NextSequence(tx, "conversions")
	if err != nil {
		return err
	}
	rec.Sequence = sequence

	_, err = tx.Exec(`
		INSERT INTO conversions (id, sequence, user_id, youtube_url, outcome, message, recognized_count,
			found_count, tracks_added, playlist_id, playlist_name, playlist_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Sequence, rec.UserID, rec.YouTubeURL, rec.Outcome.String(), rec.Message, rec.RecognizedCount,
		rec.FoundCount(), rec.TracksAdded, pl.ID, pl.Name, pl.URL, rec.Created)
	if err != nil {
		return fmt.Errorf("failed to insert conversion: %w", err)
	}

	for i, song := range rec.Songs {
		_, err := tx.Exec(`
			INSERT INTO conversion_songs (conversion_id, position, title, artist, catalog_uri, found)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rec.ID, i, song.Title, song.Artist, song.CatalogURI, song.Found)
		if err != nil {
			return fmt.Errorf("failed to insert conversion song %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit conversion: %w", err)
	}
	return nil
}

// Record stores a finished conversion.
func (r *ConversionRepository) Record(rec *models.ConversionRecord) error {
	return r.Create(rec)
}

// Get retrieves a conversion and its songs, excluding soft-deleted conversions.
func (r *ConversionRepository) Get(id string) (*models.ConversionRecord, error) {
	row := r.db.QueryRow(`SELECT `+conversionColumns+` FROM conversions WHERE id = ? AND deleted_at IS NULL`, id)

	rec, err := scanConversion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrConversionNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if rec.Songs, err = r.songs(rec.ID); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete soft-deletes a conversion by ID
func (r *ConversionRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE conversions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete conversion: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrConversionNotFound, id)
	}
	return nil
}

// List retrieves conversions newest first, excluding soft-deleted ones.
//
// Supported criteria: "user_id" (string), "outcome" (string) and "limit" (int).
// Songs are not loaded; use [ConversionRepository.Get] for details.
func (r *ConversionRepository) List(criteria map[string]any) ([]*models.ConversionRecord, error) {
	query := `SELECT ` + conversionColumns + ` FROM conversions WHERE deleted_at IS NULL`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	if outcome, ok := criteria["outcome"].(string); ok && outcome != "" {
		query += " AND outcome = ?"
		args = append(args, outcome)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversions: %w", err)
	}
	defer rows.Close()

	var recs []*models.ConversionRecord
	for rows.Next() {
		rec, err := scanConversion(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return recs, nil
}

func (r *ConversionRepository) songs(id string) ([]models.MatchedSong, error) {
	rows, err := r.db.Query(`
		SELECT title, artist, catalog_uri, found
		FROM conversion_songs
		WHERE conversion_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversion songs: %w", err)
	}
	defer rows.Close()

	var songs []models.MatchedSong
	for rows.Next() {
		var s models.MatchedSong
		if err := rows.Scan(&s.Title, &s.Artist, &s.CatalogURI, &s.Found); err != nil {
			return nil, fmt.Errorf("failed to scan conversion song: %w", err)
		}
		songs = append(songs, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return songs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversion(s scanner) (*models.ConversionRecord, error) {
	var (
		rec       models.ConversionRecord
		outcome   string
		pl        models.PlaylistHandle
		deletedAt sql.NullTime
	)

	err := s.Scan(&rec.ID, &rec.Sequence, &rec.UserID, &rec.YouTubeURL, &outcome, &rec.Message,
		&rec.RecognizedCount, &rec.TracksAdded, &pl.ID, &pl.Name, &pl.URL, &rec.Created, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversion: %w", err)
	}

	rec.Outcome = models.ParseOutcome(outcome)
	if pl.ID != "" {
		rec.Playlist = &pl
	}
	if deletedAt.Valid {
		rec.Deleted = &deletedAt.Time
	}
	return &rec, nil
}
