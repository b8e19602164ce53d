package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/yt2spotify/internal/models"
)

// MatchCacheRepository stores catalog matches keyed by normalized track key.
//
// Lookups bump a hit counter; cache failures never surface to a conversion.
type MatchCacheRepository struct {
	db *sql.DB
}

// NewMatchCacheRepository creates a new [MatchCacheRepository] with the given database connection
func NewMatchCacheRepository(db *sql.DB) *MatchCacheRepository {
	return &MatchCacheRepository{db: db}
}

// Lookup returns the cached catalog URI for key.
func (r *MatchCacheRepository) Lookup(key string) (string, bool) {
	var uri string
	err := r.db.QueryRow(`SELECT catalog_uri FROM match_cache WHERE track_key = ?`, key).Scan(&uri)
	if err != nil || uri == "" {
		return "", false
	}

	_, _ = r.db.Exec(`UPDATE match_cache SET hits = hits + 1 WHERE track_key = ?`, key)
	return uri, true
}

// Remember caches track as the match for key, replacing any previous match.
func (r *MatchCacheRepository) Remember(key string, track models.CatalogTrack) error {
	m := &models.CachedMatch{Key: key, URI: track.URI, Name: track.Name, Artist: track.Artists}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	_, err := r.db.Exec(`
		INSERT INTO match_cache (track_key, catalog_uri, catalog_name, catalog_artist, hits, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(track_key) DO UPDATE SET
			catalog_uri = excluded.catalog_uri,
			catalog_name = excluded.catalog_name,
			catalog_artist = excluded.catalog_artist,
			updated_at = excluded.updated_at
	`, m.Key, m.URI, m.Name, m.Artist, now, now)
	if err != nil {
		return fmt.Errorf("failed to cache match: %w", err)
	}
	return nil
}

// Get returns the cached match for key.
func (r *MatchCacheRepository) Get(key string) (*models.CachedMatch, error) {
	row := r.db.QueryRow(`
		SELECT track_key, catalog_uri, catalog_name, catalog_artist, hits, created_at, updated_at
		FROM match_cache WHERE track_key = ?
	`, key)

	var m models.CachedMatch
	err := row.Scan(&m.Key, &m.URI, &m.Name, &m.Artist, &m.Hits, &m.Created, &m.Updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cached match not found: %s", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cached match: %w", err)
	}
	return &m, nil
}

// Count returns the number of cached matches.
func (r *MatchCacheRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM match_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cached matches: %w", err)
	}
	return n, nil
}

// Clear empties the cache and returns how many entries were removed.
func (r *MatchCacheRepository) Clear() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM match_cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear match cache: %w", err)
	}
	return result.RowsAffected()
}
