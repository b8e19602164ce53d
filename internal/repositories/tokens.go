package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/yt2spotify/internal/models"
	"github.com/desertthunder/yt2spotify/internal/shared"
)

// TokenRepository persists [models.TokenRecord] rows in user_spotify_tokens.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new [TokenRepository] with the given database connection
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

const tokenColumns = `user_id, access_token, refresh_token, token_type, expires_at, spotify_user_id, display_name, created_at, updated_at`

// Upsert inserts rec or replaces the stored credentials for its user.
func (r *TokenRepository) Upsert(rec *models.TokenRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	if rec.Created.IsZero() {
		rec.Created = now
	}
	rec.Updated = now

	var expires sql.NullTime
	if !rec.ExpiresAt.IsZero() {
		expires = sql.NullTime{Time: rec.ExpiresAt, Valid: true}
	}

	query := `
		INSERT INTO user_spotify_tokens (` + tokenColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = CASE WHEN excluded.refresh_token = '' THEN user_spotify_tokens.refresh_token ELSE excluded.refresh_token END,
			token_type = excluded.token_type,
			expires_at = excluded.expires_at,
			spotify_user_id = CASE WHEN excluded.spotify_user_id = '' THEN user_spotify_tokens.spotify_user_id ELSE excluded.spotify_user_id END,
			display_name = CASE WHEN excluded.display_name = '' THEN user_spotify_tokens.display_name ELSE excluded.display_name END,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query, rec.UserID, rec.AccessToken, rec.RefreshToken, tokenType(rec.TokenType), expires,
		rec.SpotifyUserID, rec.DisplayName, rec.Created, rec.Updated)
	if err != nil {
		return fmt.Errorf("failed to upsert token: %w", err)
	}
	return nil
}

// Get returns the credentials stored for userID.
func (r *TokenRepository) Get(userID string) (*models.TokenRecord, error) {
	row := r.db.QueryRow(`SELECT `+tokenColumns+` FROM user_spotify_tokens WHERE user_id = ?`, userID)
	return r.scan(row)
}

// Latest returns the most recently updated credentials.
//
// It returns [shared.ErrNotAuthenticated] when nothing is stored.
func (r *TokenRepository) Latest() (*models.TokenRecord, error) {
	row := r.db.QueryRow(`SELECT ` + tokenColumns + ` FROM user_spotify_tokens ORDER BY updated_at DESC LIMIT 1`)
	return r.scan(row)
}

// Delete removes the credentials for userID.
func (r *TokenRepository) Delete(userID string) error {
	result, err := r.db.Exec(`DELETE FROM user_spotify_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: no token for %s", shared.ErrNotAuthenticated, userID)
	}
	return nil
}

// DeleteAll removes every stored credential and returns how many were removed.
func (r *TokenRepository) DeleteAll() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM user_spotify_tokens`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tokens: %w", err)
	}
	return result.RowsAffected()
}

func (r *TokenRepository) scan(row *sql.Row) (*models.TokenRecord, error) {
	var (
		rec     models.TokenRecord
		expires sql.NullTime
	)

	err := row.Scan(&rec.UserID, &rec.AccessToken, &rec.RefreshToken, &rec.TokenType, &expires,
		&rec.SpotifyUserID, &rec.DisplayName, &rec.Created, &rec.Updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan token: %w", err)
	}
	if expires.Valid {
		rec.ExpiresAt = expires.Time
	}
	return &rec, nil
}

func tokenType(t string) string {
	if t == "" {
		return "Bearer"
	}
	return t
}
