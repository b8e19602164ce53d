// package models defines the data model for the conversion service
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/yt2spotify/internal/shared"
)

// Model defines the base interface for all persistent models.
type Model interface {
	GetID() string        // GetID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
type Repository[T Model] interface {
	Create(model T) error
	Get(id string) (T, error)
	Delete(id string) error
	List(criteria map[string]any) ([]T, error)
}

// Candidate is one song reported by a recognition provider.
type Candidate struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album,omitempty"`
	ReleaseDate string `json:"release_date,omitempty"`
	ISRC        string `json:"isrc,omitempty"`
	Timecode    string `json:"timecode,omitempty"`
}

// Key returns the normalized "title|artist" identity of c.
func (c Candidate) Key() string {
	return shared.NormalizeTrackKey(c.Title, c.Artist)
}

// Usable reports whether c has a title to search for.
func (c Candidate) Usable() bool {
	return strings.TrimSpace(c.Title) != ""
}

// CatalogTrack is a single search hit from the music catalog.
type CatalogTrack struct {
	ID      string `json:"id"`
	URI     string `json:"uri"`
	Name    string `json:"name"`
	Artists string `json:"artists"`
	Album   string `json:"album,omitempty"`
	ISRC    string `json:"isrc,omitempty"`
}

// MatchedSong pairs a recognized candidate with a catalog entry.
//
// Found is true exactly when CatalogURI is non-empty.
type MatchedSong struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	CatalogURI string `json:"catalog_uri,omitempty"`
	Found      bool   `json:"found"`
}

// Found builds a matched entry for c.
func Found(c Candidate, uri string) MatchedSong {
	if uri == "" {
		return NotFound(c)
	}
	return MatchedSong{Title: c.Title, Artist: c.Artist, CatalogURI: uri, Found: true}
}

// NotFound builds an unmatched entry for c.
func NotFound(c Candidate) MatchedSong {
	return MatchedSong{Title: c.Title, Artist: c.Artist}
}

// Validate checks the found/uri pairing.
func (m MatchedSong) Validate() error {
	if m.Found != (m.CatalogURI != "") {
		return fmt.Errorf("matched song %q: found=%t with uri %q", m.Title, m.Found, m.CatalogURI)
	}
	return nil
}

// FoundURIs returns the catalog URIs of found songs, in order.
func FoundURIs(songs []MatchedSong) []string {
	uris := make([]string, 0, len(songs))
	for _, s := range songs {
		if s.Found {
			uris = append(uris, s.CatalogURI)
		}
	}
	return uris
}

// CountFound returns how many songs have a catalog match.
func CountFound(songs []MatchedSong) int {
	n := 0
	for _, s := range songs {
		if s.Found {
			n++
		}
	}
	return n
}

// Phase is the coarse state of a conversion.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRecognizing
	PhaseSearching
	PhasePreview
	PhaseCreating
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRecognizing:
		return "recognizing"
	case PhaseSearching:
		return "searching"
	case PhasePreview:
		return "preview"
	case PhaseCreating:
		return "creating"
	default:
		return ""
	}
}

// Busy reports whether an external call may be in flight.
func (p Phase) Busy() bool {
	return p == PhaseRecognizing || p == PhaseSearching || p == PhaseCreating
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Outcome qualifies [PhaseIdle] after a conversion ends.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeSuccess
	OutcomeError
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeError:
		return "error"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "none"
	}
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// ParseOutcome is the inverse of [Outcome.String].
func ParseOutcome(s string) Outcome {
	switch s {
	case "success":
		return OutcomeSuccess
	case "error":
		return OutcomeError
	case "cancelled":
		return OutcomeCancelled
	default:
		return OutcomeNone
	}
}

// PlaylistHandle identifies a playlist created on the user's account.
type PlaylistHandle struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Session is a snapshot of a conversion for rendering.
type Session struct {
	ID           string          `json:"id"`
	Phase        Phase           `json:"phase"`
	Outcome      Outcome         `json:"outcome"`
	Message      string          `json:"message,omitempty"`
	YouTubeURL   string          `json:"youtube_url,omitempty"`
	MatchedSongs []MatchedSong   `json:"matched_songs"`
	Recognized   int             `json:"recognized"`
	TracksAdded  int             `json:"tracks_added"`
	Playlist     *PlaylistHandle `json:"playlist,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Account is the authenticated Spotify user a conversion acts for.
type Account struct {
	UserID      string `json:"user_id"`
	SpotifyID   string `json:"spotify_id"`
	DisplayName string `json:"display_name"`
	AccessToken string `json:"-"`
}

// TokenRecord stores Spotify credentials for a local user.
type TokenRecord struct {
	UserID        string
	AccessToken   string
	RefreshToken  string
	TokenType     string
	ExpiresAt     time.Time
	SpotifyUserID string
	DisplayName   string
	Created       time.Time
	Updated       time.Time
}

func (t *TokenRecord) GetID() string        { return t.UserID }
func (t *TokenRecord) CreatedAt() time.Time { return t.Created }

// Expired reports whether the token has a known expiry in the past.
func (t *TokenRecord) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

func (t *TokenRecord) Validate() error {
	if t.UserID == "" {
		return errors.New("token record requires a user id")
	}
	if t.AccessToken == "" {
		return errors.New("token record requires an access token")
	}
	return nil
}

// ConversionRecord is a finished conversion as kept in history.
type ConversionRecord struct {
	ID              string
	Sequence        int
	UserID          string
	YouTubeURL      string
	Outcome         Outcome
	Message         string
	RecognizedCount int
	TracksAdded     int
	Playlist        *PlaylistHandle
	Songs           []MatchedSong
	Created         time.Time
	Deleted         *time.Time
}

func (c *ConversionRecord) GetID() string        { return c.ID }
func (c *ConversionRecord) CreatedAt() time.Time { return c.Created }

// FoundCount returns the number of matched songs in the record.
func (c *ConversionRecord) FoundCount() int { return CountFound(c.Songs) }

func (c *ConversionRecord) Validate() error {
	if c.YouTubeURL == "" {
		return errors.New("conversion record requires a youtube url")
	}
	if c.Outcome == OutcomeNone {
		return errors.New("conversion record requires an outcome")
	}
	for _, s := range c.Songs {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CachedMatch remembers the catalog entry chosen for a normalized track key.
type CachedMatch struct {
	Key     string
	URI     string
	Name    string
	Artist  string
	Hits    int
	Created time.Time
	Updated time.Time
}

func (m *CachedMatch) GetID() string        { return m.Key }
func (m *CachedMatch) CreatedAt() time.Time { return m.Created }

func (m *CachedMatch) Validate() error {
	if m.Key == "" || m.URI == "" {
		return errors.New("cached match requires key and uri")
	}
	return nil
}
