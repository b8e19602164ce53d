// package services defines the catalog and playlist clients used by a conversion
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/yt2spotify/internal/models"
	"github.com/desertthunder/yt2spotify/internal/shared"
	"github.com/zmb3/spotify/v2"
)

// Catalog searches the music catalog.
type Catalog interface {
	// Search returns up to limit tracks ranked by the provider. An empty result is not an error.
	Search(ctx context.Context, authToken, query string, limit int) ([]models.CatalogTrack, error)
}

// Playlists creates and fills playlists on the user's account.
type Playlists interface {
	CreatePlaylist(ctx context.Context, authToken, ownerID, name, description string, public bool) (*models.PlaylistHandle, error)

	// AddTracks appends uris in order and returns how many were accepted before any failure.
	AddTracks(ctx context.Context, authToken, playlistID string, uris []string) (int, error)
}

// Profiles reads the signed-in user's profile.
type Profiles interface {
	CurrentUser(ctx context.Context, authToken string) (*models.Account, error)
}

// APIError is a non-success response from the Spotify Web API.
type APIError struct {
	Op      string
	Status  int
	Message string
	kind    error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %v (status %d): %s", e.Op, e.kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %v (status %d)", e.Op, e.kind, e.Status)
}

func (e *APIError) Unwrap() error { return e.kind }

type statusKey struct{}

// statusRecorder stores the status of the last response into the *int carried by the request context.
type statusRecorder struct {
	base http.RoundTripper
}

func (s statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := s.base.RoundTrip(req)
	if p, ok := req.Context().Value(statusKey{}).(*int); ok && resp != nil {
		*p = resp.StatusCode
	}
	return resp, err
}

func withStatus(ctx context.Context) (context.Context, *int) {
	status := new(int)
	return context.WithValue(ctx, statusKey{}, status), status
}

// classify maps a client error to an [APIError] when a response was received and to a transport error otherwise.
func classify(op string, kind error, status int, err error) error {
	var se spotify.Error
	if errors.As(err, &se) {
		if se.Status == 0 {
			se.Status = status
		}
		return &APIError{Op: op, Status: se.Status, Message: se.Message, kind: kind}
	}
	if status >= 400 {
		return &APIError{Op: op, Status: status, Message: err.Error(), kind: kind}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w: %w", op, shared.ErrTransport, shared.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, shared.ErrTransport, err)
}
