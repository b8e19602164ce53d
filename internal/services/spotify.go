// Spotify Web API implementation of [Catalog], [Playlists] and [Profiles]
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/yt2spotify/internal/models"
	"github.com/desertthunder/yt2spotify/internal/shared"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

const (
	DefaultAPIBaseURL = "https://api.spotify.com/v1/"
	trackURIPrefix    = "spotify:track:"
	maxTracksPerAdd   = 100
)

// Spotify is a token-per-call client for the Spotify Web API.
type Spotify struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// NewSpotify creates a client against baseURL (defaults to the public API).
//
// The client's Timeout and Transport are reused for every call; the access token is layered on per request.
func NewSpotify(baseURL string, client *http.Client, logger *log.Logger) *Spotify {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Spotify{baseURL: baseURL, httpClient: client, logger: shared.WithLogger(logger, "component", "spotify")}
}

func (s *Spotify) Name() string { return "Spotify" }

// api returns a zmb3 client authorized with token.
func (s *Spotify) api(token string) *spotify.Client {
	base := s.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc := &http.Client{
		Timeout: s.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   statusRecorder{base: base},
		},
	}
	return spotify.New(hc, spotify.WithBaseURL(s.baseURL))
}

func requireToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: access token is required", shared.ErrValidation)
	}
	return nil
}

// Search runs a track search and returns hits in ranked order.
func (s *Spotify) Search(ctx context.Context, authToken, query string, limit int) ([]models.CatalogTrack, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: search limit must be at least 1", shared.ErrValidation)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: search query is empty", shared.ErrValidation)
	}
	if err := requireToken(authToken); err != nil {
		return nil, err
	}

	ctx, status := withStatus(ctx)
	res, err := s.api(authToken).Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		err = classify("search", shared.ErrCatalogSearch, *status, err)
		s.logger.Debug("search failed", "query", query, "error", err)
		return nil, err
	}

	if res == nil || res.Tracks == nil {
		return []models.CatalogTrack{}, nil
	}

	tracks := make([]models.CatalogTrack, 0, len(res.Tracks.Tracks))
	for _, t := range res.Tracks.Tracks {
		names := make([]string, 0, len(t.Artists))
		for _, a := range t.Artists {
			names = append(names, a.Name)
		}
		tracks = append(tracks, models.CatalogTrack{
			ID:      string(t.ID),
			URI:     string(t.URI),
			Name:    t.Name,
			Artists: strings.Join(names, ", "),
			Album:   t.Album.Name,
		})
	}
	s.logger.Debug("search finished", "query", query, "results", len(tracks))
	return tracks, nil
}

// CreatePlaylist creates an empty, non-collaborative playlist owned by ownerID.
func (s *Spotify) CreatePlaylist(ctx context.Context, authToken, ownerID, name, description string, public bool) (*models.PlaylistHandle, error) {
	if err := requireToken(authToken); err != nil {
		return nil, err
	}
	if ownerID == "" || strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: playlist owner and name are required", shared.ErrValidation)
	}

	ctx, status := withStatus(ctx)
	pl, err := s.api(authToken).CreatePlaylistForUser(ctx, ownerID, name, description, public, false)
	if err != nil {
		return nil, classify("create playlist", shared.ErrPlaylistCreate, *status, err)
	}

	h := &models.PlaylistHandle{ID: string(pl.ID), Name: pl.Name}
	if u, ok := pl.ExternalURLs["spotify"]; ok {
		h.URL = u
	} else {
		h.URL = "https://open.spotify.com/playlist/" + h.ID
	}
	s.logger.Info("playlist created", "id", h.ID, "name", h.Name, "public", public)
	return h, nil
}

// AddTracks appends track URIs in batches of 100.
//
// The returned count covers the batches accepted before a failure. There is no rollback.
func (s *Spotify) AddTracks(ctx context.Context, authToken, playlistID string, uris []string) (int, error) {
	if err := requireToken(authToken); err != nil {
		return 0, err
	}
	if playlistID == "" {
		return 0, fmt.Errorf("%w: playlist id is required", shared.ErrValidation)
	}

	ids := make([]spotify.ID, 0, len(uris))
	for _, u := range uris {
		id, err := TrackID(u)
		if err != nil {
			return 0, err
		}
		ids = append(ids, id)
	}

	client := s.api(authToken)
	sent := 0
	for start := 0; start < len(ids); start += maxTracksPerAdd {
		end := min(start+maxTracksPerAdd, len(ids))

		bctx, status := withStatus(ctx)
		if _, err := client.AddTracksToPlaylist(bctx, spotify.ID(playlistID), ids[start:end]...); err != nil {
			return sent, classify("add tracks", shared.ErrPlaylistPopulate, *status, err)
		}
		sent = end
	}

	s.logger.Info("tracks added", "playlist", playlistID, "count", sent)
	return sent, nil
}

// CurrentUser returns the profile that owns authToken.
func (s *Spotify) CurrentUser(ctx context.Context, authToken string) (*models.Account, error) {
	if err := requireToken(authToken); err != nil {
		return nil, err
	}

	ctx, status := withStatus(ctx)
	u, err := s.api(authToken).CurrentUser(ctx)
	if err != nil {
		return nil, classify("current user", shared.ErrNotAuthenticated, *status, err)
	}
	return &models.Account{SpotifyID: u.ID, DisplayName: u.DisplayName, AccessToken: authToken}, nil
}

// TrackID extracts the track id from a "spotify:track:<id>" URI.
func TrackID(uri string) (spotify.ID, error) {
	id, ok := strings.CutPrefix(uri, trackURIPrefix)
	if !ok || id == "" {
		return "", fmt.Errorf("%w: not a track uri: %q", shared.ErrValidation, uri)
	}
	return spotify.ID(id), nil
}
