package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/yt2spotify/internal/shared"
	"github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// Scopes requested at login: read the profile and write playlists.
var Scopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
}

// OAuth performs the authorization code flow against Spotify's accounts service.
type OAuth struct {
	config *oauth2.Config
}

// NewOAuth builds an OAuth flow from configured client credentials.
func NewOAuth(cfg shared.SpotifyConfig) (*OAuth, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret", shared.ErrMissingCredentials)
	}
	if cfg.RedirectURI == "" {
		return nil, fmt.Errorf("%w: spotify redirect_uri", shared.ErrMissingCredentials)
	}

	return &OAuth{config: &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
	}}, nil
}

// WithEndpoint replaces the authorize and token URLs.
func (o *OAuth) WithEndpoint(authURL, tokenURL string) *OAuth {
	o.config.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
	return o
}

// RedirectURL is the callback registered with Spotify.
func (o *OAuth) RedirectURL() string { return o.config.RedirectURL }

// AuthURL returns the consent page URL for state.
func (o *OAuth) AuthURL(state string) string {
	return o.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token.
func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code is empty", shared.ErrAuthFailed)
	}
	tok, err := o.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	return tok, nil
}

// Refresh obtains a new access token from a refresh token.
func (o *OAuth) Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok == nil || tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", shared.ErrTokenExpired)
	}
	expired := *tok
	expired.AccessToken = ""
	fresh, err := o.config.TokenSource(ctx, &expired).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: refresh failed: %w", shared.ErrTokenExpired, err)
	}
	return fresh, nil
}
