package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/huh/spinner"
	"github.com/desertthunder/yt2spotify/internal/models"
	"github.com/desertthunder/yt2spotify/internal/server"
	"github.com/desertthunder/yt2spotify/internal/services"
	"github.com/desertthunder/yt2spotify/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const (
	defaultLoginTimeout = 5 * time.Minute

	// localUserID keys the single account a CLI install signs in with.
	localUserID = "local"
)

// authStatus is the JSON shape of `auth status --json`.
type authStatus struct {
	Authenticated bool   `json:"authenticated"`
	SpotifyID     string `json:"spotify_id,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	Message       string `json:"message,omitempty"`
}

// AuthLogin runs the OAuth2 authorization code flow through a local callback server and stores the token.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	flow, err := r.oauthFlow()
	if err != nil {
		return err
	}

	state, err := server.NewState()
	if err != nil {
		return err
	}

	handler := server.NewOAuthHandler(flow, flow.RedirectURL(), state)
	callback, err := server.ListenCallback(flow.RedirectURL(), handler, r.logger)
	if err != nil {
		return err
	}
	r.logger.Debug("callback server listening", "addr", callback.Addr())

	authURL := flow.AuthURL(state)
	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL to sign in to Spotify:\n%s\n", authURL)
	} else if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("could not open browser", "error", err)
		r.writePlain("Open this URL to sign in to Spotify:\n%s\n", authURL)
	}

	timeout := cmd.Duration("timeout")
	if timeout <= 0 {
		timeout = defaultLoginTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var tok *oauth2.Token
	await := func(ctx context.Context) error {
		var err error
		tok, err = callback.Await(ctx)
		return err
	}
	if r.interactive {
		err = spinner.New().
			Title("Waiting for Spotify authorization...").
			Context(waitCtx).
			ActionWithErr(await).
			Run()
	} else {
		err = await(waitCtx)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	r.spotifyClients()
	profile, err := r.profiles.CurrentUser(ctx, tok.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to fetch Spotify profile: %w", err)
	}

	store, err := r.tokens()
	if err != nil {
		return err
	}
	rec, err := services.NewAccounts(store, flow, r.logger).Save(localUserID, tok, profile)
	if err != nil {
		return err
	}

	r.logger.Info("authentication successful", "spotify_user", rec.SpotifyUserID)
	return r.writePlain("✓ Signed in to Spotify as %s\n", displayName(profile))
}

// AuthLogout deletes every stored token.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	store, err := r.tokens()
	if err != nil {
		return err
	}

	n, err := store.DeleteAll()
	if err != nil {
		return err
	}
	if n == 0 {
		return r.writePlain("Not signed in.\n")
	}

	r.logger.Info("tokens deleted", "count", n)
	return r.writePlain("✓ Signed out of Spotify\n")
}

// AuthStatus verifies the stored token against the Spotify profile endpoint.
//
// A token Spotify rejects is removed so the next login starts clean.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	status, err := r.authStatus(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}
	if !status.Authenticated {
		return r.writePlain("✗ %s\n", status.Message)
	}
	return r.writePlain("✓ Signed in to Spotify as %s (%s)\n", status.DisplayName, status.SpotifyID)
}

func (r *Runner) authStatus(ctx context.Context) (*authStatus, error) {
	accounts, err := r.accountSource()
	if err != nil {
		return nil, err
	}

	acct, err := accounts.Account(ctx)
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated):
		return &authStatus{Message: "Not signed in. Run 'yt2spotify auth login'."}, nil
	case errors.Is(err, shared.ErrTokenExpired):
		return &authStatus{Message: "Spotify session expired. Run 'yt2spotify auth login'."}, nil
	case err != nil:
		return nil, err
	}

	r.spotifyClients()
	profile, err := r.profiles.CurrentUser(ctx, acct.AccessToken)
	if err != nil {
		var apiErr *services.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			r.forget(acct.UserID)
			return &authStatus{Message: "Spotify rejected the stored token. Run 'yt2spotify auth login'."}, nil
		}
		return nil, err
	}

	return &authStatus{
		Authenticated: true,
		SpotifyID:     profile.SpotifyID,
		DisplayName:   displayName(profile),
	}, nil
}

func (r *Runner) forget(userID string) {
	store, err := r.tokens()
	if err != nil {
		return
	}
	if err := store.Delete(userID); err != nil && !errors.Is(err, shared.ErrNotAuthenticated) {
		r.logger.Warn("failed to delete rejected token", "user", userID, "error", err)
	}
}

func displayName(a *models.Account) string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.SpotifyID
}
