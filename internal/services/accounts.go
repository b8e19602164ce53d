package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/yt2spotify/internal/models"
	"github.com/desertthunder/yt2spotify/internal/shared"
	"golang.org/x/oauth2"
)

// TokenStore persists Spotify credentials.
type TokenStore interface {
	Latest() (*models.TokenRecord, error)
	Upsert(rec *models.TokenRecord) error
}

// Accounts resolves the signed-in account from a [TokenStore], refreshing expired tokens when possible.
type Accounts struct {
	store  TokenStore
	oauth  *OAuth
	logger *log.Logger
	now    func() time.Time
}

// NewAccounts creates an account source. oauth may be nil, in which case expired tokens are reported as such.
func NewAccounts(store TokenStore, oauth *OAuth, logger *log.Logger) *Accounts {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Accounts{store: store, oauth: oauth, logger: logger, now: time.Now}
}

// Account returns the most recently stored account.
func (a *Accounts) Account(ctx context.Context) (*models.Account, error) {
	rec, err := a.store.Latest()
	if err != nil {
		return nil, err
	}

	if rec.Expired(a.now()) {
		if a.oauth == nil || rec.RefreshToken == "" {
			return nil, fmt.Errorf("%w: sign in again", shared.ErrTokenExpired)
		}

		fresh, err := a.oauth.Refresh(ctx, &oauth2.Token{
			AccessToken:  rec.AccessToken,
			RefreshToken: rec.RefreshToken,
			TokenType:    rec.TokenType,
			Expiry:       rec.ExpiresAt,
		})
		if err != nil {
			return nil, err
		}

		rec.AccessToken = fresh.AccessToken
		rec.ExpiresAt = fresh.Expiry
		if fresh.RefreshToken != "" {
			rec.RefreshToken = fresh.RefreshToken
		}
		if err := a.store.Upsert(rec); err != nil {
			return nil, fmt.Errorf("failed to store refreshed token: %w", err)
		}
		a.logger.Info("refreshed spotify token", "user", rec.UserID)
	}

	return &models.Account{
		UserID:      rec.UserID,
		SpotifyID:   rec.SpotifyUserID,
		DisplayName: rec.DisplayName,
		AccessToken: rec.AccessToken,
	}, nil
}

// Save stores tok for userID together with the Spotify profile it belongs to.
func (a *Accounts) Save(userID string, tok *oauth2.Token, profile *models.Account) (*models.TokenRecord, error) {
	rec := &models.TokenRecord{
		UserID:       userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    tok.Expiry,
	}
	if profile != nil {
		rec.SpotifyUserID = profile.SpotifyID
		rec.DisplayName = profile.DisplayName
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	if err := a.store.Upsert(rec); err != nil {
		return nil, err
	}
	return rec, nil
}
