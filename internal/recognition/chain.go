package recognition

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/yt2spotify/internal/models"
	"github.com/desertthunder/yt2spotify/internal/shared"
)

// Chain tries each provider in order until one recognizes songs.
type Chain struct {
	providers []Recognizer
	logger    *log.Logger
}

// NewChain creates a chain over providers.
func NewChain(logger *log.Logger, providers ...Recognizer) *Chain {
	return &Chain{providers: providers, logger: discardLogger(logger)}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, "+")
}

// Recognize returns the first provider success.
//
// If all providers fail and each reported no songs, the result is [shared.ErrNoSongsRecognized];
// otherwise it is the first failure that was not "no songs".
func (c *Chain) Recognize(ctx context.Context, youtubeURL string) ([]models.Candidate, error) {
	if err := validateURL(youtubeURL); err != nil {
		return nil, err
	}
	if len(c.providers) == 0 {
		return nil, fmt.Errorf("%w: no recognition providers", shared.ErrInvalidConfig)
	}

	var hard error
	for i, p := range c.providers {
		cands, err := p.Recognize(ctx, youtubeURL)
		if err == nil {
			return cands, nil
		}

		if hard == nil && !errors.Is(err, shared.ErrNoSongsRecognized) {
			hard = err
		}
		if ctx.Err() != nil {
			break
		}
		if i < len(c.providers)-1 {
			c.logger.Debug("falling back to next provider", "failed", p.Name(), "next", c.providers[i+1].Name())
		}
	}

	if hard != nil {
		return nil, hard
	}
	return nil, fmt.Errorf("%s: %w", c.Name(), shared.ErrNoSongsRecognized)
}

// FromConfig builds the recognizer named by cfg.Recognition.Providers.
//
// A single provider is returned as is; several are wrapped in a [Chain].
func FromConfig(cfg *shared.Config, client *http.Client, logger *log.Logger) (Recognizer, error) {
	var providers []Recognizer
	for _, name := range cfg.Recognition.Providers {
		var (
			r   Recognizer
			err error
		)
		switch strings.ToLower(strings.TrimSpace(name)) {
		case auddName:
			r, err = NewAudD(cfg.Credentials.AudD, client, logger)
		case acrName:
			r, err = NewACRCloud(cfg.Credentials.ACRCloud, cfg.Recognition.PollInterval(), cfg.Recognition.MaxPolls, client, logger)
		default:
			err = fmt.Errorf("%w: unknown recognition provider %q", shared.ErrInvalidConfig, name)
		}
		if err != nil {
			return nil, err
		}
		providers = append(providers, r)
	}

	switch len(providers) {
	case 0:
		return nil, fmt.Errorf("%w: no recognition providers configured", shared.ErrInvalidConfig)
	case 1:
		return providers[0], nil
	default:
		return NewChain(logger, providers...), nil
	}
}
