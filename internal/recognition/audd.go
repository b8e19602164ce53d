package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/yt2spotify/internal/models"
	"github.com/desertthunder/yt2spotify/internal/shared"
)

const (
	auddName            = "audd"
	auddDefaultEndpoint = "https://api.audd.io/"
	auddDefaultReturn   = "apple_music,spotify"
)

// AudD recognizes songs through the AudD music recognition API.
type AudD struct {
	apiKey     string
	endpoint   string
	returnOpts string
	httpClient *http.Client
	logger     *log.Logger
}

type auddResponse struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"error_code"`
		Message string `json:"error_message"`
	} `json:"error"`
}

type auddSong struct {
	Artist      string `json:"artist"`
	Title       string `json:"title"`
	Album       string `json:"album"`
	ReleaseDate string `json:"release_date"`
	Timecode    string `json:"timecode"`
	AppleMusic  *struct {
		ISRC string `json:"isrc"`
	} `json:"apple_music"`
	Spotify *struct {
		ExternalIDs struct {
			ISRC string `json:"isrc"`
		} `json:"external_ids"`
	} `json:"spotify"`
}

// auddSegment is an entry of an enterprise-style result: a time offset holding several songs.
type auddSegment struct {
	auddSong
	Offset string     `json:"offset"`
	Songs  []auddSong `json:"songs"`
}

// NewAudD creates an AudD client. An empty endpoint or return option selects the public defaults.
func NewAudD(cfg shared.AudDConfig, client *http.Client, logger *log.Logger) (*AudD, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: audd api_key", shared.ErrMissingCredentials)
	}
	if client == nil {
		client = http.DefaultClient
	}

	a := &AudD{
		apiKey:     cfg.APIKey,
		endpoint:   cfg.Endpoint,
		returnOpts: cfg.Return,
		httpClient: client,
		logger:     shared.WithLogger(discardLogger(logger), "component", "recognition"),
	}
	if a.endpoint == "" {
		a.endpoint = auddDefaultEndpoint
	}
	if a.returnOpts == "" {
		a.returnOpts = auddDefaultReturn
	}
	return a, nil
}

func (a *AudD) Name() string { return auddName }

// Recognize submits youtubeURL to AudD as a form post.
//
// AudD reports failures with HTTP 200 and status "error", so the body is inspected as well as the status code.
func (a *AudD) Recognize(ctx context.Context, youtubeURL string) (cands []models.Candidate, err error) {
	if err := validateURL(youtubeURL); err != nil {
		return nil, err
	}

	started := time.Now()
	status := 0
	defer func() { logResult(a.logger, auddName, status, len(cands), started, err) }()

	form := url.Values{}
	form.Set("api_token", a.apiKey)
	form.Set("url", youtubeURL)
	form.Set("return", a.returnOpts)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, transportErr(auddName, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	body, err := readBody(resp)
	if err != nil {
		return nil, transportErr(auddName, err)
	}

	var payload auddResponse
	decodeErr := json.Unmarshal(body, &payload)

	if !ok(resp.StatusCode) {
		se := &ServiceError{Provider: auddName, Status: resp.StatusCode, Payload: shared.Redact(string(body))}
		if decodeErr == nil && payload.Error != nil {
			se.Code, se.Message = payload.Error.Code, payload.Error.Message
		}
		return nil, se
	}
	if decodeErr != nil {
		return nil, &ServiceError{
			Provider: auddName,
			Status:   resp.StatusCode,
			Message:  "malformed response",
			Payload:  shared.Redact(shared.Truncate(string(body), 512)),
		}
	}
	if payload.Status == "error" {
		se := &ServiceError{Provider: auddName, Status: resp.StatusCode, Payload: shared.Redact(string(body))}
		if payload.Error != nil {
			se.Code, se.Message = payload.Error.Code, payload.Error.Message
		}
		return nil, se
	}

	cands, err = parseAudDResult(payload.Result)
	if err != nil {
		return nil, &ServiceError{Provider: auddName, Status: resp.StatusCode, Message: err.Error()}
	}
	if len(cands) == 0 {
		return nil, noSongs(auddName)
	}
	return cands, nil
}

// parseAudDResult flattens the three shapes AudD uses for result.
func parseAudDResult(raw json.RawMessage) ([]models.Candidate, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch raw[0] {
	case '{':
		var s auddSong
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("malformed result: %w", err)
		}
		return []models.Candidate{s.candidate("")}, nil
	case '[':
		var segments []auddSegment
		if err := json.Unmarshal(raw, &segments); err != nil {
			return nil, fmt.Errorf("malformed result list: %w", err)
		}

		var out []models.Candidate
		for _, seg := range segments {
			if len(seg.Songs) == 0 {
				out = append(out, seg.auddSong.candidate(""))
				continue
			}
			for _, s := range seg.Songs {
				out = append(out, s.candidate(seg.Offset))
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected result type")
	}
}

func (s auddSong) candidate(offset string) models.Candidate {
	c := models.Candidate{
		Title:       strings.TrimSpace(s.Title),
		Artist:      strings.TrimSpace(s.Artist),
		Album:       s.Album,
		ReleaseDate: s.ReleaseDate,
		Timecode:    s.Timecode,
	}
	if c.Timecode == "" {
		c.Timecode = offset
	}
	switch {
	case s.Spotify != nil && s.Spotify.ExternalIDs.ISRC != "":
		c.ISRC = s.Spotify.ExternalIDs.ISRC
	case s.AppleMusic != nil:
		c.ISRC = s.AppleMusic.ISRC
	}
	return c
}
