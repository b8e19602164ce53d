package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/yt2spotify/internal/models"
	"github.com/desertthunder/yt2spotify/internal/shared"
	"golang.org/x/time/rate"
)

const (
	acrName           = "acrcloud"
	acrDefaultBaseURL = "https://api.acrcloud.com/v1/fs"
	acrDefaultPolls   = 40
)

// File states reported by the File Scanning API.
const (
	acrStateProcessing = 0
	acrStateReady      = 1
	acrStateNoResult   = -1
)

// ACRCloud recognizes songs with an ACRCloud File Scanning container.
type ACRCloud struct {
	baseURL     string
	containerID string
	accessToken string
	maxPolls    int
	limiter     *rate.Limiter
	httpClient  *http.Client
	logger      *log.Logger
}

type acrFile struct {
	ID      string `json:"id"`
	State   int    `json:"state"`
	Results *struct {
		Music []struct {
			Result acrMusic `json:"result"`
		} `json:"music"`
	} `json:"results"`
}

type acrMusic struct {
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
	Artists     []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name string `json:"name"`
	} `json:"album"`
	ExternalIDs struct {
		ISRC string `json:"isrc"`
	} `json:"external_ids"`
}

type acrEnvelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// NewACRCloud creates a File Scanning client that checks the scan every pollInterval, up to maxPolls times.
func NewACRCloud(cfg shared.ACRCloudConfig, pollInterval time.Duration, maxPolls int, client *http.Client, logger *log.Logger) (*ACRCloud, error) {
	if cfg.ContainerID == "" || cfg.AccessToken == "" {
		return nil, fmt.Errorf("%w: acrcloud container_id and access_token", shared.ErrMissingCredentials)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if maxPolls <= 0 {
		maxPolls = acrDefaultPolls
	}
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = acrDefaultBaseURL
	}

	return &ACRCloud{
		baseURL:     base,
		containerID: cfg.ContainerID,
		accessToken: cfg.AccessToken,
		maxPolls:    maxPolls,
		limiter:     rate.NewLimiter(rate.Every(pollInterval), 1),
		httpClient:  client,
		logger:      shared.WithLogger(discardLogger(logger), "component", "recognition"),
	}, nil
}

func (a *ACRCloud) Name() string { return acrName }

// Recognize registers youtubeURL with the container and waits for the scan result.
func (a *ACRCloud) Recognize(ctx context.Context, youtubeURL string) (cands []models.Candidate, err error) {
	if err := validateURL(youtubeURL); err != nil {
		return nil, err
	}

	started := time.Now()
	status := 0
	defer func() { logResult(a.logger, acrName, status, len(cands), started, err) }()

	body, _ := json.Marshal(map[string]string{"url": youtubeURL, "platform": "youtube"})
	var file acrFile
	status, err = a.do(ctx, http.MethodPost, a.filesURL(""), body, &file)
	if err != nil {
		return nil, err
	}
	if file.ID == "" {
		return nil, &ServiceError{Provider: acrName, Status: status, Message: "upload response has no file id"}
	}

	for poll := 0; ; poll++ {
		switch {
		case file.State == acrStateReady:
			cands = file.candidates()
			if len(cands) == 0 {
				return nil, noSongs(acrName)
			}
			return cands, nil
		case file.State == acrStateNoResult:
			return nil, noSongs(acrName)
		case file.State < acrStateProcessing:
			return nil, &ServiceError{Provider: acrName, Status: status, Code: file.State, Message: "file scan failed"}
		}
		if poll == a.maxPolls {
			return nil, fmt.Errorf("%s: %w: %w: scan not finished after %d checks", acrName, shared.ErrTransport, shared.ErrTimeout, a.maxPolls)
		}

		if err := a.limiter.Wait(ctx); err != nil {
			return nil, transportErr(acrName, err)
		}
		id := file.ID
		if status, err = a.do(ctx, http.MethodGet, a.filesURL(id), nil, &file); err != nil {
			return nil, err
		}
		if file.ID == "" {
			file.ID = id
		}
	}
}

func (a *ACRCloud) filesURL(fileID string) string {
	u := fmt.Sprintf("%s/containers/%s/files", a.baseURL, a.containerID)
	if fileID != "" {
		u += "/" + fileID
	}
	return u
}

// do sends one request and decodes the first file in the data envelope into dst.
func (a *ACRCloud) do(ctx context.Context, method, u string, body []byte, dst *acrFile) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, transportErr(acrName, err)
	}
	defer resp.Body.Close()

	raw, err := readBody(resp)
	if err != nil {
		return resp.StatusCode, transportErr(acrName, err)
	}

	var env acrEnvelope
	decodeErr := json.Unmarshal(raw, &env)
	if !ok(resp.StatusCode) {
		se := &ServiceError{Provider: acrName, Status: resp.StatusCode, Payload: shared.Redact(string(raw))}
		if decodeErr == nil {
			se.Message = env.Message
			if se.Message == "" {
				se.Message = env.Error
			}
		}
		return resp.StatusCode, se
	}
	if decodeErr != nil {
		return resp.StatusCode, &ServiceError{Provider: acrName, Status: resp.StatusCode, Message: "malformed response"}
	}

	*dst = acrFile{}
	data := bytes.TrimSpace(env.Data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
	case data[0] == '[':
		var files []acrFile
		if err := json.Unmarshal(data, &files); err != nil {
			return resp.StatusCode, &ServiceError{Provider: acrName, Status: resp.StatusCode, Message: "malformed file list"}
		}
		if len(files) > 0 {
			*dst = files[0]
		}
	default:
		if err := json.Unmarshal(data, dst); err != nil {
			return resp.StatusCode, &ServiceError{Provider: acrName, Status: resp.StatusCode, Message: "malformed file"}
		}
	}
	return resp.StatusCode, nil
}

func (f acrFile) candidates() []models.Candidate {
	if f.Results == nil {
		return nil
	}

	out := make([]models.Candidate, 0, len(f.Results.Music))
	for _, m := range f.Results.Music {
		names := make([]string, 0, len(m.Result.Artists))
		for _, a := range m.Result.Artists {
			names = append(names, a.Name)
		}
		out = append(out, models.Candidate{
			Title:       strings.TrimSpace(m.Result.Title),
			Artist:      strings.Join(names, ", "),
			Album:       m.Result.Album.Name,
			ReleaseDate: m.Result.ReleaseDate,
			ISRC:        m.Result.ExternalIDs.ISRC,
		})
	}
	return out
}
