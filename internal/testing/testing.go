// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/yt2spotify/internal/models"
)

// StubRecognizer is a test double for recognition.Recognizer.
//
// When Gate is non-nil, Recognize blocks until it is closed or ctx ends.
type StubRecognizer struct {
	ProviderName string
	Candidates   []models.Candidate
	Err          error
	Gate         chan struct{}

	mu    sync.Mutex
	calls []string
}

func (s *StubRecognizer) Recognize(ctx context.Context, youtubeURL string) ([]models.Candidate, error) {
	s.mu.Lock()
	s.calls = append(s.calls, youtubeURL)
	s.mu.Unlock()

	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]models.Candidate(nil), s.Candidates...), nil
}

func (s *StubRecognizer) Name() string {
	if s.ProviderName == "" {
		return "stub"
	}
	return s.ProviderName
}

// Calls returns the URLs Recognize was invoked with.
func (s *StubRecognizer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// StubCatalog is a test double for the catalog search client keyed by query.
//
// A query with an entry in Gates blocks until that channel is closed or ctx ends.
type StubCatalog struct {
	Results map[string][]models.CatalogTrack
	Errs    map[string]error
	Gates   map[string]chan struct{}

	mu      sync.Mutex
	queries []string
	tokens  []string
}

func (s *StubCatalog) Search(ctx context.Context, token, query string, limit int) ([]models.CatalogTrack, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.tokens = append(s.tokens, token)
	s.mu.Unlock()

	if gate, ok := s.Gates[query]; ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := s.Errs[query]; err != nil {
		return nil, err
	}
	res := s.Results[query]
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// Queries returns every query received, in arrival order.
func (s *StubCatalog) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// Tokens returns the auth tokens received, in arrival order.
func (s *StubCatalog) Tokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

// StubPlaylists is a test double for the playlist client.
type StubPlaylists struct {
	Handle    *models.PlaylistHandle
	CreateErr error
	AddErr    error
	AddSent   int // count reported alongside AddErr

	mu      sync.Mutex
	Created []CreateCall
	Added   [][]string
}

// CreateCall records the arguments of one CreatePlaylist invocation.
type CreateCall struct {
	Token, Owner, Name, Description string
	Public                          bool
}

func (s *StubPlaylists) CreatePlaylist(ctx context.Context, token, ownerID, name, description string, public bool) (*models.PlaylistHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Created = append(s.Created, CreateCall{token, ownerID, name, description, public})
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}
	if s.Handle != nil {
		h := *s.Handle
		return &h, nil
	}
	return &models.PlaylistHandle{ID: "pl1", Name: name, URL: "https://open.spotify.com/playlist/pl1"}, nil
}

func (s *StubPlaylists) AddTracks(ctx context.Context, token, playlistID string, uris []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Added = append(s.Added, append([]string(nil), uris...))
	if s.AddErr != nil {
		return s.AddSent, s.AddErr
	}
	return len(uris), nil
}

// Calls returns the number of create and add invocations.
func (s *StubPlaylists) Calls() (creates, adds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Created), len(s.Added)
}

// StubAccounts returns a fixed account or error and counts lookups.
type StubAccounts struct {
	Acct *models.Account
	Err  error

	mu    sync.Mutex
	calls int
}

func (s *StubAccounts) Account(ctx context.Context) (*models.Account, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Acct, nil
}

// Calls returns how many times Account was called.
func (s *StubAccounts) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// StubProfiles returns a fixed profile or error and records the tokens it was asked about.
type StubProfiles struct {
	Acct *models.Account
	Err  error

	mu     sync.Mutex
	tokens []string
}

func (s *StubProfiles) CurrentUser(ctx context.Context, token string) (*models.Account, error) {
	s.mu.Lock()
	s.tokens = append(s.tokens, token)
	s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	a := *s.Acct
	a.AccessToken = token
	return &a, nil
}

// Tokens returns the tokens CurrentUser was called with.
func (s *StubProfiles) Tokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
