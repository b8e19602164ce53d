package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/yt2spotify/internal/models"
	"github.com/desertthunder/yt2spotify/internal/services"
	"github.com/desertthunder/yt2spotify/internal/shared"
	tu "github.com/desertthunder/yt2spotify/internal/testing"
)

const testURL = "https://www.youtube.com/watch?v=abc123"

func account() *tu.StubAccounts {
	return &tu.StubAccounts{Acct: &models.Account{UserID: "local", SpotifyID: "user1", AccessToken: "tok"}}
}

type memCache struct {
	mu   sync.Mutex
	uris map[string]string
}

func (m *memCache) Lookup(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uri, ok := m.uris[key]
	return uri, ok
}

func (m *memCache) Remember(key string, t models.CatalogTrack) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uris == nil {
		m.uris = map[string]string{}
	}
	m.uris[key] = t.URI
	return nil
}

type memHistory struct {
	mu   sync.Mutex
	recs []*models.ConversionRecord
}

func (m *memHistory) Record(rec *models.ConversionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memHistory) all() []*models.ConversionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.ConversionRecord(nil), m.recs...)
}

type stubProfiles struct{ id string }

func (s stubProfiles) CurrentUser(ctx context.Context, token string) (*models.Account, error) {
	return &models.Account{SpotifyID: s.id}, nil
}

func waitForPhase(t *testing.T, c *Converter, want models.Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Session().Phase == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("phase = %v, want %v", c.Session().Phase, want)
}

func TestConverter_EndToEnd(t *testing.T) {
	rec := &tu.StubRecognizer{Candidates: []models.Candidate{
		{Title: "Song1", Artist: "Art1"},
		{Title: "Song2", Artist: "Art2"},
	}}
	cat := &tu.StubCatalog{Results: map[string][]models.CatalogTrack{
		"Song1 Art1": {{ID: "1", URI: "spotify:track:1", Name: "Song1"}},
	}}
	pls := &tu.StubPlaylists{}
	hist := &memHistory{}
	conv := NewConverter(rec, cat, pls, account(), Options{History: hist})

	if err := conv.Start(context.Background(), testURL); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	s := conv.Session()
	if s.Phase != models.PhasePreview {
		t.Fatalf("phase = %v, want preview", s.Phase)
	}
	if len(s.MatchedSongs) != 2 {
		t.Fatalf("matched %d songs, want 2", len(s.MatchedSongs))
	}
	if !s.MatchedSongs[0].Found || s.MatchedSongs[0].CatalogURI != "spotify:track:1" {
		t.Errorf("first song = %+v, want found spotify:track:1", s.MatchedSongs[0])
	}
	if s.MatchedSongs[1].Found || s.MatchedSongs[1].CatalogURI != "" {
		t.Errorf("second song = %+v, want not found", s.MatchedSongs[1])
	}

	res, err := conv.Confirm(context.Background())
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if res.TracksAdded != 1 {
		t.Errorf("TracksAdded = %d, want 1", res.TracksAdded)
	}

	if len(pls.Created) != 1 {
		t.Fatalf("created %d playlists, want 1", len(pls.Created))
	}
	created := pls.Created[0]
	if !strings.Contains(created.Name, "Song1") {
		t.Errorf("playlist name %q does not mention Song1", created.Name)
	}
	if created.Owner != "user1" || created.Token != "tok" {
		t.Errorf("create call = %+v", created)
	}
	if !strings.Contains(created.Description, testURL) {
		t.Errorf("description %q does not include the video url", created.Description)
	}
	if len(pls.Added) != 1 || fmt.Sprint(pls.Added[0]) != "[spotify:track:1]" {
		t.Errorf("added = %v, want [[spotify:track:1]]", pls.Added)
	}

	s = conv.Session()
	if s.Phase != models.PhaseIdle || s.Outcome != models.OutcomeSuccess {
		t.Errorf("session = %v/%v, want idle/success", s.Phase, s.Outcome)
	}
	if s.YouTubeURL != "" || len(s.MatchedSongs) != 0 {
		t.Errorf("session not cleared: url=%q songs=%d", s.YouTubeURL, len(s.MatchedSongs))
	}
	if !strings.Contains(s.Message, "Added 1 tracks") {
		t.Errorf("message = %q", s.Message)
	}

	recs := hist.all()
	if len(recs) != 1 || recs[0].Outcome != models.OutcomeSuccess || recs[0].FoundCount() != 1 {
		t.Errorf("history = %+v", recs)
	}
}

func TestConverter_StartValidation(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		accounts *tu.StubAccounts
	}{
		{name: "empty url", url: "  ", accounts: account()},
		{name: "no account", url: testURL, accounts: &tu.StubAccounts{Err: shared.ErrNotAuthenticated}},
		{name: "empty token", url: testURL, accounts: &tu.StubAccounts{Acct: &models.Account{UserID: "local"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &tu.StubRecognizer{}
			conv := NewConverter(rec, &tu.StubCatalog{}, &tu.StubPlaylists{}, tt.accounts, Options{})

			err := conv.Start(context.Background(), tt.url)
			if !errors.Is(err, shared.ErrValidation) {
				t.Fatalf("Start() error = %v, want ErrValidation", err)
			}
			if len(rec.Calls()) != 0 {
				t.Errorf("recognizer called %d times, want 0", len(rec.Calls()))
			}
			if s := conv.Session(); s.Phase != models.PhaseIdle || s.Outcome != models.OutcomeNone {
				t.Errorf("session = %v/%v, want untouched idle", s.Phase, s.Outcome)
			}
		})
	}
}

func TestConverter_RecognizingIsObservable(t *testing.T) {
	gate := make(chan struct{})
	rec := &tu.StubRecognizer{Gate: gate, Candidates: []models.Candidate{{Title: "A"}}}
	conv := NewConverter(rec, &tu.StubCatalog{}, &tu.StubPlaylists{}, account(), Options{})

	done := make(chan error, 1)
	go func() { done <- conv.Start(context.Background(), testURL) }()

	waitForPhase(t, conv, models.PhaseRecognizing)
	if err := conv.Start(context.Background(), testURL); !errors.Is(err, shared.ErrInvalidState) {
		t.Errorf("second Start() error = %v, want ErrInvalidState", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := conv.Session().Phase; got != models.PhasePreview {
		t.Errorf("phase = %v, want preview", got)
	}
}

func TestConverter_BeginAndRun(t *testing.T) {
	t.Run("begin enters recognizing without calling the recognizer", func(t *testing.T) {
		rec := &tu.StubRecognizer{Candidates: []models.Candidate{{Title: "A"}}}
		accts := account()
		conv := NewConverter(rec, &tu.StubCatalog{}, &tu.StubPlaylists{}, accts, Options{})

		if err := conv.Begin(context.Background(), "  "+testURL+" "); err != nil {
			t.Fatalf("Begin() error = %v", err)
		}
		s := conv.Session()
		if s.Phase != models.PhaseRecognizing || s.YouTubeURL != testURL {
			t.Errorf("session = %v %q, want recognizing %q", s.Phase, s.YouTubeURL, testURL)
		}
		if len(rec.Calls()) != 0 {
			t.Errorf("recognizer called %d times before Run", len(rec.Calls()))
		}

		if err := conv.Run(context.Background()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if got := conv.Session().Phase; got != models.PhasePreview {
			t.Errorf("phase = %v, want preview", got)
		}
		if accts.Calls() != 1 {
			t.Errorf("account resolved %d times, want 1", accts.Calls())
		}
	})

	t.Run("run without begin", func(t *testing.T) {
		conv := NewConverter(&tu.StubRecognizer{}, &tu.StubCatalog{}, &tu.StubPlaylists{}, account(), Options{})
		if err := conv.Run(context.Background()); !errors.Is(err, shared.ErrInvalidState) {
			t.Errorf("Run() error = %v, want ErrInvalidState", err)
		}
	})

	t.Run("run twice", func(t *testing.T) {
		rec := &tu.StubRecognizer{Candidates: []models.Candidate{{Title: "A"}}}
		conv := NewConverter(rec, &tu.StubCatalog{}, &tu.StubPlaylists{}, account(), Options{})
		if err := conv.Start(context.Background(), testURL); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if err := conv.Run(context.Background()); !errors.Is(err, shared.ErrInvalidState) {
			t.Errorf("second Run() error = %v, want ErrInvalidState", err)
		}
		if len(rec.Calls()) != 1 {
			t.Errorf("recognizer called %d times, want 1", len(rec.Calls()))
		}
	})

	t.Run("cancel between begin and run", func(t *testing.T) {
		rec := &tu.StubRecognizer{Candidates: []models.Candidate{{Title: "A"}}}
		conv := NewConverter(rec, &tu.StubCatalog{}, &tu.StubPlaylists{}, account(), Options{})
		if err := conv.Begin(context.Background(), testURL); err != nil {
			t.Fatalf("Begin() error = %v", err)
		}
		if err := conv.Cancel(); err != nil {
			t.Fatalf("Cancel() error = %v", err)
		}
		if err := conv.Run(context.Background()); !errors.Is(err, shared.ErrConversionCancelled) {
			t.Errorf("Run() error = %v, want ErrConversionCancelled", err)
		}
		if len(rec.Calls()) != 0 {
			t.Errorf("recognizer called %d times after cancel", len(rec.Calls()))
		}
		if s := conv.Session(); s.Phase != models.PhaseIdle || s.Outcome != models.OutcomeCancelled {
			t.Errorf("session = %v/%v, want idle/cancelled", s.Phase, s.Outcome)
		}
	})

	t.Run("validation leaves the session idle", func(t *testing.T) {
		accts := &tu.StubAccounts{Err: shared.ErrTokenExpired}
		conv := NewConverter(&tu.StubRecognizer{}, &tu.StubCatalog{}, &tu.StubPlaylists{}, accts, Options{})
		err := conv.Begin(context.Background(), testURL)
		if !errors.Is(err, shared.ErrValidation) || !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("Begin() error = %v, want ErrValidation wrapping ErrTokenExpired", err)
		}
		if s := conv.Session(); s.Phase != models.PhaseIdle || s.Outcome != models.OutcomeNone {
			t.Errorf("session = %v/%v, want untouched idle", s.Phase, s.Outcome)
		}
	})
}

func TestConverter_CallTimeouts(t *testing.T) {
	t.Run("recognition deadline ends in error", func(t *testing.T) {
		rec := &tu.StubRecognizer{Gate: make(chan struct{}), Candidates: []models.Candidate{{Title: "A"}}}
		cat := &tu.StubCatalog{}
		conv := NewConverter(rec, cat, &tu.StubPlaylists{}, account(), Options{RecognitionTimeout: 10 * time.Millisecond})

		err := conv.Start(context.Background(), testURL)
		if !errors.Is(err, shared.ErrTransport) || !errors.Is(err, shared.ErrTimeout) {
			t.Fatalf("Start() error = %v, want transport timeout", err)
		}
		s := conv.Session()
		if s.Phase != models.PhaseIdle || s.Outcome != models.OutcomeError {
			t.Errorf("session = %v/%v, want idle/error", s.Phase, s.Outcome)
		}
		if s.Message != shared.MessageGenericError {
			t.Errorf("message = %q", s.Message)
		}
		if len(cat.Queries()) != 0 {
			t.Errorf("catalog searched %d times, want 0", len(cat.Queries()))
		}
	})

	t.Run("search deadline marks the song not found and continues", func(t *testing.T) {
		rec := &tu.StubRecognizer{Candidates: []models.Candidate{
			{Title: "Slow", Artist: "X"},
			{Title: "Fast", Artist: "Y"},
		}}
		cat := &tu.StubCatalog{
			Results: map[string][]models.CatalogTrack{
				"Slow X": {{URI: "spotify:track:slow"}},
				"Fast Y": {{URI: "spotify:track:fast"}},
			},
			Gates: map[string]chan struct{}{"Slow X": make(chan struct{})},
		}
		opts := Options{CallTimeout: 10 * time.Millisecond, RecognitionTimeout: time.Second}
		conv := NewConverter(rec, cat, &tu.StubPlaylists{}, account(), opts)

		if err := conv.Start(context.Background(), testURL); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if got := strings.Join(cat.Queries(), ","); got != "Slow X,Fast Y" {
			t.Errorf("queries = %q", got)
		}

		s := conv.Session()
		if s.Phase != models.PhasePreview {
			t.Fatalf("phase = %v, want preview", s.Phase)
		}
		if len(s.MatchedSongs) != 2 {
			t.Fatalf("matched %d songs, want 2", len(s.MatchedSongs))
		}
		if s.MatchedSongs[0].Found || s.MatchedSongs[0].CatalogURI != "" {
			t.Errorf("timed out song = %+v, want not found", s.MatchedSongs[0])
		}
		if !s.MatchedSongs[1].Found || s.MatchedSongs[1].CatalogURI != "spotify:track:fast" {
			t.Errorf("second song = %+v, want found", s.MatchedSongs[1])
		}
	})
}

func TestExpired(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	tests := []struct {
		name      string
		ctx       context.Context
		err       error
		wantTimer bool
	}{
		{name: "nil error", ctx: ctx},
		{name: "deadline passed", ctx: ctx, err: context.DeadlineExceeded, wantTimer: true},
		{name: "already transport", ctx: ctx, err: fmt.Errorf("%w: refused", shared.ErrTransport)},
		{name: "live context", ctx: context.Background(), err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expired(tt.ctx, tt.err)
			if tt.err == nil {
				if got != nil {
					t.Errorf("expired() = %v, want nil", got)
				}
				return
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("expired() = %v, lost %v", got, tt.err)
			}
			if errors.Is(got, shared.ErrTimeout) != tt.wantTimer {
				t.Errorf("expired() = %v, timeout = %v", got, tt.wantTimer)
			}
		})
	}
}

func TestConverter_RecognitionFailures(t *testing.T) {
	tests := []struct {
		name       string
		candidates []models.Candidate
		err        error
		wantErr    error
		wantMsg    string
	}{
		{
			name:    "no songs",
			wantErr: shared.ErrNoSongsRecognized,
			wantMsg: shared.MessageNoMusic,
		},
		{
			name:       "only blank titles",
			candidates: []models.Candidate{{Artist: "Someone"}, {Title: "  "}},
			wantErr:    shared.ErrNoSongsRecognized,
			wantMsg:    shared.MessageNoUsableSongs,
		},
		{
			name:    "service error",
			err:     fmt.Errorf("%w: bad token", shared.ErrRecognitionService),
			wantErr: shared.ErrRecognitionService,
			wantMsg: shared.MessageRecognizeError,
		},
		{
			name:    "transport error",
			err:     fmt.Errorf("%w: connection refused", shared.ErrTransport),
			wantErr: shared.ErrTransport,
			wantMsg: shared.MessageGenericError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &tu.StubRecognizer{Candidates: tt.candidates, Err: tt.err}
			cat := &tu.StubCatalog{}
			conv := NewConverter(rec, cat, &tu.StubPlaylists{}, account(), Options{})

			err := conv.Start(context.Background(), testURL)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Start() error = %v, want %v", err, tt.wantErr)
			}

			s := conv.Session()
			if s.Phase != models.PhaseIdle || s.Outcome != models.OutcomeError {
				t.Errorf("session = %v/%v, want idle/error", s.Phase, s.Outcome)
			}
			if s.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", s.Message, tt.wantMsg)
			}
			if len(cat.Queries()) != 0 {
				t.Errorf("catalog searched %d times, want 0", len(cat.Queries()))
			}
		})
	}
}

func TestConverter_SearchOrderAndSkips(t *testing.T) {
	rec := &tu.StubRecognizer{Candidates: []models.Candidate{
		{Title: "One", Artist: "A"},
		{Title: "", Artist: "Ghost"},
		{Title: "Two"},
		{Title: "Three", Artist: "C"},
	}}
	cat := &tu.StubCatalog{
		Results: map[string][]models.CatalogTrack{
			"One A": {{URI: "spotify:track:1"}, {URI: "spotify:track:9"}},
			"Two":   {{URI: "spotify:track:2"}},
		},
		Errs: map[string]error{"Three C": errors.New("boom")},
	}
	conv := NewConverter(rec, cat, &tu.StubPlaylists{}, account(), Options{})

	if err := conv.Start(context.Background(), testURL); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if got := strings.Join(cat.Queries(), ","); got != "One A,Two,Three C" {
		t.Errorf("queries = %q", got)
	}
	for _, tok := range cat.Tokens() {
		if tok != "tok" {
			t.Errorf("search token = %q, want tok", tok)
		}
	}

	songs := conv.Session().MatchedSongs
	want := []models.MatchedSong{
		{Title: "One", Artist: "A", CatalogURI: "spotify:track:1", Found: true},
		{Title: "Two", CatalogURI: "spotify:track:2", Found: true},
		{Title: "Three", Artist: "C"},
	}
	if len(songs) != len(want) {
		t.Fatalf("matched %d songs, want %d", len(songs), len(want))
	}
	for i := range want {
		if songs[i] != want[i] {
			t.Errorf("song[%d] = %+v, want %+v", i, songs[i], want[i])
		}
		if err := songs[i].Validate(); err != nil {
			t.Error(err)
		}
	}
}

func TestConverter_ConcurrentSearchKeepsOrder(t *testing.T) {
	var cands []models.Candidate
	results := map[string][]models.CatalogTrack{}
	for i := range 20 {
		title := fmt.Sprintf("Song%02d", i)
		cands = append(cands, models.Candidate{Title: title})
		if i%3 != 0 {
			results[title] = []models.CatalogTrack{{URI: "spotify:track:" + title}}
		}
	}
	rec := &tu.StubRecognizer{Candidates: cands}
	cat := &tu.StubCatalog{Results: results}
	updates := make(chan ProgressUpdate, 64)
	conv := NewConverter(rec, cat, &tu.StubPlaylists{}, account(), Options{Workers: 4, Progress: updates})

	if err := conv.Start(context.Background(), testURL); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	songs := conv.Session().MatchedSongs
	for i, song := range songs {
		if song.Title != cands[i].Title {
			t.Fatalf("song[%d] = %q, want %q", i, song.Title, cands[i].Title)
		}
		if song.Found != (i%3 != 0) {
			t.Errorf("song[%d].Found = %t", i, song.Found)
		}
	}
	if len(cat.Queries()) != 20 {
		t.Errorf("searched %d times, want 20", len(cat.Queries()))
	}

	close(updates)
	var searched int
	for u := range updates {
		if u.Phase == models.PhaseSearching && u.Step > 0 {
			searched++
		}
	}
	if searched != 20 {
		t.Errorf("search progress updates = %d, want 20", searched)
	}
}

func TestConverter_MatchCache(t *testing.T) {
	cache := &memCache{}
	rec := &tu.StubRecognizer{Candidates: []models.Candidate{{Title: "Hit", Artist: "Band"}}}
	cat := &tu.StubCatalog{Results: map[string][]models.CatalogTrack{
		"Hit Band": {{URI: "spotify:track:hit"}},
	}}
	conv := NewConverter(rec, cat, &tu.StubPlaylists{}, account(), Options{Cache: cache})

	for range 2 {
		if err := conv.Start(context.Background(), testURL); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if got := conv.Session().MatchedSongs[0].CatalogURI; got != "spotify:track:hit" {
			t.Errorf("uri = %q", got)
		}
		if err := conv.Cancel(); err != nil {
			t.Fatalf("Cancel() error = %v", err)
		}
	}

	if n := len(cat.Queries()); n != 1 {
		t.Errorf("searched %d times, want 1", n)
	}
}

func TestConverter_Confirm(t *testing.T) {
	preview := func(t *testing.T, cat *tu.StubCatalog, pls *tu.StubPlaylists, opts Options) *Converter {
		t.Helper()
		rec := &tu.StubRecognizer{Candidates: []models.Candidate{
			{Title: "Hit", Artist: "Band"},
			{Title: "Miss", Artist: "Band"},
		}}
		conv := NewConverter(rec, cat, pls, account(), opts)
		if err := conv.Start(context.Background(), testURL); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		return conv
	}
	found := &tu.StubCatalog{Results: map[string][]models.CatalogTrack{
		"Hit Band": {{URI: "u1"}},
	}}

	t.Run("adds only found uris", func(t *testing.T) {
		pls := &tu.StubPlaylists{}
		conv := preview(t, found, pls, Options{AppName: "Mixer", Public: true})

		if _, err := conv.Confirm(context.Background()); err != nil {
			t.Fatalf("Confirm() error = %v", err)
		}
		if fmt.Sprint(pls.Added) != "[[u1]]" {
			t.Errorf("added = %v, want [[u1]]", pls.Added)
		}
		if c := pls.Created[0]; c.Name != "Mixer: Hit" || !c.Public {
			t.Errorf("create call = %+v", c)
		}
	})

	t.Run("nothing found", func(t *testing.T) {
		pls := &tu.StubPlaylists{}
		conv := preview(t, &tu.StubCatalog{}, pls, Options{})

		_, err := conv.Confirm(context.Background())
		if !errors.Is(err, shared.ErrNoSongsFound) {
			t.Fatalf("Confirm() error = %v, want ErrNoSongsFound", err)
		}
		if creates, adds := pls.Calls(); creates != 0 || adds != 0 {
			t.Errorf("playlist calls = %d/%d, want none", creates, adds)
		}
		if s := conv.Session(); s.Outcome != models.OutcomeError || s.Message != shared.MessageNoSongsToAdd {
			t.Errorf("session = %v %q", s.Outcome, s.Message)
		}
	})

	t.Run("create fails", func(t *testing.T) {
		pls := &tu.StubPlaylists{CreateErr: &services.APIError{Op: "create", Status: 403}}
		conv := preview(t, found, pls, Options{})

		_, err := conv.Confirm(context.Background())
		var apiErr *services.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("Confirm() error = %v, want APIError", err)
		}
		if _, adds := pls.Calls(); adds != 0 {
			t.Errorf("AddTracks called after a failed create")
		}
		s := conv.Session()
		if s.Outcome != models.OutcomeError || s.Message != shared.MessageCreateError {
			t.Errorf("session = %v %q", s.Outcome, s.Message)
		}
		if len(s.MatchedSongs) != 2 {
			t.Errorf("matched songs cleared on error")
		}
	})

	t.Run("populate fails after partial add", func(t *testing.T) {
		pls := &tu.StubPlaylists{AddErr: fmt.Errorf("%w: 500", shared.ErrPlaylistPopulate)}
		conv := preview(t, found, pls, Options{})

		res, err := conv.Confirm(context.Background())
		if !errors.Is(err, shared.ErrPlaylistPopulate) {
			t.Fatalf("Confirm() error = %v, want ErrPlaylistPopulate", err)
		}
		if res == nil || res.Playlist == nil || res.Playlist.ID != "pl1" || res.TracksAdded != 0 {
			t.Errorf("result = %+v", res)
		}
		if s := conv.Session(); s.Playlist == nil || s.Outcome != models.OutcomeError {
			t.Errorf("session = %+v", s)
		}
	})

	t.Run("fills missing owner from profile", func(t *testing.T) {
		pls := &tu.StubPlaylists{}
		rec := &tu.StubRecognizer{Candidates: []models.Candidate{{Title: "Hit", Artist: "Band"}}}
		accts := &tu.StubAccounts{Acct: &models.Account{AccessToken: "tok"}}
		conv := NewConverter(rec, found, pls, accts, Options{Profiles: stubProfiles{id: "me"}})
		if err := conv.Start(context.Background(), testURL); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if _, err := conv.Confirm(context.Background()); err != nil {
			t.Fatalf("Confirm() error = %v", err)
		}
		if pls.Created[0].Owner != "me" {
			t.Errorf("owner = %q, want me", pls.Created[0].Owner)
		}
	})

	t.Run("not in preview", func(t *testing.T) {
		conv := NewConverter(&tu.StubRecognizer{}, found, &tu.StubPlaylists{}, account(), Options{})
		if _, err := conv.Confirm(context.Background()); !errors.Is(err, shared.ErrInvalidState) {
			t.Errorf("Confirm() error = %v, want ErrInvalidState", err)
		}
	})
}

func TestConverter_Cancel(t *testing.T) {
	t.Run("from preview", func(t *testing.T) {
		rec := &tu.StubRecognizer{Candidates: []models.Candidate{{Title: "Hit"}}}
		cat := &tu.StubCatalog{Results: map[string][]models.CatalogTrack{"Hit": {{URI: "u1"}}}}
		pls := &tu.StubPlaylists{}
		hist := &memHistory{}
		conv := NewConverter(rec, cat, pls, account(), Options{History: hist})

		if err := conv.Start(context.Background(), testURL); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if err := conv.Cancel(); err != nil {
			t.Fatalf("Cancel() error = %v", err)
		}
		if creates, adds := pls.Calls(); creates != 0 || adds != 0 {
			t.Errorf("playlist calls = %d/%d, want none", creates, adds)
		}
		s := conv.Session()
		if s.Phase != models.PhaseIdle || s.Outcome != models.OutcomeCancelled {
			t.Errorf("session = %v/%v", s.Phase, s.Outcome)
		}
		if s.YouTubeURL != "" || len(s.MatchedSongs) != 0 {
			t.Errorf("session not cleared")
		}
		if recs := hist.all(); len(recs) != 1 || recs[0].Outcome != models.OutcomeCancelled {
			t.Errorf("history = %+v", recs)
		}
		if _, err := conv.Confirm(context.Background()); !errors.Is(err, shared.ErrInvalidState) {
			t.Errorf("Confirm() after cancel error = %v", err)
		}
	})

	t.Run("while recognizing", func(t *testing.T) {
		gate := make(chan struct{})
		rec := &tu.StubRecognizer{Gate: gate, Candidates: []models.Candidate{{Title: "Hit"}}}
		cat := &tu.StubCatalog{}
		conv := NewConverter(rec, cat, &tu.StubPlaylists{}, account(), Options{})

		done := make(chan error, 1)
		go func() { done <- conv.Start(context.Background(), testURL) }()
		waitForPhase(t, conv, models.PhaseRecognizing)

		if err := conv.Cancel(); err != nil {
			t.Fatalf("Cancel() error = %v", err)
		}
		close(gate)

		if err := <-done; !errors.Is(err, shared.ErrConversionCancelled) {
			t.Errorf("Start() error = %v, want ErrConversionCancelled", err)
		}
		if len(cat.Queries()) != 0 {
			t.Errorf("late recognition result was searched")
		}
		if s := conv.Session(); s.Phase != models.PhaseIdle || s.Outcome != models.OutcomeCancelled {
			t.Errorf("session = %v/%v", s.Phase, s.Outcome)
		}
	})

	t.Run("when idle", func(t *testing.T) {
		conv := NewConverter(&tu.StubRecognizer{}, &tu.StubCatalog{}, &tu.StubPlaylists{}, account(), Options{})
		if err := conv.Cancel(); !errors.Is(err, shared.ErrInvalidState) {
			t.Errorf("Cancel() error = %v, want ErrInvalidState", err)
		}
	})
}

func TestConverter_CancelPreview(t *testing.T) {
	t.Run("from preview", func(t *testing.T) {
		rec := &tu.StubRecognizer{Candidates: []models.Candidate{{Title: "Hit"}}}
		cat := &tu.StubCatalog{Results: map[string][]models.CatalogTrack{"Hit": {{URI: "u1"}}}}
		pls := &tu.StubPlaylists{}
		conv := NewConverter(rec, cat, pls, account(), Options{})

		if err := conv.Start(context.Background(), testURL); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if err := conv.CancelPreview(); err != nil {
			t.Fatalf("CancelPreview() error = %v", err)
		}
		if s := conv.Session(); s.Phase != models.PhaseIdle || s.Outcome != models.OutcomeCancelled {
			t.Errorf("session = %v/%v", s.Phase, s.Outcome)
		}
		if creates, adds := pls.Calls(); creates != 0 || adds != 0 {
			t.Errorf("playlist calls = %d/%d, want none", creates, adds)
		}
	})

	t.Run("while recognizing", func(t *testing.T) {
		gate := make(chan struct{})
		rec := &tu.StubRecognizer{Gate: gate, Candidates: []models.Candidate{{Title: "Hit"}}}
		cat := &tu.StubCatalog{Results: map[string][]models.CatalogTrack{"Hit": {{URI: "u1"}}}}
		conv := NewConverter(rec, cat, &tu.StubPlaylists{}, account(), Options{})

		done := make(chan error, 1)
		go func() { done <- conv.Start(context.Background(), testURL) }()
		waitForPhase(t, conv, models.PhaseRecognizing)

		if err := conv.CancelPreview(); !errors.Is(err, shared.ErrInvalidState) {
			t.Errorf("CancelPreview() error = %v, want ErrInvalidState", err)
		}
		close(gate)
		if err := <-done; err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if got := conv.Session().Phase; got != models.PhasePreview {
			t.Errorf("phase = %v, want preview", got)
		}
	})

	t.Run("after confirm keeps the playlist", func(t *testing.T) {
		rec := &tu.StubRecognizer{Candidates: []models.Candidate{{Title: "Hit"}}}
		cat := &tu.StubCatalog{Results: map[string][]models.CatalogTrack{"Hit": {{URI: "u1"}}}}
		pls := &tu.StubPlaylists{}
		conv := NewConverter(rec, cat, pls, account(), Options{})

		if err := conv.Start(context.Background(), testURL); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if _, err := conv.Confirm(context.Background()); err != nil {
			t.Fatalf("Confirm() error = %v", err)
		}
		if err := conv.CancelPreview(); !errors.Is(err, shared.ErrInvalidState) {
			t.Errorf("CancelPreview() error = %v, want ErrInvalidState", err)
		}
		if s := conv.Session(); s.Outcome != models.OutcomeSuccess {
			t.Errorf("outcome = %v, want success", s.Outcome)
		}
	})

	t.Run("racing confirm", func(t *testing.T) {
		for range 50 {
			rec := &tu.StubRecognizer{Candidates: []models.Candidate{{Title: "Hit"}}}
			cat := &tu.StubCatalog{Results: map[string][]models.CatalogTrack{"Hit": {{URI: "u1"}}}}
			pls := &tu.StubPlaylists{}
			conv := NewConverter(rec, cat, pls, account(), Options{})
			if err := conv.Start(context.Background(), testURL); err != nil {
				t.Fatalf("Start() error = %v", err)
			}

			var wg sync.WaitGroup
			var confirmErr error
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, confirmErr = conv.Confirm(context.Background())
			}()
			go func() {
				defer wg.Done()
				_ = conv.CancelPreview()
			}()
			wg.Wait()

			creates, _ := pls.Calls()
			s := conv.Session()
			if confirmErr == nil && (s.Outcome != models.OutcomeSuccess || creates != 1) {
				t.Fatalf("confirm succeeded but outcome = %v, creates = %d", s.Outcome, creates)
			}
			if confirmErr != nil && (s.Outcome != models.OutcomeCancelled || creates != 0) {
				t.Fatalf("confirm lost (%v) but outcome = %v, creates = %d", confirmErr, s.Outcome, creates)
			}
		}
	})
}

func TestConverter_Watch(t *testing.T) {
	gate := make(chan struct{})
	rec := &tu.StubRecognizer{Gate: gate, Candidates: []models.Candidate{{Title: "Hit"}}}
	conv := NewConverter(rec, &tu.StubCatalog{}, &tu.StubPlaylists{}, account(), Options{})

	s, changed := conv.Watch()
	if s.Phase != models.PhaseIdle {
		t.Fatalf("phase = %v, want idle", s.Phase)
	}
	if err := conv.Begin(context.Background(), testURL); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	select {
	case <-changed:
	default:
		t.Fatal("Begin did not signal a change")
	}

	s, changed = conv.Watch()
	if s.Phase != models.PhaseRecognizing {
		t.Fatalf("phase = %v, want recognizing", s.Phase)
	}
	done := make(chan error, 1)
	go func() { done <- conv.Run(context.Background()) }()
	close(gate)

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not signal a change")
	}
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if s, _ := conv.Watch(); s.Phase != models.PhasePreview {
		t.Errorf("phase = %v, want preview", s.Phase)
	}
}

func TestConverter_Reset(t *testing.T) {
	rec := &tu.StubRecognizer{}
	conv := NewConverter(rec, &tu.StubCatalog{}, &tu.StubPlaylists{}, account(), Options{})
	_ = conv.Start(context.Background(), testURL)

	if err := conv.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if s := conv.Session(); s.Outcome != models.OutcomeNone || s.Message != "" {
		t.Errorf("session after reset = %+v", s)
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		cand models.Candidate
		want string
	}{
		{models.Candidate{Title: "Song", Artist: "Artist"}, "Song Artist"},
		{models.Candidate{Title: " Song ", Artist: " "}, "Song"},
		{models.Candidate{Artist: "Artist"}, ""},
	}
	for _, tt := range tests {
		if got := BuildQuery(tt.cand); got != tt.want {
			t.Errorf("BuildQuery(%+v) = %q, want %q", tt.cand, got, tt.want)
		}
	}
}

func TestPlaylistName(t *testing.T) {
	songs := []models.MatchedSong{{Title: "First"}, {Title: "Second"}}
	if got := PlaylistName("App", songs); got != "App: First" {
		t.Errorf("PlaylistName() = %q", got)
	}
	if got := PlaylistName("", nil); got != DefaultAppName+": Playlist" {
		t.Errorf("PlaylistName() = %q", got)
	}
}

func TestProgressUpdate_NonBlocking(t *testing.T) {
	updates := make(chan ProgressUpdate) // unbuffered, never read
	rec := &tu.StubRecognizer{Candidates: []models.Candidate{{Title: "A"}, {Title: "B"}}}
	conv := NewConverter(rec, &tu.StubCatalog{}, &tu.StubPlaylists{}, account(), Options{Progress: updates})

	done := make(chan error, 1)
	go func() { done <- conv.Start(context.Background(), testURL) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start blocked on progress channel")
	}
}
