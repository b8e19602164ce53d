package models

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestMatchedSong(t *testing.T) {
	c := Candidate{Title: "Song A", Artist: "Artist A"}

	t.Run("Found with uri", func(t *testing.T) {
		m := Found(c, "spotify:track:1")
		if !m.Found || m.CatalogURI != "spotify:track:1" {
			t.Errorf("unexpected %+v", m)
		}
		if err := m.Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
	})

	t.Run("Found with empty uri degrades", func(t *testing.T) {
		if m := Found(c, ""); m.Found {
			t.Errorf("expected not found, got %+v", m)
		}
	})

	t.Run("Validate rejects mismatch", func(t *testing.T) {
		bad := []MatchedSong{
			{Title: "x", Found: true},
			{Title: "y", CatalogURI: "spotify:track:2"},
		}
		for _, m := range bad {
			if err := m.Validate(); err == nil {
				t.Errorf("expected error for %+v", m)
			}
		}
	})

	t.Run("FoundURIs keeps order", func(t *testing.T) {
		songs := []MatchedSong{
			Found(c, "spotify:track:a"),
			NotFound(c),
			Found(c, "spotify:track:b"),
		}
		want := []string{"spotify:track:a", "spotify:track:b"}
		if got := FoundURIs(songs); !reflect.DeepEqual(got, want) {
			t.Errorf("FoundURIs() = %v, want %v", got, want)
		}
		if CountFound(songs) != 2 {
			t.Errorf("CountFound() = %d", CountFound(songs))
		}
	})
}

func TestCandidate(t *testing.T) {
	if (Candidate{Title: "  "}).Usable() {
		t.Error("blank title should not be usable")
	}
	a := Candidate{Title: "Hello  World", Artist: "Adele"}
	b := Candidate{Title: "hello world", Artist: " ADELE "}
	if a.Key() != b.Key() {
		t.Errorf("keys differ: %q vs %q", a.Key(), b.Key())
	}
}

func TestPhaseAndOutcome(t *testing.T) {
	names := map[Phase]string{
		PhaseIdle: "idle", PhaseRecognizing: "recognizing", PhaseSearching: "searching",
		PhasePreview: "preview", PhaseCreating: "creating",
	}
	for p, want := range names {
		if p.String() != want {
			t.Errorf("%d.String() = %q, want %q", p, p.String(), want)
		}
	}

	if PhaseIdle.Busy() || PhasePreview.Busy() || !PhaseCreating.Busy() {
		t.Error("unexpected Busy() result")
	}

	for _, o := range []Outcome{OutcomeSuccess, OutcomeError, OutcomeCancelled} {
		if ParseOutcome(o.String()) != o {
			t.Errorf("ParseOutcome(%q) mismatch", o)
		}
	}

	data, err := json.Marshal(Session{Phase: PhasePreview, Outcome: OutcomeNone})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"phase":"preview"`) {
		t.Errorf("phase should marshal as text: %s", data)
	}
}

func TestRecords(t *testing.T) {
	t.Run("TokenRecord", func(t *testing.T) {
		now := time.Now()
		tok := &TokenRecord{UserID: "u", AccessToken: "a", ExpiresAt: now.Add(-time.Minute)}
		if !tok.Expired(now) {
			t.Error("expected expired")
		}
		if (&TokenRecord{UserID: "u", AccessToken: "a"}).Expired(now) {
			t.Error("zero expiry never expires")
		}
		if err := (&TokenRecord{UserID: "u"}).Validate(); err == nil {
			t.Error("expected missing access token error")
		}
	})

	t.Run("ConversionRecord", func(t *testing.T) {
		rec := &ConversionRecord{YouTubeURL: "https://youtu.be/x", Outcome: OutcomeSuccess}
		if err := rec.Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
		rec.Songs = []MatchedSong{{Title: "bad", Found: true}}
		if err := rec.Validate(); err == nil {
			t.Error("expected invalid song error")
		}
		if err := (&ConversionRecord{YouTubeURL: "u"}).Validate(); err == nil {
			t.Error("expected missing outcome error")
		}
	})
}
