package shared

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNormalizeTrackKey(t *testing.T) {
	tc := []struct {
		name   string
		title  string
		artist string
		want   string
	}{
		{name: "basic normalization", title: "Song Title", artist: "Artist Name", want: "song title|artist name"},
		{name: "extra whitespace", title: "  Song   Title  ", artist: "  Artist   Name  ", want: "song title|artist name"},
		{name: "mixed case", title: "SoNg TiTlE", artist: "ArTiSt NaMe", want: "song title|artist name"},
		{name: "missing artist", title: "Song", artist: "", want: "song|"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTrackKey(tt.title, tt.artist)
			if got != tt.want {
				t.Errorf("NormalizeTrackKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRedact(t *testing.T) {
	tc := []struct {
		name    string
		in      string
		leaked  string
		keepAll bool
	}{
		{name: "form body", in: "api_token=secret123&url=https://youtu.be/x", leaked: "secret123"},
		{name: "json body", in: `{"access_token":"tok-abc","expires_in":3600}`, leaked: "tok-abc"},
		{name: "bearer header", in: "Authorization: Bearer xyz.987", leaked: "xyz.987"},
		{name: "nothing to hide", in: `{"status":"error"}`, keepAll: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := Redact(tt.in)
			if tt.keepAll {
				if got != tt.in {
					t.Errorf("Redact() changed %q to %q", tt.in, got)
				}
				return
			}
			if strings.Contains(got, tt.leaked) {
				t.Errorf("Redact() = %q, still contains %q", got, tt.leaked)
			}
			if !strings.Contains(got, "[REDACTED]") {
				t.Errorf("Redact() = %q, expected marker", got)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate() = %q", got)
	}
	if got := Truncate("a long title here", 8); got != "a lon..." {
		t.Errorf("Truncate() = %q", got)
	}
}

func TestLogging(t *testing.T) {
	t.Run("ParseLogLevel", func(t *testing.T) {
		cases := map[string]log.Level{
			"debug": log.DebugLevel, "WARN": log.WarnLevel, "error": log.ErrorLevel, "": log.InfoLevel, "bogus": log.InfoLevel,
		}
		for in, want := range cases {
			if got := ParseLogLevel(in); got != want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
			}
		}
	})

	t.Run("WithLogger adds fields", func(t *testing.T) {
		var buf bytes.Buffer
		l := WithLogger(NewLogger(&buf), "provider", "audd")
		l.Info("recognized")
		if !strings.Contains(buf.String(), "provider=audd") {
			t.Errorf("expected field in output, got %q", buf.String())
		}
	})
}

func TestUserMessage(t *testing.T) {
	tc := []struct {
		err  error
		want string
	}{
		{err: fmt.Errorf("audd: %w", ErrNoSongsRecognized), want: MessageNoMusic},
		{err: fmt.Errorf("%w: status 500", ErrRecognitionService), want: MessageRecognizeError},
		{err: ErrNoSongsFound, want: MessageNoSongsToAdd},
		{err: fmt.Errorf("%w: 403", ErrPlaylistCreate), want: MessageCreateError},
		{err: fmt.Errorf("%w: 502", ErrPlaylistPopulate), want: MessageCreateError},
		{err: ErrTransport, want: MessageGenericError},
		{err: nil, want: ""},
	}

	for _, tt := range tc {
		if got := UserMessage(tt.err); got != tt.want {
			t.Errorf("UserMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}

	if UserMessage(ErrNoSongsRecognized) == UserMessage(ErrRecognitionService) {
		t.Error("no-songs and service failure must read differently")
	}
}

func TestOpenBrowserUnsupported(t *testing.T) {
	orig := getRuntime
	defer func() { getRuntime = orig }()
	getRuntime = func() string { return "plan9" }

	if err := OpenBrowser("http://127.0.0.1"); err == nil {
		t.Error("expected error for unsupported platform")
	}
}
