package recognition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/yt2spotify/internal/models"
	"github.com/desertthunder/yt2spotify/internal/shared"
)

// Recognizer turns a YouTube URL into the songs heard in its audio.
type Recognizer interface {
	// Recognize returns candidates in provider order. It is invoked once per attempt.
	Recognize(ctx context.Context, youtubeURL string) ([]models.Candidate, error)

	// Name identifies the provider in logs and history.
	Name() string
}

// ServiceError reports a non-success answer from a recognition provider.
type ServiceError struct {
	Provider string
	Status   int    // HTTP status of the response
	Code     int    // provider error code, 0 when absent
	Message  string // provider error message
	Payload  string // redacted response body
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %v (status %d", e.Provider, shared.ErrRecognitionService, e.Status)
	if e.Code != 0 {
		fmt.Fprintf(&b, ", code %d", e.Code)
	}
	b.WriteString(")")
	if e.Message != "" {
		b.WriteString(": " + shared.Redact(e.Message))
	}
	return b.String()
}

func (e *ServiceError) Unwrap() error { return shared.ErrRecognitionService }

func validateURL(youtubeURL string) error {
	if strings.TrimSpace(youtubeURL) == "" {
		return fmt.Errorf("%w: youtube url is required", shared.ErrValidation)
	}
	return nil
}

func noSongs(provider string) error {
	return fmt.Errorf("%s: %w", provider, shared.ErrNoSongsRecognized)
}

func transportErr(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w: %w", provider, shared.ErrTransport, shared.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", provider, shared.ErrTransport, err)
}

// readBody reads at most 1 MiB of resp's body.
func readBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

func ok(status int) bool { return status >= 200 && status < 300 }

func discardLogger(l *log.Logger) *log.Logger {
	if l == nil {
		return log.New(io.Discard)
	}
	return l
}

// logResult writes the single diagnostic event emitted per provider call.
func logResult(l *log.Logger, provider string, status int, n int, started time.Time, err error) {
	kv := []any{"provider", provider, "status", status, "candidates", n, "duration", time.Since(started).Round(time.Millisecond)}
	if err != nil {
		l.Warn("recognition failed", append(kv, "error", shared.Redact(err.Error()))...)
		return
	}
	l.Info("recognition finished", kv...)
}
