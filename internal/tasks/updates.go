package tasks

import (
	"fmt"

	"github.com/desertthunder/yt2spotify/internal/models"
)

// ProgressUpdate represents a progress event during a conversion.
//
// Used to send real-time updates to the CLI, TUI or web layer for display.
type ProgressUpdate struct {
	SessionID string       `json:"session_id"`
	Phase     models.Phase `json:"phase"`
	Step      int          `json:"step"`              // Current step number within phase
	Total     int          `json:"total"`             // Total steps in this phase
	Message   string       `json:"message"`           // Human-readable message for display
	Data      any          `json:"data,omitempty"`    // Optional phase-specific data for advanced UIs
	Outcome   string       `json:"outcome,omitempty"` // Set when the conversion returns to idle
}

// Done reports whether the update closes a conversion step that returned to idle.
func (u ProgressUpdate) Done() bool {
	return u.Phase == models.PhaseIdle
}

func recognizingUpdate(url string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   models.PhaseRecognizing,
		Step:    0,
		Total:   1,
		Message: "Listening for songs in the video...",
		Data:    url,
	}
}

func recognizedUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   models.PhaseSearching,
		Step:    0,
		Total:   count,
		Message: fmt.Sprintf("Recognized %d songs, searching Spotify...", count),
	}
}

func searchUpdate(step, total int, song models.MatchedSong) ProgressUpdate {
	mark := "✗"
	if song.Found {
		mark = "✓"
	}
	label := song.Title
	if song.Artist != "" {
		label = song.Artist + " - " + song.Title
	}
	return ProgressUpdate{
		Phase:   models.PhaseSearching,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s", step, total, mark, label),
		Data:    song,
	}
}

func previewUpdate(songs []models.MatchedSong) ProgressUpdate {
	found := models.CountFound(songs)
	return ProgressUpdate{
		Phase:   models.PhasePreview,
		Step:    found,
		Total:   len(songs),
		Message: fmt.Sprintf("Found %d of %d songs on Spotify", found, len(songs)),
		Data:    songs,
	}
}

func creatingUpdate(step int, message string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   models.PhaseCreating,
		Step:    step,
		Total:   2,
		Message: message,
	}
}

func finishedUpdate(outcome models.Outcome, message string, data any) ProgressUpdate {
	return ProgressUpdate{
		Phase:   models.PhaseIdle,
		Step:    1,
		Total:   1,
		Message: message,
		Data:    data,
		Outcome: outcome.String(),
	}
}
