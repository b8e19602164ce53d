// package formatter exports conversion results to CSV, Markdown, JSON and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/yt2spotify/internal/models"
)

// Export is a conversion result ready to be written out.
type Export struct {
	YouTubeURL string                 `json:"youtube_url"`
	Playlist   *models.PlaylistHandle `json:"playlist,omitempty"`
	Songs      []models.MatchedSong   `json:"songs"`
}

// FromRecord builds an [Export] from a stored conversion.
func FromRecord(rec *models.ConversionRecord) *Export {
	return &Export{YouTubeURL: rec.YouTubeURL, Playlist: rec.Playlist, Songs: rec.Songs}
}

// FromSession builds an [Export] from a live session snapshot.
func FromSession(s models.Session) *Export {
	return &Export{YouTubeURL: s.YouTubeURL, Playlist: s.Playlist, Songs: s.MatchedSongs}
}

// Mark returns the check or cross shown next to a song.
func Mark(found bool) string {
	if found {
		return "✓"
	}
	return "✗"
}

// SongLabel renders "Artist - Title", or the title alone.
func SongLabel(s models.MatchedSong) string {
	if s.Artist == "" {
		return s.Title
	}
	return s.Artist + " - " + s.Title
}

// ExportToCSV converts an Export to CSV format with columns: Position, Title, Artist, Found, Spotify URI
func ExportToCSV(export *Export) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Title", "Artist", "Found", "Spotify URI"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, song := range export.Songs {
		record := []string{
			strconv.Itoa(i + 1),
			song.Title,
			song.Artist,
			strconv.FormatBool(song.Found),
			song.CatalogURI,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts an Export to Markdown with a linked playlist heading when one exists
func ExportToMarkdown(export *Export) ([]byte, error) {
	var buf bytes.Buffer

	switch {
	case export.Playlist != nil && export.Playlist.URL != "":
		fmt.Fprintf(&buf, "# [%s](%s)\n\n", export.Playlist.Name, export.Playlist.URL)
	case export.Playlist != nil:
		fmt.Fprintf(&buf, "# %s\n\n", export.Playlist.Name)
	default:
		buf.WriteString("# Recognized Songs\n\n")
	}

	if export.YouTubeURL != "" {
		fmt.Fprintf(&buf, "**Source**: <%s>\n", export.YouTubeURL)
	}
	fmt.Fprintf(&buf, "**Found**: %d of %d\n\n", models.CountFound(export.Songs), len(export.Songs))

	buf.WriteString("## Songs\n\n")
	buf.WriteString("| # | Song | Spotify |\n")
	buf.WriteString("|---|------|---------|\n")
	for i, song := range export.Songs {
		uri := "not found"
		if song.Found {
			uri = "`" + song.CatalogURI + "`"
		}
		label := strings.ReplaceAll(SongLabel(song), "|", `\|`)
		fmt.Fprintf(&buf, "| %d | %s | %s |\n", i+1, label, uri)
	}

	return buf.Bytes(), nil
}

// ExportToText converts an Export to plain text format
func ExportToText(export *Export) ([]byte, error) {
	var buf bytes.Buffer

	if export.Playlist != nil {
		fmt.Fprintf(&buf, "Playlist: %s\n", export.Playlist.Name)
		if export.Playlist.URL != "" {
			fmt.Fprintf(&buf, "URL: %s\n", export.Playlist.URL)
		}
	}
	if export.YouTubeURL != "" {
		fmt.Fprintf(&buf, "Source: %s\n", export.YouTubeURL)
	}
	fmt.Fprintf(&buf, "Found: %d of %d\n\n", models.CountFound(export.Songs), len(export.Songs))

	for i, song := range export.Songs {
		fmt.Fprintf(&buf, "%2d. %s %s\n", i+1, Mark(song.Found), SongLabel(song))
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts an Export to indented JSON
func ExportToJSON(export *Export) ([]byte, error) {
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// Render picks a format by name: csv, md (or markdown), json or txt (or text).
func Render(export *Export, format string) ([]byte, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "csv":
		return ExportToCSV(export)
	case "md", "markdown":
		return ExportToMarkdown(export)
	case "json":
		return ExportToJSON(export)
	case "txt", "text", "":
		return ExportToText(export)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteExport writes export to path using the format implied by its extension.
//
// Unknown or missing extensions write plain text.
func WriteExport(export *Export, path string) error {
	format := filepath.Ext(path)
	switch strings.ToLower(format) {
	case ".csv", ".md", ".markdown", ".json", ".txt":
	default:
		format = "txt"
	}

	data, err := Render(export, format)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}
