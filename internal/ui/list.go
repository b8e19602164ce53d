package ui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/yt2spotify/internal/models"
)

var _ list.Item = songItem{}

// songItem wraps [models.MatchedSong] to implement [list.Item].
type songItem struct {
	song models.MatchedSong
}

func (i songItem) FilterValue() string { return i.song.Title }
func (i songItem) Title() string       { return styles.mark(i.song.Found) + " " + i.song.Title }
func (i songItem) Description() string {
	desc := i.song.Artist
	if desc == "" {
		desc = "Unknown artist"
	}
	if !i.song.Found {
		return desc + " • not found on Spotify"
	}
	return desc + " • " + i.song.CatalogURI
}

func songItems(songs []models.MatchedSong) []list.Item {
	items := make([]list.Item, len(songs))
	for i, s := range songs {
		items[i] = songItem{song: s}
	}
	return items
}
