// Package models defines the domain entities of a YouTube to Spotify conversion.
//
// The package contains two categories of types:
//
// 1. Pipeline values passed between the recognition, catalog and playlist clients:
//   - [Candidate] : a song the recognition provider heard in the video
//   - [CatalogTrack] : a Spotify search hit
//   - [MatchedSong] : a candidate paired with its catalog URI, or marked not found
//   - [PlaylistHandle] : a playlist created on the user's account
//   - [Session] : a read-only snapshot of one conversion
//
// 2. Persistent entities stored in SQLite:
//   - [TokenRecord] : Spotify credentials for a local user
//   - [ConversionRecord] : a finished conversion with its matched songs
//   - [CachedMatch] : a remembered catalog match keyed by normalized title and artist
//
// Persistent entities implement [Model]; [Repository] describes their stores.
package models
