// Package tasks orchestrates a YouTube to Spotify conversion with real-time progress reporting.
//
// # Lifecycle
//
// A [Converter] holds a single session that moves through these phases:
//
//	idle -> recognizing -> searching -> preview -> creating -> idle
//
//  1. [Converter.Start] : validate the URL and account, recognize songs, then search each one
//  2. [Converter.Confirm] : create the playlist and add every found track
//  3. [Converter.Cancel] : abandon the session from any busy phase
//
// Every return to idle carries an outcome (success, error, cancelled) and a user-facing message.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct is sent on the optional Options.Progress channel.
// Updates use select with default so a slow reader never stalls a conversion.
//
// # Match Caching
//
// The optional [MatchCache] short-circuits catalog searches for songs seen before.
// Cache write failures are logged and ignored.
package tasks
