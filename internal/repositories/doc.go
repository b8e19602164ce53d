// Package repositories implements SQLite persistence for the conversion pipeline.
//
// Key Implementations:
//   - [TokenRepository] : Spotify credentials per local user, consumed by services.Accounts
//   - [ConversionRepository] : Finished conversions and their matched songs, with soft deletes
//   - [MatchCacheRepository] : Catalog matches keyed by normalized "title|artist"
//
// Conversions carry a sequence number, generated by [NextSequence] from a dedicated sequence table,
// giving history a stable order independent of UUIDs and timestamps.
package repositories
