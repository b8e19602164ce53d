// Package services talks to the Spotify Web API on behalf of a signed-in user.
//
// # Clients
//
// [Spotify] implements [Catalog] (track search) and [Playlists] (create, populate, profile)
// on top of github.com/zmb3/spotify/v2. Every call takes the caller's access token, so one
// [Spotify] value serves any number of accounts.
//
// [OAuth] builds the authorization URL and exchanges codes for tokens using the
// spotifyauth endpoints. [Accounts] resolves the stored account a conversion runs as.
//
// # Error Handling
//
// Provider responses with a non-success status become an [APIError] carrying the status
// and wrapping one of:
//   - [shared.ErrCatalogSearch] : search rejected
//   - [shared.ErrPlaylistCreate] : playlist creation rejected
//   - [shared.ErrPlaylistPopulate] : adding tracks rejected
//
// Requests that never produce a response wrap [shared.ErrTransport].
// Nothing is retried.
package services
