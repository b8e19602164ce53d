// Package server provides the OAuth callback used by `yt2spotify auth login`.
//
// # Routing
//
// [CallbackMux] mounts a [Handler] for GET on each of its routes and answers anything else
// with a plain notice. [Chain] applies [Middleware] with the first one outermost.
//
// # OAuth Callback Handler
//
// [OAuthHandler] validates the state parameter, exchanges the authorization code for tokens,
// and sends the result through a channel. It only processes one callback.
//
// [CallbackServer] binds the host of the configured redirect URI (127.0.0.1:3000 by default),
// serves the handler until a result arrives, and shuts down.
//
// The long-running web API lives in internal/web.
package server
