// Package server runs the short-lived local HTTP server that receives the OAuth2 callback during
// `tempox auth`.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [Middleware] wraps handlers
// in reverse order (last added executes first). [BasicRouter] uses [http.ServeMux] method patterns.
//
// # OAuth Callback Handler
//
// [OAuthHandler] validates the state parameter, exchanges the authorization code for a token, and
// sends the result through a channel. It processes a single callback; later requests are rejected.
//
// # Callback Server
//
// [CallbackServer] binds the configured host and port, serves the router until a result arrives
// or the context ends, and is then shut down by the caller.
package server
