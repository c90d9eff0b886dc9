// Package server provides HTTP routing, middleware, and the OAuth callback handler for the CLI login flow.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// CallbackHandler implements the OAuth 1.0a authorization callback.
//
// The handler validates the echoed oauth_token against the pending request token, captures the oauth_verifier,
// and sends the result through a channel. The signed access token exchange happens elsewhere, in the catalog
// client, because it needs the consumer secret.
//
// It only processes one callback to prevent replay attacks.
//
// # Current Usage
//
// The server package currently supports the CLI login flow for Discogs authorization.
// When the user runs `crates auth login`, a temporary HTTP server starts on localhost, handles the callback,
// and shuts down after the verifier arrives (or the two minute wait expires).
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
