// Package server provides HTTP routing, the /status health endpoint, and
// the OAuth callback handling used by the CLI.
//
// # Router Infrastructure
//
// [Router] wraps [http.ServeMux] with method filtering and a [Middleware]
// stack applied in reverse order (last added wraps first), following the
// standard Go pattern. Custom handlers implement the [Handler] interface,
// which extends the stdlib handler with a Routes method so handlers own
// their route definitions.
//
// # Status Endpoint
//
// [StatusHandler] exposes the sync loop's pass counters as JSON at
// GET /status. The monitoring package's application check reads this shape
// to decide whether the sync process is healthy. It is mounted either by
// `spondex sync run --serve-status` alongside the loop, or left off for
// fire-and-forget single passes.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization-code callback flow for
// Spotify. The handler validates the state parameter (CSRF protection),
// exchanges the code through an [ExchangeFunc], and delivers the result
// through a channel consumed by `spondex auth login`. Only one callback is
// processed per flow to prevent replay.
//
// [Serve] runs the assembled router until its context is canceled, then
// shuts down gracefully, giving in-flight requests a short grace period.
package server
