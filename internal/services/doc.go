// Package services defines the [Client] interface for music streaming providers and implements it for Spotify and Yandex Music.
//
// # Client Interface
//
// Both providers implement a common capability set, so the sync engine works
// uniformly against either side. Responses are translated into the
// service-neutral [Track], [Playlist], [Album] and [Artist] DTOs at this
// boundary; raw API shapes never escape the package.
//
// # Spotify Implementation
//
// [SpotifyClient] uses OAuth2 for authentication with automatic token refresh.
//
// The [oauth2.Config.Client] transport refreshes expired tokens using the
// refresh token. Tokens are persisted to disk between runs via
// [SaveSpotifyToken] and [LoadSpotifyToken].
//
// # Yandex Music Implementation
//
// [YandexClient] talks to the public REST API with a static OAuth token in
// the Authorization header. Responses arrive in a {"result": ...} envelope.
// Liked track listings are bare id pairs and are hydrated into full track
// objects in batches.
//
// # Retries and Pacing
//
// Every request passes through a per-client [RetryPolicy] (exponential
// backoff plus jitter) and a rate limiter, so callers never deal with
// transient failures or pacing themselves.
//
// # Error Handling
//
// Clients use typed errors from the shared package:
//   - [shared.ErrMissingCredentials] : constructor called without credentials
//   - [shared.ErrNotAuthenticated] : the service rejected the token
//   - [shared.ErrAPIRequest] : the service returned an error status
package services
