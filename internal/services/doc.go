// Package services defines the [Service] interface for music providers and implements it for Spotify.
//
// # Spotify Implementation
//
// [SpotifyService] issues requests through a [Caller], normally the auth session manager, so every call inherits
// the manager's response cache, proactive refresh, 401 recovery and rate-limit handling. The service itself only
// builds endpoints and maps the Web API's JSON onto [models.Listener] and [models.Track].
//
// # Error Handling
//
// Errors from the Caller are returned wrapped, so sentinels from the shared package survive:
//   - [shared.ErrNoRefreshToken] : no session, the user must log in
//   - [shared.ErrAuthenticationExpired] : the session was rejected after a refresh
//   - [shared.ErrAPIRequest] : the retry budget was exhausted
//   - [shared.ErrInvalidArgument] : an unknown time range was requested
package services
