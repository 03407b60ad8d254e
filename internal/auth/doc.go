// Package auth implements the session manager for the Spotify Web API: OAuth2 Authorization Code with PKCE,
// durable credential storage, refresh, and authenticated resource calls.
//
// # Two-phase login
//
// [Manager.Login] generates a code verifier, its S256 challenge and a state nonce, persists the verifier and state as a
// [PendingAuthorization] in the [Store], and navigates the browser to the authorization endpoint. The process that
// receives the redirect (the local callback server, or a later `auth callback` invocation) calls
// [Manager.HandleCallback], which consumes the pending authorization exactly once, compares the state, and exchanges
// the code through an [Exchanger]. Because the intermediate state lives in the Store, the two phases may run in
// different processes.
//
// # Exchangers
//
// [DirectExchanger] talks to the token endpoint with [oauth2.Config] (public PKCE client, optional secret).
// [RelayExchanger] posts to a relay that holds the confidential client secret:
//
//	POST /api/token   {code, code_verifier} -> {access_token, expires_in, refresh_token}
//	POST /api/refresh {refresh_token}       -> {access_token, expires_in, refresh_token?}
//
// # Credential lifecycle
//
// The in-memory [Credential] is the source of truth; every change is written through to the Store under the keys
// code_verifier, auth_state, access_token, refresh_token and token_expiration (epoch milliseconds).
// [Manager.IsAuthenticated] applies a safety skew (5 minutes by default) before expiry.
// [Manager.Refresh] never replaces a refresh token with an absent one, and concurrent callers share a single
// in-flight refresh. An upstream refresh rejection clears the credential.
//
// # Authenticated calls
//
// [Manager.CallAPI] serves live cached GET responses without I/O, refreshes stale credentials, throttles with a
// [rate.Limiter], and retries: 429 waits for Retry-After (default 10s), 401 triggers one refresh and one retry, other
// failures back off exponentially from 2s. Every attempt except the post-refresh retry counts against a budget of 3.
//
// Errors unwrap to the sentinels in the shared package: [shared.ErrStateMismatch], [shared.ErrNoRefreshToken],
// [shared.ErrAuthenticationExpired], [shared.ErrAuthFailed], [shared.ErrRefreshFailed] and [shared.ErrAPIRequest].
package auth
