// Package server provides HTTP routing, middleware, and the OAuth redirect handler used by `auth login`.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [RequestLogger] and [Recoverer] are the middleware the CLI installs.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns.
//
// # Callback Handler
//
// [CallbackHandler] receives the authorization server's redirect and hands the URL to a [CallbackCompleter]
// (the auth session manager), which validates state and exchanges the code. The result is delivered once on a
// channel and the browser is redirected to a landing page without the query string.
//
// It only processes one callback to prevent replay attacks.
//
// # Usage
//
// When the user runs `auth login`, [Listen] binds the configured host and port (127.0.0.1:3000 by default) before
// the browser opens, the handler waits for the redirect, and the server shuts down after the result arrives or
// the two minute timeout elapses.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
