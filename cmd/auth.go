package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotrcpt/internal/auth"
	"github.com/desertthunder/spotrcpt/internal/server"
	"github.com/desertthunder/spotrcpt/internal/shared"
)

// AuthLogin runs the authorization flow.
//
// Binds the callback server before opening the browser, waits for the redirect (two minute timeout), and shuts the
// server down. With --manual it only prints the URL; the pending authorization is persisted so `auth callback`
// can finish it in another process.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	if cmd.Bool("no-browser") || cmd.Bool("manual") {
		r.navigate = r.printURL
	}

	if cmd.Bool("manual") {
		if _, err := r.session.Login(ctx); err != nil {
			return err
		}
		return r.writePlain("After approving, copy the address you were redirected to and run:\n  spotrcpt auth callback '<url>'\n")
	}

	redirect, err := url.Parse(r.config.Credentials.Spotify.RedirectURI)
	if err != nil {
		return fmt.Errorf("%w: redirect_uri: %v", shared.ErrInvalidConfig, err)
	}

	logger := shared.WithLogger(r.logger, "component", "callback")
	handler := server.NewCallbackHandler(r.session, redirect.Path)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(logger), server.Recoverer(logger))
	router.Handler(handler)

	addr := net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	srv, err := server.Listen(addr, router)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()
	r.logger.Debug("callback server listening", "addr", srv.Addr())

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	authURL, err := r.session.Login(ctx)
	if errors.Is(err, auth.ErrNavigation) {
		r.writePlainln("⚠ Could not open browser automatically.")
		r.printURL(authURL)
	} else if err != nil {
		return err
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", r.loginTimeout)

	timeout := time.NewTimer(r.loginTimeout)
	defer timeout.Stop()

	var result server.CallbackResult
	select {
	case result = <-handler.Result():
	case err := <-srv.Errors():
		return fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, r.loginTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := result.Error(); err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	r.writePlainln("✓ Authorization successful")
	return r.writePlain("Access token valid until %s\n", result.Credential.ExpiresAt.Local().Format(time.RFC1123))
}

// AuthCallback completes a --manual login from the redirected URL.
func (r *Runner) AuthCallback(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.StringArg("url")
	if raw == "" {
		return fmt.Errorf("%w: redirected URL", shared.ErrMissingArgument)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	if err := r.open(); err != nil {
		return err
	}

	cred, err := r.session.HandleCallback(ctx, u)
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	r.writePlain("✓ Authorization successful\n")
	return r.writePlain("Access token valid until %s\n", cred.ExpiresAt.Local().Format(time.RFC1123))
}

type authStatus struct {
	Authenticated   bool       `json:"authenticated"`
	HasAccessToken  bool       `json:"has_access_token"`
	HasRefreshToken bool       `json:"has_refresh_token"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

// AuthStatus reports the stored credential without printing any token.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	cred := r.session.Credential()
	status := authStatus{
		Authenticated:   r.session.IsAuthenticated(),
		HasAccessToken:  cred.HasAccessToken(),
		HasRefreshToken: cred.HasRefreshToken(),
	}
	if !cred.ExpiresAt.IsZero() {
		status.ExpiresAt = &cred.ExpiresAt
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	switch {
	case status.Authenticated:
		r.writePlain("Authentication: ✓ Authenticated\n")
	case status.HasRefreshToken:
		r.writePlain("Authentication: ⟳ Access token expired, will refresh on next call\n")
	default:
		r.writePlain("Authentication: ✗ Not authenticated (run `spotrcpt auth login`)\n")
	}
	if status.ExpiresAt != nil {
		r.writePlain("Expires: %s\n", status.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}

// AuthRefresh forces a refresh of the access token.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	cred, err := r.session.Refresh(ctx)
	if err != nil {
		return withHint(err)
	}
	return r.writePlain("✓ Token refreshed, valid until %s\n", cred.ExpiresAt.Local().Format(time.RFC1123))
}

// AuthLogout clears every stored token and any pending authorization.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	if err := r.session.Logout(); err != nil {
		return err
	}
	return r.writePlain("✓ Logged out\n")
}
