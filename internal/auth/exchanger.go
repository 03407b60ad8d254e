package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// TokenResponse is the token endpoint payload. ExpiresIn is in seconds; RefreshToken may be empty on refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Exchanger turns an authorization code, or a refresh token, into a [TokenResponse].
// Implementations return [*UpstreamError] when the endpoint answers with a non-2xx status.
type Exchanger interface {
	Exchange(ctx context.Context, code, verifier string) (*TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// DirectExchanger calls the authorization server's token endpoint as a public PKCE client.
type DirectExchanger struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewDirectExchanger wraps cfg. A nil client uses [http.DefaultClient].
func NewDirectExchanger(cfg *oauth2.Config, client *http.Client) *DirectExchanger {
	return &DirectExchanger{config: cfg, httpClient: client}
}

func (d *DirectExchanger) Exchange(ctx context.Context, code, verifier string) (*TokenResponse, error) {
	tok, err := d.config.Exchange(d.context(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fromRetrieveError(err)
	}
	return tokenResponseFrom(tok), nil
}

func (d *DirectExchanger) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	tok, err := d.config.TokenSource(d.context(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fromRetrieveError(err)
	}

	resp := tokenResponseFrom(tok)
	// oauth2 copies the old refresh token forward when the server omits one; report only rotations.
	if resp.RefreshToken == refreshToken {
		resp.RefreshToken = ""
	}
	return resp, nil
}

func (d *DirectExchanger) context(ctx context.Context) context.Context {
	if d.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, d.httpClient)
}

func tokenResponseFrom(tok *oauth2.Token) *TokenResponse {
	resp := &TokenResponse{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    tok.ExpiresIn,
		RefreshToken: tok.RefreshToken,
	}
	if resp.ExpiresIn <= 0 && !tok.Expiry.IsZero() {
		resp.ExpiresIn = int64(time.Until(tok.Expiry).Round(time.Second) / time.Second)
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		resp.Scope = scope
	}
	return resp
}

func fromRetrieveError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return err
	}

	up := &UpstreamError{Code: re.ErrorCode, Description: re.ErrorDescription, Body: re.Body}
	if re.Response != nil {
		up.Status = re.Response.StatusCode
	}
	return up
}

// RelayExchanger delegates both grants to a relay service that holds the client secret.
type RelayExchanger struct {
	baseURL    string
	httpClient *http.Client
}

// NewRelayExchanger targets the relay at baseURL. A nil client uses [http.DefaultClient].
func NewRelayExchanger(baseURL string, client *http.Client) *RelayExchanger {
	if client == nil {
		client = http.DefaultClient
	}
	return &RelayExchanger{baseURL: strings.TrimRight(baseURL, "/"), httpClient: client}
}

func (r *RelayExchanger) Exchange(ctx context.Context, code, verifier string) (*TokenResponse, error) {
	return r.post(ctx, "/api/token", url.Values{"code": {code}, "code_verifier": {verifier}})
}

func (r *RelayExchanger) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return r.post(ctx, "/api/refresh", url.Values{"refresh_token": {refreshToken}})
}

func (r *RelayExchanger) post(ctx context.Context, path string, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read relay response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		up := &UpstreamError{Status: resp.StatusCode, Body: body}
		var payload struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &payload) == nil {
			up.Code = payload.Error
			up.Description = payload.ErrorDescription
		}
		return nil, up
	}

	var tok TokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("failed to decode relay response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("relay response missing access_token")
	}
	return &tok, nil
}

var (
	_ Exchanger = (*DirectExchanger)(nil)
	_ Exchanger = (*RelayExchanger)(nil)
)
