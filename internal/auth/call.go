package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/spotrcpt/internal/shared"
)

type callOptions struct {
	method      string
	body        []byte
	contentType string
	noCache     bool
}

// CallOption configures a single [Manager.CallAPI] request.
type CallOption func(*callOptions)

// WithMethod sets the HTTP method. Only GET responses are cached.
func WithMethod(method string) CallOption {
	return func(o *callOptions) { o.method = method }
}

// WithBody attaches a request body.
func WithBody(contentType string, body []byte) CallOption {
	return func(o *callOptions) {
		o.contentType = contentType
		o.body = body
	}
}

// WithJSONBody marshals v as the request body.
func WithJSONBody(v any) (CallOption, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return WithBody("application/json", data), nil
}

// WithoutCache bypasses the cache lookup. A successful GET still refreshes the cached entry.
func WithoutCache() CallOption {
	return func(o *callOptions) { o.noCache = true }
}

// CallAPI performs an authenticated request against endpoint, a path relative to the API base URL or an absolute
// URL, and returns the JSON payload.
//
// A live cache entry is returned without network or limiter activity. Otherwise a stale credential is refreshed
// first, and each attempt waits on the limiter before dispatch. A 429 sleeps for Retry-After; a 401 refreshes once
// and retries without consuming an attempt, and a second 401 logs out with [shared.ErrAuthenticationExpired].
// Other failures back off exponentially until the attempt budget yields [*APIRequestError].
func (m *Manager) CallAPI(ctx context.Context, endpoint string, opts ...CallOption) (json.RawMessage, error) {
	o := callOptions{method: http.MethodGet}
	for _, opt := range opts {
		opt(&o)
	}
	cacheable := o.method == http.MethodGet
	logger := m.logger.With("method", o.method, "endpoint", endpoint)

	if cacheable && !o.noCache {
		if payload, ok := m.cache.Get(endpoint); ok {
			logger.Debug("cache hit")
			return payload, nil
		}
	}

	if !m.IsAuthenticated() {
		logger.Debug("access token missing or near expiry, refreshing")
		if _, err := m.Refresh(ctx); err != nil {
			return nil, err
		}
	}

	var (
		lastErr   error
		refreshed bool
		delay     = m.config.Backoff
	)
	for attempt := 1; attempt <= m.config.MaxAttempts; attempt++ {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		status, header, body, err := m.dispatch(ctx, o, endpoint)
		switch {
		case err != nil:
			if ctx.Err() != nil || errors.Is(err, shared.ErrNotAuthenticated) {
				return nil, err
			}
			logger.Warn("request failed", "attempt", attempt, "error", err)
			lastErr = &APIRequestError{Endpoint: endpoint, Err: err}

		case status == http.StatusTooManyRequests:
			lastErr = &APIRequestError{Endpoint: endpoint, Status: status, Body: body}
			if attempt == m.config.MaxAttempts {
				continue
			}
			wait := m.retryAfter(header)
			logger.Warn("rate limited", "attempt", attempt, "retry_after", wait)
			if err := m.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue

		case status == http.StatusUnauthorized:
			if refreshed {
				logger.Warn("refreshed token rejected, ending session")
				if err := m.Logout(); err != nil {
					logger.Error("failed to clear session", "error", err)
				}
				return nil, fmt.Errorf("%w: %s rejected the refreshed access token", shared.ErrAuthenticationExpired, endpoint)
			}
			refreshed = true
			logger.Debug("access token rejected, refreshing")
			if _, err := m.Refresh(ctx); err != nil {
				return nil, err
			}
			attempt--
			continue

		case status >= 200 && status < 300:
			payload, err := toPayload(body)
			if err != nil {
				return nil, &APIRequestError{Endpoint: endpoint, Status: status, Body: body, Err: err}
			}
			if cacheable {
				m.cache.Set(endpoint, payload)
			}
			return payload, nil

		default:
			logger.Warn("request returned error status", "attempt", attempt, "status", status)
			lastErr = &APIRequestError{Endpoint: endpoint, Status: status, Body: body}
		}

		if attempt < m.config.MaxAttempts {
			if err := m.sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
		}
	}

	return nil, lastErr
}

// GetJSON performs a GET through [Manager.CallAPI] and decodes the payload into v.
func (m *Manager) GetJSON(ctx context.Context, endpoint string, v any) error {
	payload, err := m.CallAPI(ctx, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", endpoint, err)
	}
	return nil
}

func (m *Manager) dispatch(ctx context.Context, o callOptions, endpoint string) (int, http.Header, []byte, error) {
	m.mu.RLock()
	token := m.cred.AccessToken
	m.mu.RUnlock()
	if token == "" {
		return 0, nil, nil, fmt.Errorf("%w: no access token", shared.ErrNotAuthenticated)
	}

	var reqBody io.Reader
	if o.body != nil {
		reqBody = bytes.NewReader(o.body)
	}

	req, err := http.NewRequestWithContext(ctx, o.method, m.resolve(endpoint), reqBody)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if o.body != nil && o.contentType != "" {
		req.Header.Set("Content-Type", o.contentType)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, resp.Header, body, nil
}

func (m *Manager) resolve(endpoint string) string {
	if strings.HasPrefix(endpoint, "https://") || strings.HasPrefix(endpoint, "http://") {
		return endpoint
	}
	return m.config.APIBaseURL + "/" + strings.TrimPrefix(endpoint, "/")
}

// retryAfter reads Retry-After as whole seconds, falling back to the configured default.
func (m *Manager) retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(h.Get("Retry-After")))
	if err != nil || secs < 0 {
		return m.config.DefaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

// toPayload treats an empty success body (204 or a bare 200) as JSON null.
func toPayload(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(trimmed) {
		return nil, errors.New("response is not valid JSON")
	}
	return json.RawMessage(trimmed), nil
}
