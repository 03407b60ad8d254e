package server

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/desertthunder/spotrcpt/internal/auth"
)

// CallbackCompleter finishes an authorization from the redirect URL. [auth.Manager] implements it.
type CallbackCompleter interface {
	HandleCallback(ctx context.Context, u *url.URL) (*auth.Credential, error)
}

// CallbackResult contains the outcome of the redirect.
type CallbackResult struct {
	Credential *auth.Credential
	err        error
}

func (c *CallbackResult) Error() error {
	return c.err
}

// CallbackHandler serves the OAuth redirect.
//
// The first request to the callback path completes the authorization and is answered with a 303 to the done path,
// so the code and state do not linger in the browser's address bar or history. Later callback requests are
// rejected.
type CallbackHandler struct {
	completer  CallbackCompleter
	path       string
	resultChan chan CallbackResult
	once       sync.Once

	mu          sync.Mutex
	callbackHit bool
	outcome     error
	done        bool
}

// NewCallbackHandler serves path (e.g. "/callback") and path + "/done".
func NewCallbackHandler(completer CallbackCompleter, path string) *CallbackHandler {
	if path == "" {
		path = "/callback"
	}
	return &CallbackHandler{
		completer:  completer,
		path:       "/" + strings.Trim(path, "/"),
		resultChan: make(chan CallbackResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{h.path, h.DonePath()}
}

// DonePath is the landing page the callback redirects to.
func (h *CallbackHandler) DonePath() string {
	return h.path + "/done"
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == h.DonePath() {
		h.serveDone(w)
		return
	}

	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	cred, err := h.completer.HandleCallback(r.Context(), r.URL)

	h.mu.Lock()
	h.outcome = err
	h.done = true
	h.mu.Unlock()

	h.Send(CallbackResult{Credential: cred, err: err})
	http.Redirect(w, r, h.DonePath(), http.StatusSeeOther)
}

func (h *CallbackHandler) serveDone(w http.ResponseWriter) {
	h.mu.Lock()
	done, outcome := h.done, h.outcome
	h.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")

	switch {
	case !done:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, page("No authorization in progress", "Start again from the terminal."))
	case outcome != nil:
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, page("Authorization failed", outcome.Error()))
	default:
		fmt.Fprint(w, page("Authorization successful", "You can close this window and return to the terminal."))
	}
}

func page(title, message string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>%[1]s</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 20vh;">
    <h1>%[1]s</h1>
    <p>%[2]s</p>
</body>
</html>
`, html.EscapeString(title), html.EscapeString(message))
}

// Send delivers the result through the channel (only once).
func (h *CallbackHandler) Send(result CallbackResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.resultChan
}

var _ Handler = (*CallbackHandler)(nil)
