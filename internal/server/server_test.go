package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotrcpt/internal/auth"
	"github.com/desertthunder/spotrcpt/internal/shared"
)

type fakeCompleter struct {
	cred  *auth.Credential
	err   error
	calls int
	last  *url.URL
}

func (f *fakeCompleter) HandleCallback(ctx context.Context, u *url.URL) (*auth.Credential, error) {
	f.calls++
	f.last = u
	return f.cred, f.err
}

func TestBasicRouter(t *testing.T) {
	t.Run("Method Mismatch", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodPost, "/hook", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hook", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("Middleware Order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mark("first"), mark("second"))
		router.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if got := strings.Join(order, ","); got != "first,second,handler" {
			t.Errorf("unexpected order %s", got)
		}
	})

	t.Run("Recoverer", func(t *testing.T) {
		var buf bytes.Buffer
		router := NewBasicRouter()
		router.Use(RequestLogger(log.New(&buf)), Recoverer(log.New(&buf)))
		router.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if !strings.Contains(buf.String(), "handler panic") {
			t.Errorf("expected panic to be logged, got %q", buf.String())
		}
	})
}

func TestCallbackHandler(t *testing.T) {
	newRouter := func(h *CallbackHandler) *BasicRouter {
		router := NewBasicRouter()
		router.Handler(h)
		return router
	}

	t.Run("Routes", func(t *testing.T) {
		h := NewCallbackHandler(&fakeCompleter{}, "callback/")
		routes := h.Routes()
		if len(routes) != 2 || routes[0] != "/callback" || routes[1] != "/callback/done" {
			t.Errorf("unexpected routes %v", routes)
		}
	})

	t.Run("Success Redirects Without Query", func(t *testing.T) {
		completer := &fakeCompleter{cred: &auth.Credential{AccessToken: "a"}}
		h := NewCallbackHandler(completer, "/callback")
		router := newRouter(h)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=xyz", nil))
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("expected 303, got %d", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/callback/done" {
			t.Errorf("expected redirect to /callback/done, got %q", loc)
		}
		if completer.last.Query().Get("code") != "abc" {
			t.Errorf("expected completer to see the code, got %s", completer.last)
		}

		select {
		case result := <-h.Result():
			if result.Error() != nil || result.Credential.AccessToken != "a" {
				t.Errorf("unexpected result %+v", result)
			}
		default:
			t.Fatal("expected a result")
		}

		done := httptest.NewRecorder()
		router.ServeHTTP(done, httptest.NewRequest(http.MethodGet, "/callback/done", nil))
		if done.Code != http.StatusOK || !strings.Contains(done.Body.String(), "Authorization successful") {
			t.Errorf("unexpected done page %d %s", done.Code, done.Body.String())
		}
	})

	t.Run("Failure Is Reported", func(t *testing.T) {
		completer := &fakeCompleter{err: shared.ErrStateMismatch}
		h := NewCallbackHandler(completer, "/callback")
		router := newRouter(h)

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=bad", nil))
		result := <-h.Result()
		if !errors.Is(result.Error(), shared.ErrStateMismatch) {
			t.Errorf("expected ErrStateMismatch, got %v", result.Error())
		}

		done := httptest.NewRecorder()
		router.ServeHTTP(done, httptest.NewRequest(http.MethodGet, "/callback/done", nil))
		if done.Code != http.StatusBadRequest || !strings.Contains(done.Body.String(), "Authorization failed") {
			t.Errorf("unexpected done page %d %s", done.Code, done.Body.String())
		}
	})

	t.Run("Only First Callback Is Processed", func(t *testing.T) {
		completer := &fakeCompleter{cred: &auth.Credential{}}
		router := newRouter(NewCallbackHandler(completer, "/callback"))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?code=1", nil))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=2", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for replay, got %d", rec.Code)
		}
		if completer.calls != 1 {
			t.Errorf("expected 1 completion, got %d", completer.calls)
		}
	})

	t.Run("Done Before Callback", func(t *testing.T) {
		router := newRouter(NewCallbackHandler(&fakeCompleter{}, "/callback"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback/done", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestServer(t *testing.T) {
	completer := &fakeCompleter{cred: &auth.Credential{AccessToken: "a"}}
	h := NewCallbackHandler(completer, "/callback")
	router := NewBasicRouter()
	router.Handler(h)

	srv, err := Listen("127.0.0.1:0", router)
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer srv.Shutdown(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/callback?code=abc&state=s")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Authorization successful") {
		t.Errorf("expected redirect to success page, got %d %s", resp.StatusCode, body)
	}
	if resp.Request.URL.RawQuery != "" {
		t.Errorf("expected landing page without query, got %s", resp.Request.URL)
	}

	select {
	case result := <-h.Result():
		if result.Error() != nil {
			t.Errorf("unexpected error %v", result.Error())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result")
	}

	if _, err := Listen(srv.Addr(), router); err == nil {
		t.Error("expected error binding an address in use")
	}
}
