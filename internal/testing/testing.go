// package testing contains shared testing utilities
package testing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spotrcpt/internal/models"
)

// MockService is a test double for [services.Service]
type MockService struct {
	mu sync.Mutex

	Owner     models.Listener
	Tracks    map[models.TimeRange][]models.Track
	OwnerErr  error
	TracksErr error

	ListenerCalls int
	TrackCalls    int
}

func (m *MockService) Name() string { return "mock" }

func (m *MockService) Listener(ctx context.Context) (*models.Listener, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListenerCalls++
	if m.OwnerErr != nil {
		return nil, m.OwnerErr
	}
	owner := m.Owner
	return &owner, nil
}

func (m *MockService) TopTracks(ctx context.Context, tr models.TimeRange, limit int) ([]models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TrackCalls++
	if m.TracksErr != nil {
		return nil, m.TracksErr
	}
	tracks := m.Tracks[tr]
	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks, nil
}

// MakeTracks returns n tracks titled "<prefix> n" with one-minute durations.
func MakeTracks(prefix string, n int) []models.Track {
	tracks := make([]models.Track, n)
	for i := range tracks {
		tracks[i] = models.Track{
			ID:         fmt.Sprintf("%s-%d", strings.ToLower(prefix), i+1),
			Title:      fmt.Sprintf("%s %d", prefix, i+1),
			Artist:     "Artist " + fmt.Sprint(i+1),
			Album:      "Album",
			DurationMS: 60_000,
		}
	}
	return tracks
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// Reply is a canned response for [ScriptedTransport]. A non-nil Err is returned as a transport failure.
type Reply struct {
	Status int
	Header http.Header
	Body   string
	Err    error
}

// JSONReply marshals v into a Reply with the given status.
func JSONReply(status int, v any) Reply {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return Reply{Status: status, Header: http.Header{"Content-Type": {"application/json"}}, Body: string(data)}
}

// RecordedRequest is what [ScriptedTransport] saw.
type RecordedRequest struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   string
}

// ScriptedTransport answers requests with queued replies in order and records every request.
// Once the queue is exhausted it fails the round trip.
type ScriptedTransport struct {
	mu       sync.Mutex
	replies  []Reply
	requests []RecordedRequest
}

func NewScriptedTransport(replies ...Reply) *ScriptedTransport {
	return &ScriptedTransport{replies: replies}
}

func (s *ScriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		body = string(data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, RecordedRequest{
		Method: req.Method,
		URL:    req.URL,
		Header: req.Header.Clone(),
		Body:   body,
	})

	if len(s.replies) == 0 {
		return nil, fmt.Errorf("no scripted reply for %s %s", req.Method, req.URL)
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	if r.Err != nil {
		return nil, r.Err
	}

	header := r.Header
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: r.Status,
		Status:     fmt.Sprintf("%d %s", r.Status, http.StatusText(r.Status)),
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(r.Body)),
		Request:    req,
	}, nil
}

// Calls returns the number of requests seen.
func (s *ScriptedTransport) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns a copy of the recorded requests.
func (s *ScriptedTransport) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// Client wraps the transport in an [http.Client].
func (s *ScriptedTransport) Client() *http.Client {
	return &http.Client{Transport: s}
}

// FakeClock is a manually advanced clock. Its Sleep method records durations and advances time instead of
// blocking.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

// Sleeps returns every duration passed to Sleep.
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
