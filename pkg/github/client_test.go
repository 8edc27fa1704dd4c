package github

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.Handler, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts.BaseURL = srv.URL
	c, err := NewClient(opts)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestRepositoryDescription(t *testing.T) {
	var path, accept, agent string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		accept = r.Header.Get("Accept")
		agent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"full_name": "octo/hello", "description": "My first repository"}`))
	}), Options{})

	got, err := c.RepositoryDescription(context.Background(), "octo/hello")
	if err != nil {
		t.Fatalf("RepositoryDescription() error = %v", err)
	}
	if got != "My first repository" {
		t.Errorf("description = %q", got)
	}
	if path != "/repos/octo/hello" {
		t.Errorf("path = %q, want /repos/octo/hello", path)
	}
	if accept == "" {
		t.Error("Accept header not set")
	}
	if agent != userAgent {
		t.Errorf("User-Agent = %q, want %q", agent, userAgent)
	}
}

func TestRepositoryDescriptionNull(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"full_name": "octo/hello", "description": null}`))
	}), Options{})

	got, err := c.RepositoryDescription(context.Background(), "octo/hello")
	if err != nil {
		t.Fatalf("RepositoryDescription() error = %v", err)
	}
	if got != "" {
		t.Errorf("description = %q, want empty", got)
	}
}

func TestRepositoryDescriptionToken(t *testing.T) {
	var auth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"description": "d"}`))
	}), Options{Token: "ghp_test"})

	if _, err := c.RepositoryDescription(context.Background(), "octo/hello"); err != nil {
		t.Fatalf("RepositoryDescription() error = %v", err)
	}
	if auth != "Bearer ghp_test" {
		t.Errorf("Authorization = %q, want bearer token", auth)
	}
}

func TestRepositoryDescriptionNotFound(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "Not Found"}`))
	}), Options{Attempts: 3})

	_, err := c.RepositoryDescription(context.Background(), "octo/missing")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", se.StatusCode)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("404 must not be retried, got %d calls", n)
	}
}

func TestRepositoryDescriptionSingleAttemptByDefault(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}), Options{})

	_, err := c.RepositoryDescription(context.Background(), "octo/hello")
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("error = %v, want 503 StatusError", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestRepositoryDescriptionRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"description": "recovered"}`))
	}), Options{Attempts: 2})

	got, err := c.RepositoryDescription(context.Background(), "octo/hello")
	if err != nil {
		t.Fatalf("RepositoryDescription() error = %v", err)
	}
	if got != "recovered" {
		t.Errorf("description = %q, want recovered", got)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestRepositoryDescriptionTimeout(t *testing.T) {
	block := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}), Options{Timeout: 50 * time.Millisecond})
	defer close(block)

	_, err := c.RepositoryDescription(context.Background(), "octo/hello")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	var se *StatusError
	if errors.As(err, &se) {
		t.Errorf("timeout reported as status error: %v", err)
	}
}

func TestRepositoryDescriptionInvalidName(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}), Options{})

	for _, name := range []string{"", "octo", "/hello", "octo/", "octo/hello/extra"} {
		if _, err := c.RepositoryDescription(context.Background(), name); err == nil {
			t.Errorf("RepositoryDescription(%q) succeeded, want error", name)
		}
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("invalid names made %d requests", n)
	}
}

func TestNewClientInvalidURL(t *testing.T) {
	if _, err := NewClient(Options{BaseURL: "://bad"}); err == nil {
		t.Error("NewClient accepted an invalid base URL")
	}
}

func TestStatusErrorMessage(t *testing.T) {
	if got := (&StatusError{StatusCode: 404}).Error(); got != "GitHub API returned status 404" {
		t.Errorf("Error() = %q", got)
	}
}
