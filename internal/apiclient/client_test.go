package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestPostJSONRetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test") != "yes" {
			t.Errorf("header provider not applied")
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", WithRetry(3), WithTimeout(2*time.Second),
		WithHeaderProvider(func() map[string]string { return map[string]string{"X-Test": "yes", " ": "skip"} }))
	if c.BaseURL() != srv.URL {
		t.Fatalf("base url not trimmed: %q", c.BaseURL())
	}
	var out struct{ OK bool `json:"ok"` }
	if err := c.PostJSON(context.Background(), "/x", map[string]int{"a": 1}, &out, true); err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if !out.OK || calls.Load() != 3 {
		t.Fatalf("out=%+v calls=%d", out, calls.Load())
	}
}

func TestGetJSONStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	err := New(srv.URL).GetJSON(context.Background(), "/thing", nil)
	if StatusOf(err) != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
	if StatusOf(nil) != 0 {
		t.Fatalf("StatusOf(nil) should be 0")
	}
}

func TestBackoffDuration(t *testing.T) {
	if BackoffDuration(1) != 100*time.Millisecond || BackoffDuration(2) != 200*time.Millisecond {
		t.Fatalf("unexpected backoff %v %v", BackoffDuration(1), BackoffDuration(2))
	}
	if BackoffDuration(20) > 4*time.Second {
		t.Fatalf("backoff not capped: %v", BackoffDuration(20))
	}
}
