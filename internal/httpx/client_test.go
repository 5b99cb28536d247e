package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestPostJSONSendsHeadersAndBody(t *testing.T) {
	var (
		gotMethod      string
		gotContentType string
		gotCustom      string
		gotBody        string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotCustom = r.Header.Get("Authorization")
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, WithHeaders(http.Header{"Authorization": {"Bearer tok"}}))
	if err != nil {
		t.Fatal(err)
	}

	resp, err := client.PostJSON(context.Background(), "/insert/users", map[string]any{"a": 1})
	if err != nil {
		t.Fatal(err)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("got method %q", gotMethod)
	}
	if gotContentType != "application/json" {
		t.Fatalf("got content type %q", gotContentType)
	}
	if gotCustom != "Bearer tok" {
		t.Fatalf("got auth header %q", gotCustom)
	}
	if gotBody != `{"a":1}` {
		t.Fatalf("got body %q", gotBody)
	}
	if resp.StatusCode != http.StatusOK || string(resp.Body) != "ok" {
		t.Fatalf("unexpected response: %d %q", resp.StatusCode, resp.Body)
	}
}

func TestPostJSONNilPayloadSendsEmptyBody(t *testing.T) {
	var gotLength int64
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLength = r.ContentLength
		gotContentType = r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.PostJSON(context.Background(), "/meta", nil); err != nil {
		t.Fatal(err)
	}
	if gotLength != 0 {
		t.Fatalf("got content length %d, want 0", gotLength)
	}
	if gotContentType != "" {
		t.Fatalf("empty body should carry no content type, got %q", gotContentType)
	}
}

func TestPostJSONDoesNotTreatErrorStatusAsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "no such table"}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.PostJSON(context.Background(), "/get/users/k", nil)
	if err != nil {
		t.Fatalf("status interpretation belongs to the caller, got error %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("got status %d", resp.StatusCode)
	}
}

func TestPostJSONDoesNotRetryByDefault(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.PostJSON(context.Background(), "/insert/users", map[string]any{"a": 1}); err != nil {
		t.Fatal(err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("got %d requests, want 1", got)
	}
}

func TestPostJSONRetriesWhenConfigured(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, WithRetryPolicy(RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.PostJSON(context.Background(), "/meta", nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp.Body) != "ok" {
		t.Fatalf("got body %q", resp.Body)
	}
	if got := hits.Load(); got != 3 {
		t.Fatalf("got %d requests, want 3", got)
	}
}

func TestNewClientRejectsEmptyBaseURL(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatal("expected error")
	}
}

func TestMarshalJSONKeepsAngleBrackets(t *testing.T) {
	data, err := MarshalJSON(map[string]string{"where": `gt($a, "<b>")`})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"where":"gt($a, \"<b>\")"}`
	if string(data) != want {
		t.Fatalf("got %s, want %s", data, want)
	}
}

func TestBuildURLJoinsAgainstBasePath(t *testing.T) {
	client, err := NewClient("http://db.internal:8888")
	if err != nil {
		t.Fatal(err)
	}
	got, err := client.buildURL("select/users")
	if err != nil {
		t.Fatal(err)
	}
	if got != "http://db.internal:8888/select/users" {
		t.Fatalf("got %s", got)
	}
}

func TestRetryPolicyDelaySchedule(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: 400 * time.Millisecond}
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		400 * time.Millisecond,
		400 * time.Millisecond,
	}
	for attempt, expected := range want {
		if got := p.delay(attempt); got != expected {
			t.Fatalf("delay(%d) = %v, want %v", attempt, got, expected)
		}
	}
}

func TestRetryPolicyDelayJitterBounds(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Jitter: 0.5}
	for i := 0; i < 100; i++ {
		got := p.delay(0)
		if got < 50*time.Millisecond || got > 150*time.Millisecond {
			t.Fatalf("jittered delay %v outside [50ms, 150ms]", got)
		}
	}
}
