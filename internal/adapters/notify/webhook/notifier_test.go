package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewRequiresURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New() error = nil, want error for missing url")
	}
}

func TestSend(t *testing.T) {
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer token123" {
			t.Errorf("Authorization = %q, want custom header forwarded", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n, err := New(Config{
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer token123"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := n.Send(context.Background(), "[failsift] pattern pat-abc", "details"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if got.Subject != "[failsift] pattern pat-abc" {
		t.Errorf("subject = %q", got.Subject)
	}
	if got.Body != "details" {
		t.Errorf("body = %q", got.Body)
	}
	if got.SentAt.IsZero() {
		t.Error("sent_at is zero")
	}
}

func TestSendServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue full", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	n, err := New(Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := n.Send(context.Background(), "subject", "body"); err == nil {
		t.Fatal("Send() error = nil, want error for non-2xx response")
	}
}

func TestSendTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	n, err := New(Config{URL: srv.URL, Timeout: 30 * time.Millisecond})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	start := time.Now()
	if err := n.Send(context.Background(), "subject", "body"); err == nil {
		t.Fatal("Send() error = nil, want timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Send() blocked %v, want bounded by the timeout", elapsed)
	}
}
