package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/market/buy" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}
		if got := r.Header.Get("Idempotency-Key"); got != "idem-1" {
			t.Errorf("idempotency key = %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["item"] != "bread" || body["quantity"] != float64(3) {
			t.Errorf("unexpected body %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"bought 3 bread for 12 gold","data":{"item":"bread","quantity":3,"unit_price":4,"total":12,"tax":0,"gold":88}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	out, err := c.Trade(context.Background(), "tok", "buy", "bread", 3, "idem-1")
	if err != nil {
		t.Fatalf("trade: %v", err)
	}
	if out.Message != "bought 3 bread for 12 gold" {
		t.Fatalf("message = %q", out.Message)
	}
	if out.Data.Total != 12 || out.Data.Gold != 88 {
		t.Fatalf("unexpected data %+v", out.Data)
	}
}

func TestClientReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"success":false,"message":"validation failed","errors":{"username":["too short"],"email":["invalid"]}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Signup(context.Background(), "x", "y", "z")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", apiErr.Status)
	}
	if got := apiErr.Error(); got != "validation failed (email: invalid; username: too short)" {
		t.Fatalf("error text = %q", got)
	}
	if !IsAPIError(err) {
		t.Fatal("IsAPIError should be true")
	}
}

func TestClientNonJSONFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Me(context.Background(), "tok")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !strings.Contains(apiErr.Message, "bad gateway") {
		t.Fatalf("message = %q", apiErr.Message)
	}
}

func TestClientNetworkErrorIsNotAPIError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := NewClient(base).Me(context.Background(), "tok")
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if IsAPIError(err) {
		t.Fatalf("network failure should not be an APIError: %v", err)
	}
}

func TestEventsURL(t *testing.T) {
	tests := []struct {
		base string
		loc  int64
		want string
	}{
		{"http://localhost:8080", 0, "ws://localhost:8080/v1/events?access_token=tok"},
		{"https://realm.example", 4, "wss://realm.example/v1/events?access_token=tok&location=4"},
	}
	for _, tt := range tests {
		got, err := NewClient(tt.base).EventsURL("tok", tt.loc)
		if err != nil {
			t.Fatalf("events url: %v", err)
		}
		if got != tt.want {
			t.Fatalf("EventsURL(%s) = %s, want %s", tt.base, got, tt.want)
		}
	}
}

func TestSessionRoundTrip(t *testing.T) {
	dir, err := Dir(t.TempDir())
	if err != nil {
		t.Fatalf("dir: %v", err)
	}
	if _, err := LoadSession(dir); err == nil {
		t.Fatal("expected error with no session saved")
	}
	want := Session{AccessToken: "tok", Username: "wren", PlayerID: 7, ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second)}
	if err := SaveSession(dir, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadSession(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Username != want.Username || got.PlayerID != want.PlayerID || !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if err := ClearSession(dir); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := ClearSession(dir); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestSessionExpired(t *testing.T) {
	dir := t.TempDir()
	if err := SaveSession(dir, Session{AccessToken: "tok", ExpiresAt: time.Now().Add(-time.Minute)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := LoadSession(dir); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiry error, got %v", err)
	}
}
