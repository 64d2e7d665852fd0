package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hearthrealm/internal/auth"
	"hearthrealm/internal/config"
	"hearthrealm/internal/events"
	"hearthrealm/internal/game"
)

func testServer(t *testing.T) (*Server, *auth.Tokens) {
	t.Helper()
	tokens := auth.NewTokens("test-secret", time.Hour)
	cfg := config.APIConfig{RateLimitRPS: 10, RateLimitBurst: 20}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, logger, tokens, nil, events.NewHub(logger)), tokens
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestHealthz(t *testing.T) {
	s, _ := testServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); !env.Success {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s, _ := testServer(t)
	other := auth.NewTokens("another-secret", time.Hour)
	forged, err := other.Issue(auth.User{ID: 1, Username: "maud"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic abc"},
		{"forged", "Bearer " + forged.AccessToken},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d", tc.name, rec.Code)
		}
		if env := decodeEnvelope(t, rec); env.Success || env.Message == "" {
			t.Fatalf("%s: envelope = %+v", tc.name, env)
		}
	}
}

func TestSignupValidation(t *testing.T) {
	s, _ := testServer(t)
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"weak password", `{"email":"a@b.co","username":"maud","password":"short"}`, "password"},
		{"unknown field", `{"email":"a@b.co","nickname":"x"}`, ""},
		{"empty body", ``, ""},
		{"malformed", `{"email":`, ""},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/signup", strings.NewReader(tc.body))
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: status = %d body=%s", tc.name, rec.Code, rec.Body.String())
		}
		env := decodeEnvelope(t, rec)
		if env.Success {
			t.Fatalf("%s: expected failure envelope", tc.name)
		}
		if tc.wantField != "" && len(env.Errors[tc.wantField]) == 0 {
			t.Fatalf("%s: expected a %s field error, got %+v", tc.name, tc.wantField, env.Errors)
		}
	}
}

func TestWriteDomainError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		err  error
		want int
	}{
		{&game.FieldError{Fields: map[string][]string{"stake": {"too small"}}}, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: need 5", game.ErrInsufficientGold), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: need 5", game.ErrInsufficientEnergy), http.StatusUnprocessableEntity},
		{game.ErrWrongLocation, http.StatusUnprocessableEntity},
		{game.ErrCooldown, http.StatusUnprocessableEntity},
		{game.ErrInventoryFull, http.StatusUnprocessableEntity},
		{game.ErrConflict, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: only a prophet can do that", game.ErrForbidden), http.StatusForbidden},
		{game.ErrUnauthorized, http.StatusUnauthorized},
		{auth.ErrInvalidPassword, http.StatusUnauthorized},
		{fmt.Errorf("%w: religion", game.ErrNotFound), http.StatusNotFound},
		{game.ErrDuplicateIdempotency, http.StatusConflict},
		{game.ErrTxConflict, http.StatusConflict},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		writeDomainError(rec, logger, tc.err)
		if rec.Code != tc.want {
			t.Fatalf("%v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}

	rec := httptest.NewRecorder()
	writeDomainError(rec, logger, errors.New("pq: secret detail"))
	if strings.Contains(rec.Body.String(), "secret detail") {
		t.Fatalf("internal errors must not leak: %s", rec.Body.String())
	}
	rec = httptest.NewRecorder()
	writeDomainError(rec, logger, &game.FieldError{Fields: map[string][]string{"stake": {"too small"}}})
	if env := decodeEnvelope(t, rec); env.Errors["stake"][0] != "too small" {
		t.Fatalf("field errors missing: %+v", env)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	s, tokens := testServer(t)
	s.limiter = newPlayerLimiter(1, 2)
	session, err := tokens.Issue(auth.User{ID: 42, Username: "osric"})
	if err != nil {
		t.Fatal(err)
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := s.authMiddleware(s.rateLimitMiddleware(ok))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+session.AccessToken)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests && rec.Header().Get("Retry-After") == "" {
			t.Fatalf("429 without Retry-After")
		}
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}

func TestPlayerLimiterIsPerPlayerAndRefills(t *testing.T) {
	l := newPlayerLimiter(1, 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if _, ok := l.allow(1); !ok {
		t.Fatalf("first request must pass")
	}
	if wait, ok := l.allow(1); ok || wait <= 0 {
		t.Fatalf("second request must wait, got %v %v", wait, ok)
	}
	if _, ok := l.allow(2); !ok {
		t.Fatalf("other players have their own bucket")
	}
	now = now.Add(time.Second)
	if _, ok := l.allow(1); !ok {
		t.Fatalf("bucket should refill after a second")
	}
	now = now.Add(limiterIdleTTL + time.Minute)
	l.allow(3)
	if _, kept := l.buckets[1]; kept {
		t.Fatalf("idle buckets should be swept")
	}
}

func TestEventsRequiresAuth(t *testing.T) {
	s, _ := testServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestBearerTokenAndPathHelpers(t *testing.T) {
	if got := bearerToken("bearer  abc "); got != "abc" {
		t.Fatalf("token = %q", got)
	}
	if got := bearerToken("Token abc"); got != "" {
		t.Fatalf("wrong scheme accepted: %q", got)
	}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if key := idempotencyKey(req); len(key) != 36 {
		t.Fatalf("generated key = %q", key)
	}
	req.Header.Set("Idempotency-Key", " buy-1 ")
	if key := idempotencyKey(req); key != "buy-1" {
		t.Fatalf("key = %q", key)
	}
}

func TestSeenInBacklogSkipsReplayedEvents(t *testing.T) {
	live := func(id int64) []byte {
		b, err := json.Marshal(game.WorldEvent{ID: id, Kind: "market.trade"})
		if err != nil {
			t.Fatal(err)
		}
		return b
	}
	tests := []struct {
		name    string
		payload []byte
		lastID  int64
		want    bool
	}{
		{"no backlog", live(5), 0, false},
		{"replayed already", live(5), 7, true},
		{"last backlog event", live(7), 7, true},
		{"newer than backlog", live(8), 7, false},
		{"resync has no id", events.Resync, 7, false},
		{"malformed", []byte("{"), 7, false},
	}
	for _, tc := range tests {
		if got := seenInBacklog(tc.payload, tc.lastID); got != tc.want {
			t.Fatalf("%s: seenInBacklog = %v, want %v", tc.name, got, tc.want)
		}
	}
}
