package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/trustfit/internal/session"
	"github.com/MikeSquared-Agency/trustfit/internal/trust"
)

type fakeHistory struct {
	updates []session.Update
	limit   int
	params  map[string]trust.Parameters
}

func (f *fakeHistory) GetParameters(_ context.Context, sessionID string) (trust.Parameters, int, error) {
	p, ok := f.params[sessionID]
	if !ok {
		return trust.Parameters{}, 0, session.ErrNotFound
	}
	return p, 4, nil
}

func (f *fakeHistory) ListEstimates(_ context.Context, sessionID string, limit int) ([]session.Update, error) {
	f.limit = limit
	var out []session.Update
	for _, u := range f.updates {
		if u.SessionID == sessionID {
			out = append(out, u)
		}
	}
	return out, nil
}

func newTestServer(token string, history History) *Server {
	mgr := session.New(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	return NewServer(8760, token, mgr, history)
}

func do(t *testing.T, srv *Server, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer("", nil)

	w := do(t, srv, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer("", nil)

	w := do(t, srv, "GET", "/api/v1/trustfit/status", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["service"] != "trustfit" {
		t.Errorf("expected service trustfit, got %v", body["service"])
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := newTestServer("", nil)

	w := do(t, srv, "GET", "/nonexistent", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestIngestAndEstimate(t *testing.T) {
	srv := newTestServer("", nil)

	w := do(t, srv, "POST", "/api/v1/sessions/p01/observations", `{"performance":1,"feedback":80}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var u session.Update
	if err := json.NewDecoder(w.Body).Decode(&u); err != nil {
		t.Fatalf("failed to decode update: %v", err)
	}
	if u.Params.Alpha0 != 80 || u.Params.Beta0 != 20 {
		t.Errorf("expected heuristic params, got %+v", u.Params)
	}

	w = do(t, srv, "POST", "/api/v1/sessions/p01/observations", `{"performance":0,"feedback":30}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = do(t, srv, "GET", "/api/v1/sessions/p01/estimate", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var snap session.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if snap.Observations != 2 {
		t.Errorf("expected 2 observations, got %d", snap.Observations)
	}
	if snap.Estimate <= 0 || snap.Estimate >= 1 {
		t.Errorf("estimate %f outside (0,1)", snap.Estimate)
	}
}

func TestIngestRejectsBadInput(t *testing.T) {
	srv := newTestServer("", nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"performance":`},
		{"missing feedback", `{"performance":1}`},
		{"performance out of range", `{"performance":2,"feedback":50}`},
		{"feedback out of range", `{"performance":1,"feedback":101}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, "POST", "/api/v1/sessions/p01/observations", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestEstimateUnknownSession(t *testing.T) {
	srv := newTestServer("", nil)

	if w := do(t, srv, "GET", "/api/v1/sessions/ghost/estimate", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if w := do(t, srv, "DELETE", "/api/v1/sessions/ghost", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 on reset, got %d", w.Code)
	}
}

func TestResetSession(t *testing.T) {
	srv := newTestServer("", nil)
	do(t, srv, "POST", "/api/v1/sessions/p05/observations", `{"performance":1,"feedback":60}`)

	if w := do(t, srv, "DELETE", "/api/v1/sessions/p05", ""); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w := do(t, srv, "GET", "/api/v1/sessions/p05/estimate", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after reset, got %d", w.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	srv := newTestServer("secret", nil)

	if w := do(t, srv, "GET", "/api/v1/sessions/", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
	if w := do(t, srv, "GET", "/api/v1/sessions/", "", "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", w.Code)
	}
	if w := do(t, srv, "GET", "/api/v1/sessions/", "", "Authorization", "Bearer secret"); w.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", w.Code)
	}
	if w := do(t, srv, "GET", "/health", ""); w.Code != http.StatusOK {
		t.Errorf("health should not require a token, got %d", w.Code)
	}
}

func TestHistory(t *testing.T) {
	if w := do(t, newTestServer("", nil), "GET", "/api/v1/sessions/p01/history", ""); w.Code != http.StatusNotImplemented {
		t.Errorf("expected 501 without a store, got %d", w.Code)
	}

	h := &fakeHistory{updates: []session.Update{
		{SessionID: "p01", Index: 0, Feedback: 80},
		{SessionID: "p01", Index: 1, Feedback: 30},
		{SessionID: "p02", Index: 0, Feedback: 10},
	}}
	srv := newTestServer("", h)

	w := do(t, srv, "GET", "/api/v1/sessions/p01/history?limit=25", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Estimates []session.Update `json:"estimates"`
		Count     int              `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Count != 2 || len(body.Estimates) != 2 {
		t.Errorf("expected 2 estimates, got %+v", body)
	}
	if h.limit != 25 {
		t.Errorf("limit = %d, want 25", h.limit)
	}

	if w := do(t, srv, "GET", "/api/v1/sessions/p01/history?limit=abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestStoredParameters(t *testing.T) {
	if w := do(t, newTestServer("", nil), "GET", "/api/v1/sessions/p01/parameters", ""); w.Code != http.StatusNotImplemented {
		t.Errorf("expected 501 without a database, got %d", w.Code)
	}

	want := trust.Parameters{Alpha0: 79.5, Beta0: 20.6, Ws: 0.6, Wf: 2.5}
	srv := newTestServer("", &fakeHistory{params: map[string]trust.Parameters{"p01": want}})

	w := do(t, srv, "GET", "/api/v1/sessions/p01/parameters", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		SessionID    string           `json:"session_id"`
		Params       trust.Parameters `json:"params"`
		Observations int              `json:"observations"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.SessionID != "p01" || body.Params != want || body.Observations != 4 {
		t.Errorf("unexpected body %+v", body)
	}

	if w := do(t, srv, "GET", "/api/v1/sessions/p02/parameters", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", w.Code)
	}
}

func TestRejectedObservationCreatesNoSession(t *testing.T) {
	srv := newTestServer("", nil)

	if w := do(t, srv, "POST", "/api/v1/sessions/p01/observations", `{"performance":1,"feedback":150}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := do(t, srv, "DELETE", "/api/v1/sessions/p01", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 resetting a session that never ingested, got %d", w.Code)
	}

	w := do(t, srv, "GET", "/api/v1/trustfit/status", "")
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["sessions"] != float64(0) {
		t.Errorf("expected 0 sessions, got %v", body["sessions"])
	}
}

type fakeTransport bool

func (f fakeTransport) Connected() bool { return bool(f) }

func TestStatusReportsTransport(t *testing.T) {
	tests := []struct {
		name      string
		transport Transport
		want      any
	}{
		{"no transport", nil, nil},
		{"connected", fakeTransport(true), "connected"},
		{"disconnected", fakeTransport(false), "disconnected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer("", nil)
			if tt.transport != nil {
				srv.SetTransport(tt.transport)
			}
			w := do(t, srv, "GET", "/api/v1/trustfit/status", "")
			var body map[string]any
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body["nats"] != tt.want {
				t.Errorf("nats = %v, want %v", body["nats"], tt.want)
			}
		})
	}
}
