package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/asymptotic-code/telegram-bot/internal/apperr"
)

// fakeAgent is an in-process stand-in for the agent HTTP API.
type fakeAgent struct {
	mu       sync.Mutex
	sessions map[string]bool
	answer   string
	raw      string
	status   int
	apiKeys  []string
}

func (f *fakeAgent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("X-API-KEY"))
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte("boom"))
		return
	}
	var in struct {
		Question string `json:"question"`
		Session  string `json:"session"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/session/exists":
		_ = json.NewEncoder(w).Encode(map[string]bool{"exists": f.sessions[in.Session]})
	case "/session/create":
		f.sessions[in.Session] = true
		_, _ = w.Write([]byte(`{}`))
	case "/session/clear":
		delete(f.sessions, in.Session)
		_, _ = w.Write([]byte(`{}`))
	case "/agent":
		if f.raw != "" {
			_, _ = w.Write([]byte(f.raw))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"answer": f.answer + " (" + in.Session + ": " + in.Question + ")"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newFakeAgent(t *testing.T) (*fakeAgent, *DirectBackend) {
	t.Helper()
	fa := &fakeAgent{sessions: make(map[string]bool), answer: "ok"}
	srv := httptest.NewServer(fa)
	t.Cleanup(srv.Close)
	return fa, NewDirect(srv.URL+"/", "secret", 5*time.Second)
}

func TestDirect_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	fa, d := newFakeAgent(t)

	ok, err := d.SessionExists(ctx, "private:1:1")
	if err != nil || ok {
		t.Fatalf("expected missing session, got %v %v", ok, err)
	}
	if err := EnsureSession(ctx, d, "private:1:1"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := EnsureSession(ctx, d, "private:1:1"); err != nil {
		t.Fatalf("ensure twice: %v", err)
	}
	ok, _ = d.SessionExists(ctx, "private:1:1")
	if !ok {
		t.Fatalf("session not created")
	}
	if err := d.ClearSession(ctx, "private:1:1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := d.ClearSession(ctx, "private:1:1"); err != nil {
		t.Fatalf("clear is idempotent: %v", err)
	}
	ok, _ = d.SessionExists(ctx, "private:1:1")
	if ok {
		t.Fatalf("session not cleared")
	}
	for _, k := range fa.apiKeys {
		if k != "secret" {
			t.Fatalf("api key header missing: %q", fa.apiKeys)
		}
	}
}

func TestDirect_Converse(t *testing.T) {
	_, d := newFakeAgent(t)
	got, err := d.Converse(context.Background(), "hello", "group:1:-5")
	if err != nil {
		t.Fatalf("converse: %v", err)
	}
	if got != "ok (group:1:-5: hello)" {
		t.Fatalf("unexpected answer: %q", got)
	}
}

func TestDirect_ProtocolErrors(t *testing.T) {
	for _, raw := range []string{`not json`, `{"other":"x"}`, `{"answer":"   "}`} {
		fa, d := newFakeAgent(t)
		fa.raw = raw
		_, err := d.Converse(context.Background(), "q", "k")
		var pe *apperr.ProtocolError
		if !errors.As(err, &pe) {
			t.Fatalf("raw %q: expected ProtocolError, got %v", raw, err)
		}
	}
}

func TestDirect_RemoteErrors(t *testing.T) {
	fa, d := newFakeAgent(t)
	fa.status = http.StatusBadGateway
	_, err := d.Converse(context.Background(), "q", "k")
	var rce *apperr.RemoteCallError
	if !errors.As(err, &rce) {
		t.Fatalf("expected RemoteCallError on 502, got %v", err)
	}

	dead := NewDirect("http://127.0.0.1:1", "", time.Second)
	if _, err := dead.SessionExists(context.Background(), "k"); !errors.As(err, &rce) {
		t.Fatalf("expected RemoteCallError on refused connection, got %v", err)
	}
}
