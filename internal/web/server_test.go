package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/time/rate"

	"github.com/shuntaka9576/agentoast/internal/notify"
	"github.com/shuntaka9576/agentoast/internal/store"
)

func newTestServer(t *testing.T, mutate func(*Config)) (*Server, *store.Store, *notify.Bus) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "agentoast.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	svc := notify.NewService(st, nil,
		notify.WithPaneVisible(func(context.Context, string) (bool, error) { return false, nil }),
		notify.WithFocusPane(func(context.Context, string) error { return nil }),
		notify.WithFocusApp(func(context.Context, string) error { return nil }),
	)
	bus := notify.NewBus()

	cfg := Config{
		ListenAddr: "127.0.0.1:0",
		DataDir:    t.TempDir(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewServer(cfg, st, svc, bus), st, bus
}

func insertRow(t *testing.T, st *store.Store, pane string) *store.Notification {
	t.Helper()
	n, err := st.Insert(store.Input{
		Badge:      "Stop",
		Body:       "agent finished",
		BadgeColor: store.ColorGreen,
		Repo:       "/home/u/proj",
		TmuxPane:   pane,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return n
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealthzEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	rr := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"ok":true`) {
		t.Fatalf("expected ok=true, got: %s", rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodPost, "/healthz", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, rr.Code)
	}
}

func TestListNotifications(t *testing.T) {
	srv, st, _ := newTestServer(t, nil)
	insertRow(t, st, "%1")
	insertRow(t, st, "%2")

	rr := doJSON(t, srv, http.MethodGet, "/api/notifications", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	var resp notificationsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Notifications) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(resp.Notifications))
	}
	if resp.Unread != 2 {
		t.Fatalf("expected unread 2, got %d", resp.Unread)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/notifications?limit=1", nil)
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Notifications) != 1 {
		t.Fatalf("expected limit=1 to return 1 row, got %d", len(resp.Notifications))
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/notifications?limit=-1", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d for negative limit, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestGetNotificationByID(t *testing.T) {
	srv, st, _ := newTestServer(t, nil)
	n := insertRow(t, st, "%1")

	rr := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/notifications/%d", n.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"badge":"Stop"`) {
		t.Fatalf("expected notification payload, got: %s", rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/notifications/99999", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/notifications/abc", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestMarkReadAndDelete(t *testing.T) {
	srv, st, _ := newTestServer(t, nil)
	n := insertRow(t, st, "%1")

	rr := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", n.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("mark read: expected status %d, got %d", http.StatusOK, rr.Code)
	}
	unread, err := st.UnreadCount()
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if unread != 0 {
		t.Fatalf("expected 0 unread after mark read, got %d", unread)
	}

	rr = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/notifications/%d", n.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if _, err := st.Get(n.ID); err == nil {
		t.Fatal("expected notification to be deleted")
	}
}

func TestReadAllAndClearAll(t *testing.T) {
	srv, st, _ := newTestServer(t, nil)
	insertRow(t, st, "%1")
	insertRow(t, st, "%2")

	rr := doJSON(t, srv, http.MethodPost, "/api/notifications/read-all", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("read-all: expected status %d, got %d", http.StatusOK, rr.Code)
	}
	unread, _ := st.UnreadCount()
	if unread != 0 {
		t.Fatalf("expected 0 unread after read-all, got %d", unread)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/notifications", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("clear: expected status %d, got %d", http.StatusOK, rr.Code)
	}
	rows, err := st.List(0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty store after clear, got %d rows", len(rows))
	}
}

func TestMuteEndpoint(t *testing.T) {
	srv, st, _ := newTestServer(t, nil)

	global := true
	rr := doJSON(t, srv, http.MethodPost, "/api/mute", muteRequest{Global: &global, Muted: true})
	if rr.Code != http.StatusOK {
		t.Fatalf("mute: expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	state, err := st.LoadMuteState()
	if err != nil {
		t.Fatalf("load mute state: %v", err)
	}
	if !state.GlobalMuted {
		t.Fatal("expected global mute to be set")
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/mute", muteRequest{Repo: "/home/u/proj", Muted: true})
	if rr.Code != http.StatusOK {
		t.Fatalf("repo mute: expected status %d, got %d", http.StatusOK, rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/mute", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get mute: expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var got store.MuteState
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal mute state: %v", err)
	}
	if !got.GlobalMuted || !got.MutedRepos["/home/u/proj"] {
		t.Fatalf("unexpected mute state: %+v", got)
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/mute", muteRequest{Muted: true})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d for empty target, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestTokenAuth(t *testing.T) {
	srv, _, _ := newTestServer(t, func(cfg *Config) {
		cfg.Token = "sekrit"
	})

	rr := doJSON(t, srv, http.MethodGet, "/api/notifications", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d without token, got %d", http.StatusUnauthorized, rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/notifications?token=sekrit", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d with query token, got %d", http.StatusOK, rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d with bearer token, got %d", http.StatusOK, rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d with wrong token, got %d", http.StatusUnauthorized, rec.Code)
	}

	// Health stays open so load balancer checks need no token.
	rr = doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected healthz to stay open, got %d", rr.Code)
	}
}

func TestRateLimitReturns429(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	srv.limiter = rate.NewLimiter(rate.Limit(0), 1)

	rr := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d once the burst is spent, got %d", http.StatusTooManyRequests, rr.Code)
	}
}

func TestDefaultListenAddr(t *testing.T) {
	srv, _, _ := newTestServer(t, func(cfg *Config) {
		cfg.ListenAddr = ""
	})
	if srv.Addr() != "127.0.0.1:8787" {
		t.Fatalf("expected default addr, got %s", srv.Addr())
	}
}
