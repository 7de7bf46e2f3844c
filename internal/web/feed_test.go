package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shuntaka9576/agentoast/internal/notify"
	"github.com/shuntaka9576/agentoast/internal/store"
)

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func readFeedEvent(t *testing.T, conn *websocket.Conn) feedEvent {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var evt feedEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	return evt
}

func waitForClients(t *testing.T, srv *Server, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if srv.feed.count() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d feed clients, got %d", want, srv.feed.count())
}

func TestFeedWSGreetingAndBroadcast(t *testing.T) {
	srv, st, bus := newTestServer(t, nil)
	insertRow(t, st, "%1")

	events, cancel := bus.Subscribe(8)
	defer cancel()
	go srv.pumpEvents(events)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/feed"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	greeting := readFeedEvent(t, conn)
	if greeting.Type != "refresh" {
		t.Fatalf("expected refresh greeting, got %q", greeting.Type)
	}
	if greeting.Unread != 1 {
		t.Fatalf("expected unread 1 in greeting, got %d", greeting.Unread)
	}

	stored := insertRow(t, st, "%2")
	bus.Publish(notify.NotificationStored{Notification: *stored})

	evt := readFeedEvent(t, conn)
	if evt.Type != "notification" {
		t.Fatalf("expected notification event, got %q", evt.Type)
	}
	if evt.Notification == nil || evt.Notification.ID != stored.ID {
		t.Fatalf("expected notification %d, got %+v", stored.ID, evt.Notification)
	}
	if evt.Unread != 2 {
		t.Fatalf("expected unread 2, got %d", evt.Unread)
	}

	conn.Close()
	waitForClients(t, srv, 0)
}

func TestFeedWSToastEvents(t *testing.T) {
	srv, st, bus := newTestServer(t, nil)

	events, cancel := bus.Subscribe(8)
	defer cancel()
	go srv.pumpEvents(events)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/feed"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readFeedEvent(t, conn) // greeting

	first := insertRow(t, st, "%1")
	second := insertRow(t, st, "%2")
	bus.Publish(notify.ToastRequested{Batch: []store.Notification{*first, *second}})

	for _, want := range []int64{first.ID, second.ID} {
		evt := readFeedEvent(t, conn)
		if evt.Type != "toast" {
			t.Fatalf("expected toast event, got %q", evt.Type)
		}
		if evt.Notification == nil || evt.Notification.ID != want {
			t.Fatalf("expected notification %d, got %+v", want, evt.Notification)
		}
	}
}

func TestFeedWSMuteEventViaAPI(t *testing.T) {
	srv, _, bus := newTestServer(t, nil)

	events, cancel := bus.Subscribe(8)
	defer cancel()
	go srv.pumpEvents(events)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/feed"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readFeedEvent(t, conn) // greeting

	body, _ := json.Marshal(muteRequest{Repo: "/home/u/proj", Muted: true})
	resp, err := http.Post(ts.URL+"/api/mute", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post mute: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	evt := readFeedEvent(t, conn)
	if evt.Type != "mute" {
		t.Fatalf("expected mute event, got %q", evt.Type)
	}
	if evt.Mute == nil || !evt.Mute.MutedRepos["/home/u/proj"] {
		t.Fatalf("expected muted repo in event, got %+v", evt.Mute)
	}
}

func TestFeedWSRejectsBadToken(t *testing.T) {
	srv, _, _ := newTestServer(t, func(cfg *Config) {
		cfg.Token = "sekrit"
	})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/feed"), nil)
	if err == nil {
		t.Fatal("expected handshake to fail without token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %+v", http.StatusUnauthorized, resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/feed?token=sekrit"), nil)
	if err != nil {
		t.Fatalf("dial with token: %v", err)
	}
	conn.Close()
}

func TestAllowWSOrigin(t *testing.T) {
	cases := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"no origin", "", "127.0.0.1:8787", true},
		{"same host", "http://127.0.0.1:8787", "127.0.0.1:8787", true},
		{"case insensitive", "http://LOCALHOST:8787", "localhost:8787", true},
		{"cross origin", "https://evil.example.com", "127.0.0.1:8787", false},
		{"garbage origin", "::not-a-url::", "127.0.0.1:8787", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws/feed", nil)
			req.Host = tc.host
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if got := allowWSOrigin(req); got != tc.want {
				t.Fatalf("allowWSOrigin(%q) = %v, want %v", tc.origin, got, tc.want)
			}
		})
	}
}
