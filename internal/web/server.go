// Package web serves the dashboard feed: REST access to the notification
// store, a live WebSocket stream of store changes, and an optional Web Push
// relay.
package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/shuntaka9576/agentoast/internal/logging"
	"github.com/shuntaka9576/agentoast/internal/notify"
	"github.com/shuntaka9576/agentoast/internal/store"
)

// Config defines runtime options for the feed server.
type Config struct {
	ListenAddr string

	// Token, when set, is required on every request as ?token= or a
	// Bearer header.
	Token string

	// DataDir holds the push subscription and VAPID key files.
	DataDir string

	PushEnabled     bool
	VAPIDPublicKey  string
	VAPIDPrivateKey string

	// Subscriber is the contact mailto/URL claimed in push requests.
	Subscriber string
}

// Server wraps the HTTP server for the agentoast dashboard feed.
type Server struct {
	cfg        Config
	store      *store.Store
	svc        *notify.Service
	bus        *notify.Bus
	httpServer *http.Server
	feed       *feedHub
	push       *pushRelay
	limiter    *rate.Limiter
	log        *slog.Logger

	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewServer builds the feed server. The bus carries store-mutation events to
// the WebSocket feed and the push relay; the caller owns publishing to it.
func NewServer(cfg Config, st *store.Store, svc *notify.Service, bus *notify.Bus) *Server {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:8787"
	}

	s := &Server{
		cfg:     cfg,
		store:   st,
		svc:     svc,
		bus:     bus,
		feed:    newFeedHub(),
		limiter: rate.NewLimiter(rate.Limit(20), 40),
		log:     logging.ForComponent(logging.CompWeb),
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())

	if cfg.PushEnabled {
		relay, err := newPushRelay(cfg, st)
		if err != nil {
			s.log.Warn("push_disabled", slog.String("error", err.Error()))
		} else {
			s.push = relay
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/notifications", s.handleNotifications)
	mux.HandleFunc("/api/notifications/", s.handleNotificationByID)
	mux.HandleFunc("/api/mute", s.handleMute)
	mux.HandleFunc("/api/push/config", s.handlePushConfig)
	mux.HandleFunc("/api/push/subscribe", s.handlePushSubscribe)
	mux.HandleFunc("/api/push/unsubscribe", s.handlePushUnsubscribe)
	mux.HandleFunc("/api/push/presence", s.handlePushPresence)
	mux.HandleFunc("/ws/feed", s.handleFeedWS)

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           withRecover(s.withRateLimit(mux)),
		BaseContext:       func(_ net.Listener) context.Context { return s.baseCtx },
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the configured HTTP handler (used by tests).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the event pumps and blocks serving HTTP until shutdown or
// error. Returns nil on graceful shutdown.
func (s *Server) Start() error {
	events, cancel := s.bus.Subscribe(64)
	go func() {
		defer cancel()
		s.pumpEvents(events)
	}()

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server, force-closing if the WebSocket
// connections keep graceful shutdown from completing.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancelBase != nil {
		s.cancelBase()
	}

	err := s.httpServer.Shutdown(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		if closeErr := s.httpServer.Close(); closeErr != nil {
			return fmt.Errorf("graceful shutdown timed out and force close failed: %w", closeErr)
		}
		return nil
	}
	return err
}

// pumpEvents fans bus events out to the WebSocket feed and the push relay.
func (s *Server) pumpEvents(events <-chan notify.Event) {
	for {
		select {
		case <-s.baseCtx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			switch ev := e.(type) {
			case notify.NotificationStored:
				s.feed.broadcast(s.feedEventFor("notification", &ev.Notification))
				if s.push != nil {
					s.push.notify(s.baseCtx, ev.Notification)
				}
			case notify.ToastRequested:
				// Stored events cover every row; toast events mark the
				// subset that cleared muting, so browser clients can
				// surface them without re-deriving the policy.
				for i := range ev.Batch {
					s.feed.broadcast(s.feedEventFor("toast", &ev.Batch[i]))
				}
			case notify.MuteChanged:
				state := ev.State
				evt := s.feedEventFor("mute", nil)
				evt.Mute = &state
				s.feed.broadcast(evt)
			case notify.RefreshRequested:
				s.feed.broadcast(s.feedEventFor("refresh", nil))
			}
		}
	}
}

func (s *Server) feedEventFor(typ string, n *store.Notification) feedEvent {
	evt := feedEvent{
		Type:         typ,
		Notification: n,
		Time:         time.Now().UTC(),
	}
	if unread, err := s.store.UnreadCount(); err == nil {
		evt.Unread = unread
	}
	return evt
}

func (s *Server) authorizeRequest(r *http.Request) bool {
	if s.cfg.Token == "" {
		return true
	}
	if q := strings.TrimSpace(r.URL.Query().Get("token")); q != "" && secureEqual(q, s.cfg.Token) {
		return true
	}
	if h := bearerToken(r.Header.Get("Authorization")); h != "" && secureEqual(h, s.cfg.Token) {
		return true
	}
	return false
}

func bearerToken(authHeader string) string {
	authHeader = strings.TrimSpace(authHeader)
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// withRateLimit bounds the API request rate. The stream endpoints are
// exempt: a connection is one long request, not a request per event.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/ws/") && !s.limiter.Allow() {
			writeAPIError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.ForComponent(logging.CompWeb).Error("panic",
					slog.String("recover", fmt.Sprintf("%v", rec)),
					slog.String("path", r.URL.Path))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
