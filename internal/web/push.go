package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"golang.org/x/time/rate"

	"github.com/shuntaka9576/agentoast/internal/logging"
	"github.com/shuntaka9576/agentoast/internal/store"
)

const subscriptionsFileName = "push_subscriptions.json"

type pushSubscription struct {
	Endpoint       string               `json:"endpoint"`
	ExpirationTime any                  `json:"expirationTime,omitempty"`
	Keys           pushSubscriptionKeys `json:"keys"`

	// ClientFocused tracks whether the subscribing dashboard tab reported
	// itself focused; a focused tab already sees the live feed.
	ClientFocused  *bool     `json:"clientFocused,omitempty"`
	FocusUpdatedAt time.Time `json:"focusUpdatedAt,omitempty"`
}

type pushSubscriptionKeys struct {
	P256DH string `json:"p256dh"`
	Auth   string `json:"auth"`
}

func (s pushSubscription) normalize() pushSubscription {
	s.Endpoint = strings.TrimSpace(s.Endpoint)
	s.Keys.P256DH = strings.TrimSpace(s.Keys.P256DH)
	s.Keys.Auth = strings.TrimSpace(s.Keys.Auth)
	return s
}

func (s pushSubscription) validate() error {
	sub := s.normalize()
	if sub.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if sub.Keys.P256DH == "" {
		return fmt.Errorf("keys.p256dh is required")
	}
	if sub.Keys.Auth == "" {
		return fmt.Errorf("keys.auth is required")
	}
	return nil
}

type subscriptionFile struct {
	UpdatedAt     time.Time          `json:"updatedAt"`
	Subscriptions []pushSubscription `json:"subscriptions"`
}

// subscriptionStore persists push subscriptions as a JSON file under the
// data dir, written atomically.
type subscriptionStore struct {
	path string
	mu   sync.Mutex
}

func newSubscriptionStore(dataDir string) *subscriptionStore {
	return &subscriptionStore{path: filepath.Join(dataDir, subscriptionsFileName)}
}

func (s *subscriptionStore) List() ([]pushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	out := make([]pushSubscription, len(data.Subscriptions))
	copy(out, data.Subscriptions)
	return out, nil
}

func (s *subscriptionStore) Count() (int, error) {
	subs, err := s.List()
	if err != nil {
		return 0, err
	}
	return len(subs), nil
}

func (s *subscriptionStore) Upsert(sub pushSubscription) error {
	sub = sub.normalize()
	if err := sub.validate(); err != nil {
		return err
	}
	if sub.ClientFocused != nil && sub.FocusUpdatedAt.IsZero() {
		sub.FocusUpdatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readLocked()
	if err != nil {
		return err
	}

	updated := false
	for i := range data.Subscriptions {
		if data.Subscriptions[i].Endpoint != sub.Endpoint {
			continue
		}
		// Keep the last known focus state unless the caller sends one.
		if sub.ClientFocused == nil && data.Subscriptions[i].ClientFocused != nil {
			sub.ClientFocused = data.Subscriptions[i].ClientFocused
			sub.FocusUpdatedAt = data.Subscriptions[i].FocusUpdatedAt
		}
		data.Subscriptions[i] = sub
		updated = true
		break
	}
	if !updated {
		data.Subscriptions = append(data.Subscriptions, sub)
	}
	data.UpdatedAt = time.Now().UTC()
	return s.writeLocked(data)
}

func (s *subscriptionStore) UpdateFocus(endpoint string, focused bool) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readLocked()
	if err != nil {
		return err
	}

	found := false
	for i := range data.Subscriptions {
		if data.Subscriptions[i].Endpoint != endpoint {
			continue
		}
		focusedCopy := focused
		data.Subscriptions[i].ClientFocused = &focusedCopy
		data.Subscriptions[i].FocusUpdatedAt = time.Now().UTC()
		found = true
		break
	}
	if !found {
		return nil
	}

	data.UpdatedAt = time.Now().UTC()
	return s.writeLocked(data)
}

func (s *subscriptionStore) Remove(endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readLocked()
	if err != nil {
		return err
	}

	filtered := data.Subscriptions[:0]
	for _, sub := range data.Subscriptions {
		if sub.Endpoint == endpoint {
			continue
		}
		filtered = append(filtered, sub)
	}
	data.Subscriptions = filtered
	data.UpdatedAt = time.Now().UTC()
	return s.writeLocked(data)
}

func (s *subscriptionStore) readLocked() (*subscriptionFile, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &subscriptionFile{Subscriptions: []pushSubscription{}}, nil
		}
		return nil, fmt.Errorf("read push subscriptions: %w", err)
	}

	var data subscriptionFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse push subscriptions: %w", err)
	}
	if data.Subscriptions == nil {
		data.Subscriptions = []pushSubscription{}
	}
	return &data, nil
}

func (s *subscriptionStore) writeLocked(data *subscriptionFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("mkdir push subscription dir: %w", err)
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal push subscriptions: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write temp push subscriptions: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename push subscriptions: %w", err)
	}
	return nil
}

type pushSender interface {
	Send(payload []byte, sub pushSubscription) (int, error)
}

type vapidPushSender struct {
	subject    string
	publicKey  string
	privateKey string
}

func (s *vapidPushSender) Send(payload []byte, sub pushSubscription) (int, error) {
	sub = sub.normalize()
	resp, err := webpush.SendNotification(payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256DH,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.subject,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             3600,
	})
	if resp != nil {
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
	}

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if err != nil {
		return status, err
	}
	if status >= 400 {
		return status, fmt.Errorf("push gateway status %d", status)
	}
	return status, nil
}

// pushMessage is the JSON payload the service worker renders.
type pushMessage struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Tag       string `json:"tag,omitempty"`
	Renotify  bool   `json:"renotify,omitempty"`
	Badge     string `json:"badge,omitempty"`
	Color     string `json:"color,omitempty"`
	Repo      string `json:"repo,omitempty"`
	TmuxPane  string `json:"tmuxPane,omitempty"`
	Timestamp string `json:"timestamp"`
}

// pushRelay forwards stored notifications to Web Push subscribers. Sends are
// paced by a rate limiter so one noisy poll cycle cannot hammer the gateway.
type pushRelay struct {
	subject    string
	publicKey  string
	privateKey string

	store   *store.Store
	subs    *subscriptionStore
	sender  pushSender
	limiter *rate.Limiter
	log     *slog.Logger
}

func newPushRelay(cfg Config, st *store.Store) (*pushRelay, error) {
	publicKey := strings.TrimSpace(cfg.VAPIDPublicKey)
	privateKey := strings.TrimSpace(cfg.VAPIDPrivateKey)
	if publicKey == "" || privateKey == "" {
		return nil, fmt.Errorf("both vapid public and private keys are required")
	}

	subject := strings.TrimSpace(cfg.Subscriber)
	if subject == "" {
		subject = "mailto:agentoast@localhost"
	}
	dataDir := cfg.DataDir
	if dataDir == "" {
		return nil, fmt.Errorf("data dir is required for push subscriptions")
	}

	return &pushRelay{
		subject:    subject,
		publicKey:  publicKey,
		privateKey: privateKey,
		store:      st,
		subs:       newSubscriptionStore(dataDir),
		sender:     &vapidPushSender{subject: subject, publicKey: publicKey, privateKey: privateKey},
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
		log:        logging.ForComponent(logging.CompWeb),
	}, nil
}

// notify pushes one stored notification to every eligible subscriber.
// Muted groups stay quiet on phones the same way they stay quiet on screen.
func (p *pushRelay) notify(ctx context.Context, n store.Notification) {
	if mute, err := p.store.LoadMuteState(); err == nil && mute.Muted(n.Repo) {
		return
	}

	subs, err := p.subs.List()
	if err != nil {
		p.log.Error("push_list_subscriptions_failed", slog.String("error", err.Error()))
		return
	}
	if len(subs) == 0 {
		return
	}

	msg := pushMessage{
		Title:     pushTitle(n),
		Body:      n.Body,
		Tag:       fmt.Sprintf("agentoast-%d", n.ID),
		Renotify:  true,
		Badge:     n.Badge,
		Color:     n.BadgeColor,
		Repo:      n.Repo,
		TmuxPane:  n.TmuxPane,
		Timestamp: n.CreatedAt.UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		p.log.Error("push_marshal_failed", slog.String("error", err.Error()))
		return
	}

	for _, sub := range subs {
		if !shouldPush(sub) {
			p.log.Debug("push_skipped",
				slog.String("endpoint", endpointForLog(sub.Endpoint)),
				slog.String("reason", "client_focused"))
			continue
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}
		status, err := p.sender.Send(payload, sub)
		if err == nil {
			p.log.Debug("push_sent",
				slog.String("endpoint", endpointForLog(sub.Endpoint)),
				slog.Int("http_status", status),
				slog.Int64("notification", n.ID))
			continue
		}

		p.log.Error("push_send_failed",
			slog.String("endpoint", endpointForLog(sub.Endpoint)),
			slog.Int("http_status", status),
			slog.String("error", err.Error()))
		if status == http.StatusGone || status == http.StatusNotFound {
			_ = p.subs.Remove(sub.Endpoint)
		}
	}
}

func pushTitle(n store.Notification) string {
	badge := strings.TrimSpace(n.Badge)
	if badge == "" {
		badge = "Notification"
	}
	if repo := repoBase(n.Repo); repo != "" {
		return fmt.Sprintf("%s: %s", repo, badge)
	}
	return "agentoast: " + badge
}

func repoBase(repo string) string {
	repo = strings.TrimSpace(repo)
	if repo == "" {
		return ""
	}
	return filepath.Base(repo)
}

// shouldPush skips subscribers whose dashboard tab reported itself focused;
// a tab that never reported presence still gets pushes.
func shouldPush(sub pushSubscription) bool {
	return sub.ClientFocused == nil || !*sub.ClientFocused
}

func endpointForLog(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err == nil && u.Host != "" {
		return u.Host
	}
	endpoint = strings.TrimSpace(endpoint)
	if len(endpoint) <= 48 {
		return endpoint
	}
	return endpoint[:48] + "..."
}
