package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shuntaka9576/agentoast/internal/config"
	"github.com/shuntaka9576/agentoast/internal/logging"
	"github.com/shuntaka9576/agentoast/internal/notify"
	"github.com/shuntaka9576/agentoast/internal/poll"
	"github.com/shuntaka9576/agentoast/internal/store"
	"github.com/shuntaka9576/agentoast/internal/watch"
	"github.com/shuntaka9576/agentoast/internal/web"
)

// handleDaemon runs the observation loop: pane polling, the store change
// pump, and optionally the web feed server.
func handleDaemon(args []string) {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	once := fs.Bool("once", false, "Run one poll cycle and exit")
	verbose := fs.Bool("verbose", false, "Mirror warnings to stderr")
	webFlag := fs.Bool("web", false, "Serve the dashboard feed (overrides config)")

	fs.Usage = func() {
		fmt.Println("Usage: agentoast daemon [--once] [--web]")
		fmt.Println()
		fmt.Println("Watch tmux panes for agent activity and raise notifications.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig()
	initServiceLogging(cfg, *verbose)
	defer logging.Shutdown()
	log := logging.ForComponent(logging.CompPoller)

	st, err := openStore()
	if err != nil {
		fail("%v", err)
	}
	defer st.Close()

	// The daemon's Service runs without a bus: rows reach in-process
	// consumers through the store pump below, which also sees rows written
	// by hook adapter processes. One event path, wherever the row came from.
	svc := notify.NewService(st, nil)
	poller := poll.New(svc, cfg)

	if *once {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		infos, err := poller.Tick(ctx)
		if err != nil {
			fail("poll cycle failed: %v", err)
		}
		fmt.Printf("Observed %d agent pane(s)\n", len(infos))
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bus := notify.NewBus()
	startStorePump(ctx, st, bus, log)
	startConfigReload(ctx, poller, log)

	if *webFlag || cfg.Web.Enabled {
		srv, err := buildWebServer(cfg, st, svc, bus, "")
		if err != nil {
			log.Warn("web_server_unavailable", slog.String("error", err.Error()))
		} else {
			go func() {
				if err := srv.Start(); err != nil {
					log.Warn("web_server_failed", slog.String("error", err.Error()))
				}
			}()
			defer func() {
				shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutCancel()
				_ = srv.Shutdown(shutCtx)
			}()
			log.Info("web_server_started", slog.String("addr", srv.Addr()))
		}
	}

	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fail("daemon stopped: %v", err)
	}
}

// startStorePump republishes rows appended to the store onto the bus. The
// tail starts at the current high-water mark, so only rows stored from now
// on surface. Muted rows still publish as stored (the feed shows them) but
// never as a toast batch.
func startStorePump(ctx context.Context, st *store.Store, bus *notify.Bus, log *slog.Logger) {
	dbPath, err := config.DBPath()
	if err != nil {
		log.Warn("store_pump_unavailable", slog.String("error", err.Error()))
		return
	}
	tail, err := notify.NewTail(st)
	if err != nil {
		log.Warn("store_pump_unavailable", slog.String("error", err.Error()))
		return
	}
	watcher, err := watch.Start(ctx, dbPath, watch.Options{})
	if err != nil {
		log.Warn("store_watch_unavailable", slog.String("error", err.Error()))
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-watcher.Events():
				if !ok {
					return
				}
			}

			rows, err := tail.Next()
			if err != nil {
				log.Warn("store_tail_failed", slog.String("error", err.Error()))
				continue
			}
			if len(rows) == 0 {
				continue
			}

			mute, err := st.LoadMuteState()
			if err != nil {
				log.Warn("mute_state_unavailable", slog.String("error", err.Error()))
				mute = store.NewMuteState()
			}

			var batch []store.Notification
			for _, n := range rows {
				bus.Publish(notify.NotificationStored{Notification: n})
				if !n.ForceFocus && !mute.Muted(n.Repo) {
					batch = append(batch, n)
				}
			}
			if len(batch) > 0 {
				bus.Publish(notify.ToastRequested{Batch: batch})
			}
		}
	}()
}

// startConfigReload recompiles the detector rule tables when the config
// file changes, so new spinner glyphs or dialog text apply without a
// restart.
func startConfigReload(ctx context.Context, poller *poll.Poller, log *slog.Logger) {
	cfgPath, err := config.Path()
	if err != nil {
		return
	}
	watcher, err := watch.Start(ctx, cfgPath, watch.Options{})
	if err != nil {
		log.Debug("config_watch_unavailable", slog.String("error", err.Error()))
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-watcher.Events():
				if !ok {
					return
				}
			}
			cfg, err := config.Reload()
			if err != nil {
				log.Warn("config_reload_failed", slog.String("error", err.Error()))
				continue
			}
			poller.SetRules(poll.RulesFromConfig(cfg))
			log.Info("config_reloaded")
		}
	}()
}

// buildWebServer assembles the feed server from config, generating a VAPID
// keypair on first push-enabled startup.
func buildWebServer(cfg *config.UserConfig, st *store.Store, svc *notify.Service, bus *notify.Bus, token string) (*web.Server, error) {
	dataDir, err := config.DataDir()
	if err != nil {
		return nil, fmt.Errorf("resolving data dir: %w", err)
	}

	wc := web.Config{
		ListenAddr:      cfg.Web.ListenAddr(),
		Token:           token,
		DataDir:         dataDir,
		PushEnabled:     cfg.Web.PushEnabled,
		VAPIDPublicKey:  cfg.Web.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Web.VAPIDPrivateKey,
		Subscriber:      cfg.Web.Subscriber,
	}
	if wc.PushEnabled && (wc.VAPIDPublicKey == "" || wc.VAPIDPrivateKey == "") {
		pub, priv, _, err := web.EnsureVAPIDKeys(dataDir, wc.Subscriber)
		if err != nil {
			return nil, fmt.Errorf("preparing push keys: %w", err)
		}
		wc.VAPIDPublicKey, wc.VAPIDPrivateKey = pub, priv
	}
	return web.NewServer(wc, st, svc, bus), nil
}
