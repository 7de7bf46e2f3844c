package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shuntaka9576/agentoast/internal/logging"
	"github.com/shuntaka9576/agentoast/internal/notify"
)

// handleWeb runs the dashboard feed server standalone, without the poll
// loop. Useful when the daemon runs elsewhere or notifications come purely
// from hook adapters.
func handleWeb(args []string) {
	fs := flag.NewFlagSet("web", flag.ExitOnError)
	listen := fs.String("listen", "", "Listen address (default from config, 127.0.0.1:8787)")
	token := fs.String("token", "", "Require this token on API and WebSocket access")
	push := fs.Bool("push", false, "Enable Web Push delivery (overrides config)")
	subscriber := fs.String("subscriber", "", "VAPID subject claimed in push requests (mailto: or URL)")
	verbose := fs.Bool("verbose", false, "Mirror warnings to stderr")

	fs.Usage = func() {
		fmt.Println("Usage: agentoast web [options]")
		fmt.Println()
		fmt.Println("Serve the live notification feed and Web Push relay.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig()
	if *listen != "" {
		cfg.Web.Addr = *listen
	}
	if *push {
		cfg.Web.PushEnabled = true
	}
	if *subscriber != "" {
		cfg.Web.Subscriber = *subscriber
	}

	initServiceLogging(cfg, *verbose)
	defer logging.Shutdown()
	log := logging.ForComponent(logging.CompWeb)

	st, err := openStore()
	if err != nil {
		fail("%v", err)
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bus := notify.NewBus()
	svc := notify.NewService(st, nil)
	startStorePump(ctx, st, bus, log)

	srv, err := buildWebServer(cfg, st, svc, bus, *token)
	if err != nil {
		fail("%v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	fmt.Printf("Feed server listening on %s\n", srv.Addr())

	select {
	case err := <-errCh:
		if err != nil {
			fail("web server failed: %v", err)
		}
	case <-ctx.Done():
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			log.Warn("web_shutdown_forced", slog.String("error", err.Error()))
		}
	}
}
