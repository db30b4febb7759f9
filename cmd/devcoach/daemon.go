package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cleaver/open-dev-coach/internal/ai"
	"github.com/cleaver/open-dev-coach/internal/config"
	"github.com/cleaver/open-dev-coach/internal/controlplane"
	"github.com/cleaver/open-dev-coach/internal/digest"
	"github.com/cleaver/open-dev-coach/internal/notify"
	"github.com/cleaver/open-dev-coach/internal/notify/desktop"
	"github.com/cleaver/open-dev-coach/internal/notify/telegram"
	"github.com/cleaver/open-dev-coach/internal/scheduler"
	"github.com/cleaver/open-dev-coach/internal/session"
	"github.com/cleaver/open-dev-coach/internal/store"
	"github.com/cleaver/open-dev-coach/internal/timezone"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	listenAddr string
	dbPath     string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the devcoach daemon",
	Long:  `Starts the devcoach daemon which owns the database, fires check-ins and serves the HTTP API.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (default from config)")
	daemonCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (default from config)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	log.Println("Starting devcoach daemon...")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	settings, err := cfg.Settings()
	if err != nil {
		return err
	}
	if listenAddr == "" {
		listenAddr = settings.Listen
	}
	if dbPath == "" {
		dbPath = settings.DBPath
	}

	// The zone is read from config on every conversion, so edits apply live.
	tz := timezone.New(cfg)
	if _, err := tz.Location(); err != nil {
		log.Printf("warn: %v; local times fail until the timezone is fixed", err)
	}
	log.Printf("Timezone: %s", tz.Zone())

	// Initialize store
	s, err := store.New(dbPath, tz)
	if err != nil {
		return err
	}

	// Initialize collaborators
	chat, err := ai.New(ai.Options{
		Provider: settings.AI.Provider,
		Model:    settings.AI.Model,
		BaseURL:  settings.AI.BaseURL,
		APIKey:   settings.AI.APIKey,
		Timeout:  settings.AI.Timeout,
	})
	if err != nil {
		log.Printf("warn: ai provider: %v (coaching disabled)", err)
		chat = ai.Disabled{}
	}
	notifier := buildNotifier(settings)

	sessCfg := session.DefaultConfig()
	if settings.Session.HistorySize > 0 {
		sessCfg.HistorySize = settings.Session.HistorySize
	}
	if settings.AI.Timeout > 0 {
		sessCfg.Timeout = settings.AI.Timeout
	}
	sess := session.New(s, chat, notifier, sessCfg)
	sess.Start()

	// Reconciliation finishes before the API accepts commands.
	sched := scheduler.New(s, tz, sess, &scheduler.Config{InboxSize: settings.Scheduler.InboxSize})
	if err := sched.Start(cmd.Context()); err != nil {
		sess.Stop()
		s.Close()
		return err
	}

	dg := digest.New(s, tz, notifier)
	if err := dg.ScheduleDaily(settings.Digest.Time); err != nil {
		log.Printf("warn: daily digest disabled: %v", err)
	}
	dg.Start()

	stopWatch, err := cfg.Watch(func() {
		updated, err := cfg.Settings()
		if err != nil {
			log.Printf("warn: reload config: %v", err)
			return
		}
		if _, err := tz.Location(); err != nil {
			log.Printf("warn: %v; local times fail until the timezone is fixed", err)
		} else {
			log.Printf("Timezone: %s", tz.Zone())
		}
		if err := dg.ScheduleDaily(updated.Digest.Time); err != nil {
			log.Printf("warn: reschedule digest: %v", err)
		}
	})
	if err != nil {
		log.Printf("warn: config changes need a restart: %v", err)
		stopWatch = func() {}
	}

	// Create service and server
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	controlplane.Version = version
	service := controlplane.NewService(s, tz, sched, sess, dg)
	server := controlplane.NewServer(service, listenAddr)

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	go func() {
		err := server.Start()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("Server error: %v", err)
			runErr = err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	stopWatch()
	dg.Stop()
	// Pending check-ins stay scheduled and are reconciled on the next start.
	sched.Stop()
	sess.Stop()

	log.Println("Closing database connection...")
	if err := s.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("Shutdown complete")
	return runErr
}

// buildNotifier fans out to the log plus every configured channel.
func buildNotifier(settings *config.Settings) notify.Notifier {
	channels := notify.Multi{notify.Log{}}

	if settings.Notify.Desktop {
		d := desktop.New()
		if d.Supported() {
			channels = append(channels, d)
		} else {
			log.Printf("warn: desktop notifications not supported on this platform")
		}
	}

	if settings.Notify.TelegramToken != "" {
		if settings.Notify.TelegramChatID == 0 {
			log.Printf("warn: notify.telegram_chat_id is not set; telegram disabled")
		} else if tg, err := telegram.New(settings.Notify.TelegramToken, settings.Notify.TelegramChatID); err != nil {
			log.Printf("warn: telegram: %v", err)
		} else {
			channels = append(channels, tg)
		}
	}

	return channels
}
