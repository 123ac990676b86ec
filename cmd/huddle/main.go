package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/huddle/internal/config"
	"github.com/dukerupert/huddle/internal/database"
	"github.com/dukerupert/huddle/internal/email"
	"github.com/dukerupert/huddle/internal/handler"
	"github.com/dukerupert/huddle/internal/janitor"
	"github.com/dukerupert/huddle/internal/logging"
	"github.com/dukerupert/huddle/internal/password"
	"github.com/dukerupert/huddle/internal/pubsub"
	"github.com/dukerupert/huddle/internal/push"
	"github.com/dukerupert/huddle/internal/reset"
	"github.com/dukerupert/huddle/internal/server"
	"github.com/dukerupert/huddle/internal/storage"
	"github.com/dukerupert/huddle/internal/token"
)

const cleanupInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup("info").Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}
	if cfg.GeneratedSecret {
		logger.Warn("HUDDLE_SESSION_SECRET not set, using a random secret; sessions end on restart")
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	tokens, err := token.NewManager(cfg.SessionSecret, token.WithIssuer(cfg.BaseURL))
	if err != nil {
		logger.Error("token manager", "error", err)
		os.Exit(1)
	}

	var mailer reset.Sender = email.LogSender{Logger: logger.With("component", "email")}
	if cfg.EmailEnabled() {
		mailer = email.NewClient(cfg.PostmarkToken, cfg.FromEmail, cfg.BaseURL)
	} else if cfg.Production() {
		logger.Warn("email not configured, reset codes will only be logged")
	}

	ps := pubsub.New(cfg.RedisURL, logger)
	defer ps.Close()

	bucket := storage.New(cfg.Storage())
	if !bucket.Enabled() {
		logger.Info("file storage not configured, uploads disabled")
	}

	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.FromEmail)
	if !pushSvc.Enabled() {
		logger.Info("VAPID keys not configured, web push disabled")
	}

	var origins []string
	if u, err := url.Parse(cfg.BaseURL); err == nil && u.Host != "" {
		origins = append(origins, u.Host)
	}

	srv := server.New(server.Deps{
		DB:             db,
		Tokens:         tokens,
		Hasher:         password.NewHasher(cfg.BcryptCost),
		Mailer:         mailer,
		PubSub:         ps,
		NotifyChannel:  cfg.NotifyChannel,
		Push:           pushSvc,
		Bucket:         bucket,
		Cookies:        handler.CookieConfig{Secure: cfg.Production()},
		OriginPatterns: origins,
		Logger:         logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		srv.Relay().Run(ctx)
	}()

	jan := janitor.New(cleanupInterval, logger, srv.CleanupTasks()...)
	jan.Start(ctx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("huddle running", "url", cfg.BaseURL, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	jan.Stop()
	<-relayDone
}
