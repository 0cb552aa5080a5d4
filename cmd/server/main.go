package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chirp/pkg/config"
	"chirp/pkg/handlers"
	"chirp/pkg/hub"
	"chirp/pkg/repository"
	"chirp/pkg/server"
	"chirp/pkg/services"
	"chirp/pkg/storage"

	log "github.com/sirupsen/logrus"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to a TOML config file.")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("[CHIRP] invalid config: %v", err)
	}

	lvl, _ := log.ParseLevel(cfg.LogLevel)
	log.SetLevel(lvl)
	log.Infof("[CHIRP] config: %s", cfg)
	if cfg.UsesDevSecret() {
		log.Warn("[CHIRP] JWT_SECRET not set, using the development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	kv, err := storage.Open(openCtx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("[CHIRP] storage %s unavailable: %v", cfg.Storage, err)
	}
	store := storage.Prefixed{KV: kv, Prefix: cfg.KeyPrefix}
	defer store.Close()
	log.Infof("[CHIRP] storage backend: %s", cfg.Storage)

	auth := services.NewAuthService(repository.NewAuthRepository(store), cfg.JWTSecret,
		services.WithMaxAvatarBytes(cfg.MaxImageBytes))
	posts := services.NewPostStore(repository.NewPostRepository(store))

	// Unreadable documents start empty; the server still comes up.
	if err := auth.Load(ctx); err != nil {
		log.Errorf("[CHIRP] loading users: %v", err)
	}
	if err := posts.Load(ctx); err != nil {
		log.Errorf("[CHIRP] loading posts: %v", err)
	}

	wsHub := hub.New()

	app := server.NewApp(server.Options{
		Name:        "chirp",
		CORSOrigins: cfg.CORSOrigins,
		BodyLimit:   int(cfg.MaxImageBytes) + 64<<10,
	})
	handlers.Mount(app, handlers.Deps{
		Auth:          auth,
		Posts:         posts,
		Hub:           wsHub,
		MaxImageBytes: cfg.MaxImageBytes,
		AuthRateLimit: cfg.AuthRateLimit,
	})

	go func() {
		<-ctx.Done()
		log.Info("[CHIRP] shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Errorf("[CHIRP] shutdown: %v", err)
		}
	}()

	addr := "0.0.0.0:" + cfg.Port
	log.Infof("[CHIRP] WebSocket: ws://<host>:%s/ws", cfg.Port)
	log.Infof("[CHIRP] server starting on %s", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("[CHIRP] failed to start: %v", err)
	}
	log.Info("[CHIRP] server stopped")
}
