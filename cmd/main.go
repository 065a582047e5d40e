package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/joho/godotenv/autoload"
	elog "github.com/labstack/gommon/log"

	"storywoven/pkg/inference"
	"storywoven/pkg/planner"
	"storywoven/pkg/registry"
	"storywoven/pkg/scene"
	"storywoven/pkg/server"
	"storywoven/pkg/storage"
	"storywoven/pkg/store"
	"storywoven/pkg/story"
)

func main() {
	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer done()

	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatal("configuration", "err", err)
	}

	adapter := newAdapter(ctx, cfg)
	st := newStore(ctx, cfg)

	objects, err := storage.NewLocalStorage(cfg.FilesDir, cfg.BaseURL+"/files")
	if err != nil {
		log.Fatal("object storage", "err", err)
	}

	reg := &registry.Service{Adapter: adapter, Store: st}
	pl := &planner.Planner{Adapter: adapter}
	scenes := &scene.Coordinator{Adapter: adapter, Store: st, Storage: objects, Planner: pl}
	storySvc := story.NewService(ctx, adapter, st, objects, reg)
	storySvc.Placeholder = cfg.DevPlaceholderModels

	srv := server.NewServer(ctx, cfg, st, storySvc, reg, scenes)
	srv.Echo.Logger.SetLevel(elog.INFO)

	finishedShutDown := make(chan struct{})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", "err", err)
		}
		close(finishedShutDown)
	}()

	if err := srv.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server", "err", err)
	}
	<-finishedShutDown
}

func newAdapter(ctx context.Context, cfg server.Config) inference.Adapter {
	timeouts := inference.DefaultTimeouts()
	if cfg.GeminiKey != "" {
		gem, err := inference.NewGeminiAdapter(ctx, cfg.GeminiKey, cfg.TextModel, cfg.ImageModel, timeouts)
		if err != nil {
			log.Fatal("gemini adapter", "err", err)
		}
		log.Info("using gemini", "model", cfg.TextModel)
		return gem
	}
	oa := inference.NewOpenAIAdapter(cfg.OpenAIKey, cfg.TextModel, cfg.ImageModel, timeouts)
	if cfg.OpenAIBaseURL != "" {
		oa.ChangeBaseURL(cfg.OpenAIBaseURL)
	}
	log.Info("using openai", "model", cfg.TextModel)
	return oa
}

func newStore(ctx context.Context, cfg server.Config) store.Store {
	if cfg.RedisAddr != "" {
		rs := store.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rs.Ping(ctx); err != nil {
			log.Fatal("redis", "addr", cfg.RedisAddr, "err", err)
		}
		log.Info("using redis store", "addr", cfg.RedisAddr)
		return store.NewCachedStore(rs, 5*time.Minute)
	}
	fs, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		log.Fatal("file store", "err", err)
	}
	log.Info("using file store", "dir", cfg.DataDir)
	return store.NewCachedStore(fs, 5*time.Minute)
}
