// Package server exposes the book pipeline over HTTP.
package server

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"storywoven/pkg/registry"
	"storywoven/pkg/scene"
	"storywoven/pkg/story"
	"storywoven/pkg/store"
)

type Server struct {
	Echo *echo.Echo
	Ctx  context.Context

	Store    store.Store
	Story    *story.Service
	Registry *registry.Service
	Scenes   *scene.Coordinator
	Auth     Authorizer

	filesDir string
}

func NewServer(ctx context.Context, cfg Config, st store.Store, storySvc *story.Service, reg *registry.Service, scenes *scene.Coordinator) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.CORS())
	e.Use(middleware.Recover())

	s := &Server{
		Echo:     e,
		Ctx:      ctx,
		Store:    st,
		Story:    storySvc,
		Registry: reg,
		Scenes:   scenes,
		Auth:     HeaderAuthorizer{},
		filesDir: cfg.FilesDir,
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.Echo.Group("/api")
	api.POST("/ideas", s.handlePostIdeas)
	api.POST("/story", s.handlePostStory)
	api.POST("/finalize", s.handlePostFinalize)
	api.POST("/character-model", s.handlePostCharacterModel)
	api.POST("/scene", s.handlePostScene)
	api.POST("/illustration", s.handlePostIllustration)
	api.GET("/project/:id", s.handleGetProject)

	// rendered images and model sheets
	s.Echo.Static("/files", s.filesDir)
}

func (s *Server) Start(addr string) error {
	log.Info("server listening", "addr", addr)
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("shutting down server")
	return s.Echo.Shutdown(ctx)
}
