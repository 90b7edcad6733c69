// Package http exposes the chat, folder and auth API over echo.
package http

import (
	"context"
	"embed"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/0xcro3dile/ragchat/internal/domain/ports"
	"github.com/0xcro3dile/ragchat/internal/domain/usecases"
	"github.com/0xcro3dile/ragchat/internal/infrastructure/logger"
)

//go:embed web/index.html
var webFS embed.FS

// Indexer schedules indexing of an uploaded file.
type Indexer interface {
	IngestFile(ctx context.Context, path string) (bool, error)
}

// Deps are the use cases and stores the handlers call into.
type Deps struct {
	Auth        *usecases.AuthUseCase
	Chat        *usecases.ChatUseCase
	Indexer     Indexer
	VectorStore ports.VectorStore
	DocStore    ports.DocumentStore
	PingDB      func(ctx context.Context) error
}

// Options configure the listener and file locations.
type Options struct {
	Addr        string
	DataDir     string
	FrontendDir string // optional SPA build served for non-API paths
}

// Server is the HTTP server for the RAG API and UI.
type Server struct {
	deps Deps
	opts Options
	echo *echo.Echo

	// indexing runs uploads in the background; tests replace it to wait.
	indexing func(path string)
}

// NewServer builds the router.
func NewServer(deps Deps, opts Options) *Server {
	s := &Server{deps: deps, opts: opts}
	s.indexing = func(path string) { go s.index(path) }

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"*"},
	}))
	e.Use(requestLogger())

	api := e.Group("/api")
	api.GET("/health", s.handleHealth)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", s.handleRegister)
	authGroup.POST("/login", s.handleLogin)
	authGroup.GET("/me", s.handleMe, s.requireAuth)

	secured := api.Group("", s.requireAuth)
	secured.POST("/chat", s.handleChatStream)
	secured.POST("/chat/request", s.handleChatRequest)
	secured.GET("/chat/history", s.handleHistory)
	secured.POST("/conversations", s.handleCreateConversation)
	secured.GET("/conversations", s.handleListConversations)

	folder := api.Group("/folder")
	folder.GET("/files", s.handleListFiles)
	folder.POST("/upload", s.handleUpload)
	folder.GET("/view/:name", s.handleViewFile)
	folder.GET("/debug", s.handleDebug)

	s.mountFrontend(e)
	s.echo = e
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:        s.opts.Addr,
		Handler:     s.echo,
		ReadTimeout: 15 * time.Second,
		// Streaming responses can run for minutes.
		WriteTimeout: 300 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("RAG chat server starting on %s", s.opts.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
