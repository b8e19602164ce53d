// Package web exposes the conversion pipeline as a gin JSON API with SSE progress.
//
// Each conversion gets its own [tasks.Converter], kept in an in-memory registry keyed by id.
//
// Routes
//
//	GET  /api/health                     → liveness and auth status
//	POST /api/conversions                → start a conversion from {"youtube_url": "..."}
//	GET  /api/conversions/:id            → session snapshot
//	GET  /api/conversions/:id/events     → SSE stream of progress updates
//	POST /api/conversions/:id/confirm    → create the playlist from the preview
//	POST /api/conversions/:id/cancel     → abandon the conversion
//	GET  /api/history                    → finished conversions, newest first
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/yt2spotify/internal/models"
	"github.com/desertthunder/yt2spotify/internal/recognition"
	"github.com/desertthunder/yt2spotify/internal/services"
	"github.com/desertthunder/yt2spotify/internal/shared"
	"github.com/desertthunder/yt2spotify/internal/tasks"
	"github.com/gin-gonic/gin"
)

// HistoryLister lists finished conversions.
type HistoryLister interface {
	List(criteria map[string]any) ([]*models.ConversionRecord, error)
}

// Deps are the collaborators shared by every conversion.
type Deps struct {
	Recognizer recognition.Recognizer
	Catalog    services.Catalog
	Playlists  services.Playlists
	Accounts   tasks.AccountSource
	Options    tasks.Options // Progress is replaced per conversion
	History    HistoryLister
	Logger     *log.Logger

	Retention  time.Duration // how long a finished conversion stays readable, default one minute
	PreviewTTL time.Duration // previews untouched this long are cancelled, default 30 minutes
}

const (
	defaultRetention  = time.Minute
	defaultPreviewTTL = 30 * time.Minute
)

// Server owns the registry of conversions and the gin engine serving them.
type Server struct {
	deps   Deps
	engine *gin.Engine
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	conversions map[string]*conversion
}

// NewServer builds the gin engine and registers routes.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard)
	}
	if deps.Retention <= 0 {
		deps.Retention = defaultRetention
	}
	if deps.PreviewTTL <= 0 {
		deps.PreviewTTL = defaultPreviewTTL
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		deps:        deps,
		engine:      gin.New(),
		logger:      shared.WithLogger(deps.Logger, "component", "web"),
		ctx:         ctx,
		cancel:      cancel,
		conversions: map[string]*conversion{},
	}

	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.health)
	api.GET("/history", s.history)

	conv := api.Group("/conversions")
	conv.POST("", s.start)
	conv.GET("/:id", s.show)
	conv.GET("/:id/events", s.events)
	conv.POST("/:id/confirm", s.confirm)
	conv.POST("/:id/cancel", s.cancelConversion)
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close stops in-flight conversions and empties the registry.
func (s *Server) Close() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.conversions)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

func (s *Server) lookup(id string) (*conversion, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversions[id]
	return conv, ok
}

func (s *Server) add(conv *conversion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversions[conv.id] = conv
}

func (s *Server) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversions, id)
}

// watch pumps a conversion's updates and evicts it from the registry once it has finished.
//
// Finished conversions stay readable for the retention period; a closing server evicts at once.
func (s *Server) watch(conv *conversion, updates <-chan tasks.ProgressUpdate) {
	conv.pump(s.ctx.Done(), updates, s.deps.PreviewTTL)
	if s.ctx.Err() != nil {
		s.remove(conv.id)
		return
	}
	time.AfterFunc(s.deps.Retention, func() { s.remove(conv.id) })
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrConversionNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidState), errors.Is(err, shared.ErrConversionCancelled):
		return http.StatusConflict
	case errors.Is(err, shared.ErrNoSongsFound):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{
		"error":   shared.UserMessage(err),
		"details": shared.Redact(err.Error()),
	})
}
