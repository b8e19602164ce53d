package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/yt2spotify/internal/shared"
	"golang.org/x/oauth2"
)

// Logging logs each request at debug level.
func Logging(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
		})
	}
}

// CallbackServer serves an [OAuthHandler] on the host and port of the redirect URI.
type CallbackServer struct {
	handler  *OAuthHandler
	mux      *CallbackMux
	listener net.Listener
	srv      *http.Server
}

// ListenCallback binds the address of redirectURI and registers handler on it.
func ListenCallback(redirectURI string, handler *OAuthHandler, logger *log.Logger) (*CallbackServer, error) {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: redirect uri %q", shared.ErrInvalidConfig, redirectURI)
	}

	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", u.Host, err)
	}

	mux := NewCallbackMux()
	if logger != nil {
		mux.Use(Logging(logger))
	}
	mux.Mount(handler)

	return &CallbackServer{
		handler:  handler,
		mux:      mux,
		listener: ln,
		srv:      &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second},
	}, nil
}

// Addr returns the bound address.
func (s *CallbackServer) Addr() string {
	return s.listener.Addr().String()
}

// Await serves until the callback completes or ctx ends, then shuts the server down.
func (s *CallbackServer) Await(ctx context.Context) (*oauth2.Token, error) {
	serveErr := make(chan error, 1)
	go func() {
		if err := s.srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case err := <-serveErr:
			s.handler.Send(OAuthResult{err: fmt.Errorf("callback server: %w", err)})
		case <-waitCtx.Done():
		}
	}()

	return s.handler.Wait(ctx)
}
