// Package server runs the short-lived local HTTP listener that receives the
// redirect at the end of a third-party sign-in.
//
//	srv := server.New(server.Config{Address: "127.0.0.1:8765", Path: "/auth/callback"})
//	if err := srv.Start(); err != nil { ... }
//	defer srv.Shutdown(ctx)
//	code, err := srv.Wait(ctx)
package server

import (
	"context"
	"fmt"
	"html"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/tasksync/internal/errors"
)

// Server receives one authorization code.
type Server struct {
	httpServer      *http.Server
	listener        net.Listener
	address         string
	path            string
	inShutdown      atomic.Bool
	shutdownTimeout time.Duration

	once   sync.Once
	result chan callback
}

type callback struct {
	code string
	err  error
}

// Config holds server configuration.
type Config struct {
	// Address is the listen address, e.g. "127.0.0.1:8765". Port 0 picks a
	// free port; see Addr.
	Address string

	// Path is the redirect path. Defaults to "/auth/callback".
	Path string

	// ShutdownTimeout is the maximum time to wait for connections to drain during shutdown.
	// Defaults to 5 seconds if not specified.
	ShutdownTimeout time.Duration

	// ReadTimeout is the maximum duration for reading the entire request.
	// Defaults to 10 seconds if not specified.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// Defaults to 10 seconds if not specified.
	WriteTimeout time.Duration
}

// New creates a callback server. Nothing listens until Start.
func New(cfg Config) *Server {
	if cfg.Path == "" {
		cfg.Path = "/auth/callback"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	s := &Server{
		address:         cfg.Address,
		path:            cfg.Path,
		shutdownTimeout: cfg.ShutdownTimeout,
		result:          make(chan callback, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, s.handleCallback)

	s.httpServer = &http.Server{
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Start binds the address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return errors.Wrap(errors.ErrCodeAuthExchangeFailed, "failed to listen for the sign-in redirect", err).
			WithSuggestion(fmt.Sprintf("Free %s or set oauth.redirect_url to another local port", s.address))
	}
	s.listener = ln

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.deliver(callback{err: err})
		}
	}()
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.address
	}
	return s.listener.Addr().String()
}

// URL returns the full redirect URL being served.
func (s *Server) URL() string {
	return "http://" + s.Addr() + s.path
}

// Wait blocks until the redirect arrives or ctx ends.
func (s *Server) Wait(ctx context.Context) (string, error) {
	select {
	case r := <-s.result:
		return r.code, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Shutdown stops accepting connections and waits for in-flight responses,
// so the browser still gets its page.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.httpServer.SetKeepAlivesEnabled(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// IsShuttingDown returns whether the server is shutting down.
func (s *Server) IsShuttingDown() bool {
	return s.inShutdown.Load()
}

// deliver keeps the first result; later redirects are ignored.
func (s *Server) deliver(r callback) bool {
	delivered := false
	s.once.Do(func() {
		s.result <- r
		delivered = true
	})
	return delivered
}

// handleCallback handles the provider redirect.
// GET <path>?code=... or GET <path>?error=...&error_description=...
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	var res callback
	switch {
	case q.Get("error") != "":
		msg := q.Get("error_description")
		if msg == "" {
			msg = q.Get("error")
		}
		res.err = errors.New(errors.ErrCodeAuthExchangeFailed, "sign-in was not completed: "+msg)
	case q.Get("code") != "":
		res.code = q.Get("code")
	default:
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	if !s.deliver(res) {
		writePage(w, http.StatusConflict, "This sign-in was already handled. You can close this window.")
		return
	}
	if res.err != nil {
		writePage(w, http.StatusOK, "Sign-in failed: "+res.err.Error())
		return
	}
	writePage(w, http.StatusOK, "You are signed in to TaskSync. You can close this window.")
}

func writePage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<!doctype html><title>TaskSync</title><p>%s</p>\n", html.EscapeString(message))
}
