// Package devserver serves a directory over HTTP with a live-reload socket.
// HTML responses get a small script that reloads the page, or only its
// stylesheets, when the hub says so.
package devserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vk/sitepipe/internal/ctxlog"
)

// SocketPath is where browsers connect for reload messages.
const SocketPath = "/__sitepipe/livereload"

const reloadScript = `<script>(function(){` +
	`var ws=new WebSocket((location.protocol==="https:"?"wss://":"ws://")+location.host+"` + SocketPath + `");` +
	`ws.onmessage=function(e){var m=JSON.parse(e.data);` +
	`if(m.type==="css"){document.querySelectorAll('link[rel="stylesheet"]').forEach(function(l){` +
	`var u=new URL(l.href);u.searchParams.set("_sp",Date.now());l.href=u.toString();});}` +
	`else{location.reload();}};})();</script>`

// Server is one dev server instance.
type Server struct {
	root       string
	httpServer *http.Server
	router     *chi.Mux
	hub        *Hub
	logger     *slog.Logger
}

// New builds a server for root listening on addr (e.g. ":3000").
func New(root, addr string, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(noCache)

	s := &Server{
		root:   root,
		router: router,
		hub:    NewHub(logger),
		logger: logger,
	}
	router.Handle(SocketPath, s.hub)
	router.Get("/*", s.handleFile)
	router.Head("/*", s.handleFile)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Hub returns the live-reload hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled, then shuts down gracefully. It returns
// nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("dev server: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Dev server listening.", "url", "http://"+displayAddr(ln.Addr()), "root", s.root)

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.Serve(ln) }()

	select {
	case err := <-errCh:
		return fmt.Errorf("dev server: %w", err)
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dev server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("dev server: %w", err)
	}
	logger.Info("Dev server stopped.")
	return nil
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + chi.URLParam(r, "*"))
	full := filepath.Join(s.root, filepath.FromSlash(name))

	info, err := os.Stat(full)
	if err == nil && info.IsDir() {
		full = filepath.Join(full, "index.html")
		info, err = os.Stat(full)
	}
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if !strings.EqualFold(filepath.Ext(full), ".html") && !strings.EqualFold(filepath.Ext(full), ".htm") {
		http.ServeFile(w, r, full)
		return
	}

	data, err := os.ReadFile(full)
	if err != nil {
		http.Error(w, "could not read file", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, info.Name(), info.ModTime(), bytes.NewReader(InjectScript(data)))
}

// InjectScript inserts the live-reload script before the closing body tag,
// or appends it when there is none.
func InjectScript(html []byte) []byte {
	idx := bytes.LastIndex(bytes.ToLower(html), []byte("</body>"))
	if idx < 0 {
		return append(append([]byte{}, html...), reloadScript...)
	}
	out := make([]byte, 0, len(html)+len(reloadScript))
	out = append(out, html[:idx]...)
	out = append(out, reloadScript...)
	return append(out, html[idx:]...)
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func displayAddr(a net.Addr) string {
	host, port, err := net.SplitHostPort(a.String())
	if err != nil {
		return a.String()
	}
	if host == "::" || host == "0.0.0.0" || host == "" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
