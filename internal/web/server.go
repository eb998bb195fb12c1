package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hpungsan/folio/internal/gallery"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer creates the HTTP server for the gallery and its editor.
func NewServer(host *gallery.Host, version string, log *zap.Logger) *http.Server {
	cfg := host.Config()
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port),
		Handler:           newHandler(host, version, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func newHandler(host *gallery.Host, version string, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}

	// Create sub-FS for templates (strip "templates/" prefix)
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		log.Fatal("failed to create template sub-FS", zap.Error(err))
	}

	// Create sub-FS for static files (strip "static/" prefix)
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Fatal("failed to create static sub-FS", zap.Error(err))
	}

	h := &Handlers{
		host:     host,
		renderer: NewRenderer(templateSub, version, log),
		log:      log,
	}

	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /{$}", h.HandleGallery)
	mux.HandleFunc("GET /api/state", h.HandleState)
	mux.HandleFunc("POST /embed", h.HandleEmbed)

	mux.HandleFunc("POST /edit/open", h.HandleEditOpen)
	mux.HandleFunc("GET /edit", h.HandleEdit)
	mux.HandleFunc("POST /edit/text", h.HandleEditText)
	mux.HandleFunc("POST /edit/images/{index}", h.HandleUploadImage)
	mux.HandleFunc("POST /edit/images/{index}/remove", h.HandleRemoveImage)
	mux.HandleFunc("POST /edit/audio", h.HandleUploadAudio)
	mux.HandleFunc("POST /edit/audio/remove", h.HandleClearAudio)
	mux.HandleFunc("POST /edit/save", h.HandleSave)
	mux.HandleFunc("POST /edit/cancel", h.HandleCancel)
	mux.HandleFunc("GET /edit/thumbs/{id}", h.HandleThumb)

	mux.HandleFunc("POST /playback/{attempt}", h.HandlePlayback)

	// Static file server
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return securityHeaders(mux)
}

// securityHeaders adds security-related HTTP headers to all responses.
// Framing is allowed: the gallery is meant to be embeddable.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; script-src 'self'; style-src 'self'; img-src 'self' data: https:; media-src 'self' data: https:")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

// Run serves until ctx ends or the process receives SIGINT/SIGTERM, then
// shuts the server down and tears the host down. A server that fails to
// start leaves the host alone. Run owns the host; callers sharing it with
// another surface use Serve and tear down themselves.
func Run(ctx context.Context, srv *http.Server, host *gallery.Host, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stopped, err := Serve(ctx, srv, log)
	if stopped {
		host.Teardown()
	}
	return err
}

// Serve serves until ctx ends, then shuts the server down. stopped reports
// whether the server ran and was shut down, as opposed to failing to start.
// Serve installs no signal handlers.
func Serve(ctx context.Context, srv *http.Server, log *zap.Logger) (stopped bool, err error) {
	if log == nil {
		log = zap.NewNop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("folio gallery running", zap.String("url", "http://"+srv.Addr))

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		log.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case serveErr := <-errCh:
		if errors.Is(serveErr, http.ErrServerClosed) {
			return true, nil
		}
		return false, serveErr
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = multierr.Append(err, srv.Shutdown(shutdownCtx))
		if serveErr := <-errCh; !errors.Is(serveErr, http.ErrServerClosed) {
			err = multierr.Append(err, serveErr)
		}
		return true, err
	}
}
