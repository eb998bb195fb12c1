package web

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/hpungsan/folio/internal/config"
	"github.com/hpungsan/folio/internal/gallery"
	"github.com/hpungsan/folio/internal/media"
)

func TestRun_ShutdownTearsDownHost(t *testing.T) {
	cfg := config.DefaultConfig()
	host := gallery.NewHost(cfg, nil)

	host.Session.Open()
	if _, err := host.Session.UploadImage(context.Background(), 0, &media.BytesFile{FileName: "a.png", Type: "image/png", Data: pngBytes}, ""); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := host.Session.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	srv := &http.Server{Addr: "127.0.0.1:0", Handler: newHandler(host, "test", nil)}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- Run(ctx, srv, host, nil) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if live := host.Registry.Stats().Live; live != 0 {
		t.Errorf("live handles after shutdown = %d, want 0", live)
	}
}

func TestServe_LeavesHostToCaller(t *testing.T) {
	host := gallery.NewHost(config.DefaultConfig(), nil)
	host.Session.Open()
	h, err := host.Session.UploadImage(context.Background(), 0, &media.BytesFile{FileName: "a.png", Type: "image/png", Data: pngBytes}, "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	srv := &http.Server{Addr: "127.0.0.1:0", Handler: newHandler(host, "test", nil)}
	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		stopped bool
		err     error
	}
	done := make(chan result, 1)
	go func() {
		stopped, err := Serve(ctx, srv, nil)
		done <- result{stopped, err}
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("Serve: %v", res.err)
		}
		if !res.stopped {
			t.Error("expected stopped after cancellation")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	// The page going away must not end the editing session another
	// surface may still be driving.
	if !host.Session.IsOpen() {
		t.Error("session closed by page shutdown")
	}
	if !host.Registry.Live(h) {
		t.Error("draft upload released by page shutdown")
	}
}

func TestServe_StartFailure(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:-1", Handler: http.NotFoundHandler()}
	stopped, err := Serve(context.Background(), srv, nil)
	if err == nil {
		t.Fatal("expected listen error")
	}
	if stopped {
		t.Error("a server that never started must not report stopped")
	}
}

func TestNewServer_Addr(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Bind = "0.0.0.0"
	cfg.Port = 9001
	srv := NewServer(gallery.NewHost(cfg, nil), "test", nil)
	if srv.Addr != "0.0.0.0:9001" {
		t.Errorf("addr = %q", srv.Addr)
	}
}
