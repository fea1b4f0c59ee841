package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/anime-shed/ingrediscan-go/internal/config"
)

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})
	srv := New(config.Default(), handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, srv, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("Unexpected body %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestNew_Timeouts(t *testing.T) {
	cfg := config.Default()
	cfg.RequestTimeout = time.Minute
	srv := New(cfg, http.NotFoundHandler())

	if srv.ReadTimeout != time.Minute || srv.WriteTimeout <= time.Minute {
		t.Errorf("Unexpected timeouts read=%s write=%s", srv.ReadTimeout, srv.WriteTimeout)
	}
	if srv.Addr != "0.0.0.0:8000" {
		t.Errorf("Addr = %q", srv.Addr)
	}
}
