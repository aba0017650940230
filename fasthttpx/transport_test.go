package fasthttpx_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lgc202/httpkit/client"
	"github.com/lgc202/httpkit/fasthttpx"
)

func TestTransport_GET(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Engine-Check", r.Header.Get("X-Probe"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello"))
	}))
	t.Cleanup(srv.Close)

	c := client.New(client.WithBaseURL(srv.URL))
	c.RegisterProvider(fasthttpx.Provider)
	t.Cleanup(func() { _ = c.Close() })

	resp, err := c.Get(context.Background(), "/", client.WithHeader("X-Probe", "42"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if string(b) != "hello" {
		t.Fatalf("unexpected body %q", b)
	}
	if resp.Header.Get("X-Engine-Check") != "42" {
		t.Fatal("request header did not reach the server")
	}
}

func TestTransport_NoFollowReturnsRawRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/target", http.StatusSeeOther)
	})
	mux.HandleFunc("/target", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := client.New(
		client.WithBaseURL(srv.URL),
		client.WithRedirectPolicy(client.NoRedirects()),
	)
	c.RegisterProvider(fasthttpx.Provider)

	resp, err := c.Get(context.Background(), "/start")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected raw 303, got %d", resp.StatusCode)
	}
}

func TestTransport_FollowRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/target", http.StatusSeeOther)
	})
	mux.HandleFunc("/target", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("landed"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := client.New(
		client.WithBaseURL(srv.URL),
		client.WithRedirectPolicy(client.FollowRedirects(3)),
	)
	c.RegisterProvider(fasthttpx.Provider)

	resp, err := c.Get(context.Background(), "/start")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected followed 200, got %d", resp.StatusCode)
	}
	if string(b) != "landed" {
		t.Fatalf("unexpected body %q", b)
	}
}

func TestTransport_HonorsConfiguredTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := client.New(
		client.WithBaseURL(srv.URL),
		client.WithTimeout(100*time.Millisecond),
	)
	c.RegisterProvider(fasthttpx.Provider)
	t.Cleanup(func() { _ = c.Close() })

	start := time.Now()
	_, err := c.Get(context.Background(), "/")
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if elapsed > time.Second {
		t.Fatalf("request blocked for %s, deadline not enforced by the engine", elapsed)
	}
}

func TestTransport_ExpiredDeadlineFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := client.New(client.WithBaseURL(srv.URL))
	c.RegisterProvider(fasthttpx.Provider)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	if _, err := c.Get(ctx, "/"); err == nil {
		t.Fatal("expected an error for an already-expired deadline")
	}
}

func TestTransport_POSTBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", r.Header.Get("Content-Type"))
		_, _ = w.Write(b)
	}))
	t.Cleanup(srv.Close)

	c := client.New(client.WithBaseURL(srv.URL))
	c.RegisterProvider(fasthttpx.Provider)

	resp, err := c.PostJSON(context.Background(), "/echo", map[string]string{"hello": "world"})
	if err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	if string(b) != `{"hello":"world"}` {
		t.Fatalf("unexpected echo %q", b)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("unexpected content type %q", ct)
	}
}
