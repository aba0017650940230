package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewJSONRequest_Headers(t *testing.T) {
	c := New(WithBaseURL("http://example.com"))
	req, err := c.NewJSONRequest(context.Background(), http.MethodPost, "/v1/items", map[string]int{"n": 1})
	if err != nil {
		t.Fatalf("NewJSONRequest: %v", err)
	}
	if ct := req.Header.Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if ac := req.Header.Get("Accept"); ac != "application/json" {
		t.Fatalf("unexpected accept %q", ac)
	}
}

func TestNewJSONRequest_KeepsCallerAccept(t *testing.T) {
	c := New(WithBaseURL("http://example.com"))
	req, err := c.NewJSONRequest(context.Background(), http.MethodPost, "/", nil,
		WithHeader("Accept", "application/vnd.api+json"))
	if err != nil {
		t.Fatalf("NewJSONRequest: %v", err)
	}
	if ac := req.Header.Get("Accept"); ac != "application/vnd.api+json" {
		t.Fatalf("caller Accept overwritten, got %q", ac)
	}
}

func TestDoJSONInto_Decodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"widget","count":3}`))
	}))
	t.Cleanup(srv.Close)

	c := New(WithBaseURL(srv.URL))
	req, err := c.NewJSONRequest(context.Background(), http.MethodGet, "/", nil)
	if err != nil {
		t.Fatalf("NewJSONRequest: %v", err)
	}

	var out struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	resp, err := c.DoJSONInto(req, &out)
	if err != nil {
		t.Fatalf("DoJSONInto: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if out.Name != "widget" || out.Count != 3 {
		t.Fatalf("unexpected decode %+v", out)
	}
}

func TestDoJSONInto_RejectsTrailingValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}{"sneaky":true}`))
	}))
	t.Cleanup(srv.Close)

	c := New(WithBaseURL(srv.URL))
	req, err := c.NewRequest(context.Background(), http.MethodGet, "/")
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	var out map[string]bool
	if _, err := c.DoJSONInto(req, &out); err == nil {
		t.Fatal("expected an error for a second JSON value in the body")
	}
}

func TestDoJSONInto_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"overloaded"}`))
	}))
	t.Cleanup(srv.Close)

	c := New(WithBaseURL(srv.URL))
	req, err := c.NewRequest(context.Background(), http.MethodGet, "/")
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	var out map[string]string
	_, err = c.DoJSONInto(req, &out)
	if err == nil {
		t.Fatal("expected a status error")
	}
	he, ok := AsError(err)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if he.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status %d", he.StatusCode)
	}
	if string(he.RawBody) != `{"error":"overloaded"}` {
		t.Fatalf("unexpected raw body %q", he.RawBody)
	}
	if !IsRetryable(err) {
		t.Fatal("GET 503 should be marked retryable")
	}
	if len(out) != 0 {
		t.Fatalf("dst should stay untouched on error, got %v", out)
	}
}

func TestDoJSONInto_StatusErrorNotRetryableForPOST(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c := New(WithBaseURL(srv.URL))
	req, err := c.NewJSONRequest(context.Background(), http.MethodPost, "/", map[string]int{"n": 1})
	if err != nil {
		t.Fatalf("NewJSONRequest: %v", err)
	}

	var out any
	_, err = c.DoJSONInto(req, &out)
	if IsRetryable(err) {
		t.Fatal("POST 503 must not be marked retryable")
	}
	if IsRetryable(nil) {
		t.Fatal("nil error cannot be retryable")
	}
}

func TestDoJSON_Generic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"abc-1"}`))
	}))
	t.Cleanup(srv.Close)

	type created struct {
		ID string `json:"id"`
	}

	c := New(WithBaseURL(srv.URL))
	req, err := c.NewJSONRequest(context.Background(), http.MethodPost, "/", map[string]string{"name": "x"})
	if err != nil {
		t.Fatalf("NewJSONRequest: %v", err)
	}
	got, resp, err := DoJSON[created](c, req)
	if err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if got.ID != "abc-1" {
		t.Fatalf("unexpected value %+v", got)
	}
}

func TestDoJSONInto_NotRetryableForClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	c := New(WithBaseURL(srv.URL))
	req, err := c.NewRequest(context.Background(), http.MethodGet, "/missing")
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	var out any
	_, err = c.DoJSONInto(req, &out)
	if !IsHTTPStatus(err, http.StatusNotFound) {
		t.Fatalf("expected a 404 error, got %v", err)
	}
	if IsRetryable(err) {
		t.Fatal("GET 404 must not be marked retryable")
	}
}
