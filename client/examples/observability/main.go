package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/lgc202/httpkit/client"
	"github.com/lgc202/httpkit/logging"
)

func main() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	logger, err := logging.Setup(logging.Config{Level: "debug", Development: true})
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	c := client.New(client.WithBaseURL(srv.URL))
	before, after := logging.Hooks(logger, c.Config().RequestID.Header)
	c.WithHooks(before, after)

	resp, err := c.Get(context.Background(), "/")
	if err != nil {
		panic(err)
	}
	_ = resp.Body.Close()
}
