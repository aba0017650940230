package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/lgc202/httpkit/client"
)

func main() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := client.New(client.WithBaseURL(srv.URL))
	defer c.Close()

	resp, err := c.Get(context.Background(), "/")
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("status=%d body=%s frozen=%v\n", resp.StatusCode, body, c.Config().Frozen())
}
