// Demonstrates substituting the transport capability without touching call
// sites: the same Get goes through a recorder instead of the network.
package main

import (
	"context"
	"fmt"

	"github.com/lgc202/httpkit/client"
	"github.com/lgc202/httpkit/clienttest"
)

func main() {
	rec := clienttest.NewRecorder()
	rec.Body = []byte(`{"status":"stubbed"}`)

	c := client.New()
	c.RegisterProvider(clienttest.Provider(rec))

	resp, err := c.Get(context.Background(), "http://billing.internal/invoices")
	if err != nil {
		panic(err)
	}
	_ = resp.Body.Close()

	for _, req := range rec.Requests() {
		fmt.Printf("recorded: %s %s host=%s\n", req.Method, req.URL.Path, req.URL.Host)
	}
}
