// Package fasthttpx implements the client façade's transport capability on
// top of valyala/fasthttp. It is an alternate engine selected through the
// provider slot; call sites built on client.Client do not change.
package fasthttpx

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/lgc202/httpkit/client"
)

// Transport executes requests through a fasthttp.Client. Safe for concurrent
// use; fasthttp.Client maintains its own connection pools.
type Transport struct {
	hc       *fasthttp.Client
	redirect client.RedirectPolicy
}

// New builds a Transport from the frozen configuration. The request context
// deadline is translated into a fasthttp request timeout per dispatch;
// redirect policy is honored here because fasthttp follows redirects per
// call, not per client. One caveat: fasthttp's DoRedirects only caps the hop
// count, so RedirectPolicy.AllowCycles=false degrades to the MaxHops bound —
// a redirect loop is cut off by hop exhaustion, not detected as a cycle.
func New(cfg client.Config) *Transport {
	return &Transport{
		hc: &fasthttp.Client{
			Name:                     cfg.UserAgent,
			NoDefaultUserAgentHeader: cfg.UserAgent == "",
			ReadTimeout:              cfg.Transport.ResponseHeaderTimeout,
			MaxIdleConnDuration:      cfg.Transport.IdleConnTimeout,
			MaxConnsPerHost:          cfg.Transport.MaxConnsPerHost,
		},
		redirect: cfg.Redirect,
	}
}

// Provider plugs the fasthttp engine into the provider slot:
//
//	c.RegisterProvider(fasthttpx.Provider)
func Provider(cfg client.Config) (client.Transport, error) {
	return New(cfg), nil
}

func (t *Transport) Do(req *http.Request) (*http.Response, error) {
	freq := fasthttp.AcquireRequest()
	fresp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(freq)
	defer fasthttp.ReleaseResponse(fresp)

	if err := convertRequest(req, freq); err != nil {
		return nil, err
	}

	// fasthttp cannot watch a context, so carry the deadline into the
	// request itself; Do and every DoRedirects hop honor it.
	if dl, ok := req.Context().Deadline(); ok {
		d := time.Until(dl)
		if d <= 0 {
			return nil, context.DeadlineExceeded
		}
		freq.SetTimeout(d)
	}

	var err error
	if t.redirect.Follow {
		max := t.redirect.MaxHops
		if max <= 0 {
			max = client.DefaultMaxHops
		}
		err = t.hc.DoRedirects(freq, fresp, max)
	} else {
		err = t.hc.Do(freq, fresp)
	}
	// Prefer the context error when the deadline fired or the caller
	// canceled mid-flight; that is what net/http surfaces.
	if cerr := req.Context().Err(); cerr != nil {
		return nil, cerr
	}
	if err != nil {
		return nil, err
	}

	return convertResponse(req, fresp), nil
}

// Close releases idle connections.
func (t *Transport) Close() error {
	t.hc.CloseIdleConnections()
	return nil
}

func convertRequest(req *http.Request, freq *fasthttp.Request) error {
	freq.Header.SetMethod(req.Method)
	freq.SetRequestURI(req.URL.String())
	for k, vv := range req.Header {
		for _, v := range vv {
			freq.Header.Add(k, v)
		}
	}
	if req.Body != nil && req.Body != http.NoBody {
		b, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return err
		}
		freq.SetBody(b)
	}
	return nil
}

func convertResponse(req *http.Request, fresp *fasthttp.Response) *http.Response {
	hdr := make(http.Header)
	fresp.Header.VisitAll(func(k, v []byte) {
		hdr.Add(string(k), string(v))
	})
	body := append([]byte(nil), fresp.Body()...)
	return &http.Response{
		StatusCode:    fresp.StatusCode(),
		Status:        http.StatusText(fresp.StatusCode()),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        hdr,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
