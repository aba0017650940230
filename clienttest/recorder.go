// Package clienttest provides transport doubles for testing code built on
// the client façade.
package clienttest

import (
	"bytes"
	"io"
	"net/http"
	"sync"

	"github.com/lgc202/httpkit/client"
)

// Recorder is a client.Transport that records every request it receives and
// answers with a canned response. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	requests []*http.Request

	// Status is the canned response status. Zero means 200.
	Status int

	// Header is copied into every canned response.
	Header http.Header

	// Body is the canned response body.
	Body []byte

	// Err, when set, is returned instead of a response.
	Err error
}

// NewRecorder returns a Recorder answering 200 with an empty body.
func NewRecorder() *Recorder {
	return &Recorder{Status: http.StatusOK}
}

// Do records the request and returns the canned response. The request is
// cloned (body included) so later assertions see it as dispatched, not as
// consumed by the transport.
func (r *Recorder) Do(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if req.Body != nil && req.Body != http.NoBody {
		b, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
		clone.Body = io.NopCloser(bytes.NewReader(b))
	}

	r.mu.Lock()
	r.requests = append(r.requests, clone)
	status := r.Status
	hdr := r.Header.Clone()
	body := append([]byte(nil), r.Body...)
	err := r.Err
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if status == 0 {
		status = http.StatusOK
	}
	if hdr == nil {
		hdr = make(http.Header)
	}
	return &http.Response{
		StatusCode:    status,
		Status:        http.StatusText(status),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        hdr,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}

// Requests returns a copy of the recorded requests, in arrival order.
func (r *Recorder) Requests() []*http.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*http.Request(nil), r.requests...)
}

// Len returns the number of recorded requests.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// Reset drops the recorded requests.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = nil
}

// Provider registers the recorder as the transport capability:
//
//	c.RegisterProvider(clienttest.Provider(rec))
func Provider(r *Recorder) client.Provider {
	return client.StaticProvider(r)
}
