// Package snapshot captures HTTP responses as plain serializable records,
// for replay fixtures, audit trails and assertions on persisted exchanges.
package snapshot

import (
	"bytes"
	"io"
	"net/http"
)

// Response is a detached copy of an HTTP response: status code, headers and
// body bytes. It survives encoding to any registered codec and back without
// loss of those three fields.
type Response struct {
	StatusCode int         `json:"status_code" cbor:"1,keyasint"`
	Header     http.Header `json:"header" cbor:"2,keyasint"`
	Body       []byte      `json:"body,omitempty" cbor:"3,keyasint,omitempty"`
}

// Capture reads resp into a Response. The body is fully consumed and then
// restored on resp, so the caller can still read it.
func Capture(resp *http.Response) (*Response, error) {
	s := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
	}
	if s.Header == nil {
		s.Header = make(http.Header)
	}
	if resp.Body != nil {
		b, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, err
		}
		s.Body = b
		resp.Body = io.NopCloser(bytes.NewReader(b))
	}
	return s, nil
}

// HTTP rebuilds an *http.Response from the record.
func (s *Response) HTTP() *http.Response {
	hdr := s.Header.Clone()
	if hdr == nil {
		hdr = make(http.Header)
	}
	return &http.Response{
		StatusCode:    s.StatusCode,
		Status:        http.StatusText(s.StatusCode),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        hdr,
		Body:          io.NopCloser(bytes.NewReader(s.Body)),
		ContentLength: int64(len(s.Body)),
	}
}

// Equal compares status code, headers and body bytes.
func (s *Response) Equal(o *Response) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.StatusCode != o.StatusCode || !bytes.Equal(s.Body, o.Body) {
		return false
	}
	if len(s.Header) != len(o.Header) {
		return false
	}
	for k, vv := range s.Header {
		ov := o.Header[k]
		if len(vv) != len(ov) {
			return false
		}
		for i := range vv {
			if vv[i] != ov[i] {
				return false
			}
		}
	}
	return true
}
