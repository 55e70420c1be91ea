// Copyright (c) 2026 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package wire

import (
	"fmt"
	"time"

	"github.com/gogo/protobuf/proto"
	"go.uber.org/fairrpc/fairrpcerrors"
)

// ConnectionCallID addresses a Response to the connection rather than to one
// call. Clients fail every pending call with it and close.
const ConnectionCallID = 0

// Hello is the first frame a client sends.
type Hello struct {
	Identity     string
	Service      string
	Version      uint64
	PingInterval time.Duration
}

// Request is one call.
type Request struct {
	CallID uint64
	Method string
	Body   []byte
}

// Response answers the Request with the same CallID. Code is CodeOK on
// success, in which case ErrorName and Message are empty.
type Response struct {
	CallID    uint64
	Code      fairrpcerrors.Code
	ErrorName string
	Message   string
	Body      []byte
}

// Err returns the error carried by the response, or nil.
func (r *Response) Err() error {
	if r.Code == fairrpcerrors.CodeOK {
		return nil
	}
	st := fairrpcerrors.Newf(r.Code, "%s", r.Message)
	if r.ErrorName != "" {
		st = st.WithName(r.ErrorName)
	}
	return st
}

// ErrorResponse builds the response carrying err.
func ErrorResponse(callID uint64, err error) *Response {
	st := fairrpcerrors.FromError(err)
	return &Response{
		CallID:    callID,
		Code:      st.Code(),
		ErrorName: st.Name(),
		Message:   st.Message(),
	}
}

// Marshal encodes the hello payload.
func (h *Hello) Marshal() []byte {
	b := proto.NewBuffer(nil)
	_ = b.EncodeStringBytes(h.Identity)
	_ = b.EncodeStringBytes(h.Service)
	_ = b.EncodeVarint(h.Version)
	_ = b.EncodeVarint(uint64(h.PingInterval / time.Millisecond))
	return b.Bytes()
}

// Unmarshal decodes a hello payload.
func (h *Hello) Unmarshal(payload []byte) error {
	d := decoder{b: proto.NewBuffer(payload)}
	h.Identity = d.str("identity")
	h.Service = d.str("service")
	h.Version = d.varint("version")
	h.PingInterval = time.Duration(d.varint("ping interval")) * time.Millisecond
	return d.finish("hello")
}

// Marshal encodes the request payload.
func (r *Request) Marshal() []byte {
	b := proto.NewBuffer(make([]byte, 0, len(r.Method)+len(r.Body)+16))
	_ = b.EncodeVarint(r.CallID)
	_ = b.EncodeStringBytes(r.Method)
	_ = b.EncodeRawBytes(r.Body)
	return b.Bytes()
}

// Unmarshal decodes a request payload.
func (r *Request) Unmarshal(payload []byte) error {
	d := decoder{b: proto.NewBuffer(payload)}
	r.CallID = d.varint("call id")
	r.Method = d.str("method")
	r.Body = d.bytes("body")
	return d.finish("request")
}

// Marshal encodes the response payload.
func (r *Response) Marshal() []byte {
	b := proto.NewBuffer(make([]byte, 0, len(r.Message)+len(r.Body)+24))
	_ = b.EncodeVarint(r.CallID)
	_ = b.EncodeVarint(uint64(r.Code))
	_ = b.EncodeStringBytes(r.ErrorName)
	_ = b.EncodeStringBytes(r.Message)
	_ = b.EncodeRawBytes(r.Body)
	return b.Bytes()
}

// Unmarshal decodes a response payload.
func (r *Response) Unmarshal(payload []byte) error {
	d := decoder{b: proto.NewBuffer(payload)}
	r.CallID = d.varint("call id")
	r.Code = fairrpcerrors.Code(d.varint("code"))
	r.ErrorName = d.str("error name")
	r.Message = d.str("message")
	r.Body = d.bytes("body")
	return d.finish("response")
}

// decoder keeps the first error hit while decoding a sequence of fields.
type decoder struct {
	b     *proto.Buffer
	field string
	err   error
}

func (d *decoder) varint(field string) uint64 {
	if d.err != nil {
		return 0
	}
	v, err := d.b.DecodeVarint()
	d.fail(field, err)
	return v
}

func (d *decoder) str(field string) string {
	if d.err != nil {
		return ""
	}
	v, err := d.b.DecodeStringBytes()
	d.fail(field, err)
	return v
}

func (d *decoder) bytes(field string) []byte {
	if d.err != nil {
		return nil
	}
	v, err := d.b.DecodeRawBytes(false)
	d.fail(field, err)
	if len(v) == 0 {
		return nil
	}
	return v
}

func (d *decoder) fail(field string, err error) {
	if err != nil {
		d.field, d.err = field, err
	}
}

func (d *decoder) finish(kind string) error {
	if d.err != nil {
		return fmt.Errorf("malformed %s: %s: %v", kind, d.field, d.err)
	}
	return nil
}
