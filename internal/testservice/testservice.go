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

// Package testservice is a small fairrpc service used to exercise servers
// and clients in tests.
package testservice

import (
	"context"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/fairrpc/api/service"
	"go.uber.org/fairrpc/encoding/json"
)

const (
	// Name of the service.
	Name = "TestProtocol"

	// Version of the service.
	Version = 1
)

// EchoRequest is the request of "echo".
type EchoRequest struct {
	Message string `json:"message"`
}

// EchoResponse is the response of "echo".
type EchoResponse struct {
	Message string `json:"message"`
}

// AddRequest is the request of "add".
type AddRequest struct {
	A int `json:"a"`
	B int `json:"b"`
}

// AddResponse is the response of "add".
type AddResponse struct {
	Sum int `json:"sum"`
}

// SleepRequest is the request of "sleep".
type SleepRequest struct {
	Millis int64 `json:"millis"`
}

// ErrorRequest is the request of "error".
type ErrorRequest struct {
	Message string `json:"message"`
}

// Error is the error returned by "error".
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Handler implements the service and counts the calls it ran.
type Handler struct {
	Calls atomic.Int64

	// Gate, if set, blocks "sleep" until it is closed or the call is
	// cancelled, in addition to sleeping.
	Gate chan struct{}
}

// Service binds the handler into a service.Service.
func (h *Handler) Service() service.Service {
	return service.Service{
		Name:    Name,
		Version: Version,
		Methods: map[string]service.Method{
			"ping":   json.Method("ping", h.ping),
			"echo":   json.Method("echo", h.echo),
			"add":    json.Method("add", h.add),
			"sleep":  json.Method("sleep", h.sleep),
			"error":  json.Method("error", h.fail),
			"panic":  json.Method("panic", h.crash),
			"whoami": json.Method("whoami", h.whoami),
		},
	}
}

func (h *Handler) ping(ctx context.Context, _ interface{}) (interface{}, error) {
	h.Calls.Inc()
	return nil, nil
}

func (h *Handler) echo(ctx context.Context, req *EchoRequest) (*EchoResponse, error) {
	h.Calls.Inc()
	return &EchoResponse{Message: req.Message}, nil
}

func (h *Handler) add(ctx context.Context, req *AddRequest) (*AddResponse, error) {
	h.Calls.Inc()
	return &AddResponse{Sum: req.A + req.B}, nil
}

func (h *Handler) sleep(ctx context.Context, req *SleepRequest) (*EchoResponse, error) {
	h.Calls.Inc()
	t := time.NewTimer(time.Duration(req.Millis) * time.Millisecond)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if h.Gate != nil {
		select {
		case <-h.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &EchoResponse{Message: "slept"}, nil
}

func (h *Handler) fail(ctx context.Context, req *ErrorRequest) (*EchoResponse, error) {
	h.Calls.Inc()
	return nil, &Error{Message: req.Message}
}

func (h *Handler) crash(ctx context.Context, req *ErrorRequest) (*EchoResponse, error) {
	h.Calls.Inc()
	panic(req.Message)
}

func (h *Handler) whoami(ctx context.Context, _ interface{}) (*EchoResponse, error) {
	h.Calls.Inc()
	return &EchoResponse{Message: service.CallerIdentity(ctx)}, nil
}
