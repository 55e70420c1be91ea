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

package testservice

import (
	"context"
	"time"

	"go.uber.org/fairrpc/encoding/json"
)

// Client is a typed client of the service.
type Client struct {
	c json.Caller
}

// NewClient builds a Client calling through c, usually a *client.Proxy.
func NewClient(c json.Caller) *Client {
	return &Client{c: c}
}

// Ping calls "ping".
func (c *Client) Ping(ctx context.Context) error {
	return json.Call(ctx, c.c, "ping", nil, nil)
}

// Echo calls "echo".
func (c *Client) Echo(ctx context.Context, message string) (string, error) {
	var res EchoResponse
	err := json.Call(ctx, c.c, "echo", &EchoRequest{Message: message}, &res)
	return res.Message, err
}

// Add calls "add".
func (c *Client) Add(ctx context.Context, a, b int) (int, error) {
	var res AddResponse
	err := json.Call(ctx, c.c, "add", &AddRequest{A: a, B: b}, &res)
	return res.Sum, err
}

// Sleep calls "sleep".
func (c *Client) Sleep(ctx context.Context, d time.Duration) error {
	return json.Call(ctx, c.c, "sleep", &SleepRequest{Millis: int64(d / time.Millisecond)}, nil)
}

// Error calls "error", which fails with an *Error carrying message.
func (c *Client) Error(ctx context.Context, message string) error {
	return json.Call(ctx, c.c, "error", &ErrorRequest{Message: message}, nil)
}

// Panic calls "panic".
func (c *Client) Panic(ctx context.Context, message string) error {
	return json.Call(ctx, c.c, "panic", &ErrorRequest{Message: message}, nil)
}

// WhoAmI calls "whoami", which returns the caller's identity.
func (c *Client) WhoAmI(ctx context.Context) (string, error) {
	var res EchoResponse
	err := json.Call(ctx, c.c, "whoami", nil, &res)
	return res.Message, err
}
