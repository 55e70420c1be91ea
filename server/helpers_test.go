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

package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/fairrpc/api/service"
	"go.uber.org/fairrpc/client"
	"go.uber.org/fairrpc/internal/testservice"
	"go.uber.org/fairrpc/internal/testtime"
	"go.uber.org/fairrpc/internal/wire"
	"go.uber.org/net/metrics"
	"go.uber.org/zap/zaptest"
)

type testServer struct {
	*Server

	handler *testservice.Handler
	root    *metrics.Root
}

// newTestServer starts a server running h, or a fresh handler if h is nil.
func newTestServer(t *testing.T, h *testservice.Handler, cfg Config, opts ...Option) *testServer {
	t.Helper()

	if h == nil {
		h = &testservice.Handler{}
	}
	root := metrics.New()
	if cfg.Address == "" && cfg.Listener == nil {
		cfg.Address = "127.0.0.1:0"
	}
	if cfg.Services == nil {
		cfg.Services = []service.Service{h.Service()}
	}
	if cfg.Handlers == 0 {
		cfg.Handlers = 4
	}
	opts = append([]Option{WithLogger(zaptest.NewLogger(t)), WithMeter(root.Scope())}, opts...)

	s, err := New(cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	t.Cleanup(func() { require.NoError(t, s.Stop()) })
	return &testServer{Server: s, handler: h, root: root}
}

func (s *testServer) counter(name string, tags metrics.Tags) int64 {
	for _, c := range s.root.Snapshot().Counters {
		if c.Name == name && sameTags(c.Tags, tags) {
			return c.Value
		}
	}
	return 0
}

func (s *testServer) gauge(name string) int64 {
	for _, g := range s.root.Snapshot().Gauges {
		if g.Name == name {
			return g.Value
		}
	}
	return 0
}

func sameTags(got, want metrics.Tags) bool {
	if len(got) != len(want) {
		return false
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func newTestClient(t *testing.T, s *testServer, identity string, opts ...client.Option) *testservice.Client {
	t.Helper()
	return testservice.NewClient(newProxy(t, s, identity, opts...))
}

func newProxy(t *testing.T, s *testServer, identity string, opts ...client.Option) *client.Proxy {
	t.Helper()
	opts = append([]client.Option{
		client.WithIdentity(identity),
		client.WithLogger(zaptest.NewLogger(t)),
	}, opts...)
	c, err := client.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, c.Stop()) })
	return c.Proxy(s.Addr().String(), testservice.Name, testservice.Version)
}

func testContext() (context.Context, context.CancelFunc) {
	return testContextWithTimeout(5 * testtime.Second)
}

func testContextWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * testtime.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting until %s", msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// rawConn speaks the wire protocol directly, to control exactly what the
// server sees.
type rawConn struct {
	t  *testing.T
	nc net.Conn
	r  *wire.Reader
}

func dialRaw(t *testing.T, s *testServer) *rawConn {
	t.Helper()
	nc, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { nc.Close() })
	return &rawConn{t: t, nc: nc, r: wire.NewReader(nc, wire.DefaultMaxFrameSize)}
}

func (c *rawConn) send(ft wire.FrameType, payload []byte) {
	c.t.Helper()
	_, err := wire.WriteFrame(c.nc, ft, payload)
	require.NoError(c.t, err)
}

func (c *rawConn) hello(identity string, ping time.Duration) {
	c.t.Helper()
	h := wire.Hello{
		Identity:     identity,
		Service:      testservice.Name,
		Version:      testservice.Version,
		PingInterval: ping,
	}
	c.send(wire.FrameHello, h.Marshal())
}

func (c *rawConn) request(id uint64, method, body string) {
	c.t.Helper()
	req := wire.Request{CallID: id, Method: method, Body: []byte(body)}
	c.send(wire.FrameRequest, req.Marshal())
}

// response reads the next response, or returns the read error.
func (c *rawConn) response() (*wire.Response, error) {
	c.t.Helper()
	require.NoError(c.t, c.nc.SetReadDeadline(time.Now().Add(5*testtime.Second)))
	f, err := c.r.Next()
	if err != nil {
		return nil, err
	}
	require.Equal(c.t, wire.FrameResponse, f.Type)
	var res wire.Response
	require.NoError(c.t, res.Unmarshal(f.Payload))
	return &res, nil
}

func (c *rawConn) mustResponse() *wire.Response {
	c.t.Helper()
	res, err := c.response()
	require.NoError(c.t, err)
	return res
}
