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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fairrpc/fairrpcerrors"
	"go.uber.org/fairrpc/internal/testservice"
	"go.uber.org/fairrpc/internal/testtime"
	"go.uber.org/fairrpc/internal/wire"
)

func TestResponsesFollowReceiptOrder(t *testing.T) {
	s := newTestServer(t, nil, Config{Handlers: 2})

	c := dialRaw(t, s)
	c.hello("alice", 0)
	c.request(7, "sleep", `{"millis":200}`)
	c.request(3, "echo", `{"message":"fast"}`)
	c.request(5, "add", `{"a":1,"b":1}`)
	c.request(9, "nope", ``)

	res := c.mustResponse()
	assert.Equal(t, uint64(7), res.CallID)
	require.NoError(t, res.Err())
	assert.JSONEq(t, `{"message":"slept"}`, string(res.Body))

	res = c.mustResponse()
	assert.Equal(t, uint64(3), res.CallID)
	require.NoError(t, res.Err())
	assert.JSONEq(t, `{"message":"fast"}`, string(res.Body))

	res = c.mustResponse()
	assert.Equal(t, uint64(5), res.CallID)
	assert.JSONEq(t, `{"sum":2}`, string(res.Body))

	res = c.mustResponse()
	assert.Equal(t, uint64(9), res.CallID)
	assert.True(t, fairrpcerrors.IsUnimplemented(res.Err()), "got %v", res.Err())
}

func TestIdleConnectionIsClosed(t *testing.T) {
	s := newTestServer(t, nil, Config{}, WithMaxIdleTime(100*testtime.Millisecond))

	c := dialRaw(t, s)
	c.hello("alice", 0)
	c.request(1, "echo", `{"message":"hi"}`)
	c.mustResponse()

	_, err := c.response()
	assert.Error(t, err, "the server hangs up on an idle connection")
	waitFor(t, "the idle connection to be dropped", func() bool {
		return s.NumOpenConnections() == 0
	})
}

func TestSilentClientWithCallsInFlightIsKept(t *testing.T) {
	s := newTestServer(t, nil, Config{}, WithMaxIdleTime(50*testtime.Millisecond))

	c := dialRaw(t, s)
	c.hello("alice", 0)
	c.request(1, "sleep", `{"millis":300}`)

	res := c.mustResponse()
	assert.NoError(t, res.Err())
}

func TestClientThatStopsPingingIsDropped(t *testing.T) {
	h := &testservice.Handler{Gate: make(chan struct{})}
	s := newTestServer(t, h, Config{},
		WithMaxIdleTime(100*testtime.Millisecond),
		WithPing(true, 50*testtime.Millisecond))

	c := dialRaw(t, s)
	c.hello("alice", 50*testtime.Millisecond)
	c.request(1, "sleep", `{"millis":0}`)

	_, err := c.response()
	assert.Error(t, err, "a client announcing pings must keep sending them")
	waitFor(t, "the dead connection to be dropped", func() bool {
		return s.NumOpenConnections() == 0
	})
}

func TestPingsKeepConnectionAlive(t *testing.T) {
	s := newTestServer(t, nil, Config{},
		WithMaxIdleTime(100*testtime.Millisecond),
		WithPing(true, 50*testtime.Millisecond))

	c := dialRaw(t, s)
	c.hello("alice", 50*testtime.Millisecond)
	c.request(1, "sleep", `{"millis":400}`)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(30 * testtime.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if _, err := wire.WriteFrame(c.nc, wire.FramePing, nil); err != nil {
					return
				}
			}
		}
	}()

	res, err := c.response()
	close(stop)
	wg.Wait()

	require.NoError(t, err)
	assert.NoError(t, res.Err())
}

func TestPingDisabledKeepsSilentClients(t *testing.T) {
	s := newTestServer(t, nil, Config{},
		WithMaxIdleTime(50*testtime.Millisecond),
		WithPing(false, 0))

	c := dialRaw(t, s)
	// The announced interval is ignored when the server does not check
	// pings.
	c.hello("alice", 10*testtime.Millisecond)
	c.request(1, "sleep", `{"millis":300}`)

	res := c.mustResponse()
	assert.NoError(t, res.Err())
}

func TestProtocolViolationsCloseTheConnection(t *testing.T) {
	tests := []struct {
		desc string
		give func(c *rawConn)
	}{
		{
			desc: "request before hello",
			give: func(c *rawConn) {
				c.request(1, "echo", `{"message":"hi"}`)
			},
		},
		{
			desc: "duplicate hello",
			give: func(c *rawConn) {
				c.hello("alice", 0)
				c.hello("alice", 0)
			},
		},
		{
			desc: "malformed hello",
			give: func(c *rawConn) {
				c.send(wire.FrameHello, []byte{0xff})
			},
		},
		{
			desc: "malformed request",
			give: func(c *rawConn) {
				c.hello("alice", 0)
				c.send(wire.FrameRequest, []byte{0xff})
			},
		},
		{
			desc: "response from client",
			give: func(c *rawConn) {
				c.hello("alice", 0)
				c.send(wire.FrameResponse, (&wire.Response{CallID: 1}).Marshal())
			},
		},
		{
			desc: "unknown frame type",
			give: func(c *rawConn) {
				c.send(wire.FrameType(42), nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			s := newTestServer(t, nil, Config{})
			c := dialRaw(t, s)
			tt.give(c)

			_, err := c.response()
			assert.Error(t, err)
			waitFor(t, "the connection to be dropped", func() bool {
				return s.NumOpenConnections() == 0
			})
			assert.Equal(t, int64(0), s.handler.Calls.Load())
		})
	}
}

func TestOversizedFrameClosesTheConnection(t *testing.T) {
	s := newTestServer(t, nil, Config{}, WithMaxFrameSize(64))

	c := dialRaw(t, s)
	c.hello("alice", 0)
	c.request(1, "echo", `{"message":"`+string(make([]byte, 128))+`"}`)

	_, err := c.response()
	assert.Error(t, err)
	waitFor(t, "the connection to be dropped", func() bool {
		return s.NumOpenConnections() == 0
	})
}
