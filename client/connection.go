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

package client

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"go.uber.org/atomic"
	"go.uber.org/fairrpc/fairrpcerrors"
	"go.uber.org/fairrpc/internal/wire"
	"go.uber.org/zap"
)

const readBufferSize = 64 << 10

// connection multiplexes calls to one server. Calls are matched to their
// responses by call ID, so responses may arrive in any order.
type connection struct {
	client *Client
	id     ConnectionID
	logger *zap.Logger

	// guarded by client.mu
	active    int
	idleSince time.Time

	connectOnce sync.Once
	connected   chan struct{} // closed once setup finished
	connectErr  error         // set before connected closes
	nc          net.Conn

	writeMu   sync.Mutex
	lastWrite atomic.Int64 // unix nanoseconds
	nextID    atomic.Uint64

	mu       sync.Mutex
	pending  map[uint64]chan *wire.Response
	closeErr error

	closedCh  chan struct{}
	closeOnce sync.Once
}

func newConnection(c *Client, id ConnectionID) *connection {
	return &connection{
		client:   c,
		id:       id,
		logger:   c.logger.With(zap.Stringer("connection", id)),
		pending:   make(map[uint64]chan *wire.Response),
		connected: make(chan struct{}),
		closedCh:  make(chan struct{}),
	}
}

func (c *connection) isClosed() bool {
	select {
	case <-c.closedCh:
		return true
	default:
		return false
	}
}

// connect dials the server and introduces the client, once. The dial runs
// under the client's context so that callers sharing the connection wait
// for it independently: a caller whose ctx ends gives up alone.
func (c *connection) connect(ctx context.Context) error {
	c.connectOnce.Do(func() {
		c.client.mu.Lock()
		defer c.client.mu.Unlock()
		if c.client.stopped {
			c.finishConnect(errClientStopped)
			return
		}
		c.client.wg.Add(1)
		go c.dial()
	})

	select {
	case <-c.connected:
		return c.connectErr
	case <-ctx.Done():
		return ctxError(ctx)
	}
}

func (c *connection) dial() {
	defer c.client.wg.Done()
	c.finishConnect(c.setup(c.client.ctx))
}

func (c *connection) finishConnect(err error) {
	if err != nil {
		c.close(err)
	}
	c.connectErr = err
	close(c.connected)
}

func (c *connection) setup(ctx context.Context) error {
	opts := c.client.opts
	var (
		nc  net.Conn
		err error
	)
	for attempt := 0; ; attempt++ {
		nc, err = opts.dial(ctx, c.id.Address)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return errClientStopped
		}
		if attempt >= opts.connectRetries {
			return fairrpcerrors.UnavailableErrorf(
				"failed to connect to %s after %d attempts: %v", c.id.Address, attempt+1, err)
		}
		delay := c.client.backoff.Duration(uint(attempt))
		c.logger.Debug("retrying connection", zap.Int("attempt", attempt+1), zap.Duration("delay", delay), zap.Error(err))
		if sleep(ctx, delay) != nil {
			// Only Stop cancels the client's context.
			return errClientStopped
		}
	}

	hello := wire.Hello{
		Identity: c.id.Identity,
		Service:  c.id.Service,
		Version:  c.id.Version,
	}
	if opts.pingEnabled {
		hello.PingInterval = opts.pingInterval
	}

	c.client.mu.Lock()
	if c.client.stopped {
		c.client.mu.Unlock()
		nc.Close()
		return errClientStopped
	}
	c.mu.Lock()
	c.nc = nc
	c.mu.Unlock()
	c.client.wg.Add(2)
	c.client.mu.Unlock()

	go c.receive()
	go c.heartbeat()

	if err := c.write(wire.FrameHello, hello.Marshal()); err != nil {
		return err
	}
	c.logger.Debug("connected")
	return nil
}

// write sends one frame. A failed write leaves the stream unusable, so it
// closes the connection.
func (c *connection) write(t wire.FrameType, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.isClosed() {
		return c.err()
	}
	if _, err := wire.WriteFrame(c.nc, t, payload); err != nil {
		c.close(fairrpcerrors.UnavailableErrorf("failed to write to %s: %v", c.id.Address, err))
		// The receiver may have closed the connection first, with a better
		// reason.
		return c.err()
	}
	c.lastWrite.Store(time.Now().UnixNano())
	return nil
}

func (c *connection) call(ctx context.Context, method string, body []byte) (_ []byte, err error) {
	opts := c.client.opts

	span := opts.tracer.StartSpan(
		"fairrpc."+c.id.Service+"/"+method,
		opentracing.ChildOf(spanContext(ctx)),
		opentracing.Tags{
			"rpc.caller":  c.id.Identity,
			"rpc.service": c.id.Service,
		},
	)
	ext.SpanKindRPCClient.Set(span)
	ext.PeerService.Set(span, c.id.Service)
	defer func() {
		if err != nil {
			ext.Error.Set(span, true)
			span.SetTag("error.type", fairrpcerrors.FromError(err).Code().String())
		}
		span.Finish()
	}()

	callID := c.nextID.Inc()
	ch := make(chan *wire.Response, 1)

	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return nil, c.err()
	}
	c.pending[callID] = ch
	c.mu.Unlock()

	req := wire.Request{CallID: callID, Method: method, Body: body}
	if err := c.write(wire.FrameRequest, req.Marshal()); err != nil {
		c.abandon(callID)
		return nil, err
	}

	var timeout <-chan time.Time
	effective := wire.EffectiveTimeout(opts.rpcTimeout, opts.pingInterval, opts.pingEnabled)
	if effective > 0 {
		t := time.NewTimer(effective)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case res := <-ch:
		return res.Body, res.Err()
	case <-c.closedCh:
		// The response may have been delivered before the connection went
		// away.
		select {
		case res := <-ch:
			return res.Body, res.Err()
		default:
		}
		return nil, c.err()
	case <-timeout:
		c.abandon(callID)
		return nil, fairrpcerrors.DeadlineExceededErrorf(
			"call to method %q of service %q timed out after %v", method, c.id.Service, effective)
	case <-ctx.Done():
		c.abandon(callID)
		return nil, ctxError(ctx)
	}
}

// abandon forgets a call. A late response to it is discarded.
func (c *connection) abandon(callID uint64) {
	c.mu.Lock()
	delete(c.pending, callID)
	c.mu.Unlock()
}

func (c *connection) pendingCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// receive dispatches responses until the connection closes.
func (c *connection) receive() {
	defer c.client.wg.Done()

	r := wire.NewReader(bufio.NewReaderSize(c.nc, readBufferSize), c.client.opts.maxFrameSize)
	for {
		f, err := r.Next()
		if err != nil {
			if !c.isClosed() {
				c.client.remove(c)
				c.close(fairrpcerrors.UnavailableErrorf("connection to %s lost: %v", c.id.Address, err))
			}
			return
		}
		if f.Type != wire.FrameResponse {
			c.client.remove(c)
			c.close(fairrpcerrors.InternalErrorf("unexpected %v frame from %s", f.Type, c.id.Address))
			return
		}

		res := new(wire.Response)
		if err := res.Unmarshal(f.Payload); err != nil {
			c.client.remove(c)
			c.close(fairrpcerrors.InternalErrorf("malformed response from %s: %v", c.id.Address, err))
			return
		}

		if res.CallID == wire.ConnectionCallID {
			// The server refused the connection.
			c.client.remove(c)
			c.close(res.Err())
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[res.CallID]
		delete(c.pending, res.CallID)
		c.mu.Unlock()

		if !ok {
			c.logger.Debug("discarding response to abandoned call", zap.Uint64("callID", res.CallID))
			continue
		}
		ch <- res
	}
}

// heartbeat pings the server while the connection is quiet and closes the
// connection once it has been idle for too long.
func (c *connection) heartbeat() {
	defer c.client.wg.Done()

	opts := c.client.opts
	period := opts.maxIdleTime
	if opts.pingEnabled && opts.pingInterval < period {
		period = opts.pingInterval
	}
	period /= 2
	if period < time.Millisecond {
		period = time.Millisecond
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
		case <-c.closedCh:
			return
		}

		if c.client.closeIfIdle(c) {
			return
		}

		if opts.pingEnabled {
			last := time.Unix(0, c.lastWrite.Load())
			if time.Since(last) >= opts.pingInterval {
				if err := c.write(wire.FramePing, nil); err != nil {
					c.client.remove(c)
					return
				}
			}
		}
	}
}

func (c *connection) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeErr != nil {
		return c.closeErr
	}
	return fairrpcerrors.UnavailableErrorf("connection to %s is closed", c.id.Address)
}

// close fails every call in flight with err and closes the connection.
func (c *connection) close(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeErr = err
		c.pending = nil
		nc := c.nc
		c.mu.Unlock()

		close(c.closedCh)
		if nc != nil {
			nc.Close()
		}
		c.logger.Debug("closed connection", zap.Error(err))
	})
}

func spanContext(ctx context.Context) opentracing.SpanContext {
	if span := opentracing.SpanFromContext(ctx); span != nil {
		return span.Context()
	}
	return nil
}
