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
	"bufio"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/fairrpc/api/service"
	"go.uber.org/fairrpc/internal/wire"
	"go.uber.org/zap"
)

const readBufferSize = 64 << 10

// connection is the server side of a client connection.
//
// Its receive pump reads frames and hands them to the owning reader, which
// alone touches the fields marked reader-owned. Responses are sequenced by
// receipt order: respond parks a response until all earlier ones were
// released, and the responder writes released bytes.
type connection struct {
	s      *Server
	nc     net.Conn
	reader *reader
	id     uint64
	logger *zap.Logger

	// reader-owned
	helloDone bool
	svc       *service.Service
	nextSeq   uint64

	identity     atomic.String
	liveness     atomic.Int64 // read deadline window, in nanoseconds
	pinging      atomic.Bool  // the client announced pings
	lastActivity atomic.Int64 // unix nanoseconds
	outstanding  atomic.Int32 // calls received but not answered
	rejected     atomic.Bool  // waiting for a rejection to flush

	mu              sync.Mutex
	closed          bool
	nextOut         uint64
	parked          map[uint64][]byte
	out             []byte
	outSince        time.Time
	closeAfterFlush bool

	closedCh  chan struct{}
	closeOnce sync.Once
}

func newConnection(s *Server, nc net.Conn, r *reader, id uint64) *connection {
	c := &connection{
		s:        s,
		nc:       nc,
		reader:   r,
		id:       id,
		logger:   s.logger.With(zap.Uint64("connection", id), zap.Stringer("remote", nc.RemoteAddr())),
		parked:   make(map[uint64][]byte),
		closedCh: make(chan struct{}),
	}
	c.liveness.Store(int64(s.opts.maxIdleTime))
	c.lastActivity.Store(time.Now().UnixNano())
	return c
}

// accepted records the hello. Called by the reader.
func (c *connection) accepted(identity string, svc *service.Service, pingInterval time.Duration) {
	c.helloDone = true
	c.svc = svc
	c.identity.Store(identity)

	window := c.s.opts.maxIdleTime
	if pingInterval > 0 && c.s.opts.pingEnabled {
		c.pinging.Store(true)
		interval := pingInterval
		if c.s.opts.pingInterval > interval {
			interval = c.s.opts.pingInterval
		}
		if 2*interval > window {
			window = 2 * interval
		}
	}
	c.liveness.Store(int64(window))
}

func (c *connection) isClosed() bool {
	select {
	case <-c.closedCh:
		return true
	default:
		return false
	}
}

// pump reads frames until the connection closes or the server stops.
func (c *connection) pump() {
	defer c.s.pumpsWG.Done()

	r := wire.NewReader(bufio.NewReaderSize(c.nc, readBufferSize), c.s.opts.maxFrameSize)
	for {
		window := time.Duration(c.liveness.Load())
		if err := c.nc.SetReadDeadline(time.Now().Add(window)); err != nil {
			c.close("failed to set read deadline", err)
			return
		}
		// Stop interrupts pumps by moving the deadline to now after
		// marking the server as stopping, so check after setting it.
		if c.s.isStopping() {
			return
		}

		f, err := r.Next()
		if err != nil {
			if c.s.isStopping() || c.isClosed() {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if c.expired() {
					return
				}
				continue
			}
			if err == io.EOF {
				c.close("closed by client", nil)
			} else {
				c.close("failed to read frame", err)
			}
			return
		}

		c.s.metrics.receivedBytes.Add(int64(wire.HeaderSize + len(f.Payload)))
		c.lastActivity.Store(time.Now().UnixNano())
		if f.Type == wire.FramePing {
			continue
		}

		select {
		case c.reader.frames <- inbound{conn: c, frame: f}:
		case <-c.closedCh:
			return
		case <-c.s.stopping:
			return
		}
	}
}

// expired decides the fate of a connection that sent nothing for a whole
// liveness window, and reports whether it was closed.
func (c *connection) expired() bool {
	if c.outstanding.Load() == 0 && !c.hasOutput() {
		c.close("idle", nil)
		return true
	}
	if c.pinging.Load() {
		c.close("client stopped pinging", nil)
		return true
	}
	// The client does not ping; it may still be waiting for slow calls.
	return false
}

// respond parks the response to the call received seq-th and releases every
// response that is now in order.
func (c *connection) respond(seq uint64, res *wire.Response) {
	frame := wire.AppendFrame(nil, wire.FrameResponse, res.Marshal())

	c.mu.Lock()
	// Counted down under the lock so that a connection never looks idle
	// while its last response waits to be written.
	c.outstanding.Dec()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.parked[seq] = frame
	released := false
	for {
		f, ok := c.parked[c.nextOut]
		if !ok {
			break
		}
		delete(c.parked, c.nextOut)
		c.appendOut(f)
		c.nextOut++
		released = true
	}
	c.mu.Unlock()

	if released {
		c.s.responder.schedule(c)
	}
}

// reject sends a connection-level error and closes the connection once it
// is written. Frames received in the meantime are ignored.
func (c *connection) reject(err error) {
	c.rejected.Store(true)
	c.logger.Debug("rejecting connection", zap.Error(err))
	frame := wire.AppendFrame(nil, wire.FrameResponse, wire.ErrorResponse(wire.ConnectionCallID, err).Marshal())

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closeAfterFlush = true
	c.appendOut(frame)
	c.mu.Unlock()

	c.s.responder.schedule(c)
}

func (c *connection) appendOut(frame []byte) {
	if len(c.out) == 0 {
		c.outSince = time.Now()
	}
	c.out = append(c.out, frame...)
}

func (c *connection) hasOutput() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.out) > 0 || len(c.parked) > 0
}

// pendingOutput returns the bytes waiting to be written. The slice stays
// valid while only the responder consumes it.
func (c *connection) pendingOutput() (out []byte, since time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, time.Time{}, false
	}
	return c.out, c.outSince, true
}

// consumed drops n written bytes. It returns the number of bytes left and
// whether the connection must close once they are all written.
func (c *connection) consumed(n int) (remaining int, closeAfterFlush bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, false
	}
	c.out = c.out[n:]
	if len(c.out) == 0 {
		c.out = nil
		c.outSince = time.Time{}
	}
	return len(c.out), c.closeAfterFlush
}

// close tears the connection down. Responses not yet written are dropped.
func (c *connection) close(reason string, err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.parked = nil
		c.out = nil
		c.mu.Unlock()

		close(c.closedCh)
		closeErr := c.nc.Close()
		c.s.removeConnection(c)

		fields := []zap.Field{zap.String("reason", reason)}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		if closeErr != nil {
			fields = append(fields, zap.NamedError("closeError", closeErr))
		}
		c.logger.Debug("closed connection", fields...)
	})
}

// finishRejected ends a rejected connection once the rejection is written.
// TCP connections are half-closed so that the client reads the rejection
// before the end of the stream; the pump closes them when the client hangs
// up or the liveness window ends.
func (c *connection) finishRejected() {
	if hc, ok := c.nc.(interface{ CloseWrite() error }); ok {
		if err := hc.CloseWrite(); err == nil {
			return
		}
	}
	c.close("rejected", nil)
}
