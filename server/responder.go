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
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// stopFlushTimeout bounds how long Stop waits for responses to be written.
const stopFlushTimeout = time.Second

// responder writes released responses to their connections from a single
// goroutine. Every write runs under a short deadline; a connection that
// cannot take all of its bytes is retried later so that one slow client
// does not hold up the others.
type responder struct {
	writeSlice    time.Duration
	purgeInterval time.Duration
	metrics       *serverMetrics
	logger        *zap.Logger

	mu     sync.Mutex
	ready  map[*connection]struct{}
	signal chan struct{}

	stopCh chan struct{}
	done   chan struct{}
}

func newResponder(s *Server) *responder {
	return &responder{
		writeSlice:    s.opts.writeSlice,
		purgeInterval: s.opts.purgeInterval,
		metrics:       s.metrics,
		logger:        s.logger,
		ready:         make(map[*connection]struct{}),
		signal:        make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// schedule marks the connection as having bytes to write.
func (r *responder) schedule(c *connection) {
	r.mu.Lock()
	r.ready[c] = struct{}{}
	r.mu.Unlock()

	select {
	case r.signal <- struct{}{}:
	default:
	}
}

func (r *responder) takeReady(into map[*connection]struct{}) {
	r.mu.Lock()
	for c := range r.ready {
		into[c] = struct{}{}
		delete(r.ready, c)
	}
	r.mu.Unlock()
}

func (r *responder) run() {
	defer close(r.done)

	waiting := make(map[*connection]struct{})
	for {
		var retry <-chan time.Time
		if len(waiting) > 0 {
			retry = time.After(r.writeSlice)
		}

		select {
		case <-r.signal:
		case <-retry:
		case <-r.stopCh:
			r.drain(waiting)
			return
		}

		r.takeReady(waiting)
		for c := range waiting {
			if r.flush(c) {
				delete(waiting, c)
			}
		}
	}
}

// drain writes what it can before the server closes connections.
func (r *responder) drain(waiting map[*connection]struct{}) {
	deadline := time.Now().Add(stopFlushTimeout)
	for {
		r.takeReady(waiting)
		for c := range waiting {
			if r.flush(c) {
				delete(waiting, c)
			}
		}
		if len(waiting) == 0 || time.Now().After(deadline) {
			return
		}
		time.Sleep(r.writeSlice)
	}
}

// flush writes as much of the connection's output as fits in one write
// slice. It returns true once there is nothing left to do for c.
func (r *responder) flush(c *connection) bool {
	out, since, ok := c.pendingOutput()
	if !ok {
		return true
	}
	if len(out) == 0 {
		if _, closeAfterFlush := c.consumed(0); closeAfterFlush {
			c.finishRejected()
		}
		return true
	}

	if err := c.nc.SetWriteDeadline(time.Now().Add(r.writeSlice)); err != nil {
		c.close("failed to set write deadline", err)
		return true
	}
	n, err := c.nc.Write(out)
	r.metrics.sentBytes.Add(int64(n))
	remaining, closeAfterFlush := c.consumed(n)

	if err != nil {
		if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
			c.close("failed to write responses", err)
			return true
		}
	}
	if remaining > 0 {
		if time.Since(since) > r.purgeInterval {
			c.close("responses not written in time", nil)
			return true
		}
		return false
	}
	if closeAfterFlush {
		c.finishRejected()
	}
	return true
}

func (r *responder) stop() {
	close(r.stopCh)
	<-r.done
}
