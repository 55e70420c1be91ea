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
	"time"

	"go.uber.org/fairrpc/fairrpcerrors"
	"go.uber.org/fairrpc/internal/wire"
	"go.uber.org/zap"
)

// readerQueueSize is how many frames a reader buffers before the pumps
// feeding it block.
const readerQueueSize = 128

// inbound is a frame read from a connection.
type inbound struct {
	conn  *connection
	frame wire.Frame
}

// reader decodes the frames of the connections assigned to it, in order,
// and admits their calls to the call queue. A reader waiting for room in
// the call queue holds up all of its connections.
type reader struct {
	s      *Server
	id     int
	frames chan inbound
	stopCh chan struct{}
}

func newReader(s *Server, id int) *reader {
	return &reader{
		s:      s,
		id:     id,
		frames: make(chan inbound, readerQueueSize),
		stopCh: make(chan struct{}),
	}
}

func (r *reader) run() {
	defer r.s.readersWG.Done()
	for {
		select {
		case in := <-r.frames:
			r.process(in)
		case <-r.stopCh:
			return
		}
	}
}

func (r *reader) stop() {
	close(r.stopCh)
}

func (r *reader) process(in inbound) {
	c := in.conn
	if c.isClosed() || c.rejected.Load() {
		return
	}

	switch in.frame.Type {
	case wire.FrameHello:
		r.hello(c, in.frame.Payload)
	case wire.FrameRequest:
		r.request(c, in.frame.Payload)
	default:
		c.close("unexpected frame from client", nil)
	}
}

func (r *reader) hello(c *connection, payload []byte) {
	if c.helloDone {
		c.close("duplicate hello", nil)
		return
	}

	var h wire.Hello
	if err := h.Unmarshal(payload); err != nil {
		c.close("malformed hello", err)
		return
	}

	svc, ok := r.s.services[h.Service]
	if !ok {
		c.reject(fairrpcerrors.UnimplementedErrorf("unknown service %q", h.Service))
		return
	}
	if svc.Version != h.Version {
		c.reject(fairrpcerrors.FailedPreconditionErrorf(
			"service %q is at version %d, client expects version %d", h.Service, svc.Version, h.Version))
		return
	}
	if !r.s.opts.authorizePerCall {
		if err := r.s.authorize(h.Identity, h.Service); err != nil {
			c.reject(err)
			return
		}
	}

	c.accepted(h.Identity, svc, h.PingInterval)
	c.logger.Debug("accepted connection",
		zap.String("identity", h.Identity),
		zap.String("service", h.Service),
		zap.Duration("pingInterval", h.PingInterval))
}

func (r *reader) request(c *connection, payload []byte) {
	if !c.helloDone {
		c.close("request before hello", nil)
		return
	}

	var req wire.Request
	if err := req.Unmarshal(payload); err != nil {
		c.close("malformed request", err)
		return
	}

	cl := &call{
		conn:     c,
		seq:      c.nextSeq,
		id:       req.CallID,
		service:  c.svc.Name,
		method:   req.Method,
		body:     req.Body,
		identity: c.identity.Load(),
		received: time.Now(),
	}
	c.nextSeq++
	c.outstanding.Inc()

	handler, ok := c.svc.Methods[req.Method]
	if !ok {
		cl.fail(fairrpcerrors.UnimplementedErrorf("unknown method %q of service %q", req.Method, c.svc.Name))
		return
	}
	cl.handler = handler

	if r.s.opts.authorizePerCall {
		if err := r.s.authorize(cl.identity, cl.service); err != nil {
			cl.fail(err)
			return
		}
	}

	if err := r.s.calls.Put(r.s.ctx, cl); err != nil {
		if fairrpcerrors.IsResourceExhausted(err) {
			r.s.metrics.clientBackoffs.Inc()
			c.logger.Debug("rejected call",
				zap.String("method", cl.method),
				zap.String("identity", cl.identity),
				zap.Int("priority", cl.priority),
				zap.Error(err))
			cl.fail(err)
			return
		}
		// The call queue closed or the server context ended: stopping.
		cl.fail(errStopping)
		return
	}
	r.s.metrics.queueLength.Store(int64(r.s.calls.Len()))
	r.s.opts.observer.CallReceived(cl.info())
}
