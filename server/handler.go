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
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"go.uber.org/fairrpc/api/service"
	"go.uber.org/fairrpc/fairrpcerrors"
	"go.uber.org/zap"
)

// runHandler runs calls until the call queue closes.
func (s *Server) runHandler() {
	defer s.handlersWG.Done()
	for {
		c, err := s.calls.Take(s.ctx)
		if err != nil {
			return
		}
		s.metrics.queueLength.Store(int64(s.calls.Len()))
		s.handle(c.(*call))
	}
}

func (s *Server) handle(c *call) {
	start := time.Now()
	queueTime := start.Sub(c.received)

	span := s.opts.tracer.StartSpan(
		"fairrpc."+c.service+"/"+c.method,
		opentracing.StartTime(start),
		opentracing.Tags{
			"rpc.caller":   c.identity,
			"rpc.service":  c.service,
			"rpc.priority": c.priority,
		},
	)
	ext.SpanKindRPCServer.Set(span)
	ext.PeerService.Set(span, c.identity)

	ctx := opentracing.ContextWithSpan(s.ctx, span)
	ctx = service.WithCall(ctx, &service.Call{
		ID:         c.id,
		Identity:   c.identity,
		Service:    c.service,
		Method:     c.method,
		RemoteAddr: c.conn.nc.RemoteAddr(),
	})

	body, err := s.invoke(ctx, c)
	err = toStatus(err)
	processingTime := time.Since(start)

	updateSpanWithError(span, err)
	span.Finish()

	c.scheduler.AddResponseTime(c, c.priority, processingTime)
	s.metrics.handled(c.method, queueTime, processingTime, err)

	info := c.info()
	info.QueueTime = queueTime
	info.ProcessingTime = processingTime
	s.opts.observer.CallCompleted(info, err)

	if err != nil {
		c.fail(err)
		return
	}
	c.succeed(body)
}

// invoke calls the method, recovering panics as internal errors.
func (s *Server) invoke(ctx context.Context, c *call) (body []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fairrpcerrors.InternalErrorf("panic: %v", r)
			s.logger.Error("handler panicked",
				zap.String("service", c.service),
				zap.String("method", c.method),
				zap.String("identity", c.identity),
				zap.Error(err),
				zap.Stack("stack"),
			)
		}
	}()
	return c.handler(ctx, c.body)
}

// toStatus keeps statuses as they are and reports any other error as
// CodeUnknown, named after its type so that callers can tell errors apart.
func toStatus(err error) error {
	if err == nil || fairrpcerrors.IsStatus(err) {
		return err
	}
	return fairrpcerrors.Newf(fairrpcerrors.CodeUnknown, "%s", err.Error()).WithName(fmt.Sprintf("%T", err))
}

func updateSpanWithError(span opentracing.Span, err error) {
	if err == nil {
		return
	}

	ext.Error.Set(span, true)
	status := fairrpcerrors.FromError(err)
	span.SetTag("rpc.fairrpc.status_code", status.Code().String())
	span.SetTag("error.type", status.Code().String())
	if name := status.Name(); name != "" {
		span.SetTag("error.name", name)
	}
}
