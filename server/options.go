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
	"time"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/fairrpc/api/scheduler"
	"go.uber.org/fairrpc/api/service"
	"go.uber.org/fairrpc/callqueue"
	"go.uber.org/fairrpc/internal/wire"
	"go.uber.org/net/metrics"
	"go.uber.org/zap"
)

const (
	defaultReaders             = 1
	defaultQueueSizePerHandler = 100
	defaultMaxIdleTime         = 20 * time.Second
	defaultPingInterval        = time.Minute
	defaultWriteSlice          = 10 * time.Millisecond
	defaultPurgeInterval       = 15 * time.Minute
)

// Config holds the parts of a Server that must be decided up front.
type Config struct {
	// Address to listen on, for example "127.0.0.1:0". Ignored when
	// Listener is set.
	Address string

	// Listener, if set, is used instead of listening on Address. The
	// Server closes it on Stop.
	Listener net.Listener

	// Services exposed by the server. At least one is required.
	Services []service.Service

	// Handlers is the number of goroutines running calls. Required.
	Handlers int

	// Readers is the number of goroutines decoding and admitting calls.
	// Defaults to 1.
	Readers int

	// QueueSizePerHandler sizes the call queue: it holds
	// Handlers*QueueSizePerHandler calls. Defaults to 100.
	QueueSizePerHandler int

	// MaxConnections caps the number of open connections. Accepting
	// pauses at the cap. Zero means no cap.
	MaxConnections int
}

// Option customizes a Server.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

type options struct {
	queueKind        string
	levels           int
	scheduler        scheduler.Scheduler
	backoff          bool
	authorizer       service.Authorizer
	authorizePerCall bool
	maxIdleTime      time.Duration
	pingEnabled      bool
	pingInterval     time.Duration
	writeSlice       time.Duration
	purgeInterval    time.Duration
	maxFrameSize     uint32
	logger           *zap.Logger
	meter            *metrics.Scope
	tracer           opentracing.Tracer
	observer         CallObserver
}

func defaultOptions() options {
	return options{
		queueKind:     callqueue.KindFIFO,
		scheduler:     scheduler.Default,
		authorizer:    service.AllowAll,
		maxIdleTime:   defaultMaxIdleTime,
		pingEnabled:   true,
		pingInterval:  defaultPingInterval,
		writeSlice:    defaultWriteSlice,
		purgeInterval: defaultPurgeInterval,
		maxFrameSize:  wire.DefaultMaxFrameSize,
		logger:        zap.NewNop(),
		tracer:        opentracing.NoopTracer{},
		observer:      nopObserver{},
	}
}

// WithCallQueue selects the kind of call queue: callqueue.KindFIFO (the
// default) or callqueue.KindFair.
func WithCallQueue(kind string) Option {
	return optionFunc(func(o *options) {
		o.queueKind = kind
	})
}

// WithPriorityLevels sets the number of levels of a fair call queue. By
// default it matches the scheduler's Levels(), if it has one, and is 1
// otherwise.
func WithPriorityLevels(levels int) Option {
	return optionFunc(func(o *options) {
		o.levels = levels
	})
}

// WithScheduler sets the scheduler that assigns priority levels. The
// Server stops it on Stop. Defaults to scheduler.Default.
func WithScheduler(s scheduler.Scheduler) Option {
	return optionFunc(func(o *options) {
		o.scheduler = s
	})
}

// WithBackoff makes readers reject calls with a retriable error when the
// call queue is full or the scheduler asks the caller to back off, instead
// of waiting for room.
func WithBackoff(enabled bool) Option {
	return optionFunc(func(o *options) {
		o.backoff = enabled
	})
}

// WithAuthorizer sets the initial authorizer. Defaults to
// service.AllowAll. See Server.SetAuthorizer.
func WithAuthorizer(a service.Authorizer) Option {
	return optionFunc(func(o *options) {
		o.authorizer = a
	})
}

// WithAuthorizePerCall authorizes every call instead of every connection.
func WithAuthorizePerCall(enabled bool) Option {
	return optionFunc(func(o *options) {
		o.authorizePerCall = enabled
	})
}

// WithMaxIdleTime sets how long a connection may go without receiving a
// frame. An idle connection with no call in flight is closed.
func WithMaxIdleTime(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.maxIdleTime = d
	})
}

// WithPing controls how the server treats the ping protocol.
//
// When enabled, a connection whose client announced pings, has calls in
// flight, and sent nothing for twice the larger of the announced interval
// and interval (and at least the max idle time) is considered dead and
// closed. When disabled, connections with calls in flight are never closed
// for silence.
//
// A zero interval keeps the current one.
func WithPing(enabled bool, interval time.Duration) Option {
	return optionFunc(func(o *options) {
		o.pingEnabled = enabled
		if interval != 0 {
			o.pingInterval = interval
		}
	})
}

// WithWriteSlice bounds how long the responder spends writing to one
// connection before moving on to the next.
func WithWriteSlice(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.writeSlice = d
	})
}

// WithPurgeInterval closes connections whose responses have been waiting to
// be written for longer than d.
func WithPurgeInterval(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.purgeInterval = d
	})
}

// WithMaxFrameSize bounds the frames accepted from clients.
func WithMaxFrameSize(n uint32) Option {
	return optionFunc(func(o *options) {
		o.maxFrameSize = n
	})
}

// WithLogger sets the logger for the Server.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = logger
	})
}

// WithMeter sets the scope server metrics are registered in. By default
// metrics are kept in a private registry.
func WithMeter(meter *metrics.Scope) Option {
	return optionFunc(func(o *options) {
		o.meter = meter
	})
}

// WithTracer sets the tracer used to start a span for every call.
func WithTracer(tracer opentracing.Tracer) Option {
	return optionFunc(func(o *options) {
		o.tracer = tracer
	})
}

// WithCallObserver registers hooks called as calls are admitted and
// completed.
func WithCallObserver(observer CallObserver) Option {
	return optionFunc(func(o *options) {
		o.observer = observer
	})
}
