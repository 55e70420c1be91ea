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
	"context"
	"net"
	"time"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/fairrpc/api/backoff"
	"go.uber.org/fairrpc/internal/wire"
	"go.uber.org/zap"
)

const (
	defaultPingInterval = time.Minute
	defaultMaxIdleTime  = 10 * time.Second
	defaultDialTimeout  = 20 * time.Second
)

// Option customizes a Client.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

// RetryPolicy retries calls rejected with a retriable error.
type RetryPolicy struct {
	// MaxAttempts bounds the number of attempts per call, the first one
	// included. Values below 2 disable retries.
	MaxAttempts int

	// BudgetPerSecond bounds the retries a Client makes per second,
	// across all of its calls. Zero means no bound.
	BudgetPerSecond float64
}

type options struct {
	identity       string
	rpcTimeout     time.Duration
	pingEnabled    bool
	pingInterval   time.Duration
	maxIdleTime    time.Duration
	connectRetries int
	backoff        backoff.Strategy
	retry          RetryPolicy
	dial           func(ctx context.Context, address string) (net.Conn, error)
	maxFrameSize   uint32
	logger         *zap.Logger
	tracer         opentracing.Tracer
}

func defaultOptions() options {
	return options{
		pingEnabled:  true,
		pingInterval: defaultPingInterval,
		maxIdleTime:  defaultMaxIdleTime,
		dial: func(ctx context.Context, address string) (net.Conn, error) {
			d := net.Dialer{Timeout: defaultDialTimeout}
			return d.DialContext(ctx, "tcp", address)
		},
		maxFrameSize: wire.DefaultMaxFrameSize,
		logger:       zap.NewNop(),
		tracer:       opentracing.NoopTracer{},
	}
}

// WithIdentity sets the identity the client announces to servers.
func WithIdentity(identity string) Option {
	return optionFunc(func(o *options) {
		o.identity = identity
	})
}

// WithRPCTimeout bounds how long a call waits for its response. With pings
// enabled the bound is stretched to the next multiple of the ping interval;
// see wire.EffectiveTimeout. Zero or less waits indefinitely.
func WithRPCTimeout(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.rpcTimeout = d
	})
}

// WithPing enables or disables pings on idle connections, and sets their
// interval. A zero interval keeps the current one.
func WithPing(enabled bool, interval time.Duration) Option {
	return optionFunc(func(o *options) {
		o.pingEnabled = enabled
		if interval != 0 {
			o.pingInterval = interval
		}
	})
}

// WithMaxIdleTime closes connections that had no call in flight for d.
func WithMaxIdleTime(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.maxIdleTime = d
	})
}

// WithConnectRetries sets how many times a failed dial is retried.
func WithConnectRetries(n int) Option {
	return optionFunc(func(o *options) {
		o.connectRetries = n
	})
}

// WithBackoff sets the delays between connection attempts and between
// retried calls. Defaults to an exponential backoff.
func WithBackoff(s backoff.Strategy) Option {
	return optionFunc(func(o *options) {
		o.backoff = s
	})
}

// WithRetry sets the retry policy. Calls are not retried by default.
func WithRetry(p RetryPolicy) Option {
	return optionFunc(func(o *options) {
		o.retry = p
	})
}

// WithDialer replaces the function used to open connections.
func WithDialer(dial func(ctx context.Context, address string) (net.Conn, error)) Option {
	return optionFunc(func(o *options) {
		o.dial = dial
	})
}

// WithMaxFrameSize bounds the frames accepted from servers.
func WithMaxFrameSize(n uint32) Option {
	return optionFunc(func(o *options) {
		o.maxFrameSize = n
	})
}

// WithLogger sets the logger for the Client.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = logger
	})
}

// WithTracer sets the tracer used to start a span for every call.
func WithTracer(tracer opentracing.Tracer) Option {
	return optionFunc(func(o *options) {
		o.tracer = tracer
	})
}
