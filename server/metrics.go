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
	"go.uber.org/net/metrics"
	"go.uber.org/net/metrics/bucket"
	"go.uber.org/zap"
)

const (
	_method = "method"
	_code   = "code"
)

// Latency buckets for histograms.
var _bucketsMs = bucket.NewRPCLatency()

type serverMetrics struct {
	receivedBytes *metrics.Counter
	sentBytes     *metrics.Counter

	calls      *metrics.CounterVector
	callErrors *metrics.CounterVector

	callerFailures *metrics.CounterVector
	serverFailures *metrics.CounterVector

	queueLength     *metrics.Gauge
	openConnections *metrics.Gauge

	authSuccesses  *metrics.Counter
	authFailures   *metrics.Counter
	clientBackoffs *metrics.Counter

	queueTime      *metrics.Histogram
	processingTime *metrics.Histogram
}

func newServerMetrics(meter *metrics.Scope, logger *zap.Logger) *serverMetrics {
	m := &serverMetrics{}
	var err error

	counter := func(name, help string) *metrics.Counter {
		c, err := meter.Counter(metrics.Spec{Name: name, Help: help})
		if err != nil {
			logger.Error("Failed to create counter.", zap.String("name", name), zap.Error(err))
		}
		return c
	}
	gauge := func(name, help string) *metrics.Gauge {
		g, err := meter.Gauge(metrics.Spec{Name: name, Help: help})
		if err != nil {
			logger.Error("Failed to create gauge.", zap.String("name", name), zap.Error(err))
		}
		return g
	}
	histogram := func(name, help string) *metrics.Histogram {
		h, err := meter.Histogram(metrics.HistogramSpec{
			Spec:    metrics.Spec{Name: name, Help: help},
			Unit:    time.Millisecond,
			Buckets: _bucketsMs,
		})
		if err != nil {
			logger.Error("Failed to create histogram.", zap.String("name", name), zap.Error(err))
		}
		return h
	}

	m.receivedBytes = counter("received_bytes", "Bytes read from client connections.")
	m.sentBytes = counter("sent_bytes", "Bytes written to client connections.")
	m.authSuccesses = counter("authorization_successes", "Number of successful authorizations.")
	m.authFailures = counter("authorization_failures", "Number of denied authorizations.")
	m.clientBackoffs = counter("client_backoffs", "Number of calls rejected with a retriable error.")

	m.calls, err = meter.CounterVector(metrics.Spec{
		Name:    "calls",
		Help:    "Number of calls run by handlers.",
		VarTags: []string{_method},
	})
	if err != nil {
		logger.Error("Failed to create calls vector.", zap.Error(err))
	}
	m.callErrors, err = meter.CounterVector(metrics.Spec{
		Name:    "call_errors",
		Help:    "Number of calls run by handlers that failed.",
		VarTags: []string{_method, _code},
	})
	if err != nil {
		logger.Error("Failed to create call errors vector.", zap.Error(err))
	}

	m.callerFailures, err = meter.CounterVector(metrics.Spec{
		Name:    "caller_failures",
		Help:    "Number of calls failed because of caller error.",
		VarTags: []string{_method, _code},
	})
	if err != nil {
		logger.Error("Failed to create caller failures vector.", zap.Error(err))
	}
	m.serverFailures, err = meter.CounterVector(metrics.Spec{
		Name:    "server_failures",
		Help:    "Number of calls failed because of server error.",
		VarTags: []string{_method, _code},
	})
	if err != nil {
		logger.Error("Failed to create server failures vector.", zap.Error(err))
	}

	m.queueLength = gauge("call_queue_length", "Number of calls waiting for a handler.")
	m.openConnections = gauge("open_connections", "Number of open client connections.")

	m.queueTime = histogram("queue_time_ms", "Time calls spent in the call queue.")
	m.processingTime = histogram("processing_time_ms", "Time handlers spent running calls.")
	return m
}

// handled records a call run by a handler.
func (m *serverMetrics) handled(method string, queueTime, processingTime time.Duration, err error) {
	if counter, cerr := m.calls.Get(_method, method); cerr == nil {
		counter.Inc()
	}
	m.queueTime.Observe(queueTime)
	m.processingTime.Observe(processingTime)
	if err == nil {
		return
	}
	code := fairrpcerrors.FromError(err).Code()
	if counter, cerr := m.callErrors.Get(_method, method, _code, code.String()); cerr == nil {
		counter.Inc()
	}

	var failures *metrics.CounterVector
	switch fairrpcerrors.GetFaultTypeFromError(err) {
	case fairrpcerrors.ClientFault:
		failures = m.callerFailures
	case fairrpcerrors.ServerFault:
		failures = m.serverFailures
	default:
		return
	}
	if counter, cerr := failures.Get(_method, method, _code, code.String()); cerr == nil {
		counter.Inc()
	}
}
