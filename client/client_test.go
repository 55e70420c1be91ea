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
	"errors"
	"net"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/fairrpc/api/scheduler"
	"go.uber.org/fairrpc/api/scheduler/schedulertest"
	"go.uber.org/fairrpc/api/service"
	"go.uber.org/fairrpc/fairrpcerrors"
	"go.uber.org/fairrpc/internal/backoff"
	"go.uber.org/fairrpc/internal/testservice"
	"go.uber.org/fairrpc/internal/testtime"
	"go.uber.org/fairrpc/server"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startServer(t *testing.T, h *testservice.Handler, opts ...server.Option) *server.Server {
	t.Helper()
	opts = append([]server.Option{server.WithLogger(zaptest.NewLogger(t))}, opts...)
	s, err := server.New(server.Config{
		Address:  "127.0.0.1:0",
		Services: []service.Service{h.Service()},
		Handlers: 4,
	}, opts...)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	t.Cleanup(func() { assert.NoError(t, s.Stop()) })
	return s
}

func newClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithIdentity("alice"), WithLogger(zaptest.NewLogger(t))}, opts...)
	c, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, c.Stop()) })
	return c
}

func proxy(c *Client, s *server.Server) *Proxy {
	return c.Proxy(s.Addr().String(), testservice.Name, testservice.Version)
}

func testContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*testtime.Second)
}

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

func fastBackoff(t *testing.T) *backoff.Exponential {
	bo, err := backoff.NewExponential(
		backoff.BaseJump(time.Millisecond),
		backoff.MaxBackoff(5*time.Millisecond),
	)
	require.NoError(t, err)
	return bo
}

func TestNewValidation(t *testing.T) {
	_, err := New(
		WithPing(true, -time.Second),
		WithMaxIdleTime(0),
		WithConnectRetries(-1),
		WithRetry(RetryPolicy{BudgetPerSecond: -1}),
		WithDialer(nil),
	)
	require.Error(t, err)
	for _, msg := range []string{
		"ping interval must be positive when pings are enabled, got -1s",
		"max idle time must be positive, got 0s",
		"connect retries must not be negative, got -1",
		"retry budget must not be negative, got -1",
		"a dialer is required",
	} {
		assert.Contains(t, err.Error(), msg)
	}

	_, err = New(WithPing(false, -time.Second))
	assert.NoError(t, err, "the ping interval is unused when pings are disabled")
}

func TestConnectionID(t *testing.T) {
	c := newClient(t, WithIdentity("bob"))
	p := c.Proxy("127.0.0.1:1234", "kv", 3)
	assert.Equal(t, ConnectionID{
		Address:  "127.0.0.1:1234",
		Service:  "kv",
		Version:  3,
		Identity: "bob",
	}, p.ConnectionID())
	assert.Equal(t, "bob@127.0.0.1:1234/kv:v3", p.ConnectionID().String())
}

func TestCallsShareAConnection(t *testing.T) {
	h := &testservice.Handler{}
	s := startServer(t, h)
	c := newClient(t)

	ctx, cancel := testContext()
	defer cancel()

	a := testservice.NewClient(proxy(c, s))
	b := testservice.NewClient(proxy(c, s))

	msg, err := a.Echo(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, "one", msg)

	sum, err := b.Add(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, sum)

	assert.Equal(t, 1, c.NumConnections())
	assert.Equal(t, 1, s.NumOpenConnections())

	// Another identity needs its own connection.
	other := newClient(t, WithIdentity("bob"))
	who, err := testservice.NewClient(proxy(other, s)).WhoAmI(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", who)
	assert.Equal(t, 2, s.NumOpenConnections())
}

func TestCallTimeout(t *testing.T) {
	h := &testservice.Handler{}
	s := startServer(t, h)
	c := newClient(t, WithRPCTimeout(100*testtime.Millisecond), WithPing(false, 0))
	p := proxy(c, s)
	tc := testservice.NewClient(p)

	ctx, cancel := testContext()
	defer cancel()

	err := tc.Sleep(ctx, 300*testtime.Millisecond)
	require.Error(t, err)
	assert.True(t, fairrpcerrors.IsDeadlineExceeded(err), "got %v", err)

	conn, err := c.connection(ctx, p.ConnectionID())
	require.NoError(t, err)
	assert.Equal(t, 0, conn.pendingCalls(), "the timed out call is forgotten")
	c.release(conn)

	// The late response is discarded and the connection stays usable.
	time.Sleep(300 * testtime.Millisecond)
	msg, err := tc.Echo(ctx, "still here")
	require.NoError(t, err)
	assert.Equal(t, "still here", msg)
	assert.Equal(t, 1, c.NumConnections())
}

func TestPingsExtendTheTimeout(t *testing.T) {
	h := &testservice.Handler{}
	s := startServer(t, h)

	// Timeouts are rounded up to the next ping interval: 200ms with 100ms
	// pings waits for 300ms.
	c := newClient(t,
		WithRPCTimeout(200*testtime.Millisecond),
		WithPing(true, 100*testtime.Millisecond))
	tc := testservice.NewClient(proxy(c, s))

	ctx, cancel := testContext()
	defer cancel()

	require.NoError(t, tc.Sleep(ctx, 240*testtime.Millisecond))

	err := tc.Sleep(ctx, 600*testtime.Millisecond)
	require.Error(t, err)
	assert.True(t, fairrpcerrors.IsDeadlineExceeded(err), "got %v", err)
}

func TestInterruptedCallLeavesOthersAlone(t *testing.T) {
	h := &testservice.Handler{Gate: make(chan struct{})}
	s := startServer(t, h)
	c := newClient(t)
	tc := testservice.NewClient(proxy(c, s))

	ctx, cancel := testContext()
	defer cancel()

	sleepCtx, interrupt := context.WithCancel(ctx)
	sleepErr := make(chan error, 1)
	go func() { sleepErr <- tc.Sleep(sleepCtx, 0) }()
	waitFor(t, "the sleep call to start", func() bool { return h.Calls.Load() == 1 })

	// Responses come back in order, so the echo waits behind the sleep.
	echoErr := make(chan error, 1)
	go func() {
		_, err := tc.Echo(ctx, "hi")
		echoErr <- err
	}()

	interrupt()
	err := <-sleepErr
	require.Error(t, err)
	assert.True(t, fairrpcerrors.IsCancelled(err), "got %v", err)
	assert.Equal(t, "interrupted", fairrpcerrors.FromError(err).Message())

	close(h.Gate)
	assert.NoError(t, <-echoErr)
	assert.Equal(t, 1, c.NumConnections())
}

func TestContextDeadline(t *testing.T) {
	h := &testservice.Handler{Gate: make(chan struct{})}
	defer close(h.Gate)
	s := startServer(t, h)
	c := newClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*testtime.Millisecond)
	defer cancel()
	err := testservice.NewClient(proxy(c, s)).Sleep(ctx, 0)
	require.Error(t, err)
	assert.True(t, fairrpcerrors.IsDeadlineExceeded(err), "got %v", err)
}

func TestIdleConnectionIsClosedAndReopened(t *testing.T) {
	h := &testservice.Handler{}
	s := startServer(t, h)
	c := newClient(t, WithMaxIdleTime(50*testtime.Millisecond))
	tc := testservice.NewClient(proxy(c, s))

	ctx, cancel := testContext()
	defer cancel()

	require.NoError(t, tc.Ping(ctx))
	assert.Equal(t, 1, c.NumConnections())

	waitFor(t, "the idle connection to close", func() bool { return c.NumConnections() == 0 })
	waitFor(t, "the server to notice", func() bool { return s.NumOpenConnections() == 0 })

	require.NoError(t, tc.Ping(ctx))
	assert.Equal(t, 1, c.NumConnections())
}

func TestBusyConnectionIsNotIdle(t *testing.T) {
	h := &testservice.Handler{}
	s := startServer(t, h)
	c := newClient(t, WithMaxIdleTime(50*testtime.Millisecond))

	ctx, cancel := testContext()
	defer cancel()
	require.NoError(t, testservice.NewClient(proxy(c, s)).Sleep(ctx, 200*testtime.Millisecond))
}

func TestRejectedConnection(t *testing.T) {
	h := &testservice.Handler{}
	s := startServer(t, h, server.WithAuthorizer(service.NewACL("bob")))
	c := newClient(t)

	ctx, cancel := testContext()
	defer cancel()

	err := testservice.NewClient(proxy(c, s)).Ping(ctx)
	require.Error(t, err)
	assert.True(t, fairrpcerrors.IsPermissionDenied(err), "got %v", err)
	waitFor(t, "the rejected connection to leave the pool", func() bool {
		return c.NumConnections() == 0
	})
}

func TestRetryOnBackoff(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	var rejections atomic.Int32
	sched := schedulertest.NewMockScheduler(ctrl)
	sched.EXPECT().PriorityLevel(gomock.Any()).Return(0).AnyTimes()
	sched.EXPECT().AddResponseTime(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	sched.EXPECT().Stop().MinTimes(1)

	h := &testservice.Handler{}
	s := startServer(t, h, server.WithScheduler(sched), server.WithBackoff(true))

	ctx, cancel := testContext()
	defer cancel()

	t.Run("succeeds after retries", func(t *testing.T) {
		sched.EXPECT().ShouldBackOff(gomock.Any()).DoAndReturn(func(scheduler.Schedulable) bool {
			return rejections.Inc() <= 2
		}).Times(3)

		c := newClient(t, WithRetry(RetryPolicy{MaxAttempts: 3}), WithBackoff(fastBackoff(t)))
		_, err := testservice.NewClient(proxy(c, s)).Echo(ctx, "hi")
		require.NoError(t, err)
		assert.Equal(t, int32(3), rejections.Load())
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		sched.EXPECT().ShouldBackOff(gomock.Any()).Return(true).Times(2)

		c := newClient(t, WithRetry(RetryPolicy{MaxAttempts: 2}), WithBackoff(fastBackoff(t)))
		_, err := testservice.NewClient(proxy(c, s)).Echo(ctx, "hi")
		require.Error(t, err)
		assert.True(t, fairrpcerrors.IsResourceExhausted(err), "got %v", err)
	})

	t.Run("retry budget", func(t *testing.T) {
		// One retry fits the budget; the next one is refused.
		sched.EXPECT().ShouldBackOff(gomock.Any()).Return(true).Times(2)

		c := newClient(t,
			WithRetry(RetryPolicy{MaxAttempts: 10, BudgetPerSecond: 0.01}),
			WithBackoff(fastBackoff(t)))
		_, err := testservice.NewClient(proxy(c, s)).Echo(ctx, "hi")
		require.Error(t, err)
		assert.True(t, fairrpcerrors.IsResourceExhausted(err), "got %v", err)
	})

	t.Run("no retries by default", func(t *testing.T) {
		sched.EXPECT().ShouldBackOff(gomock.Any()).Return(true).Times(1)

		c := newClient(t)
		_, err := testservice.NewClient(proxy(c, s)).Echo(ctx, "hi")
		require.Error(t, err)
		assert.True(t, fairrpcerrors.IsRetriable(err))
	})
}

func TestConnectRetries(t *testing.T) {
	h := &testservice.Handler{}
	s := startServer(t, h)

	flakyDialer := func(failures int32) (func(context.Context, string) (net.Conn, error), *atomic.Int32) {
		var attempts atomic.Int32
		return func(ctx context.Context, address string) (net.Conn, error) {
			if attempts.Inc() <= failures {
				return nil, errors.New("connection refused")
			}
			var d net.Dialer
			return d.DialContext(ctx, "tcp", address)
		}, &attempts
	}

	ctx, cancel := testContext()
	defer cancel()

	t.Run("recovers", func(t *testing.T) {
		dial, attempts := flakyDialer(2)
		c := newClient(t, WithDialer(dial), WithConnectRetries(2), WithBackoff(fastBackoff(t)))
		require.NoError(t, testservice.NewClient(proxy(c, s)).Ping(ctx))
		assert.Equal(t, int32(3), attempts.Load())
	})

	t.Run("gives up", func(t *testing.T) {
		dial, attempts := flakyDialer(2)
		c := newClient(t, WithDialer(dial), WithConnectRetries(1), WithBackoff(fastBackoff(t)))
		err := testservice.NewClient(proxy(c, s)).Ping(ctx)
		require.Error(t, err)
		assert.True(t, fairrpcerrors.IsUnavailable(err), "got %v", err)
		assert.Contains(t, err.Error(), "after 2 attempts")
		assert.Equal(t, int32(2), attempts.Load())
		assert.Equal(t, 0, c.NumConnections())
	})
}

func TestInterruptedConnectLeavesOtherCallersAlone(t *testing.T) {
	s := startServer(t, &testservice.Handler{})

	var dials atomic.Int32
	ready := make(chan struct{})
	dial := func(ctx context.Context, address string) (net.Conn, error) {
		dials.Inc()
		select {
		case <-ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		var d net.Dialer
		return d.DialContext(ctx, "tcp", address)
	}
	c := newClient(t, WithDialer(dial), WithConnectRetries(3))
	p := proxy(c, s)

	active := func() int {
		c.mu.Lock()
		defer c.mu.Unlock()
		if conn, ok := c.conns[p.ConnectionID()]; ok {
			return conn.active
		}
		return 0
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- testservice.NewClient(p).Ping(firstCtx) }()
	waitFor(t, "the first caller to start dialing", func() bool { return dials.Load() == 1 })

	ctx, cancel := testContext()
	defer cancel()
	second := make(chan error, 1)
	go func() { second <- testservice.NewClient(p).Ping(ctx) }()
	waitFor(t, "both callers to wait for the connection", func() bool { return active() == 2 })

	cancelFirst()
	err := <-first
	require.Error(t, err)
	assert.True(t, fairrpcerrors.IsCancelled(err), "got %v", err)

	close(ready)
	require.NoError(t, <-second)
	assert.Equal(t, int32(1), dials.Load(), "the connection is dialed once")
	assert.Equal(t, 1, c.NumConnections())
}

func TestStopInterruptsConnect(t *testing.T) {
	dial := func(ctx context.Context, address string) (net.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	c, err := New(WithIdentity("alice"), WithDialer(dial), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	ctx, cancel := testContext()
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- testservice.NewClient(c.Proxy("127.0.0.1:1", testservice.Name, testservice.Version)).Ping(ctx)
	}()
	waitFor(t, "the connection to be pooled", func() bool { return c.NumConnections() == 1 })

	require.NoError(t, c.Stop())
	err = <-done
	require.Error(t, err)
	assert.True(t, fairrpcerrors.IsUnavailable(err), "got %v", err)
}

func TestStopFailsCallsInFlight(t *testing.T) {
	h := &testservice.Handler{Gate: make(chan struct{})}
	s := startServer(t, h)

	c, err := New(WithIdentity("alice"), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	tc := testservice.NewClient(proxy(c, s))

	ctx, cancel := testContext()
	defer cancel()

	errs := make(chan error, 1)
	go func() { errs <- tc.Sleep(ctx, 0) }()
	waitFor(t, "the call to start", func() bool { return h.Calls.Load() == 1 })

	require.NoError(t, c.Stop())
	err = <-errs
	require.Error(t, err)
	assert.True(t, fairrpcerrors.IsUnavailable(err), "got %v", err)

	err = tc.Ping(ctx)
	require.Error(t, err)
	assert.Equal(t, errClientStopped, err)
	assert.NoError(t, c.Stop(), "stopping twice")
}

func TestServerGoingAwayFailsCalls(t *testing.T) {
	h := &testservice.Handler{Gate: make(chan struct{})}
	s := startServer(t, h)
	c := newClient(t)
	tc := testservice.NewClient(proxy(c, s))

	ctx, cancel := testContext()
	defer cancel()

	errs := make(chan error, 1)
	go func() { errs <- tc.Sleep(ctx, 0) }()
	waitFor(t, "the call to start", func() bool { return h.Calls.Load() == 1 })

	require.NoError(t, s.Stop())
	assert.Error(t, <-errs)
	waitFor(t, "the lost connection to leave the pool", func() bool {
		return c.NumConnections() == 0
	})
}

func TestTracing(t *testing.T) {
	h := &testservice.Handler{}
	s := startServer(t, h)
	tracer := mocktracer.New()
	c := newClient(t, WithTracer(tracer))
	p := proxy(c, s)

	ctx, cancel := testContext()
	defer cancel()

	_, err := testservice.NewClient(p).Echo(ctx, "hi")
	require.NoError(t, err)
	_, err = p.Call(ctx, "nope", nil)
	require.Error(t, err)

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "fairrpc.TestProtocol/echo", spans[0].OperationName)
	assert.Equal(t, "alice", spans[0].Tag("rpc.caller"))
	assert.Nil(t, spans[0].Tag("error"))
	assert.Equal(t, "fairrpc.TestProtocol/nope", spans[1].OperationName)
	assert.Equal(t, true, spans[1].Tag("error"))
	assert.Equal(t, "unimplemented", spans[1].Tag("error.type"))
}
