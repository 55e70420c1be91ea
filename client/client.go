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

// Package client implements the fairrpc client.
//
// A Client keeps one connection per server address, service and identity,
// and multiplexes concurrent calls over it. Use a Proxy to call one
// service:
//
// 	c, err := client.New(client.WithIdentity("alice"), client.WithRPCTimeout(time.Second))
// 	if err != nil {
// 		log.Fatal(err)
// 	}
// 	defer c.Stop()
//
// 	kv := c.Proxy("127.0.0.1:8000", "kv", 1)
// 	res, err := kv.Call(ctx, "getValue", body)
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fairrpc/api/backoff"
	ibackoff "go.uber.org/fairrpc/internal/backoff"
	"go.uber.org/fairrpc/fairrpcerrors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ConnectionID identifies a pooled connection.
type ConnectionID struct {
	Address  string
	Service  string
	Version  uint64
	Identity string
}

func (id ConnectionID) String() string {
	return fmt.Sprintf("%s@%s/%s:v%d", id.Identity, id.Address, id.Service, id.Version)
}

// Client makes calls to fairrpc servers.
type Client struct {
	opts    options
	logger  *zap.Logger
	backoff backoff.Backoff
	budget  *rate.Limiter // nil without a retry budget

	// ctx bounds connection setup. Stop cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	conns   map[ConnectionID]*connection

	wg sync.WaitGroup
}

// New builds a Client.
func New(opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	if err := validate(o); err != nil {
		return nil, err
	}

	if o.backoff == nil {
		exp, err := ibackoff.NewExponential()
		if err != nil {
			return nil, err
		}
		o.backoff = exp
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		opts:    o,
		logger:  o.logger,
		backoff: o.backoff.Backoff(),
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[ConnectionID]*connection),
	}
	if o.retry.BudgetPerSecond > 0 {
		burst := int(o.retry.BudgetPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.budget = rate.NewLimiter(rate.Limit(o.retry.BudgetPerSecond), burst)
	}
	return c, nil
}

func validate(o options) (err error) {
	if o.pingEnabled && o.pingInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("ping interval must be positive when pings are enabled, got %v", o.pingInterval))
	}
	if o.maxIdleTime <= 0 {
		err = multierr.Append(err, fmt.Errorf("max idle time must be positive, got %v", o.maxIdleTime))
	}
	if o.connectRetries < 0 {
		err = multierr.Append(err, fmt.Errorf("connect retries must not be negative, got %d", o.connectRetries))
	}
	if o.retry.BudgetPerSecond < 0 {
		err = multierr.Append(err, fmt.Errorf("retry budget must not be negative, got %v", o.retry.BudgetPerSecond))
	}
	if o.dial == nil {
		err = multierr.Append(err, fmt.Errorf("a dialer is required"))
	}
	return err
}

// Proxy returns a Proxy calling the given service at address with the
// client's identity.
func (c *Client) Proxy(address, service string, version uint64) *Proxy {
	return &Proxy{
		client: c,
		id: ConnectionID{
			Address:  address,
			Service:  service,
			Version:  version,
			Identity: c.opts.identity,
		},
	}
}

// Call sends a request over the connection identified by id and waits for
// its response.
//
// Calls rejected with a retriable error are retried according to the retry
// policy. Cancelling ctx abandons the call with CodeCancelled; other calls
// on the connection are not affected.
func (c *Client) Call(ctx context.Context, id ConnectionID, method string, body []byte) ([]byte, error) {
	for attempt := uint(0); ; attempt++ {
		res, err := c.call(ctx, id, method, body)
		if err == nil || !c.shouldRetry(err, attempt) {
			return res, err
		}

		delay := c.backoff.Duration(attempt)
		c.logger.Debug("retrying call",
			zap.Stringer("connection", id),
			zap.String("method", method),
			zap.Uint("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (c *Client) shouldRetry(err error, attempt uint) bool {
	if !fairrpcerrors.IsRetriable(err) {
		return false
	}
	if int(attempt)+1 >= c.opts.retry.MaxAttempts {
		return false
	}
	return c.budget == nil || c.budget.Allow()
}

func (c *Client) call(ctx context.Context, id ConnectionID, method string, body []byte) ([]byte, error) {
	conn, err := c.connection(ctx, id)
	if err != nil {
		return nil, err
	}
	defer c.release(conn)
	return conn.call(ctx, method, body)
}

// connection returns the pooled connection for id, opening it if needed.
// The caller must release it.
func (c *Client) connection(ctx context.Context, id ConnectionID) (*connection, error) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil, errClientStopped
	}
	conn, ok := c.conns[id]
	if !ok || conn.isClosed() {
		conn = newConnection(c, id)
		c.conns[id] = conn
	}
	conn.active++
	c.mu.Unlock()

	if err := conn.connect(ctx); err != nil {
		c.release(conn)
		// A caller that gave up early leaves the connection to the others.
		if conn.isClosed() {
			c.remove(conn)
		}
		return nil, err
	}
	return conn, nil
}

// release gives back a connection obtained from connection.
func (c *Client) release(conn *connection) {
	c.mu.Lock()
	conn.active--
	if conn.active == 0 {
		conn.idleSince = time.Now()
	}
	c.mu.Unlock()
}

// remove drops the connection from the pool if it is still there.
func (c *Client) remove(conn *connection) {
	c.mu.Lock()
	if c.conns[conn.id] == conn {
		delete(c.conns, conn.id)
	}
	c.mu.Unlock()
}

// closeIfIdle closes the connection if no call used it for the max idle
// time. It returns true if it closed it.
func (c *Client) closeIfIdle(conn *connection) bool {
	c.mu.Lock()
	idle := conn.active == 0 && time.Since(conn.idleSince) >= c.opts.maxIdleTime
	if idle && c.conns[conn.id] == conn {
		delete(c.conns, conn.id)
	}
	c.mu.Unlock()

	if idle {
		conn.close(errIdle)
	}
	return idle
}

// NumConnections returns the number of pooled connections.
func (c *Client) NumConnections() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conns)
}

// Stop closes all connections, failing calls in flight with
// CodeUnavailable, and waits for the client's goroutines to exit.
func (c *Client) Stop() error {
	c.mu.Lock()
	c.stopped = true
	conns := make([]*connection, 0, len(c.conns))
	for _, conn := range c.conns {
		conns = append(conns, conn)
	}
	c.conns = make(map[ConnectionID]*connection)
	c.mu.Unlock()

	c.cancel()

	for _, conn := range conns {
		conn.close(errClientStopped)
	}
	c.wg.Wait()
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctxError(ctx)
	}
}

// ctxError maps a finished context to the error reported for the call.
func ctxError(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return fairrpcerrors.DeadlineExceededErrorf("call deadline exceeded")
	}
	return errInterrupted
}

// Proxy calls one service through a Client. It implements json.Caller.
type Proxy struct {
	client *Client
	id     ConnectionID
}

// ConnectionID returns the connection the proxy's calls use.
func (p *Proxy) ConnectionID() ConnectionID { return p.id }

// Call calls the method with the encoded request and returns the encoded
// response.
func (p *Proxy) Call(ctx context.Context, method string, body []byte) ([]byte, error) {
	return p.client.Call(ctx, p.id, method, body)
}
