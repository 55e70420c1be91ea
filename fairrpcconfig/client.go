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

package fairrpcconfig

import "go.uber.org/fairrpc/client"

// NewClient builds a client.
func (c *Configurator) NewClient(cfg ClientConfig) (*client.Client, error) {
	opts := []client.Option{
		client.WithLogger(c.logger),
		client.WithTracer(c.tracer),
		client.WithIdentity(cfg.Identity),
		client.WithRPCTimeout(cfg.RPCTimeout),
		client.WithConnectRetries(cfg.ConnectRetries),
		client.WithRetry(client.RetryPolicy{
			MaxAttempts:     cfg.Retry.MaxAttempts,
			BudgetPerSecond: cfg.Retry.BudgetPerSecond,
		}),
	}
	if cfg.MaxIdleTime != 0 {
		opts = append(opts, client.WithMaxIdleTime(cfg.MaxIdleTime))
	}
	if cfg.Ping.isSet() {
		opts = append(opts, client.WithPing(cfg.Ping.enabled(), cfg.Ping.Interval))
	}

	strategy, err := cfg.Backoff.Strategy()
	if err != nil {
		return nil, err
	}
	if strategy != nil {
		opts = append(opts, client.WithBackoff(strategy))
	}
	return client.New(opts...)
}
