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

import (
	"fmt"
	"time"

	"go.uber.org/fairrpc/api/backoff"
	ibackoff "go.uber.org/fairrpc/internal/backoff"
)

// Scheduler names understood in ServerConfig.
const (
	SchedulerDefault = "default"
	SchedulerDecay   = "decay"
)

// Config is the top-level configuration of a process serving or calling
// fairrpc services. Either half may be left out.
//
//  server:
//    address: ${HOST:127.0.0.1}:8000
//    handlers: 8
//    callQueue: fair
//    scheduler: decay
//    priorityLevels: 4
//    backoff: true
//  client:
//    identity: ${USER}
//    rpcTimeout: 1s
type Config struct {
	Server ServerConfig `config:"server"`
	Client ClientConfig `config:"client"`
}

// ServerConfig configures a server.Server.
type ServerConfig struct {
	Address             string `config:"address,interpolate"`
	Handlers            int    `config:"handlers,interpolate"`
	Readers             int    `config:"readers"`
	QueueSizePerHandler int    `config:"queueSizePerHandler"`
	MaxConnections      int    `config:"maxConnections"`

	// CallQueue is "fifo" (the default) or "fair".
	CallQueue string `config:"callQueue"`

	// Scheduler is "default" or "decay". The decay* and backoffThresholds
	// keys need the decay scheduler.
	Scheduler         string          `config:"scheduler"`
	PriorityLevels    int             `config:"priorityLevels"`
	DecayFactor       float64         `config:"decayFactor"`
	DecayPeriod       time.Duration   `config:"decayPeriod"`
	BackoffThresholds []time.Duration `config:"backoffThresholds"`

	// Backoff rejects calls with a retriable error instead of blocking
	// readers when the call queue is full or the scheduler asks for it.
	Backoff bool `config:"backoff"`

	// ACL lists the identities allowed to connect: "*" for everyone, or a
	// comma-separated list. Everyone is allowed when left out.
	ACL              *string `config:"acl,interpolate"`
	AuthorizePerCall bool    `config:"authorizePerCall"`

	MaxIdleTime time.Duration `config:"maxIdleTime"`
	Ping        Ping          `config:"ping"`
}

// ClientConfig configures a client.Client.
type ClientConfig struct {
	Identity       string        `config:"identity,interpolate"`
	RPCTimeout     time.Duration `config:"rpcTimeout"`
	MaxIdleTime    time.Duration `config:"maxIdleTime"`
	ConnectRetries int           `config:"connectRetries"`
	Ping           Ping          `config:"ping"`
	Backoff        Backoff       `config:"backoff"`
	Retry          Retry         `config:"retry"`
}

// Ping configures the ping protocol. Pings stay enabled unless disabled
// explicitly.
//
//  ping:
//    enabled: true
//    interval: 30s
type Ping struct {
	Enabled  *bool         `config:"enabled"`
	Interval time.Duration `config:"interval"`
}

func (p Ping) enabled() bool {
	return p.Enabled == nil || *p.Enabled
}

func (p Ping) isSet() bool {
	return p.Enabled != nil || p.Interval != 0
}

// Backoff configures the exponential backoff with full jitter used between
// connection attempts and retries.
//
//  backoff:
//    first: 10ms
//    minBackoff: 0s
//    maxBackoff: 1s
type Backoff struct {
	First      time.Duration `config:"first"`
	MinBackoff time.Duration `config:"minBackoff"`
	MaxBackoff time.Duration `config:"maxBackoff"`
}

// Strategy returns the configured backoff strategy, or nil if nothing was
// configured.
func (c Backoff) Strategy() (backoff.Strategy, error) {
	if c == (Backoff{}) {
		return nil, nil
	}

	var opts []ibackoff.ExponentialOption
	if c.First != 0 {
		opts = append(opts, ibackoff.BaseJump(c.First))
	}
	if c.MinBackoff != 0 {
		opts = append(opts, ibackoff.MinBackoff(c.MinBackoff))
	}
	if c.MaxBackoff != 0 {
		opts = append(opts, ibackoff.MaxBackoff(c.MaxBackoff))
	}
	s, err := ibackoff.NewExponential(opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid backoff: %v", err)
	}
	return s, nil
}

// Retry configures retries of calls rejected with a retriable error.
type Retry struct {
	MaxAttempts     int     `config:"maxAttempts"`
	BudgetPerSecond float64 `config:"budgetPerSecond"`
}
