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

// Package server implements the fairrpc server.
//
// A Server accepts connections on one listener and moves every call through
// a fixed set of goroutines: readers decode frames and admit calls to a
// callqueue.Manager, handlers take calls from it and run them, and a single
// responder writes the responses back, in the order the calls arrived on
// each connection.
//
// 	srv, err := server.New(server.Config{
// 		Address:  ":8000",
// 		Services: []service.Service{kv},
// 		Handlers: 8,
// 	}, server.WithBackoff(true))
// 	if err != nil {
// 		log.Fatal(err)
// 	}
// 	if err := srv.Start(); err != nil {
// 		log.Fatal(err)
// 	}
// 	defer srv.Stop()
package server

import (
	"context"
	"fmt"
	"net"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/fairrpc/api/scheduler"
	"go.uber.org/fairrpc/api/service"
	"go.uber.org/fairrpc/callqueue"
	fnet "go.uber.org/fairrpc/internal/net"
	"go.uber.org/fairrpc/pkg/lifecycle"
	"go.uber.org/multierr"
	"go.uber.org/net/metrics"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
)

// Server serves fairrpc services.
type Server struct {
	cfg    Config
	opts   options
	logger *zap.Logger

	services   map[string]*service.Service
	authorizer atomic.Value // authorizerBox
	calls      *callqueue.Manager
	metrics    *serverMetrics

	once      *lifecycle.Once
	acceptor  *fnet.Acceptor
	addr      atomic.Value // net.Addr
	readers   []*reader
	responder *responder

	ctx      context.Context
	cancel   context.CancelFunc
	stopping chan struct{}

	nextReader atomic.Uint32
	nextConn   atomic.Uint64

	handlersWG sync.WaitGroup
	readersWG  sync.WaitGroup
	pumpsWG    sync.WaitGroup

	connsMu sync.Mutex
	conns   map[*connection]struct{}
}

type authorizerBox struct{ service.Authorizer }

// New builds a Server. It does not listen until Start is called.
func New(cfg Config, opts ...Option) (*Server, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	if err := validate(&cfg, &o); err != nil {
		return nil, err
	}

	services := make(map[string]*service.Service, len(cfg.Services))
	for i := range cfg.Services {
		svc := cfg.Services[i]
		services[svc.Name] = &svc
	}

	levels := o.levels
	if levels == 0 {
		levels = 1
		if l, ok := o.scheduler.(interface{ Levels() int }); ok {
			levels = l.Levels()
		}
	}
	q, err := callqueue.New(o.queueKind, levels, cfg.Handlers*cfg.QueueSizePerHandler)
	if err != nil {
		return nil, err
	}

	if o.meter == nil {
		o.meter = metrics.New().Scope()
	}

	s := &Server{
		cfg:      cfg,
		opts:     o,
		logger:   o.logger,
		services: services,
		calls: callqueue.NewManager(q, o.scheduler,
			callqueue.WithBackoff(o.backoff),
			callqueue.WithLogger(o.logger)),
		metrics:  newServerMetrics(o.meter, o.logger),
		once:     lifecycle.NewOnce(),
		stopping: make(chan struct{}),
		conns:    make(map[*connection]struct{}),
	}
	s.authorizer.Store(authorizerBox{o.authorizer})
	s.acceptor = fnet.NewAcceptor(s.accept, o.logger)
	s.responder = newResponder(s)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

func validate(cfg *Config, o *options) (err error) {
	if cfg.Listener == nil && cfg.Address == "" {
		err = multierr.Append(err, errNoListener)
	}
	if len(cfg.Services) == 0 {
		err = multierr.Append(err, errNoServices)
	}
	seen := make(map[string]struct{}, len(cfg.Services))
	for _, svc := range cfg.Services {
		if verr := svc.Validate(); verr != nil {
			err = multierr.Append(err, verr)
		}
		if _, dup := seen[svc.Name]; dup {
			err = multierr.Append(err, fmt.Errorf("service %q is registered more than once", svc.Name))
		}
		seen[svc.Name] = struct{}{}
	}
	if cfg.Handlers <= 0 {
		err = multierr.Append(err, fmt.Errorf("handler count must be positive, got %d", cfg.Handlers))
	}
	if cfg.Readers < 0 {
		err = multierr.Append(err, fmt.Errorf("reader count must not be negative, got %d", cfg.Readers))
	} else if cfg.Readers == 0 {
		cfg.Readers = defaultReaders
	}
	if cfg.QueueSizePerHandler < 0 {
		err = multierr.Append(err, fmt.Errorf("queue size per handler must not be negative, got %d", cfg.QueueSizePerHandler))
	} else if cfg.QueueSizePerHandler == 0 {
		cfg.QueueSizePerHandler = defaultQueueSizePerHandler
	}
	if cfg.MaxConnections < 0 {
		err = multierr.Append(err, fmt.Errorf("max connections must not be negative, got %d", cfg.MaxConnections))
	}
	if o.maxIdleTime <= 0 {
		err = multierr.Append(err, fmt.Errorf("max idle time must be positive, got %v", o.maxIdleTime))
	}
	if o.pingEnabled && o.pingInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("ping interval must be positive when pings are enabled, got %v", o.pingInterval))
	}
	if o.writeSlice <= 0 {
		err = multierr.Append(err, fmt.Errorf("write slice must be positive, got %v", o.writeSlice))
	}
	if o.scheduler == nil {
		err = multierr.Append(err, fmt.Errorf("a scheduler is required"))
	}
	if o.authorizer == nil {
		err = multierr.Append(err, fmt.Errorf("an authorizer is required"))
	}
	return err
}

// Start listens and starts serving. It returns once the server accepts
// connections.
func (s *Server) Start() error {
	return s.once.Start(s.start)
}

func (s *Server) start() error {
	listener := s.cfg.Listener
	if listener == nil {
		var err error
		if listener, err = net.Listen("tcp", s.cfg.Address); err != nil {
			return err
		}
	}
	if s.cfg.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, s.cfg.MaxConnections)
	}
	s.addr.Store(listener.Addr())

	go s.responder.run()

	s.readers = make([]*reader, s.cfg.Readers)
	for i := range s.readers {
		s.readers[i] = newReader(s, i)
		s.readersWG.Add(1)
		go s.readers[i].run()
	}

	for i := 0; i < s.cfg.Handlers; i++ {
		s.handlersWG.Add(1)
		go s.runHandler()
	}

	if err := s.acceptor.Serve(listener); err != nil {
		return multierr.Append(err, s.stop())
	}

	s.logger.Info("server started",
		zap.Stringer("address", listener.Addr()),
		zap.Int("handlers", s.cfg.Handlers),
		zap.Int("readers", s.cfg.Readers),
		zap.Int("queueCapacity", s.calls.Cap()))
	return nil
}

// Stop shuts the server down and waits for all of its goroutines to exit.
//
// Calls still queued are failed with CodeUnavailable; calls being run are
// cancelled through their context and answered if they return in time.
func (s *Server) Stop() error {
	err := s.once.Stop(s.stop)

	// A server that never ran still owns its context and scheduler. A
	// refresh cut short by Stop leaves the retiring scheduler behind too.
	s.cancel()
	s.calls.Close()
	for _, sched := range s.calls.Schedulers() {
		sched.Stop()
	}
	return err
}

func (s *Server) stop() error {
	close(s.stopping)

	// Stop accepting.
	err := s.acceptor.Stop()

	// Cancel running calls and wake up handlers and blocked readers.
	s.cancel()
	s.calls.Close()
	s.handlersWG.Wait()

	for _, c := range s.calls.Drain() {
		c.(*call).fail(errStopping)
	}

	for _, r := range s.readers {
		r.stop()
	}
	s.readersWG.Wait()

	s.interruptPumps()
	s.pumpsWG.Wait()

	s.responder.stop()
	s.closeConnections()

	s.logger.Info("server stopped")
	return err
}

func (s *Server) isStopping() bool {
	select {
	case <-s.stopping:
		return true
	default:
		return false
	}
}

// accept registers a new connection. Called from the accept loop.
func (s *Server) accept(nc net.Conn) {
	r := s.readers[int(s.nextReader.Inc()-1)%len(s.readers)]
	c := newConnection(s, nc, r, s.nextConn.Inc())

	s.connsMu.Lock()
	s.conns[c] = struct{}{}
	s.connsMu.Unlock()
	s.metrics.openConnections.Inc()

	c.logger.Debug("accepted connection", zap.Int("reader", r.id))
	s.pumpsWG.Add(1)
	go c.pump()
}

func (s *Server) removeConnection(c *connection) {
	s.connsMu.Lock()
	_, ok := s.conns[c]
	delete(s.conns, c)
	s.connsMu.Unlock()
	if ok {
		s.metrics.openConnections.Dec()
	}
}

func (s *Server) connections() []*connection {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	conns := make([]*connection, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	return conns
}

// interruptPumps wakes every pump blocked on a read.
func (s *Server) interruptPumps() {
	for _, c := range s.connections() {
		if err := c.nc.SetReadDeadline(aLongTimeAgo); err != nil {
			c.close("server stopping", err)
		}
	}
}

func (s *Server) closeConnections() {
	for _, c := range s.connections() {
		c.close("server stopping", nil)
	}
}

func (s *Server) authorize(identity, svc string) error {
	a := s.authorizer.Load().(authorizerBox)
	if err := a.Authorize(identity, svc); err != nil {
		s.metrics.authFailures.Inc()
		return service.Denied(identity, svc, err)
	}
	s.metrics.authSuccesses.Inc()
	return nil
}

// SetAuthorizer replaces the authorizer. Connections and calls authorized
// earlier are not re-evaluated.
func (s *Server) SetAuthorizer(a service.Authorizer) {
	s.authorizer.Store(authorizerBox{a})
}

// Addr returns the address the server listens on, or nil before Start.
func (s *Server) Addr() net.Addr {
	addr, _ := s.addr.Load().(net.Addr)
	return addr
}

// CallQueueLen returns the number of calls waiting for a handler.
func (s *Server) CallQueueLen() int {
	return s.calls.Len()
}

// NumOpenConnections returns the number of open connections.
func (s *Server) NumOpenConnections() int {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return len(s.conns)
}

// OpenConnectionsPerUser counts open connections by caller identity.
// Connections that have not introduced themselves yet are left out.
func (s *Server) OpenConnectionsPerUser() map[string]int {
	counts := make(map[string]int)
	for _, c := range s.connections() {
		if id := c.identity.Load(); id != "" {
			counts[id]++
		}
	}
	return counts
}

// Scheduler returns the scheduler new calls are accounted to.
func (s *Server) Scheduler() scheduler.Scheduler {
	return s.calls.Scheduler()
}

// RefreshCallQueue replaces the call queue and scheduler while the server
// runs. Calls already queued are served before calls admitted to the new
// queue. levels is ignored by FIFO queues.
func (s *Server) RefreshCallQueue(kind string, levels int, sched scheduler.Scheduler) error {
	q, err := callqueue.New(kind, levels, s.cfg.Handlers*s.cfg.QueueSizePerHandler)
	if err != nil {
		return err
	}
	return s.calls.Swap(q, sched)
}
