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

package net

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestAcceptorServesConnections(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	accepted := make(chan net.Conn, 1)
	a := NewAcceptor(func(c net.Conn) { accepted <- c }, zaptest.NewLogger(t))
	require.NoError(t, a.Serve(listener))
	assert.Equal(t, listener, a.Listener())
	assert.Equal(t, errAlreadyListening, a.Serve(listener))

	conn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	server := <-accepted
	require.NoError(t, server.Close())

	require.NoError(t, a.Stop())
	assert.Nil(t, a.Listener())
	assert.NoError(t, a.Stop(), "stop must be idempotent")
	assert.Equal(t, errAcceptorStopped, a.Serve(listener))
}

func TestAcceptorStopBeforeServe(t *testing.T) {
	a := NewAcceptor(func(net.Conn) {}, nil)
	assert.NoError(t, a.Stop())
}

func TestAcceptorUnexpectedClose(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	a := NewAcceptor(func(c net.Conn) { c.Close() }, nil)
	require.NoError(t, a.Serve(listener))
	require.NoError(t, listener.Close())

	err = a.Stop()
	assert.Error(t, err, "closing the listener behind the acceptor's back is an error")
}
