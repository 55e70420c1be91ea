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

// Package wire reads and writes the frames exchanged on fairrpc
// connections.
//
// Every frame starts with an 8 byte header: a big-endian uint32 frame type
// followed by a big-endian uint32 payload length. Headers inside payloads
// are encoded as protobuf varints and length-delimited strings; call bodies
// are opaque bytes produced by the application's codec.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// FrameType identifies the payload of a frame.
type FrameType uint32

const (
	// FrameHello opens a connection. It carries a Hello.
	FrameHello FrameType = 1
	// FrameRequest carries a Request.
	FrameRequest FrameType = 2
	// FrameResponse carries a Response.
	FrameResponse FrameType = 3
	// FramePing is a liveness probe with no payload. It is never answered.
	FramePing FrameType = 4
)

func (t FrameType) String() string {
	switch t {
	case FrameHello:
		return "hello"
	case FrameRequest:
		return "request"
	case FrameResponse:
		return "response"
	case FramePing:
		return "ping"
	default:
		return fmt.Sprintf("FrameType(%d)", uint32(t))
	}
}

// HeaderSize is the size of a frame header.
const HeaderSize = 8

// DefaultMaxFrameSize bounds the payloads a peer may send.
const DefaultMaxFrameSize = 64 << 20

// Frame is a decoded frame header and its payload.
type Frame struct {
	Type    FrameType
	Payload []byte
}

// ErrFrameTooLarge is returned when a peer announces a payload above the
// limit. The connection cannot be resynchronized after it.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// AppendFrame appends the encoded frame to dst.
func AppendFrame(dst []byte, t FrameType, payload []byte) []byte {
	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(t))
	binary.BigEndian.PutUint32(header[4:8], uint32(len(payload)))
	dst = append(dst, header[:]...)
	return append(dst, payload...)
}

// WriteFrame writes the frame to w in a single Write.
func WriteFrame(w io.Writer, t FrameType, payload []byte) (int, error) {
	return w.Write(AppendFrame(make([]byte, 0, HeaderSize+len(payload)), t, payload))
}
