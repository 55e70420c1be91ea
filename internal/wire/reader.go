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

package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Reader reads frames from a stream whose reads may time out.
//
// A Reader keeps the bytes of a partially read frame when the underlying
// reader fails, so Next can be called again after a read deadline expires
// without losing sync with the peer.
type Reader struct {
	r       io.Reader
	maxSize uint32

	header  [HeaderSize]byte
	hn      int // header bytes read
	frame   Frame
	payload bool // header complete, reading payload
	pn      int  // payload bytes read
}

// NewReader builds a Reader that rejects payloads above maxSize.
func NewReader(r io.Reader, maxSize uint32) *Reader {
	return &Reader{r: r, maxSize: maxSize}
}

// Next returns the next complete frame.
//
// Errors from the underlying reader are returned as is and leave the Reader
// ready to resume. Protocol errors, such as an unknown frame type or an
// oversized frame, are not recoverable.
func (r *Reader) Next() (Frame, error) {
	for !r.payload {
		n, err := r.r.Read(r.header[r.hn:])
		r.hn += n
		if r.hn == HeaderSize {
			if perr := r.startPayload(); perr != nil {
				return Frame{}, perr
			}
			break
		}
		if err != nil {
			if err == io.EOF && r.hn > 0 {
				err = io.ErrUnexpectedEOF
			}
			return Frame{}, err
		}
	}

	for r.pn < len(r.frame.Payload) {
		n, err := r.r.Read(r.frame.Payload[r.pn:])
		r.pn += n
		if r.pn == len(r.frame.Payload) {
			break
		}
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return Frame{}, err
		}
	}

	f := r.frame
	r.hn, r.pn, r.payload, r.frame = 0, 0, false, Frame{}
	return f, nil
}

func (r *Reader) startPayload() error {
	t := FrameType(binary.BigEndian.Uint32(r.header[0:4]))
	switch t {
	case FrameHello, FrameRequest, FrameResponse, FramePing:
	default:
		return fmt.Errorf("unknown frame type %v", t)
	}
	n := binary.BigEndian.Uint32(r.header[4:8])
	if n > r.maxSize {
		return fmt.Errorf("%v frame of %d bytes: %w", t, n, ErrFrameTooLarge)
	}
	r.frame = Frame{Type: t}
	if n > 0 {
		r.frame.Payload = make([]byte, n)
	}
	r.payload = true
	return nil
}
