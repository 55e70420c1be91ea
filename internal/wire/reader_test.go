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
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTimeout = errors.New("i/o timeout")

// stutterReader hands out at most one byte per Read and fails every other
// call, like a connection whose read deadline keeps expiring.
type stutterReader struct {
	r    io.Reader
	fail bool
}

func (s *stutterReader) Read(p []byte) (int, error) {
	s.fail = !s.fail
	if s.fail {
		return 0, errTimeout
	}
	if len(p) > 1 {
		p = p[:1]
	}
	return s.r.Read(p)
}

func TestReaderResumesAfterErrors(t *testing.T) {
	raw := AppendFrame(nil, FrameRequest, []byte("hello"))
	raw = AppendFrame(raw, FramePing, nil)
	raw = AppendFrame(raw, FrameResponse, []byte("world"))

	r := NewReader(&stutterReader{r: bytes.NewReader(raw)}, DefaultMaxFrameSize)
	var frames []Frame
	for {
		f, err := r.Next()
		if err == errTimeout {
			continue
		}
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		frames = append(frames, f)
	}

	assert.Equal(t, []Frame{
		{Type: FrameRequest, Payload: []byte("hello")},
		{Type: FramePing},
		{Type: FrameResponse, Payload: []byte("world")},
	}, frames)
}

func TestReaderErrors(t *testing.T) {
	raw := AppendFrame(nil, FrameRequest, []byte("hello"))

	_, err := NewReader(bytes.NewReader(raw[:3]), DefaultMaxFrameSize).Next()
	assert.Equal(t, io.ErrUnexpectedEOF, err)

	_, err = NewReader(bytes.NewReader(raw[:HeaderSize+1]), DefaultMaxFrameSize).Next()
	assert.Equal(t, io.ErrUnexpectedEOF, err)

	_, err = NewReader(bytes.NewReader(raw), 2).Next()
	assert.True(t, errors.Is(err, ErrFrameTooLarge))

	_, err = NewReader(bytes.NewReader(AppendFrame(nil, FrameType(0), nil)), 2).Next()
	assert.Error(t, err)

	_, err = NewReader(bytes.NewReader(nil), 2).Next()
	assert.Equal(t, io.EOF, err)
}
