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

import "time"

// EffectiveTimeout is how long a caller waits for a response.
//
// A requested timeout of zero or less waits indefinitely and yields zero.
// Without pings the requested timeout is used as is. With pings it is
// stretched to the smallest multiple of the ping interval strictly greater
// than the request, so that a probe in flight never lands on the timeout
// boundary: 1000ms with an 800ms interval waits 1600ms.
func EffectiveTimeout(requested, pingInterval time.Duration, pingEnabled bool) time.Duration {
	if requested <= 0 {
		return 0
	}
	if !pingEnabled || pingInterval <= 0 {
		return requested
	}
	return pingInterval * (requested/pingInterval + 1)
}
