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

package json

import (
	"context"
	"encoding/json"
)

// Caller sends an encoded request and returns the encoded response. A
// *client.Client is a Caller.
type Caller interface {
	Call(ctx context.Context, method string, body []byte) ([]byte, error)
}

// Call performs an outbound JSON request.
//
// reqBody may be any value json.Marshal accepts. resBodyOut is a pointer to
// a value that can be filled with json.Unmarshal; it may be nil to ignore
// the response.
func Call(ctx context.Context, c Caller, method string, reqBody, resBodyOut interface{}) error {
	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return marshalError{Reason: err}
	}

	res, err := c.Call(ctx, method, encoded)
	if err != nil {
		return err
	}

	if resBodyOut == nil || len(res) == 0 {
		return nil
	}
	if err := json.Unmarshal(res, resBodyOut); err != nil {
		return unmarshalError{Reason: err}
	}
	return nil
}
