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

package callqueue

import "go.uber.org/atomic"

// DefaultWeights gives level i of n a weight of 2^(n-1-i).
func DefaultWeights(levels int) []int {
	weights := make([]int, levels)
	for i := range weights {
		weights[i] = 1 << uint(levels-1-i)
	}
	return weights
}

// weightedRoundRobin hands out level indexes, each level repeated as many
// times in a row as its weight.
//
// It is lock free and may drift under contention: two goroutines can both
// see the last turn of a level. The drift only shifts which level a scan
// starts from.
type weightedRoundRobin struct {
	weights []int
	current atomic.Int32
	left    atomic.Int32
}

func newWeightedRoundRobin(weights []int) *weightedRoundRobin {
	m := &weightedRoundRobin{weights: weights}
	m.left.Store(int32(weights[0]))
	return m
}

func (m *weightedRoundRobin) next() int {
	idx := int(m.current.Load())
	if m.left.Dec() <= 0 {
		following := (idx + 1) % len(m.weights)
		m.current.Store(int32(following))
		m.left.Store(int32(m.weights[following]))
	}
	return idx
}
