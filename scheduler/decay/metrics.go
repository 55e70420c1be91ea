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

package decay

import (
	"strconv"
	"time"

	"github.com/uber-go/tally"
)

const _priorityTag = "priority"

type metrics struct {
	decayedCallVolume tally.Gauge
	callVolume        tally.Gauge
	uniqueCallers     tally.Gauge

	completedCallVolume []tally.Gauge
	avgResponseTimeMS   []tally.Gauge
}

func newMetrics(scope tally.Scope, levels int) metrics {
	m := metrics{
		decayedCallVolume:   scope.Gauge("decayed_call_volume"),
		callVolume:          scope.Gauge("call_volume"),
		uniqueCallers:       scope.Gauge("unique_callers"),
		completedCallVolume: make([]tally.Gauge, levels),
		avgResponseTimeMS:   make([]tally.Gauge, levels),
	}
	for i := 0; i < levels; i++ {
		tagged := scope.Tagged(map[string]string{_priorityTag: strconv.Itoa(i)})
		m.completedCallVolume[i] = tagged.Gauge("completed_call_volume")
		m.avgResponseTimeMS[i] = tagged.Gauge("avg_response_time_ms")
	}
	return m
}

func (m metrics) publish(s *Scheduler) {
	m.decayedCallVolume.Update(s.TotalCallVolume())
	m.callVolume.Update(float64(s.totalCalls.Load()))
	m.uniqueCallers.Update(float64(s.UniqueCallers()))
	for i, avg := range s.AverageResponseTimes() {
		m.completedCallVolume[i].Update(float64(s.lastWindowCount[i].Load()))
		m.avgResponseTimeMS[i].Update(float64(avg) / float64(time.Millisecond))
	}
}
