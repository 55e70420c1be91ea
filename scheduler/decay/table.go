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
	"hash/fnv"
	"sync"

	"go.uber.org/atomic"
)

const _shardCount = 32

// record is the call volume of one caller.
type record struct {
	raw     atomic.Int64   // calls since the last sweep
	decayed atomic.Float64 // volume as of the last sweep
}

type shard struct {
	mu      sync.RWMutex
	records map[string]*record
}

// identityTable counts calls per caller. Arrivals only take a shard's read
// lock; the sweep write-locks one shard at a time.
type identityTable struct {
	shards [_shardCount]shard
}

func newIdentityTable() *identityTable {
	t := &identityTable{}
	for i := range t.shards {
		t.shards[i].records = make(map[string]*record)
	}
	return t
}

func (t *identityTable) shardFor(identity string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identity))
	return &t.shards[h.Sum32()%_shardCount]
}

// increment counts one call from identity.
func (t *identityTable) increment(identity string) {
	s := t.shardFor(identity)

	s.mu.RLock()
	r, ok := s.records[identity]
	if ok {
		r.raw.Inc()
	}
	s.mu.RUnlock()
	if ok {
		return
	}

	s.mu.Lock()
	r, ok = s.records[identity]
	if !ok {
		r = &record{}
		s.records[identity] = r
	}
	r.raw.Inc()
	s.mu.Unlock()
}

// decay folds the calls of the last period into every caller's decayed
// volume, forgets callers below evict, and returns the surviving volumes
// along with the number of calls folded in.
func (t *identityTable) decay(factor, evict float64) (volumes map[string]float64, calls int64) {
	volumes = make(map[string]float64)
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for identity, r := range s.records {
			raw := r.raw.Swap(0)
			calls += raw
			v := r.decayed.Load()*factor + float64(raw)
			if v < evict {
				delete(s.records, identity)
				continue
			}
			r.decayed.Store(v)
			volumes[identity] = v
		}
		s.mu.Unlock()
	}
	return volumes, calls
}
