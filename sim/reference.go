/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package sim

import (
	"fmt"
	"sync"

	"github.com/flexptp/timersync/clock"
	"github.com/flexptp/timersync/timersync"
	"github.com/flexptp/timersync/timestamp"
)

// DefaultQueueDepth is the aux timestamp FIFO size of a simulated reference
const DefaultQueueDepth = 16

// maxAuxChannels is the number of aux inputs of the simulated reference
const maxAuxChannels = 32

// Reference is a simulated reference clock with an aux timestamp FIFO
type Reference struct {
	mu        sync.Mutex
	now       timestamp.Timestamp
	addend    uint64
	channels  uint32
	queue     []timersync.AuxTimestamp
	depth     int
	overflows uint64
	timeErr   error
}

// NewReference returns a reference clock showing start
func NewReference(start timestamp.Timestamp, addend uint64, depth int) *Reference {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &Reference{
		now:    start.Normalize(),
		addend: addend,
		depth:  depth,
	}
}

// RateAdjustment returns the addend
func (r *Reference) RateAdjustment() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addend
}

// SetAddend changes the rate of the reference. The bench picks it up on the next step.
func (r *Reference) SetAddend(addend uint64) {
	r.mu.Lock()
	r.addend = addend
	r.mu.Unlock()
}

// SetFrequencyPPB changes the rate of the reference by a frequency adjustment
func (r *Reference) SetFrequencyPPB(freqPPB float64) {
	r.SetAddend(clock.AddendFromPPB(freqPPB))
}

// Time returns current reference time
func (r *Reference) Time() (timestamp.Timestamp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timeErr != nil {
		return timestamp.Timestamp{}, r.timeErr
	}
	return r.now, nil
}

// FailTime makes Time return err until called again with nil
func (r *Reference) FailTime(err error) {
	r.mu.Lock()
	r.timeErr = err
	r.mu.Unlock()
}

func (r *Reference) setTime(ts timestamp.Timestamp) {
	r.mu.Lock()
	r.now = ts
	r.mu.Unlock()
}

// PendingTimestamps returns the FIFO fill level
func (r *Reference) PendingTimestamps() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// ReadTimestamp pops the oldest FIFO entry
func (r *Reference) ReadTimestamp() (timersync.AuxTimestamp, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return timersync.AuxTimestamp{}, false
	}
	ts := r.queue[0]
	r.queue = r.queue[1:]
	return ts, true
}

// ClearTimestamps empties the FIFO
func (r *Reference) ClearTimestamps() {
	r.mu.Lock()
	r.queue = nil
	r.mu.Unlock()
}

// EnableAuxChannel turns timestamping of aux input ch on or off
func (r *Reference) EnableAuxChannel(ch int, enable bool) error {
	if ch < 0 || ch >= maxAuxChannels {
		return fmt.Errorf("aux channel %d out of range", ch)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if enable {
		r.channels |= 1 << ch
	} else {
		r.channels &^= 1 << ch
	}
	return nil
}

// AuxChannelEnabled reports whether aux input ch is timestamped
func (r *Reference) AuxChannelEnabled(ch int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channels&(1<<ch) != 0
}

// Stamp records an edge on aux input ch. Edges on several inputs at the same
// instant share one FIFO entry. A full FIFO drops the edge.
func (r *Reference) Stamp(ch int, ts timestamp.Timestamp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.channels&(1<<ch) == 0 {
		return
	}
	if n := len(r.queue); n > 0 && r.queue[n-1].Sec == ts.Sec && r.queue[n-1].Nsec == ts.Nsec {
		r.queue[n-1].Channels |= 1 << ch
		return
	}
	if len(r.queue) >= r.depth {
		r.overflows++
		return
	}
	r.queue = append(r.queue, timersync.AuxTimestamp{Sec: ts.Sec, Nsec: ts.Nsec, Channels: 1 << ch})
}

// Overflows returns the number of edges dropped on a full FIFO
func (r *Reference) Overflows() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overflows
}
