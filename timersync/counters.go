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

package timersync

import (
	"sync/atomic"
)

// counter keys
const (
	CounterSamples       = "timersync.samples"
	CounterSkipped       = "timersync.skipped"
	CounterRejected      = "timersync.rejected"
	CounterJumps         = "timersync.jumps"
	CounterLocked        = "timersync.locked"
	CounterDrainFaults   = "timersync.drain_faults"
	CounterCaptures      = "timersync.captures"
	CounterCaptureFaults = "timersync.capture_faults"
	CounterBadIRQs       = "timersync.bad_irqs"
)

// Counters are updated lock-free from the interrupt path
type Counters struct {
	Samples       atomic.Uint64
	Skipped       atomic.Uint64
	Rejected      atomic.Uint64
	Jumps         atomic.Uint64
	Locked        atomic.Uint64
	DrainFaults   atomic.Uint64
	Captures      atomic.Uint64
	CaptureFaults atomic.Uint64
	BadIRQs       atomic.Uint64
}

// Map returns counter values keyed by name
func (c *Counters) Map() map[string]int64 {
	return map[string]int64{
		CounterSamples:       int64(c.Samples.Load()),
		CounterSkipped:       int64(c.Skipped.Load()),
		CounterRejected:      int64(c.Rejected.Load()),
		CounterJumps:         int64(c.Jumps.Load()),
		CounterLocked:        int64(c.Locked.Load()),
		CounterDrainFaults:   int64(c.DrainFaults.Load()),
		CounterCaptures:      int64(c.Captures.Load()),
		CounterCaptureFaults: int64(c.CaptureFaults.Load()),
		CounterBadIRQs:       int64(c.BadIRQs.Load()),
	}
}
