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
	log "github.com/sirupsen/logrus"

	"github.com/flexptp/timersync/servo"
	"github.com/flexptp/timersync/timestamp"
)

// OnRollover is the counter update interrupt. It drains the aux timestamp
// queue first and only then runs the servo of every timer that got a new
// timestamp, so corrections are never applied from a half-drained queue.
func (d *Driver) OnRollover() {
	d.enterIRQ()
	defer d.exitIRQ()
	s := d.session.Load()
	if s == nil {
		return
	}

	drained := 0
	for d.ref.PendingTimestamps() > 0 {
		if drained == maxDrainPerRollover {
			d.counters.DrainFaults.Add(1)
			log.Warningf("aux timestamp queue still not empty after %d reads", drained)
			break
		}
		ts, ok := d.ref.ReadTimestamp()
		if !ok {
			d.counters.DrainFaults.Add(1)
			log.Warning("aux timestamp queue reports pending entries but has no data")
			break
		}
		drained++
		for ch := range s.controllers {
			if ts.Channels&(1<<ch) == 0 {
				continue
			}
			s.pending[ch] = timestamp.Timestamp{Sec: ts.Sec, Nsec: ts.Nsec}
			s.unprocessed[ch] = true
		}
	}

	for ch, c := range s.controllers {
		if !s.unprocessed[ch] {
			continue
		}
		_, state := c.Sample(s.pending[ch])
		s.unprocessed[ch] = false
		s.states[ch].Store(uint32(state))
		s.samples[ch].Add(1)
		d.counters.record(state)
	}
}

func (c *Counters) record(state servo.State) {
	c.Samples.Add(1)
	switch state {
	case servo.StateSkip:
		c.Skipped.Add(1)
	case servo.StateRejected:
		c.Rejected.Add(1)
	case servo.StateJump:
		c.Jumps.Add(1)
	case servo.StateLocked:
		c.Locked.Add(1)
	}
}
