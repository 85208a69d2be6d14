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

	"github.com/flexptp/timersync/timestamp"
)

type captureChannel struct {
	flag    IRQFlags
	channel int
}

// captureTable maps capture interrupt flags to channels
var captureTable = [NumChannels]captureChannel{
	{flag: FlagCC1, channel: 0},
	{flag: FlagCC2, channel: 1},
	{flag: FlagCC3, channel: 2},
	{flag: FlagCC4, channel: 3},
}

// HandleIRQ is the interrupt handler of timer idx. The update flag runs the
// sampler, then every pending capture flag is acknowledged and handled.
func (d *Driver) HandleIRQ(idx int) {
	if idx < 0 || idx >= len(d.timers) {
		d.counters.BadIRQs.Add(1)
		log.Warningf("interrupt for unknown timer %d", idx)
		return
	}
	t := d.timers[idx]
	flags := t.Flags()
	if flags&FlagUpdate != 0 {
		t.ClearFlags(FlagUpdate)
		d.OnRollover()
	}
	for _, cc := range captureTable {
		if flags&cc.flag == 0 {
			continue
		}
		t.ClearFlags(cc.flag)
		d.OnCapture(idx, cc.channel)
	}
}

// TicksToNanos converts a counter value to nanoseconds into a period
func TicksToNanos(ticks, period uint32) int64 {
	return int64(float64(ticks) / (float64(period) + 1) * float64(timestamp.NanosPerSecond))
}

// OnCapture is the capture interrupt of channel ch of timer idx. It resolves
// the reference time of the captured edge and hands it to the capture sink.
func (d *Driver) OnCapture(idx, ch int) {
	d.enterIRQ()
	defer d.exitIRQ()
	if d.session.Load() == nil {
		return
	}
	t := d.timers[idx]
	ns := TicksToNanos(t.Capture(ch), t.Period())
	now, err := d.ref.Time()
	if err != nil {
		d.counters.CaptureFaults.Add(1)
		log.Warningf("reading reference time: %v", err)
		return
	}
	// the edge happened before the reference second rolled over
	sec := now.Sec
	if now.Nsec <= ns {
		sec--
	}
	d.counters.Captures.Add(1)
	d.sink.Capture(CaptureEvent{
		Timer:     idx,
		Channel:   ch,
		Timestamp: timestamp.Timestamp{Sec: sec, Nsec: ns},
	})
}
