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

package phc

import (
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/flexptp/timersync/clock"
	"github.com/flexptp/timersync/timersync"
	"github.com/flexptp/timersync/timestamp"
)

// DefaultQueueDepth matches the kernel EXTTS queue length
const DefaultQueueDepth = 128

// maxAuxChannels is the number of channels an aux timestamp can carry
const maxAuxChannels = 32

// EventDevice is the part of a PHC the Reference reads
type EventDevice interface {
	Time() (timestamp.Timestamp, error)
	FrequencyPPB() (float64, error)
	Extts(index uint, flags uint32) error
	ReadEvents(buf []byte) (int, error)
}

// Edge selects which input edge is timestamped
type Edge uint32

// Supported edges
const (
	EdgeRising  Edge = ptpRisingEdge
	EdgeFalling Edge = ptpFallingEdge
	EdgeBoth    Edge = ptpRisingEdge | ptpFallingEdge
)

// Reference is a timersync reference clock backed by a PHC.
// Aux channel N is EXTTS channel N of the device.
type Reference struct {
	dev  EventDevice
	edge Edge

	mu        sync.Mutex
	queue     []timersync.AuxTimestamp
	depth     int
	buf       []byte
	overflows uint64

	addend atomic.Uint64
}

// NewReference returns a Reference reading events of dev
func NewReference(dev EventDevice, edge Edge, depth int) *Reference {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	r := &Reference{
		dev:   dev,
		edge:  edge,
		depth: depth,
		buf:   make([]byte, eventSize*depth),
	}
	r.addend.Store(clock.MaxAddend)
	return r
}

// RateAdjustment returns the addend equivalent of the PHC frequency.
// The last good value is returned when the frequency can't be read.
func (r *Reference) RateAdjustment() uint64 {
	freqPPB, err := r.dev.FrequencyPPB()
	if err != nil {
		log.Warningf("phc: reading frequency: %v", err)
		return r.addend.Load()
	}
	addend := clock.AddendFromPPB(freqPPB)
	r.addend.Store(addend)
	return addend
}

// Time returns PHC time
func (r *Reference) Time() (timestamp.Timestamp, error) {
	return r.dev.Time()
}

// poll moves events from the device into the queue. Must hold r.mu.
func (r *Reference) poll() {
	for {
		n, err := r.dev.ReadEvents(r.buf)
		if err != nil {
			log.Warningf("phc: %v", err)
			return
		}
		for off := 0; off+eventSize <= n; off += eventSize {
			ev, _ := decodeEvent(r.buf[off : off+eventSize])
			r.push(ev)
		}
		if n < len(r.buf) {
			return
		}
	}
}

func (r *Reference) push(ev unix.PtpExttsEvent) {
	if ev.Index >= maxAuxChannels {
		log.Warningf("phc: event on unexpected channel %d", ev.Index)
		return
	}
	ts := timersync.AuxTimestamp{
		Sec:      ev.T.Sec,
		Nsec:     int64(ev.T.Nsec),
		Channels: 1 << ev.Index,
	}
	if n := len(r.queue); n > 0 && r.queue[n-1].Sec == ts.Sec && r.queue[n-1].Nsec == ts.Nsec {
		r.queue[n-1].Channels |= ts.Channels
		return
	}
	if len(r.queue) >= r.depth {
		r.overflows++
		return
	}
	r.queue = append(r.queue, ts)
}

// PendingTimestamps returns the number of queued aux timestamps
func (r *Reference) PendingTimestamps() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.poll()
	return len(r.queue)
}

// PendingChannels returns a mask of aux channels with queued timestamps
func (r *Reference) PendingChannels() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.poll()
	var mask uint32
	for _, ts := range r.queue {
		mask |= ts.Channels
	}
	return mask
}

// ReadTimestamp pops the oldest aux timestamp
func (r *Reference) ReadTimestamp() (timersync.AuxTimestamp, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		r.poll()
	}
	if len(r.queue) == 0 {
		return timersync.AuxTimestamp{}, false
	}
	ts := r.queue[0]
	r.queue = r.queue[1:]
	return ts, true
}

// ClearTimestamps drops queued events, including those still in the kernel
func (r *Reference) ClearTimestamps() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.poll()
	r.queue = nil
}

// EnableAuxChannel turns external timestamping of channel ch on or off
func (r *Reference) EnableAuxChannel(ch int, enable bool) error {
	if ch < 0 || ch >= maxAuxChannels {
		return fmt.Errorf("aux channel %d out of range", ch)
	}
	var flags uint32
	if enable {
		flags = ptpEnableFeature | uint32(r.edge)
	}
	return r.dev.Extts(uint(ch), flags)
}

// Overflows returns the number of events dropped on a full queue
func (r *Reference) Overflows() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overflows
}

// ParseEdge parses an edge name as used in configuration
func ParseEdge(s string) (Edge, error) {
	switch s {
	case "rising", "":
		return EdgeRising, nil
	case "falling":
		return EdgeFalling, nil
	case "both":
		return EdgeBoth, nil
	}
	return 0, fmt.Errorf("unknown edge %q", s)
}
